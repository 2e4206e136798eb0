package executor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja"
)

// interpolation matches ${expr} spans inside a template string. The
// braces are the only templating syntax this engine supports; a bare
// string with no ${...} renders to itself unchanged.
var interpolation = regexp.MustCompile(`\$\{([^}]*)\}`)

// RenderString evaluates every ${expr} span in template against ctx and
// substitutes the result formatted with Go's %v (a null or undefined
// result becomes the empty string), returning the assembled string.
// A string with no interpolation spans is returned verbatim.
func RenderString(template string, ctx Context) (string, error) {
	if !strings.Contains(template, "${") {
		return template, nil
	}

	var firstErr error
	result := interpolation.ReplaceAllStringFunc(template, func(match string) string {
		if firstErr != nil {
			return ""
		}
		expr := interpolation.FindStringSubmatch(match)[1]
		val, err := evalExpr(expr, ctx)
		if err != nil {
			firstErr = &TemplateError{Template: template, Err: err}
			return ""
		}
		return stringifyValue(val)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// EvalPredicate evaluates expr as a boolean JS expression against ctx.
// A syntactic or binding failure surfaces as a *TemplateError; the
// Choice Evaluator treats that as "predicate did not match".
func EvalPredicate(expr string, ctx Context) (bool, error) {
	val, err := evalExpr(expr, ctx)
	if err != nil {
		return false, &TemplateError{Template: expr, Err: err}
	}
	return truthy(val), nil
}

// evalExpr runs a fresh goja VM per call rather than reusing one across
// untrusted expressions, with the job context bound as top-level
// identifiers (context, meta, output) plus the full map bound as `ctx`
// for completeness.
func evalExpr(expr string, ctx Context) (val interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic evaluating expression %q: %v", expr, r)
		}
	}()

	vm := goja.New()
	vm.Set("require", goja.Undefined())
	vm.Set("eval", goja.Undefined())
	vm.Set("Function", goja.Undefined())

	vm.Set("ctx", map[string]any(ctx))
	for _, key := range []string{"context", "meta", "output"} {
		if v, ok := ctx[key]; ok {
			vm.Set(key, v)
		} else {
			vm.Set(key, map[string]any{})
		}
	}

	v, runErr := vm.RunString(expr)
	if runErr != nil {
		return nil, runErr
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

// truthy mirrors JS truthiness for the Go-exported value types goja
// hands back (string, float64, bool, nil, map, slice).
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}

func stringifyValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
