package executor

import "log"

// EvaluateChoice walks step.Conditions in order. The first
// {if,next} whose predicate renders truthy wins. A *TemplateError while
// evaluating a single predicate is logged and treated as non-match;
// evaluation continues with the next condition. If nothing matched, the
// first {default} wins. With neither, *ChoiceUnresolvedError is returned.
func EvaluateChoice(step Step, ctx Context, jobID string) (string, error) {
	if len(step.Conditions) == 0 {
		return "", &ChoiceUnresolvedError{StepID: step.ID}
	}

	for _, cond := range step.Conditions {
		if cond.IsDefault() {
			continue
		}
		matched, err := EvalPredicate(cond.If, ctx)
		if err != nil {
			log.Printf("[Job %s] failed to evaluate condition %q: %v", jobID, cond.If, err)
			continue
		}
		if matched {
			return cond.Next, nil
		}
	}

	for _, cond := range step.Conditions {
		if cond.IsDefault() {
			return cond.Default, nil
		}
	}

	return "", &ChoiceUnresolvedError{StepID: step.ID}
}
