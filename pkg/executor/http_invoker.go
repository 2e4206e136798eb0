package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPInvoker issues a single outbound HTTP request described by a
// resolved, rendered action. It does not retry internally; retry is
// expressed at the workflow level via a preceding wait step.
type HTTPInvoker struct {
	Client *http.Client
}

// NewHTTPInvoker builds an invoker with a bounded per-call deadline,
// since the engine itself imposes none.
func NewHTTPInvoker(timeout time.Duration) *HTTPInvoker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPInvoker{Client: &http.Client{Timeout: timeout}}
}

// Invoke renders and sends the request, decodes the JSON response, and
// (if save_as is set) stores it into ctx.output. Returns the
// "http_completed" marker on success.
func (h *HTTPInvoker) Invoke(cfg HTTPActionConfig, ctx Context) (string, error) {
	url, err := RenderString(cfg.URL, ctx)
	if err != nil {
		return "", err
	}

	var body map[string]any
	if cfg.Body == nil {
		body = map[string]any(ctx)
	} else {
		body = make(map[string]any, len(cfg.Body))
		for key, tmpl := range cfg.Body {
			rendered, err := RenderString(tmpl, ctx)
			if err != nil {
				return "", err
			}
			var parsed any
			if err := json.Unmarshal([]byte(rendered), &parsed); err != nil {
				return "", &TransportError{Err: fmt.Errorf("body field %q is not valid JSON after rendering: %w", key, err)}
			}
			body[key] = parsed
		}
	}

	headers := make(map[string]string, len(cfg.Headers))
	for key, tmpl := range cfg.Headers {
		rendered, err := RenderString(tmpl, ctx)
		if err != nil {
			return "", err
		}
		headers[key] = rendered
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", &TransportError{Err: fmt.Errorf("marshal request body: %w", err)}
	}

	req, err := http.NewRequest(cfg.Method, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Err: fmt.Errorf("read response body: %w", err)}
	}

	var decoded any
	if len(respBytes) > 0 {
		if err := json.Unmarshal(respBytes, &decoded); err != nil {
			return "", &TransportError{Err: fmt.Errorf("response is not valid JSON: %w", err)}
		}
	}

	if cfg.SaveAs != "" {
		ctx.Output()[cfg.SaveAs] = decoded
	}

	return "http_completed", nil
}
