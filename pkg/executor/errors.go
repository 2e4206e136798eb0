package executor

import "fmt"

// TemplateError wraps a failure to render a template or evaluate a
// predicate. In URL/header/body/duration context it fails the step; in
// choice-predicate context it is treated as "did not match".
type TemplateError struct {
	Template string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error rendering %q: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// ActionNotFoundError indicates a task step references an action name
// absent from the ActionStore.
type ActionNotFoundError struct {
	Name string
}

func (e *ActionNotFoundError) Error() string {
	return fmt.Sprintf("action %q not found", e.Name)
}

// UnsupportedStepTypeError indicates a step's type discriminator is not
// one of task/wait/choice.
type UnsupportedStepTypeError struct {
	Type StepType
}

func (e *UnsupportedStepTypeError) Error() string {
	return fmt.Sprintf("unsupported step type: %s", e.Type)
}

// UnsupportedActionTypeError indicates an action's type is not "http".
type UnsupportedActionTypeError struct {
	Type string
}

func (e *UnsupportedActionTypeError) Error() string {
	return fmt.Sprintf("unsupported action type: %s", e.Type)
}

// InvalidDurationError indicates a wait step's rendered duration was
// empty, whitespace, or not numeric.
type InvalidDurationError struct {
	StepID string
	Reason string
}

func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("%s for step '%s'", e.Reason, e.StepID)
}

// MaxRetriesExceededError indicates a wait step was entered more times
// than its max_retries allows.
type MaxRetriesExceededError struct {
	StepID string
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("Max retries exceeded for step '%s'", e.StepID)
}

// ChoiceUnresolvedError indicates a choice step had no matching
// predicate and no default fallback.
type ChoiceUnresolvedError struct {
	StepID string
}

func (e *ChoiceUnresolvedError) Error() string {
	return fmt.Sprintf("no matching condition and no default found for step '%s'", e.StepID)
}

// InvalidNextStepError indicates a choice step returned an id absent
// from the job's step list.
type InvalidNextStepError struct {
	NextID string
}

func (e *InvalidNextStepError) Error() string {
	return fmt.Sprintf("Invalid next step ID: %s", e.NextID)
}

// TransportError wraps a network or decode failure from the HTTP Invoker.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport error: %v", e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }
