package scenes

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateRegistration is returned when a process-wide registry already
	// holds an entry for the requested key.
	ErrDuplicateRegistration = errors.New("scenes: key already registered")
	// ErrNoEvaluator indicates a query variable could not resolve an evaluator.
	ErrNoEvaluator = errors.New("scenes: evaluator not configured")
)

// NotFoundError reports a required capability missing from the ancestors of a
// scene object.
type NotFoundError struct {
	What string
	From string
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.From == "" {
		return fmt.Sprintf("scenes: unable to find %s", e.What)
	}
	return fmt.Sprintf("scenes: unable to find %s from object %q", e.What, e.From)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// FormatterSyntaxError is returned when a formatter chain cannot be parsed.
type FormatterSyntaxError struct {
	Input  string
	Offset int
	Reason string
}

func (e *FormatterSyntaxError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("scenes: formatter chain %q: %s at offset %d", e.Input, e.Reason, e.Offset)
}

// ActivationError wraps the failure of an activation handler. The object is
// left inactive when it is returned.
type ActivationError struct {
	Key  string
	Kind string
	Err  error
}

func (e *ActivationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("scenes: activate %s %q: %v", e.Kind, e.Key, e.Err)
}

func (e *ActivationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Query  string
	Scope  string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("scenes: %s evaluator %s scope=%s: %v", e.Engine, describeQuery(e.Query), e.Scope, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeQuery(query string) string {
	if query == "" {
		return "query=<empty>"
	}
	return fmt.Sprintf("query=%q", query)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "scenes:") {
		return err
	}
	return fmt.Errorf("scenes: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, query, scope string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Query == "" {
			evalErr.Query = query
		}
		if evalErr.Scope == "" {
			evalErr.Scope = scope
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Query:  query,
		Scope:  scope,
		Err:    err,
	}
}
