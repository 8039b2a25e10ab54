package scenes

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapEvaluationErrorCreatesMetadata(t *testing.T) {
	base := errors.New("boom")
	err := wrapEvaluationError(EngineExpr, "region == missing", "host", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != EngineExpr {
		t.Fatalf("expected engine expr, got %q", evalErr.Engine)
	}
	if evalErr.Query != "region == missing" {
		t.Fatalf("expected query metadata, got %q", evalErr.Query)
	}
	if evalErr.Scope != "host" {
		t.Fatalf("expected scope metadata, got %q", evalErr.Scope)
	}
	if !errors.Is(evalErr.Err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
}

func TestWrapEvaluationErrorAugmentsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{
		Engine: EngineExpr,
		Err:    base,
	}

	err := wrapEvaluationError(EngineCEL, "rule", "zone", existing)
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if existing.Engine != EngineExpr {
		t.Fatalf("existing engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Query != "rule" {
		t.Fatalf("query should be filled, got %q", existing.Query)
	}
	if existing.Scope != "zone" {
		t.Fatalf("scope should be filled, got %q", existing.Scope)
	}
}

func TestWrapEvaluatorErrorPrefixes(t *testing.T) {
	if wrapEvaluatorError(EngineJS, nil) != nil {
		t.Fatalf("expected nil passthrough")
	}
	err := wrapEvaluatorError(EngineJS, errors.New("boom"))
	if err.Error() != "scenes: js evaluator: boom" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	prefixed := errors.New("scenes: already described")
	if wrapEvaluatorError(EngineJS, prefixed) != prefixed {
		t.Fatalf("expected prefixed error returned as is")
	}
}

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&NotFoundError{What: "time range"}, "scenes: unable to find time range"},
		{&NotFoundError{What: "time range", From: "panel-1"}, `scenes: unable to find time range from object "panel-1"`},
		{&FormatterSyntaxError{Input: "csv:", Offset: 4, Reason: "expected formatter name"}, `scenes: formatter chain "csv:": expected formatter name at offset 4`},
		{&ActivationError{Key: "p1", Kind: "Panel", Err: errors.New("boom")}, `scenes: activate Panel "p1": boom`},
		{&EvaluationError{Engine: "cel", Scope: "zone", Err: errors.New("bad")}, "scenes: cel evaluator query=<empty> scope=zone: bad"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}

	var nilErr *ActivationError
	if nilErr.Error() != "<nil>" || nilErr.Unwrap() != nil {
		t.Fatalf("expected nil-safe ActivationError")
	}
	if !IsNotFound(errors.Join(errors.New("other"), &NotFoundError{What: "x"})) {
		t.Fatalf("expected IsNotFound through joined errors")
	}
	if !strings.Contains(ErrNoEvaluator.Error(), "evaluator") {
		t.Fatalf("unexpected sentinel message %q", ErrNoEvaluator)
	}
}
