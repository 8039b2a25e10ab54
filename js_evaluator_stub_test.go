//go:build !js_eval

package scenes

import (
	"errors"
	"testing"
)

func TestJSEngineUnavailableWithoutTag(t *testing.T) {
	if NewJSEvaluator() != nil {
		t.Fatalf("expected no js evaluator without the js_eval tag")
	}
	if jsEvaluatorAvailable() {
		t.Fatalf("expected js evaluator reported unavailable")
	}
	if _, err := EvaluatorFor(EngineJS); !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}
}
