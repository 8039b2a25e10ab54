//go:build !js_eval

package scenes

// NewJSEvaluator returns nil unless built with the js_eval tag; EvaluatorFor
// then reports ErrNoEvaluator for the "js" engine.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = newJSEvaluatorConfig(opts)
	return nil
}

func jsEvaluatorAvailable() bool { return false }
