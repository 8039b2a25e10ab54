//go:build js_eval

package scenes

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
	timeout  time.Duration
}

// NewJSEvaluator constructs an Evaluator backed by goja.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	cfg := newJSEvaluatorConfig(opts)
	return &jsEvaluator{
		cache:    cfg.cache,
		registry: cfg.registry,
		timeout:  cfg.timeout,
	}
}

func (e *jsEvaluator) Evaluate(ctx context.Context, qctx QueryContext, query string) (any, error) {
	if query == "" {
		return nil, wrapEvaluatorError(EngineJS, fmt.Errorf("query must not be empty"))
	}
	qctx = qctx.withDefaults()
	program, err := e.loadOrCompile(query)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, query, qctx.scopeLabel(), err)
	}
	result, err := e.run(ctx, qctx, program)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, query, qctx.scopeLabel(), err)
	}
	return result, nil
}

func (e *jsEvaluator) loadOrCompile(query string) (*goja.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(query); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", e.wrapQuery(query), false)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(query, program)
	}
	return program, nil
}

// run executes program on a fresh runtime, interrupting it when ctx ends.
func (e *jsEvaluator) run(ctx context.Context, qctx QueryContext, program *goja.Program) (any, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vm := goja.New()
	e.injectContext(vm, qctx)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, err
	}
	return value.Export(), nil
}

func (e *jsEvaluator) injectContext(vm *goja.Runtime, qctx QueryContext) {
	for key, value := range qctx.baseEnvironment() {
		_ = vm.Set(key, value)
	}
	if e.registry != nil {
		_ = vm.Set("call", func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		})
		for _, name := range e.registry.Names() {
			fn := name
			_ = vm.Set(fn, func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			})
		}
	}
}

func (e *jsEvaluator) wrapQuery(query string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", query)
}

func jsEvaluatorAvailable() bool {
	return true
}
