package scenes

import (
	"context"
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry wires a FunctionRegistry into the expr evaluator.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// exprEvaluator executes queries using github.com/expr-lang/expr.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Evaluate compiles and runs query against the variables of qctx.
func (e *exprEvaluator) Evaluate(ctx context.Context, qctx QueryContext, query string) (any, error) {
	if query == "" {
		return nil, wrapEvaluatorError(EngineExpr, fmt.Errorf("query must not be empty"))
	}
	qctx = qctx.withDefaults()
	program, err := e.loadOrCompile(query)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, wrapEvaluationError(EngineExpr, query, qctx.scopeLabel(), err)
	}
	result, err := exprlang.Run(program, e.environment(qctx))
	if err != nil {
		return nil, wrapEvaluationError(EngineExpr, query, qctx.scopeLabel(), err)
	}
	return result, nil
}

func (e *exprEvaluator) loadOrCompile(query string) (*exprvm.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(query); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registryNames() {
		options = append(options, exprlang.Function(name, e.registryFunction(name)))
	}
	program, err := exprlang.Compile(query, options...)
	if err != nil {
		return nil, wrapEvaluationError(EngineExpr, query, "", err)
	}
	if e.cache != nil {
		e.cache.Set(query, program)
	}
	return program, nil
}

func (e *exprEvaluator) environment(qctx QueryContext) map[string]any {
	env := qctx.baseEnvironment()
	if e.registry != nil {
		env["call"] = func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}
	}
	return env
}

func (e *exprEvaluator) registryNames() []string {
	if e == nil || e.registry == nil {
		return nil
	}
	return e.registry.Names()
}

func (e *exprEvaluator) registryFunction(name string) func(...any) (any, error) {
	return func(arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}
}
