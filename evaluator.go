package scenes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Query engines understood by EvaluatorFor.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// EngineCustom labels evaluators installed with WithEvaluator.
const EngineCustom = "custom"

// QueryContext is the environment a query variable evaluates its query in.
type QueryContext struct {
	// Variables holds the value of every variable visible from the query
	// variable, keyed by name.
	Variables map[string]any
	Range     TimeRange
	Now       time.Time
	// Scope identifies the evaluating variable in errors and logs.
	Scope string
}

// Evaluator runs an interpolated query and returns its raw result. Results
// are turned into options by the query variable: a list of strings or
// numbers, a list of {text, value} maps, a map of text to value, or a single
// scalar.
type Evaluator interface {
	Evaluate(ctx context.Context, qctx QueryContext, query string) (any, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, qctx QueryContext, query string) (any, error)

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(ctx context.Context, qctx QueryContext, query string) (any, error) {
	return f(ctx, qctx, query)
}

func (q QueryContext) withDefaults() QueryContext {
	if q.Now.IsZero() {
		q.Now = time.Now()
	}
	if q.Variables == nil {
		q.Variables = map[string]any{}
	}
	return q
}

func (q QueryContext) scopeLabel() string {
	return q.Scope
}

// baseEnvironment is shared by every engine. Variables are also exposed at
// the top level unless they clash with a built-in name.
func (q QueryContext) baseEnvironment() map[string]any {
	env := map[string]any{
		"now":   q.Now,
		"from":  q.Range.From,
		"to":    q.Range.To,
		"vars":  q.Variables,
		"scope": q.Scope,
	}
	for name, value := range q.Variables {
		if _, reserved := env[name]; reserved {
			continue
		}
		env[name] = value
	}
	return env
}

// sortedVariableNames lists the variable names exposed at the top level.
func (q QueryContext) sortedVariableNames() []string {
	names := make([]string, 0, len(q.Variables))
	for name := range q.Variables {
		switch name {
		case "now", "from", "to", "vars", "scope":
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	evaluatorsMu sync.Mutex
	evaluators   = map[string]Evaluator{}
)

// EvaluatorFor returns the shared evaluator of engine, building it on first
// use. An empty engine selects the configured default. Engines that are not
// compiled in return ErrNoEvaluator.
func EvaluatorFor(engine string) (Evaluator, error) {
	engine = strings.ToLower(strings.TrimSpace(engine))
	if engine == "" {
		engine = currentDefaults().engine
	}
	evaluatorsMu.Lock()
	defer evaluatorsMu.Unlock()
	if ev, ok := evaluators[engine]; ok {
		return ev, nil
	}

	cache := NewMemoryProgramCache(defaultProgramCacheSize)
	var ev Evaluator
	switch engine {
	case EngineExpr:
		ev = NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(QueryFunctions()))
	case EngineCEL:
		ev = NewCELEvaluator(CELWithProgramCache(cache))
	case EngineJS:
		if jsEvaluatorAvailable() {
			ev = NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(QueryFunctions()))
		}
	default:
		return nil, fmt.Errorf("scenes: unknown query engine %q: %w", engine, ErrNoEvaluator)
	}
	if ev == nil {
		return nil, fmt.Errorf("scenes: query engine %q not available: %w", engine, ErrNoEvaluator)
	}
	evaluators[engine] = ev
	return ev, nil
}

// ResolveEvaluator returns the evaluator set with WithEvaluator on obj or its
// closest ancestor, falling back to EvaluatorFor(engine).
func ResolveEvaluator(obj SceneObject, engine string) (Evaluator, error) {
	if !isNilObject(obj) {
		if ev := obj.Base().closestEvaluator(); ev != nil {
			return ev, nil
		}
	}
	return EvaluatorFor(engine)
}
