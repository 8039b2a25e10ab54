package scenes

import (
	"context"
	"fmt"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

type celEvaluator struct {
	cache ProgramCache
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Variables are
// declared as dyn; now, from and to are timestamps.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx context.Context, qctx QueryContext, query string) (any, error) {
	if query == "" {
		return nil, wrapEvaluatorError(EngineCEL, fmt.Errorf("query must not be empty"))
	}
	qctx = qctx.withDefaults()
	names := celVariableNames(qctx)
	program, err := e.loadOrCompile(query, names)
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, query, qctx.scopeLabel(), err)
	}
	out, _, err := program.program.ContextEval(ctx, e.activation(qctx, names))
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, query, qctx.scopeLabel(), err)
	}
	return celToNative(out), nil
}

// loadOrCompile keys programs by the declared variable names too, since the
// checked program depends on them.
func (e *celEvaluator) loadOrCompile(query string, names []string) (*celProgram, error) {
	key := strings.Join(names, ",") + "\x00" + query
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(names)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(query)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(ast, celgo.InterruptCheckFrequency(100))
	if err != nil {
		return nil, err
	}

	bundle := &celProgram{env: env, program: prg}
	if e.cache != nil {
		e.cache.Set(key, bundle)
	}
	return bundle, nil
}

func (e *celEvaluator) buildEnv(names []string) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("from", celgo.TimestampType),
		celgo.Variable("to", celgo.TimestampType),
		celgo.Variable("vars", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("scope", celgo.StringType),
	}
	for _, name := range names {
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) activation(qctx QueryContext, names []string) map[string]any {
	activation := map[string]any{
		"now":   qctx.Now,
		"from":  qctx.Range.From,
		"to":    qctx.Range.To,
		"vars":  qctx.Variables,
		"scope": qctx.Scope,
	}
	for _, name := range names {
		activation[name] = qctx.Variables[name]
	}
	return activation
}

var celReserved = map[string]bool{
	"as": true, "break": true, "const": true, "continue": true, "else": true,
	"false": true, "for": true, "function": true, "if": true, "import": true,
	"in": true, "let": true, "loop": true, "package": true, "namespace": true,
	"null": true, "return": true, "true": true, "var": true, "void": true, "while": true,
}

// celVariableNames lists the variables that can be declared as identifiers.
// Others stay reachable through vars["name"].
func celVariableNames(qctx QueryContext) []string {
	all := qctx.sortedVariableNames()
	names := all[:0:0]
	for _, name := range all {
		if celReserved[name] {
			continue
		}
		names = append(names, name)
	}
	return names
}

// celToNative converts CEL lists and maps into []any and map[string]any.
func celToNative(val ref.Val) any {
	switch v := val.(type) {
	case traits.Lister:
		size, _ := v.Size().(types.Int)
		out := make([]any, 0, int(size))
		for i := types.Int(0); i < size; i++ {
			out = append(out, celToNative(v.Get(i)))
		}
		return out
	case traits.Mapper:
		out := map[string]any{}
		it := v.Iterator()
		for it.HasNext() == types.True {
			key := it.Next()
			out[fmt.Sprint(key.Value())] = celToNative(v.Get(key))
		}
		return out
	}
	if val == nil || val == types.NullValue {
		return nil
	}
	return val.Value()
}
