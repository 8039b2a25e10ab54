package scenes

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Function represents a callable exposed to query evaluators.
type Function func(args ...any) (any, error)

// FunctionRegistry stores query functions keyed by name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
	}
}

// Register stores fn under name guarding against duplicates.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("scenes: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("scenes: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("scenes: function %q: %w", name, ErrDuplicateRegistration)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{
		functions: make(map[string]Function, len(r.functions)),
	}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("scenes: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		if hint, ok := closestName(name, r.Names()); ok {
			return nil, fmt.Errorf("scenes: function %q not registered, did you mean %q?", name, hint)
		}
		return nil, fmt.Errorf("scenes: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	queryFunctionsOnce sync.Once
	queryFunctions     *FunctionRegistry
)

// QueryFunctions returns the process-wide functions available to the expr
// and js engines. Register additional helpers before the first query runs.
func QueryFunctions() *FunctionRegistry {
	queryFunctionsOnce.Do(func() {
		queryFunctions = NewFunctionRegistry()
		_ = queryFunctions.Register("option", optionFunction)
		_ = queryFunctions.Register("csv", csvFunction)
	})
	return queryFunctions
}

// optionFunction builds a {text, value} option; a single argument is used
// for both.
func optionFunction(args ...any) (any, error) {
	switch len(args) {
	case 1:
		s := stringify(args[0])
		return map[string]any{"text": s, "value": s}, nil
	case 2:
		return map[string]any{"text": stringify(args[0]), "value": stringify(args[1])}, nil
	}
	return nil, fmt.Errorf("scenes: option expects 1 or 2 arguments, got %d", len(args))
}

// csvFunction splits a comma separated list, trimming each entry.
func csvFunction(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("scenes: csv expects 1 argument, got %d", len(args))
	}
	parts := strings.Split(stringify(args[0]), ",")
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
