package scenes

import (
	"reflect"
	"sort"
	"sync"
)

// DependencyOptions declares how an object depends on variables.
type DependencyOptions struct {
	// StatePaths lists the state fields scanned for variable references. When
	// empty every non-slot field is scanned.
	StatePaths []string
	// Names adds explicit dependencies not expressed in state.
	Names []string
	// OnReferencedVariableValueChanged runs when a referenced variable changed.
	OnReferencedVariableValueChanged func(Variable)
	// OnVariableUpdateCompleted runs after any variable update while the object
	// is waiting on loading variables, or when a referenced variable changed.
	OnVariableUpdateCompleted func()
	// OnAnyVariableChanged runs for every update notification.
	OnAnyVariableChanged func(Variable)
}

// VariableDependencyConfig tracks which variables an object references.
// Templates stay in state; only the extracted names are cached.
type VariableDependencyConfig struct {
	mu      sync.Mutex
	obj     *Object
	opts    DependencyOptions
	scanned map[string]any
	names   []string
	waiting bool
}

// NewVariableDependencyConfig binds a dependency declaration to obj. Objects
// built with WithVariableDependency get one automatically.
func NewVariableDependencyConfig(obj SceneObject, opts DependencyOptions) *VariableDependencyConfig {
	base := obj.Base()
	cfg := newVariableDependencyConfig(base, opts)
	base.dependency = cfg
	return cfg
}

func newVariableDependencyConfig(obj *Object, opts DependencyOptions) *VariableDependencyConfig {
	return &VariableDependencyConfig{obj: obj, opts: opts}
}

// Names returns the referenced variable names, sorted. The result is cached
// until a scanned field changes identity.
func (c *VariableDependencyConfig) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.obj.State()
	paths := c.paths(state)
	if c.names != nil && !c.changed(state, paths) {
		return c.names
	}

	set := map[string]struct{}{}
	for _, name := range c.opts.Names {
		set[name] = struct{}{}
	}
	scanned := make(map[string]any, len(paths))
	for _, path := range paths {
		value := state[path]
		scanned[path] = value
		extractVariableNames(value, set)
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	c.scanned = scanned
	c.names = names
	return names
}

// HasDependencyOn reports whether name is referenced.
func (c *VariableDependencyConfig) HasDependencyOn(name string) bool {
	for _, n := range c.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// HasDependencyInLoadingState reports whether a referenced variable is still
// loading and remembers the answer so OnVariableUpdateCompleted fires once it
// settles.
func (c *VariableDependencyConfig) HasDependencyInLoadingState() bool {
	loading := HasVariableDependencyInLoadingState(c.obj.Self())
	c.mu.Lock()
	c.waiting = loading
	c.mu.Unlock()
	return loading
}

// VariableUpdateCompleted is invoked by a variable set after variable has
// finished an update.
func (c *VariableDependencyConfig) VariableUpdateCompleted(variable Variable, hasChanged bool) {
	dependencyChanged := hasChanged && c.HasDependencyOn(variable.Name())

	c.mu.Lock()
	waiting := c.waiting
	c.mu.Unlock()

	if c.opts.OnAnyVariableChanged != nil {
		c.opts.OnAnyVariableChanged(variable)
	}
	if c.opts.OnVariableUpdateCompleted != nil && (waiting || dependencyChanged) {
		c.opts.OnVariableUpdateCompleted()
	}
	if !dependencyChanged {
		return
	}

	c.obj.debug("referenced variable changed", map[string]any{"variable": variable.Name()})
	if c.opts.OnReferencedVariableValueChanged != nil {
		c.opts.OnReferencedVariableValueChanged(variable)
		return
	}
	if c.opts.OnVariableUpdateCompleted == nil {
		c.obj.ForceRender()
	}
}

func (c *VariableDependencyConfig) paths(state State) []string {
	if len(c.opts.StatePaths) > 0 {
		return c.opts.StatePaths
	}
	paths := make([]string, 0, len(state))
	for key := range state {
		if containsString(c.obj.slots, key) {
			continue
		}
		paths = append(paths, key)
	}
	sort.Strings(paths)
	return paths
}

func (c *VariableDependencyConfig) changed(state State, paths []string) bool {
	if len(paths) != len(c.scanned) {
		return true
	}
	for _, path := range paths {
		prev, ok := c.scanned[path]
		if !ok || !sameValue(prev, state[path]) {
			return true
		}
	}
	return false
}

// extractVariableNames walks strings, maps, slices and exported struct fields
// collecting variable references. Scene objects are not entered.
func extractVariableNames(value any, into map[string]struct{}) {
	switch v := value.(type) {
	case nil, SceneObject:
		return
	case string:
		for _, m := range variableRegex.FindAllStringSubmatch(v, -1) {
			if name := tokenName(m); name != "" {
				into[name] = struct{}{}
			}
		}
		return
	case []string:
		for _, s := range v {
			extractVariableNames(s, into)
		}
		return
	case []any:
		for _, item := range v {
			extractVariableNames(item, into)
		}
		return
	case map[string]any:
		for _, item := range v {
			extractVariableNames(item, into)
		}
		return
	case State:
		for _, item := range v {
			extractVariableNames(item, into)
		}
		return
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !rv.IsNil() {
			extractVariableNames(rv.Elem().Interface(), into)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if item := rv.Index(i); item.CanInterface() {
				extractVariableNames(item.Interface(), into)
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if item := iter.Value(); item.CanInterface() {
				extractVariableNames(item.Interface(), into)
			}
		}
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			if field := rv.Field(i); field.CanInterface() {
				extractVariableNames(field.Interface(), into)
			}
		}
	case reflect.String:
		extractVariableNames(rv.String(), into)
	}
}
