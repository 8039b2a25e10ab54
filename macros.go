package scenes

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Macro names registered by default.
const (
	MacroFrom         = "__from"
	MacroTo           = "__to"
	MacroTimeZone     = "__timezone"
	MacroInterval     = "__interval"
	MacroIntervalMs   = "__interval_ms"
	MacroURLTimeRange = "__url_time_range"
	MacroAllVariables = "__all_variables"
)

// MacroFactory builds the value of a macro as seen from scope. Returning a
// nil variable and a nil error leaves the token untouched.
type MacroFactory func(name string, scope SceneObject) (FormatVariable, error)

// MacroRegistry stores macros by name.
type MacroRegistry struct {
	mu     sync.RWMutex
	macros map[string]MacroFactory
}

// NewMacroRegistry constructs an empty registry.
func NewMacroRegistry() *MacroRegistry {
	return &MacroRegistry{macros: make(map[string]MacroFactory)}
}

// Register stores factory under name. Registering a name twice fails with
// ErrDuplicateRegistration.
func (r *MacroRegistry) Register(name string, factory MacroFactory) error {
	if factory == nil {
		return fmt.Errorf("scenes: macro %q is nil", name)
	}
	if name == "" {
		return errors.New("scenes: macro name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.macros[name]; exists {
		return fmt.Errorf("scenes: macro %q: %w", name, ErrDuplicateRegistration)
	}
	r.macros[name] = factory
	return nil
}

// Lookup returns the factory registered under name.
func (r *MacroRegistry) Lookup(name string) (MacroFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.macros[name]
	return factory, ok
}

// Names returns the registered macro names sorted alphabetically.
func (r *MacroRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.macros))
	for name := range r.macros {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	defaultMacrosOnce sync.Once
	defaultMacros     *MacroRegistry
)

// DefaultMacroRegistry returns the process-wide registry, populated with the
// built-in macros on first use.
func DefaultMacroRegistry() *MacroRegistry {
	defaultMacrosOnce.Do(func() {
		defaultMacros = NewMacroRegistry()
		for name, factory := range builtinMacros() {
			_ = defaultMacros.Register(name, factory)
		}
	})
	return defaultMacros
}

// RegisterMacro adds a macro to the process-wide registry.
func RegisterMacro(name string, factory MacroFactory) error {
	return DefaultMacroRegistry().Register(name, factory)
}

func builtinMacros() map[string]MacroFactory {
	return map[string]MacroFactory{
		MacroFrom:         timeBoundMacro(true),
		MacroTo:           timeBoundMacro(false),
		MacroTimeZone:     timeZoneMacro,
		MacroInterval:     intervalMacro,
		MacroIntervalMs:   intervalMacro,
		MacroURLTimeRange: urlTimeRangeMacro,
		MacroAllVariables: allVariablesMacro,
	}
}

// macroValue is the FormatVariable produced by the built-in macros.
type macroValue struct {
	name   string
	value  any
	text   string
	format string
}

func (m macroValue) Name() string       { return m.name }
func (m macroValue) Type() VariableType { return TypeMacro }
func (m macroValue) Value() any         { return m.value }

func (m macroValue) ValueText() string {
	if m.text != "" {
		return m.text
	}
	return stringify(m.value)
}

func (m macroValue) DefaultFormat() string {
	if m.format == "" {
		return FormatRaw
	}
	return m.format
}

// timeBoundMacro exposes a bound of the closest time range as epoch
// milliseconds; the text form is the raw bound.
func timeBoundMacro(from bool) MacroFactory {
	return func(name string, scope SceneObject) (FormatVariable, error) {
		if scope == nil {
			return nil, &NotFoundError{What: "time range"}
		}
		tr, err := GetTimeRange(scope)
		if err != nil {
			return nil, err
		}
		value := tr.Value()
		bound, raw := value.To, value.Raw.To
		if from {
			bound, raw = value.From, value.Raw.From
		}
		return macroValue{name: name, value: strconv.FormatInt(bound.UnixMilli(), 10), text: raw}, nil
	}
}

func timeZoneMacro(name string, scope SceneObject) (FormatVariable, error) {
	zone := DefaultTimeZone()
	if scope != nil {
		zone = GetTimeZone(scope)
	}
	if strings.EqualFold(zone, TimeZoneBrowser) {
		zone = browserTimeZoneName()
	}
	return macroValue{name: name, value: zone}, nil
}

// intervalMacro reads the interval of the closest data request. Without one
// the token is left for a later interpolation.
func intervalMacro(name string, scope SceneObject) (FormatVariable, error) {
	if scope == nil {
		return nil, nil
	}
	data, err := GetData(scope)
	if err != nil {
		return nil, nil
	}
	request := data.Data().Request
	if request == nil {
		return nil, nil
	}
	if name == MacroIntervalMs {
		return macroValue{name: name, value: strconv.FormatInt(request.IntervalMs, 10)}, nil
	}
	return macroValue{name: name, value: request.Interval}, nil
}

func urlTimeRangeMacro(name string, scope SceneObject) (FormatVariable, error) {
	if scope == nil {
		return nil, &NotFoundError{What: "time range"}
	}
	tr, err := GetTimeRange(scope)
	if err != nil {
		return nil, err
	}
	syncer, ok := tr.(URLSyncer)
	if !ok {
		value := tr.Value()
		state := URLState{
			"from": {strconv.FormatInt(value.From.UnixMilli(), 10)},
			"to":   {strconv.FormatInt(value.To.UnixMilli(), 10)},
		}
		return macroValue{name: name, value: state.Encode()}, nil
	}
	return macroValue{name: name, value: syncer.GetURLState().Encode()}, nil
}

// allVariablesMacro renders every URL-synced variable visible from scope as
// query parameters, closest definitions first.
func allVariablesMacro(name string, scope SceneObject) (FormatVariable, error) {
	if scope == nil {
		return macroValue{name: name, value: ""}, nil
	}
	var parts []string
	for _, v := range visibleVariables(scope) {
		if v.Type() == TypeLocal {
			continue
		}
		if skipper, ok := v.(interface{ SkipURLSync() bool }); ok && skipper.SkipURLSync() {
			continue
		}
		syncer, ok := v.(URLSyncer)
		if !ok {
			continue
		}
		state := syncer.GetURLState()
		for _, key := range syncer.URLKeys() {
			for _, value := range state[key] {
				parts = append(parts, key+"="+percentEncode(value, ""))
			}
		}
	}
	return macroValue{name: name, value: strings.Join(parts, "&")}, nil
}
