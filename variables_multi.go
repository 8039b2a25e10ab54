package scenes

import (
	"context"
	"reflect"
)

// OptionsProvider produces the selectable options of a multi-value variable.
type OptionsProvider func(ctx context.Context) ([]VariableOption, error)

// MultiValueVariable implements selection over a list of options. Concrete
// variables embed it and supply an OptionsProvider.
//
// State fields: "value" and "text" (string, or []string when "isMulti"),
// "options", "includeAll", "allValue", "defaultToAll".
type MultiValueVariable struct {
	VariableBase
	provider OptionsProvider
}

func initMultiValue(self SceneObject, m *MultiValueVariable, t VariableType, state State, opts []ObjectOption) {
	merged := State{
		KeyValue:   "",
		KeyText:    "",
		KeyOptions: []VariableOption(nil),
	}
	for k, v := range state {
		merged[k] = v
	}
	initVariable(self, &m.VariableBase, t, merged, opts)
}

func (m *MultiValueVariable) asVariable() Variable {
	v, _ := m.Self().(Variable)
	return v
}

// Options returns the current options.
func (m *MultiValueVariable) Options() []VariableOption {
	options, _ := m.Get(KeyOptions).([]VariableOption)
	return options
}

// IsMulti reports whether several values may be selected.
func (m *MultiValueVariable) IsMulti() bool {
	b, _ := m.Get(KeyIsMulti).(bool)
	return b
}

// IncludeAll reports whether the "All" option is offered.
func (m *MultiValueVariable) IncludeAll() bool {
	b, _ := m.Get(KeyIncludeAll).(bool)
	return b
}

func (m *MultiValueVariable) defaultToAll() bool {
	b, _ := m.Get(KeyDefaultToAll).(bool)
	return b
}

func (m *MultiValueVariable) allValue() string {
	s, _ := m.Get(KeyAllValue).(string)
	return s
}

// HasAllValue reports whether "All" is selected.
func (m *MultiValueVariable) HasAllValue() bool {
	values := toStringSlice(m.Get(KeyValue))
	return len(values) > 0 && values[0] == AllVariableValue
}

// Value implements FormatVariable. With "All" selected it is the custom all
// value when configured, otherwise every option value.
func (m *MultiValueVariable) Value() any {
	if m.HasAllValue() {
		if all := m.allValue(); all != "" {
			return customAllValue{value: all, variable: m.asVariable()}
		}
		options := m.Options()
		values := make([]string, 0, len(options))
		for _, o := range options {
			values = append(values, o.Value)
		}
		return values
	}
	return m.Get(KeyValue)
}

// ValueText implements FormatVariable.
func (m *MultiValueVariable) ValueText() string {
	if m.HasAllValue() {
		return AllVariableText
	}
	text := m.Get(KeyText)
	if list, ok := text.([]string); ok {
		return joinStrings(list, " + ")
	}
	return stringify(text)
}

// DefaultFormat implements DefaultFormatter.
func (m *MultiValueVariable) DefaultFormat() string {
	return defaultFormat()
}

// ValidateAndUpdate implements Updatable: it reloads the options and keeps
// the current selection when still valid.
func (m *MultiValueVariable) ValidateAndUpdate(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	oldValue, oldText := m.Get(KeyValue), m.Get(KeyText)
	oldOptions := m.Options()
	m.SetState(State{KeyLoadingState: LoadingStateLoading, KeyError: ""})

	options, err := m.provider(ctx)
	if err != nil {
		m.SetState(State{KeyLoadingState: LoadingStateError, KeyError: err.Error()})
		return err
	}

	update := m.stateGivenNewOptions(options, oldValue, oldText)
	update[KeyLoadingState] = LoadingStateDone
	m.SetState(update)

	changed := !reflect.DeepEqual(update[KeyValue], oldValue) || !reflect.DeepEqual(update[KeyText], oldText)
	if !changed && m.HasAllValue() && !reflect.DeepEqual(oldOptions, options) {
		changed = true
	}
	if changed {
		publishValueChanged(m.asVariable())
	}
	return nil
}

func (m *MultiValueVariable) stateGivenNewOptions(options []VariableOption, oldValue, oldText any) State {
	update := State{KeyOptions: options, KeyValue: oldValue, KeyText: oldText}
	set := func(value, text any) {
		if !reflect.DeepEqual(value, oldValue) {
			update[KeyValue] = value
		}
		if !reflect.DeepEqual(text, oldText) {
			update[KeyText] = text
		}
	}

	if len(options) == 0 {
		switch {
		case m.defaultToAll() || m.IncludeAll():
			set(AllVariableValue, AllVariableText)
		case m.IsMulti():
			set([]string{}, []string{})
		default:
			set("", "")
		}
		return update
	}

	if m.HasAllValue() {
		if m.IncludeAll() {
			set(oldValue, AllVariableText)
		} else {
			set(options[0].Value, options[0].Label)
		}
		return update
	}

	if m.IsMulti() {
		var values, texts []string
		for _, current := range toStringSlice(oldValue) {
			if opt, ok := findOptionByValue(options, current); ok {
				values = append(values, opt.Value)
				texts = append(texts, opt.Label)
			}
		}
		if len(values) == 0 {
			if m.defaultToAll() {
				set([]string{AllVariableValue}, []string{AllVariableText})
			} else {
				set([]string{options[0].Value}, []string{options[0].Label})
			}
			return update
		}
		set(values, texts)
		return update
	}

	current := toStringSlice(oldValue)
	currentValue := ""
	if len(current) > 0 {
		currentValue = current[0]
	}
	if opt, ok := findOptionMatchingCurrent(currentValue, stringify(oldText), options); ok {
		set(opt.Value, opt.Label)
		return update
	}
	if m.defaultToAll() {
		set(AllVariableValue, AllVariableText)
	} else {
		set(options[0].Value, options[0].Label)
	}
	return update
}

func findOptionByValue(options []VariableOption, value string) (VariableOption, bool) {
	for _, o := range options {
		if o.Value == value {
			return o, true
		}
	}
	return VariableOption{}, false
}

// findOptionMatchingCurrent prefers a value match over a label match.
func findOptionMatchingCurrent(value, text string, options []VariableOption) (VariableOption, bool) {
	var textMatch *VariableOption
	for i := range options {
		if options[i].Value == value {
			return options[i], true
		}
		if textMatch == nil && options[i].Label == text {
			textMatch = &options[i]
		}
	}
	if textMatch != nil {
		return *textMatch, true
	}
	return VariableOption{}, false
}

// ChangeValueTo selects value, a string or a list of strings, and announces
// the change.
func (m *MultiValueVariable) ChangeValueTo(value any) {
	values := toStringSlice(value)
	if m.IsMulti() && len(values) > 1 {
		if values[len(values)-1] == AllVariableValue {
			values = []string{AllVariableValue}
		} else if values[0] == AllVariableValue {
			values = values[1:]
		}
	}

	options := m.Options()
	texts := make([]string, 0, len(values))
	for _, v := range values {
		switch {
		case v == AllVariableValue:
			texts = append(texts, AllVariableText)
		default:
			if opt, ok := findOptionByValue(options, v); ok {
				texts = append(texts, opt.Label)
			} else {
				texts = append(texts, v)
			}
		}
	}

	var newValue, newText any
	if m.IsMulti() {
		newValue, newText = values, texts
	} else {
		first, firstText := "", ""
		if len(values) > 0 {
			first, firstText = values[0], texts[0]
		}
		newValue, newText = first, firstText
	}

	if reflect.DeepEqual(newValue, m.Get(KeyValue)) && reflect.DeepEqual(newText, m.Get(KeyText)) {
		return
	}
	m.SetState(State{KeyValue: newValue, KeyText: newText})
	publishValueChanged(m.asVariable())
}

// GetURLState implements URLSyncer.
func (m *MultiValueVariable) GetURLState() URLState {
	values := toStringSlice(m.Get(KeyValue))
	if len(values) == 0 {
		values = []string{""}
	}
	return URLState{m.urlKey(): values}
}

// UpdateFromURL implements URLSyncer.
func (m *MultiValueVariable) UpdateFromURL(values URLState) {
	vals, ok := values[m.urlKey()]
	if !ok {
		return
	}
	if m.IsMulti() {
		m.ChangeValueTo(append([]string(nil), vals...))
		return
	}
	value := ""
	if len(vals) > 0 {
		value = vals[0]
	}
	m.ChangeValueTo(value)
}

// customAllValue renders the configured all value verbatim for every format
// except text and the URL formats.
type customAllValue struct {
	value    string
	variable FormatVariable
}

func (c customAllValue) FormatValue(format string, _ []string) string {
	switch format {
	case FormatText:
		return AllVariableText
	case FormatPercentEncode:
		return formatPercentEncode(c.value, nil, c.variable)
	case FormatQueryParam:
		return formatQueryParam(AllVariableValue, nil, c.variable)
	default:
		return c.value
	}
}

func (c customAllValue) String() string {
	return c.value
}
