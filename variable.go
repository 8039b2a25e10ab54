package scenes

import (
	"context"
	"fmt"
	"strings"
)

// VariableType tags the behaviour of a variable.
type VariableType string

const (
	TypeQuery      VariableType = "query"
	TypeConstant   VariableType = "constant"
	TypeTextBox    VariableType = "textbox"
	TypeCustom     VariableType = "custom"
	TypeInterval   VariableType = "interval"
	TypeDataSource VariableType = "datasource"
	TypeAdHoc      VariableType = "adhoc"
	TypeGroupBy    VariableType = "groupby"
	TypeLocal      VariableType = "local"
	TypeMacro      VariableType = "macro"
	TypeScoped     VariableType = "scoped"
)

// LoadingState tracks a variable update.
type LoadingState int

const (
	LoadingStateNotStarted LoadingState = iota
	LoadingStateLoading
	LoadingStateDone
	LoadingStateError
)

func (s LoadingState) String() string {
	switch s {
	case LoadingStateNotStarted:
		return "NotStarted"
	case LoadingStateLoading:
		return "Loading"
	case LoadingStateDone:
		return "Done"
	case LoadingStateError:
		return "Error"
	default:
		return fmt.Sprintf("LoadingState(%d)", int(s))
	}
}

// State keys shared by variables.
const (
	KeyName         = "name"
	KeyLabel        = "label"
	KeyValue        = "value"
	KeyText         = "text"
	KeyLoadingState = "loadingState"
	KeyError        = "error"
	KeySkipURLSync  = "skipUrlSync"
	KeyHide         = "hide"
	KeyQuery        = "query"
	KeyRegex        = "regex"
	KeyOptions      = "options"
	KeyIsMulti      = "isMulti"
	KeyIncludeAll   = "includeAll"
	KeyAllValue     = "allValue"
	KeyDefaultToAll = "defaultToAll"
	KeyRefresh      = "refresh"
	KeySort         = "sort"
)

// Special values.
const (
	AllVariableValue  = "$__all"
	AllVariableText   = "All"
	AutoVariableValue = "$__auto"
	AutoVariableText  = "Auto"
)

// FormatVariable is the view of a variable the formatters need. Macros and
// scoped values implement it without being scene objects.
type FormatVariable interface {
	Name() string
	Type() VariableType
	Value() any
	ValueText() string
}

// Variable is a scene object exposing a named value.
type Variable interface {
	SceneObject
	FormatVariable
	LoadingState() LoadingState
}

// Updatable variables compute their value, typically from a query.
type Updatable interface {
	ValidateAndUpdate(ctx context.Context) error
}

// DefaultFormatter overrides the format applied when none is requested.
type DefaultFormatter interface {
	DefaultFormat() string
}

// TimeRangeRefresher variables are re-validated when the time range changes.
type TimeRangeRefresher interface {
	RefreshOnTimeRangeChange() bool
}

// FieldValuer resolves "${name.path}" references.
type FieldValuer interface {
	FieldValue(path string) (any, bool)
}

// CustomValue renders itself instead of going through the format registry.
type CustomValue interface {
	FormatValue(format string, args []string) string
}

// VariableOption is one selectable value.
type VariableOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// VariableBase implements the state accessors every variable shares.
type VariableBase struct {
	*Object
	variableType VariableType
}

// Name returns the variable name.
func (v VariableBase) Name() string {
	s, _ := v.Get(KeyName).(string)
	return s
}

// Label returns the display label, defaulting to the name.
func (v VariableBase) Label() string {
	if s, _ := v.Get(KeyLabel).(string); s != "" {
		return s
	}
	return v.Name()
}

// Type returns the variable type tag.
func (v VariableBase) Type() VariableType {
	return v.variableType
}

// LoadingState returns the current update state.
func (v VariableBase) LoadingState() LoadingState {
	s, _ := v.Get(KeyLoadingState).(LoadingState)
	return s
}

// Err returns the last update error message.
func (v VariableBase) Err() string {
	s, _ := v.Get(KeyError).(string)
	return s
}

// SkipURLSync reports whether the variable is excluded from URL state.
func (v VariableBase) SkipURLSync() bool {
	b, _ := v.Get(KeySkipURLSync).(bool)
	return b
}

func (v VariableBase) urlKey() string {
	return "var-" + v.Name()
}

// URLKeys implements URLSyncer.
func (v VariableBase) URLKeys() []string {
	return []string{v.urlKey()}
}

func initVariable(self SceneObject, base *VariableBase, t VariableType, state State, opts []ObjectOption) {
	merged := State{KeyLoadingState: LoadingStateNotStarted}
	for k, val := range state {
		merged[k] = val
	}
	base.variableType = t
	base.Object = Init(self, variableKindSuffix(t)+"Variable", merged,
		append([]ObjectOption{WithCapabilities(CapVariable)}, opts...)...)
}

func variableKindSuffix(t VariableType) string {
	switch t {
	case TypeTextBox:
		return "TextBox"
	case TypeAdHoc:
		return "AdHocFilters"
	case TypeGroupBy:
		return "GroupBy"
	case TypeDataSource:
		return "DataSource"
	case TypeLocal:
		return "LocalValue"
	}
	s := string(t)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// publishValueChanged announces a value change to the variable's set and
// everything above it.
func publishValueChanged(v Variable) {
	v.Base().PublishEvent(Event{Type: EventVariableValueChanged, Payload: v}, true)
}

// ConstantVariable holds a fixed hidden value.
type ConstantVariable struct {
	VariableBase
}

// NewConstantVariable creates a constant named name.
func NewConstantVariable(name string, value any, opts ...ObjectOption) *ConstantVariable {
	v := &ConstantVariable{}
	initVariable(v, &v.VariableBase, TypeConstant, State{
		KeyName:         name,
		KeyValue:        value,
		KeySkipURLSync:  true,
		KeyHide:         true,
		KeyLoadingState: LoadingStateDone,
	}, opts)
	return v
}

// Value implements FormatVariable.
func (v *ConstantVariable) Value() any {
	return v.Get(KeyValue)
}

// ValueText implements FormatVariable.
func (v *ConstantVariable) ValueText() string {
	return stringify(v.Value())
}

// TextBoxVariable holds free text typed by the user.
type TextBoxVariable struct {
	VariableBase
}

// NewTextBoxVariable creates a text box variable.
func NewTextBoxVariable(name, value string, opts ...ObjectOption) *TextBoxVariable {
	v := &TextBoxVariable{}
	initVariable(v, &v.VariableBase, TypeTextBox, State{
		KeyName:         name,
		KeyValue:        value,
		KeyLoadingState: LoadingStateDone,
	}, opts)
	return v
}

// Value implements FormatVariable.
func (v *TextBoxVariable) Value() any {
	s, _ := v.Get(KeyValue).(string)
	return s
}

// ValueText implements FormatVariable.
func (v *TextBoxVariable) ValueText() string {
	s, _ := v.Get(KeyValue).(string)
	return s
}

// SetValue changes the text and announces the change.
func (v *TextBoxVariable) SetValue(value string) {
	if v.ValueText() == value {
		return
	}
	v.SetState(State{KeyValue: value})
	publishValueChanged(v)
}

// GetURLState implements URLSyncer.
func (v *TextBoxVariable) GetURLState() URLState {
	return URLState{v.urlKey(): {v.ValueText()}}
}

// UpdateFromURL implements URLSyncer.
func (v *TextBoxVariable) UpdateFromURL(values URLState) {
	if vals, ok := values[v.urlKey()]; ok {
		value := ""
		if len(vals) > 0 {
			value = vals[0]
		}
		v.SetValue(value)
	}
}

// LocalValueVariable shadows a variable of the same name for a subtree, for
// example a repeated panel bound to one value of a multi-value variable.
type LocalValueVariable struct {
	VariableBase
}

// NewLocalValueVariable creates a local value. text may be nil.
func NewLocalValueVariable(name string, value, text any, opts ...ObjectOption) *LocalValueVariable {
	v := &LocalValueVariable{}
	initVariable(v, &v.VariableBase, TypeLocal, State{
		KeyName:         name,
		KeyValue:        value,
		KeyText:         text,
		KeySkipURLSync:  true,
		KeyLoadingState: LoadingStateDone,
	}, opts)
	return v
}

// Value implements FormatVariable.
func (v *LocalValueVariable) Value() any {
	return v.Get(KeyValue)
}

// ValueText implements FormatVariable.
func (v *LocalValueVariable) ValueText() string {
	if text := v.Get(KeyText); text != nil {
		return stringify(text)
	}
	return stringify(v.Value())
}

// FieldValue implements FieldValuer.
func (v *LocalValueVariable) FieldValue(path string) (any, bool) {
	return lookupField(v.Value(), path)
}

// IsAncestorLoading reports whether the shadowed variable above the owning
// set is loading or waiting to update.
func (v *LocalValueVariable) IsAncestorLoading() bool {
	return v.ancestorLoading(map[string]bool{})
}

func (v *LocalValueVariable) ancestorLoading(visited map[string]bool) bool {
	set := v.Parent()
	if set == nil {
		return false
	}
	owner := set.Base().Parent()
	if owner == nil {
		return false
	}
	scope := owner.Base().Parent()
	if scope == nil {
		return false
	}
	parentVar := lookupInSets(v.Name(), scope)
	if parentVar == nil {
		return false
	}
	parentSet, ok := parentVar.Base().Parent().(*SceneVariableSet)
	if !ok {
		return parentVar.LoadingState() == LoadingStateLoading
	}
	return parentSet.isLoadingOrWaiting(parentVar, visited)
}
