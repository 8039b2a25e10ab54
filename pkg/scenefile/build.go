package scenefile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-scenes"
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// SceneKind is the kind of objects returned by Build.
const SceneKind = "Scene"

type variableBuilder func(v *hclVariable) (scenes.Variable, hcl.Diagnostics)

var builders = map[string]variableBuilder{
	string(scenes.TypeCustom):     buildCustom,
	string(scenes.TypeQuery):      buildQuery,
	string(scenes.TypeConstant):   buildConstant,
	string(scenes.TypeTextBox):    buildTextBox,
	string(scenes.TypeInterval):   buildInterval,
	string(scenes.TypeDataSource): buildDataSource,
	string(scenes.TypeGroupBy):    buildGroupBy,
	string(scenes.TypeAdHoc):      buildAdHoc,
}

func builderNames() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var sortModes = map[string]scenes.SortMode{
	"":              scenes.SortDisabled,
	"disabled":      scenes.SortDisabled,
	"alpha_asc":     scenes.SortAlphabeticalAsc,
	"alpha_desc":    scenes.SortAlphabeticalDesc,
	"numeric_asc":   scenes.SortNumericalAsc,
	"numeric_desc":  scenes.SortNumericalDesc,
	"alpha_ci_asc":  scenes.SortAlphabeticalCaseInsensitiveAsc,
	"alpha_ci_desc": scenes.SortAlphabeticalCaseInsensitiveDesc,
}

var refreshModes = map[string]scenes.RefreshMode{
	"never":                scenes.RefreshNever,
	"on_load":              scenes.RefreshOnLoad,
	"on_time_range_change": scenes.RefreshOnTimeRangeChanged,
}

// Build constructs the named scene: an object holding the declared time
// range in its "$timeRange" slot and the variables in "$variables". opts
// apply to the scene object itself.
func (f *File) Build(name string, opts ...scenes.ObjectOption) (*scenes.Object, error) {
	def, ok := f.scenes[name]
	if !ok {
		return nil, fmt.Errorf("scenefile: %w", &scenes.NotFoundError{What: fmt.Sprintf("scene %q", name)})
	}

	state := scenes.State{"key": def.Name}
	if def.TimeRange != nil {
		tr := scenes.State{"from": "now-6h", "to": "now"}
		if def.TimeRange.From != "" {
			tr["from"] = def.TimeRange.From
		}
		if def.TimeRange.To != "" {
			tr["to"] = def.TimeRange.To
		}
		if def.TimeRange.TimeZone != "" {
			tr["timeZone"] = def.TimeRange.TimeZone
		}
		state[scenes.SlotTimeRange] = scenes.NewSceneTimeRange(tr)
	}

	if len(def.Variables) > 0 {
		var diags hcl.Diagnostics
		variables := make([]scenes.Variable, 0, len(def.Variables))
		for _, v := range def.Variables {
			built, vDiags := builders[strings.ToLower(v.Type)](v)
			diags = append(diags, vDiags...)
			if built != nil {
				variables = append(variables, built)
			}
		}
		if diags.HasErrors() {
			return nil, fmt.Errorf("scenefile: scene %q: %w", name, diags)
		}
		state[scenes.SlotVariables] = scenes.NewSceneVariableSet(variables)
	}

	return scenes.New(SceneKind, state), nil
}

// baseState holds the fields every variable type shares.
func baseState(v *hclVariable) scenes.State {
	state := scenes.State{scenes.KeyName: v.Name}
	if v.Label != "" {
		state[scenes.KeyLabel] = v.Label
	}
	if v.SkipURLSync {
		state[scenes.KeySkipURLSync] = true
	}
	return state
}

// multiState adds the selection fields of multi-value variables.
func multiState(v *hclVariable) (scenes.State, hcl.Diagnostics) {
	state := baseState(v)
	state[scenes.KeyIsMulti] = v.Multi
	state[scenes.KeyIncludeAll] = v.IncludeAll
	state[scenes.KeyDefaultToAll] = v.DefaultToAll
	if v.AllValue != "" {
		state[scenes.KeyAllValue] = v.AllValue
	}
	value, diags := decodeValue(v)
	if value != nil {
		state[scenes.KeyValue] = value
		state[scenes.KeyText] = value
	}
	return state, diags
}

// decodeValue turns the "value" attribute into a string or []string. A
// missing attribute decodes to nil.
func decodeValue(v *hclVariable) (any, hcl.Diagnostics) {
	val := v.Value
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsWhollyKnown() {
		return nil, valueDiag(v, "The value must be known when the file is loaded.")
	}

	ty := val.Type()
	switch {
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		converted, err := convert.Convert(val, cty.List(cty.String))
		if err != nil {
			return nil, valueDiag(v, fmt.Sprintf("A list value must hold strings: %s.", err))
		}
		var out []string
		if err := gocty.FromCtyValue(converted, &out); err != nil {
			return nil, valueDiag(v, err.Error())
		}
		if out == nil {
			out = []string{}
		}
		return out, nil
	case ty.IsPrimitiveType():
		converted, err := convert.Convert(val, cty.String)
		if err != nil {
			return nil, valueDiag(v, err.Error())
		}
		return converted.AsString(), nil
	default:
		return nil, valueDiag(v, fmt.Sprintf("Expected a string or a list of strings, got %s.", ty.FriendlyName()))
	}
}

func valueDiag(v *hclVariable, detail string) hcl.Diagnostics {
	return hcl.Diagnostics{&hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "Invalid variable value",
		Detail:   fmt.Sprintf("Variable %q: %s", v.Name, detail),
		Subject:  subject(v.Body),
	}}
}

func enumDiag(v *hclVariable, attr, got string, allowed []string) hcl.Diagnostics {
	sort.Strings(allowed)
	return hcl.Diagnostics{&hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  fmt.Sprintf("Invalid %s", attr),
		Detail:   fmt.Sprintf("Variable %q has %s %q; expected one of %s.", v.Name, attr, got, strings.Join(allowed, ", ")),
		Subject:  subject(v.Body),
	}}
}

func buildCustom(v *hclVariable) (scenes.Variable, hcl.Diagnostics) {
	state, diags := multiState(v)
	state[scenes.KeyQuery] = v.Query
	return scenes.NewCustomVariable(state), diags
}

func buildQuery(v *hclVariable) (scenes.Variable, hcl.Diagnostics) {
	state, diags := multiState(v)
	state[scenes.KeyQuery] = v.Query
	if v.Regex != "" {
		state[scenes.KeyRegex] = v.Regex
	}
	if v.Engine != "" {
		state[scenes.KeyEngine] = strings.ToLower(v.Engine)
	}

	mode, ok := sortModes[strings.ToLower(v.Sort)]
	if !ok {
		diags = append(diags, enumDiag(v, "sort", v.Sort, keys(sortModes))...)
	}
	state[scenes.KeySort] = mode

	if v.Refresh != "" {
		refresh, ok := refreshModes[strings.ToLower(v.Refresh)]
		if !ok {
			diags = append(diags, enumDiag(v, "refresh", v.Refresh, keys(refreshModes))...)
		}
		state[scenes.KeyRefresh] = refresh
	}
	return scenes.NewQueryVariable(state), diags
}

func buildConstant(v *hclVariable) (scenes.Variable, hcl.Diagnostics) {
	value, diags := decodeValue(v)
	if value == nil {
		value = ""
	}
	return scenes.NewConstantVariable(v.Name, value), diags
}

func buildTextBox(v *hclVariable) (scenes.Variable, hcl.Diagnostics) {
	value, diags := decodeValue(v)
	text, isString := value.(string)
	if value != nil && !isString {
		diags = append(diags, valueDiag(v, "A textbox value must be a string.")...)
	}
	return scenes.NewTextBoxVariable(v.Name, text), diags
}

func buildInterval(v *hclVariable) (scenes.Variable, hcl.Diagnostics) {
	state := baseState(v)
	if len(v.Intervals) > 0 {
		state[scenes.KeyIntervals] = append([]string(nil), v.Intervals...)
	}
	value, diags := decodeValue(v)
	if s, ok := value.(string); ok {
		state[scenes.KeyValue] = s
	} else if value != nil {
		diags = append(diags, valueDiag(v, "An interval value must be a string.")...)
	}
	if v.Auto {
		state[scenes.KeyAutoEnabled] = true
	}
	if v.AutoStepCount > 0 {
		state[scenes.KeyAutoStepCount] = v.AutoStepCount
	}
	if v.AutoMinInterval != "" {
		state[scenes.KeyAutoMinInterval] = v.AutoMinInterval
	}
	if v.Refresh != "" {
		refresh, ok := refreshModes[strings.ToLower(v.Refresh)]
		if !ok {
			diags = append(diags, enumDiag(v, "refresh", v.Refresh, keys(refreshModes))...)
		}
		state[scenes.KeyRefresh] = refresh
	}
	return scenes.NewIntervalVariable(v.Name, state), diags
}

func buildDataSource(v *hclVariable) (scenes.Variable, hcl.Diagnostics) {
	state, diags := multiState(v)
	state[scenes.KeyPluginID] = v.Plugin
	if v.Regex != "" {
		state[scenes.KeyRegex] = v.Regex
	}
	if v.DefaultOption {
		state[scenes.KeyDefaultOptionEnabled] = true
	}
	return scenes.NewDataSourceVariable(state), diags
}

func buildGroupBy(v *hclVariable) (scenes.Variable, hcl.Diagnostics) {
	state := baseState(v)
	value, diags := decodeValue(v)
	switch value := value.(type) {
	case nil:
	case string:
		state[scenes.KeyValue] = []string{value}
		state[scenes.KeyText] = []string{value}
	case []string:
		state[scenes.KeyValue] = value
		state[scenes.KeyText] = value
	}
	var options []scenes.VariableOption
	for _, o := range v.Options {
		options = append(options, scenes.ParseCustomOptions(strings.ReplaceAll(o, ",", `\,`))...)
	}
	return scenes.NewGroupByVariable(v.Name, options, state), diags
}

func buildAdHoc(v *hclVariable) (scenes.Variable, hcl.Diagnostics) {
	filters := make([]scenes.AdHocFilter, 0, len(v.Filters))
	for _, f := range v.Filters {
		op := f.Operator
		if op == "" {
			op = "="
		}
		filters = append(filters, scenes.AdHocFilter{Key: f.Key, Operator: op, Value: f.Value})
	}
	return scenes.NewAdHocFiltersVariable(v.Name, filters), nil
}

func keys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}
