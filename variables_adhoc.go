package scenes

import (
	"reflect"
	"strings"
)

// State keys specific to ad hoc filter variables.
const (
	KeyFilters     = "filters"
	KeyBaseFilters = "baseFilters"
)

// AdHocFilter is one key/operator/value condition.
type AdHocFilter struct {
	Key      string `json:"key"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// AdHocFiltersVariable holds user-defined label filters. Its value is the
// filters rendered as a Prometheus label matcher list.
type AdHocFiltersVariable struct {
	VariableBase
}

// NewAdHocFiltersVariable creates an ad hoc filter variable.
func NewAdHocFiltersVariable(name string, filters []AdHocFilter, opts ...ObjectOption) *AdHocFiltersVariable {
	v := &AdHocFiltersVariable{}
	initVariable(v, &v.VariableBase, TypeAdHoc, State{
		KeyName:         name,
		KeyFilters:      append([]AdHocFilter(nil), filters...),
		KeyLoadingState: LoadingStateDone,
	}, opts)
	return v
}

// Filters returns the user filters.
func (v *AdHocFiltersVariable) Filters() []AdHocFilter {
	filters, _ := v.Get(KeyFilters).([]AdHocFilter)
	return filters
}

// BaseFilters returns the filters applied regardless of user input.
func (v *AdHocFiltersVariable) BaseFilters() []AdHocFilter {
	filters, _ := v.Get(KeyBaseFilters).([]AdHocFilter)
	return filters
}

// SetFilters replaces the user filters and announces the change.
func (v *AdHocFiltersVariable) SetFilters(filters []AdHocFilter) {
	if reflect.DeepEqual(filters, v.Filters()) {
		return
	}
	v.SetState(State{KeyFilters: append([]AdHocFilter(nil), filters...)})
	publishValueChanged(v)
}

// Value implements FormatVariable.
func (v *AdHocFiltersVariable) Value() any {
	return RenderPrometheusLabelFilters(append(v.BaseFilters(), v.Filters()...))
}

// ValueText implements FormatVariable.
func (v *AdHocFiltersVariable) ValueText() string {
	return stringify(v.Value())
}

// DefaultFormat implements DefaultFormatter.
func (v *AdHocFiltersVariable) DefaultFormat() string {
	return FormatRaw
}

// RenderPrometheusLabelFilters renders filters as key="value" matchers
// joined by commas.
func RenderPrometheusLabelFilters(filters []AdHocFilter) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		if f.Key == "" {
			continue
		}
		var value string
		switch f.Operator {
		case "=~", "!~":
			value = escapeLabelValueInExactSelector(escapeRegex(f.Value))
		default:
			value = escapeLabelValueInExactSelector(f.Value)
		}
		op := f.Operator
		if op == "" {
			op = "="
		}
		parts = append(parts, f.Key+op+`"`+value+`"`)
	}
	return strings.Join(parts, ",")
}

func escapeLabelValueInExactSelector(s string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`).Replace(s)
}

const adhocPipeEscape = "__gfp__"

// GetURLState implements URLSyncer. Each filter is encoded as
// "key|operator|value" with literal pipes escaped.
func (v *AdHocFiltersVariable) GetURLState() URLState {
	filters := v.Filters()
	values := make([]string, 0, len(filters))
	for _, f := range filters {
		values = append(values, strings.Join([]string{
			strings.ReplaceAll(f.Key, "|", adhocPipeEscape),
			strings.ReplaceAll(f.Operator, "|", adhocPipeEscape),
			strings.ReplaceAll(f.Value, "|", adhocPipeEscape),
		}, "|"))
	}
	if len(values) == 0 {
		values = []string{""}
	}
	return URLState{v.urlKey(): values}
}

// UpdateFromURL implements URLSyncer. Malformed entries are skipped.
func (v *AdHocFiltersVariable) UpdateFromURL(values URLState) {
	vals, ok := values[v.urlKey()]
	if !ok {
		return
	}
	filters := make([]AdHocFilter, 0, len(vals))
	for _, raw := range vals {
		parts := strings.Split(raw, "|")
		if len(parts) != 3 {
			continue
		}
		unescape := func(s string) string { return strings.ReplaceAll(s, adhocPipeEscape, "|") }
		filters = append(filters, AdHocFilter{Key: unescape(parts[0]), Operator: unescape(parts[1]), Value: unescape(parts[2])})
	}
	v.SetFilters(filters)
}
