package scenes

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// State keys specific to query variables.
const (
	KeyEngine = "engine"
)

// RefreshMode controls when a query variable reloads its options.
type RefreshMode int

const (
	RefreshNever RefreshMode = iota
	RefreshOnLoad
	RefreshOnTimeRangeChanged
)

// SortMode orders query variable options by their text.
type SortMode int

const (
	SortDisabled SortMode = iota
	SortAlphabeticalAsc
	SortAlphabeticalDesc
	SortNumericalAsc
	SortNumericalDesc
	SortAlphabeticalCaseInsensitiveAsc
	SortAlphabeticalCaseInsensitiveDesc
)

// QueryVariable loads its options by evaluating a query. The query is
// interpolated, handed to the evaluator of the closest WithEvaluator or of
// the "engine" state field, then filtered by "regex" and ordered by "sort".
type QueryVariable struct {
	MultiValueVariable
}

// NewQueryVariable creates a query variable from state. Recognised fields are
// those of MultiValueVariable plus "query", "regex", "sort" (SortMode),
// "refresh" (RefreshMode) and "engine".
func NewQueryVariable(state State, opts ...ObjectOption) *QueryVariable {
	v := &QueryVariable{}
	merged := State{KeyRefresh: RefreshOnLoad, KeySort: SortDisabled}
	for k, val := range state {
		merged[k] = val
	}
	opts = append([]ObjectOption{WithVariableDependency(DependencyOptions{StatePaths: []string{KeyQuery, KeyRegex}})}, opts...)
	initMultiValue(v, &v.MultiValueVariable, TypeQuery, merged, opts)
	v.provider = v.options
	return v
}

// RefreshOnTimeRangeChange implements TimeRangeRefresher.
func (v *QueryVariable) RefreshOnTimeRangeChange() bool {
	mode, _ := v.Get(KeyRefresh).(RefreshMode)
	return mode == RefreshOnTimeRangeChanged
}

func (v *QueryVariable) engine() string {
	s, _ := v.Get(KeyEngine).(string)
	return s
}

// engineLabel names the engine in evaluation logs; evaluators supplied with
// WithEvaluator are reported as "custom".
func (v *QueryVariable) engineLabel() string {
	if v.Base().closestEvaluator() != nil {
		return EngineCustom
	}
	if engine := strings.ToLower(v.engine()); engine != "" {
		return engine
	}
	return currentDefaults().engine
}

func (v *QueryVariable) options(ctx context.Context) ([]VariableOption, error) {
	query, _ := v.Get(KeyQuery).(string)
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	interpolated, err := Interpolate(v, query, nil, "")
	if err != nil {
		return nil, err
	}
	evaluator, err := ResolveEvaluator(v, v.engine())
	if err != nil {
		return nil, err
	}
	evaluator = LogEvaluations(v.engineLabel(), evaluator, SceneEvaluatorLogger(v))

	qctx := QueryContext{
		Variables: variableValues(v),
		Now:       v.Now(),
		Scope:     v.Name(),
	}
	if tr, err := GetTimeRange(v); err == nil {
		qctx.Range = tr.Value()
	}

	result, err := evaluator.Evaluate(ctx, qctx, interpolated)
	if err != nil {
		return nil, err
	}

	regexText, _ := v.Get(KeyRegex).(string)
	if regexText != "" {
		regexText, err = Interpolate(v, regexText, nil, FormatRegex)
		if err != nil {
			return nil, err
		}
	}
	sortMode, _ := v.Get(KeySort).(SortMode)
	options, err := metricNamesToOptions(optionsFromResult(result), regexText, sortMode)
	if err != nil {
		return nil, err
	}
	return options, nil
}

// variableValues collects the values of every variable visible from v,
// except v itself.
func variableValues(v Variable) map[string]any {
	values := map[string]any{}
	scope := v.Base().Parent()
	if scope == nil {
		return values
	}
	for _, other := range visibleVariables(scope) {
		if other.Name() == v.Name() {
			continue
		}
		value := other.Value()
		if custom, ok := value.(CustomValue); ok {
			value = custom.FormatValue(FormatRaw, nil)
		}
		values[other.Name()] = value
	}
	return values
}

// optionsFromResult converts an evaluator result into options.
func optionsFromResult(result any) []VariableOption {
	switch r := result.(type) {
	case nil:
		return nil
	case []VariableOption:
		return r
	case VariableOption:
		return []VariableOption{r}
	case []string:
		out := make([]VariableOption, len(r))
		for i, s := range r {
			out[i] = VariableOption{Label: s, Value: s}
		}
		return out
	case map[string]any:
		if opt, ok := optionFromMap(r); ok {
			return []VariableOption{opt}
		}
		keys := make([]string, 0, len(r))
		for k := range r {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]VariableOption, len(keys))
		for i, k := range keys {
			out[i] = VariableOption{Label: k, Value: stringify(r[k])}
		}
		return out
	case string, bool, int, int64, float64:
		s := stringify(r)
		return []VariableOption{{Label: s, Value: s}}
	}

	rv := reflect.ValueOf(result)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		s := stringify(result)
		return []VariableOption{{Label: s, Value: s}}
	}
	out := make([]VariableOption, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i).Interface()
		switch it := item.(type) {
		case VariableOption:
			out = append(out, it)
		case map[string]any:
			if opt, ok := optionFromMap(it); ok {
				out = append(out, opt)
			}
		default:
			s := stringify(item)
			out = append(out, VariableOption{Label: s, Value: s})
		}
	}
	return out
}

// optionFromMap reads {text|label, value}; a missing side copies the other.
func optionFromMap(m map[string]any) (VariableOption, bool) {
	text, hasText := m["text"]
	if !hasText {
		text, hasText = m["label"]
	}
	value, hasValue := m["value"]
	switch {
	case hasText && hasValue:
		return VariableOption{Label: stringify(text), Value: stringify(value)}, true
	case hasText:
		return VariableOption{Label: stringify(text), Value: stringify(text)}, true
	case hasValue:
		return VariableOption{Label: stringify(value), Value: stringify(value)}, true
	}
	return VariableOption{}, false
}

// metricNamesToOptions filters options through regex, dedupes them by value
// and sorts them. Named groups "value" and "text" pick the parts; otherwise
// the first capture group is used for both.
func metricNamesToOptions(items []VariableOption, regexText string, mode SortMode) ([]VariableOption, error) {
	var re *regexp.Regexp
	if regexText != "" {
		compiled, err := compileJSRegex(regexText)
		if err != nil {
			return nil, fmt.Errorf("scenes: invalid variable regex %q: %w", regexText, err)
		}
		re = compiled
	}

	seen := map[string]bool{}
	out := make([]VariableOption, 0, len(items))
	for _, item := range items {
		text, value := item.Label, item.Value
		if text == "" {
			text = value
		}
		if value == "" {
			value = text
		}
		if re != nil {
			matches := re.FindStringSubmatch(value)
			if matches == nil {
				continue
			}
			groupText, groupValue := "", ""
			for i, name := range re.SubexpNames() {
				switch name {
				case "text":
					groupText = matches[i]
				case "value":
					groupValue = matches[i]
				}
			}
			switch {
			case groupText != "" || groupValue != "":
				if groupValue == "" {
					groupValue = groupText
				}
				if groupText == "" {
					groupText = groupValue
				}
				text, value = groupText, groupValue
			default:
				for _, m := range matches[1:] {
					if m != "" {
						text, value = m, m
						break
					}
				}
			}
		}
		if seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, VariableOption{Label: text, Value: value})
	}
	sortOptions(out, mode)
	return out, nil
}

// compileJSRegex accepts "/pattern/flags" as well as a bare pattern. The i,
// m and s flags are honoured.
func compileJSRegex(text string) (*regexp.Regexp, error) {
	if len(text) > 1 && text[0] == '/' {
		if end := strings.LastIndexByte(text, '/'); end > 0 {
			pattern, flags := text[1:end], text[end+1:]
			var prefix strings.Builder
			for _, f := range flags {
				if strings.ContainsRune("ims", f) {
					prefix.WriteRune(f)
				}
			}
			if prefix.Len() > 0 {
				pattern = "(?" + prefix.String() + ")" + pattern
			}
			return regexp.Compile(pattern)
		}
	}
	return regexp.Compile(text)
}

var leadingNumber = regexp.MustCompile(`.*?(\d+)`)

func sortOptions(options []VariableOption, mode SortMode) {
	numberOf := func(s string) int {
		m := leadingNumber.FindStringSubmatch(s)
		if len(m) < 2 {
			return -1
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return -1
		}
		return n
	}
	var less func(a, b VariableOption) bool
	switch mode {
	case SortAlphabeticalAsc:
		less = func(a, b VariableOption) bool { return a.Label < b.Label }
	case SortAlphabeticalDesc:
		less = func(a, b VariableOption) bool { return a.Label > b.Label }
	case SortNumericalAsc:
		less = func(a, b VariableOption) bool { return numberOf(a.Label) < numberOf(b.Label) }
	case SortNumericalDesc:
		less = func(a, b VariableOption) bool { return numberOf(a.Label) > numberOf(b.Label) }
	case SortAlphabeticalCaseInsensitiveAsc:
		less = func(a, b VariableOption) bool { return strings.ToLower(a.Label) < strings.ToLower(b.Label) }
	case SortAlphabeticalCaseInsensitiveDesc:
		less = func(a, b VariableOption) bool { return strings.ToLower(a.Label) > strings.ToLower(b.Label) }
	default:
		return
	}
	sort.SliceStable(options, func(i, j int) bool { return less(options[i], options[j]) })
}
