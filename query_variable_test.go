package scenes

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func optionValues(options []VariableOption) []string {
	out := make([]string, len(options))
	for i, o := range options {
		out[i] = o.Value
	}
	return out
}

func TestQueryVariableExprEngine(t *testing.T) {
	server := NewTextBoxVariable("server", "srv")
	host := NewQueryVariable(State{KeyName: "host", KeyQuery: `csv("$server-a, $server-b")`})
	mustActivate(t, NewSceneVariableSet([]Variable{host, server}))

	if got := optionValues(host.Options()); !reflect.DeepEqual(got, []string{"srv-a", "srv-b"}) {
		t.Fatalf("expected interpolated options, got %v", got)
	}
	if host.Value() != "srv-a" {
		t.Fatalf("expected first option selected, got %v", host.Value())
	}

	server.SetValue("web")
	if host.Value() != "web-a" {
		t.Fatalf("expected reload after dependency change, got %v", host.Value())
	}
}

func TestQueryVariableExprEnvironment(t *testing.T) {
	region := NewCustomVariable(State{KeyName: "region", KeyQuery: "eu,us", KeyValue: "eu", KeyText: "eu"})
	zones := NewQueryVariable(State{
		KeyName:  "zone",
		KeyQuery: `[region + "-1", vars.region + "-2", option("Zone C", "c")]`,
	})
	mustActivate(t, NewSceneVariableSet([]Variable{region, zones}))

	options := zones.Options()
	expected := []VariableOption{
		{Label: "eu-1", Value: "eu-1"},
		{Label: "eu-2", Value: "eu-2"},
		{Label: "Zone C", Value: "c"},
	}
	if !reflect.DeepEqual(options, expected) {
		t.Fatalf("expected %v, got %v", expected, options)
	}
}

func TestQueryVariableCELEngine(t *testing.T) {
	region := NewTextBoxVariable("region", "eu")
	list := NewQueryVariable(State{KeyName: "list", KeyEngine: EngineCEL, KeyQuery: `[region + "-1", vars["region"] + "-2"]`})
	mapped := NewQueryVariable(State{KeyName: "mapped", KeyEngine: EngineCEL, KeyQuery: `{"Production": "prod", "Staging": "stage"}`})
	mustActivate(t, NewSceneVariableSet([]Variable{region, list, mapped}))

	if got := optionValues(list.Options()); !reflect.DeepEqual(got, []string{"eu-1", "eu-2"}) {
		t.Fatalf("expected cel list options, got %v", got)
	}
	expected := []VariableOption{{Label: "Production", Value: "prod"}, {Label: "Staging", Value: "stage"}}
	if !reflect.DeepEqual(mapped.Options(), expected) {
		t.Fatalf("expected %v, got %v", expected, mapped.Options())
	}
}

func TestQueryVariableRegexAndSort(t *testing.T) {
	jobs := NewQueryVariable(State{
		KeyName:  "job",
		KeyQuery: `csv("job_node10, job_node2, job_node1, job_node2, other")`,
		KeyRegex: "/JOB_(.*)/i",
		KeySort:  SortNumericalAsc,
	})
	metrics := NewQueryVariable(State{
		KeyName:  "metric",
		KeyQuery: `csv("cpu=1, mem=2")`,
		KeyRegex: `(?P<text>[a-z]+)=(?P<value>\d+)`,
	})
	mustActivate(t, NewSceneVariableSet([]Variable{jobs, metrics}))

	if got := optionValues(jobs.Options()); !reflect.DeepEqual(got, []string{"node1", "node2", "node10"}) {
		t.Fatalf("expected filtered, deduped and sorted options, got %v", got)
	}
	expected := []VariableOption{{Label: "cpu", Value: "1"}, {Label: "mem", Value: "2"}}
	if !reflect.DeepEqual(metrics.Options(), expected) {
		t.Fatalf("expected named group options, got %v", metrics.Options())
	}
}

func TestQueryVariableUsesClosestEvaluator(t *testing.T) {
	now := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)
	var captured QueryContext
	var capturedQuery string
	evaluator := EvaluatorFunc(func(_ context.Context, qctx QueryContext, query string) (any, error) {
		captured = qctx
		capturedQuery = query
		return []string{"x"}, nil
	})

	job := NewCustomVariable(State{
		KeyName:       "job",
		KeyIncludeAll: true,
		KeyAllValue:   ".*",
		KeyValue:      AllVariableValue,
		KeyText:       AllVariableText,
	})
	query := NewQueryVariable(State{KeyName: "q", KeyQuery: "label_values(up{job=~\"$job\"}, instance)"})
	New("Root", State{
		SlotTimeRange: NewSceneTimeRange(State{"from": "now-1h", "to": "now", "timeZone": "utc"}),
		SlotVariables: NewSceneVariableSet([]Variable{job, query}),
	}, WithEvaluator(evaluator), WithClock(fixedClock(now)))

	if err := query.ValidateAndUpdate(context.Background()); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if capturedQuery != `label_values(up{job=~".*"}, instance)` {
		t.Fatalf("unexpected interpolated query %q", capturedQuery)
	}
	if captured.Scope != "q" || !captured.Now.Equal(now) {
		t.Fatalf("unexpected scope or clock %+v", captured)
	}
	if _, self := captured.Variables["q"]; self {
		t.Fatalf("expected own value excluded from variables")
	}
	if captured.Variables["job"] != ".*" {
		t.Fatalf("expected custom all value in raw form, got %v", captured.Variables["job"])
	}
	if !captured.Range.To.Equal(now) || !captured.Range.From.Equal(now.Add(-time.Hour)) {
		t.Fatalf("expected closest time range, got %+v", captured.Range)
	}
}

func TestQueryVariableErrors(t *testing.T) {
	failing := NewQueryVariable(State{KeyName: "broken", KeyQuery: "q"}, WithEvaluator(EvaluatorFunc(
		func(context.Context, QueryContext, string) (any, error) { return nil, errors.New("backend down") })))
	if err := failing.ValidateAndUpdate(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if failing.LoadingState() != LoadingStateError || failing.Err() != "backend down" {
		t.Fatalf("expected error state, got %s %q", failing.LoadingState(), failing.Err())
	}

	unknown := NewQueryVariable(State{KeyName: "lua", KeyQuery: "1", KeyEngine: "lua"})
	if err := unknown.ValidateAndUpdate(context.Background()); !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}

	badRegex := NewQueryVariable(State{KeyName: "r", KeyQuery: `["a"]`, KeyRegex: "(unclosed"})
	if err := badRegex.ValidateAndUpdate(context.Background()); err == nil {
		t.Fatalf("expected regex error")
	}
}

func TestQueryVariableEmptyQuery(t *testing.T) {
	v := NewQueryVariable(State{KeyName: "empty", KeyQuery: "  "})
	if err := v.ValidateAndUpdate(context.Background()); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(v.Options()) != 0 || v.Value() != "" {
		t.Fatalf("expected no options and empty value, got %v %v", v.Options(), v.Value())
	}
	if v.RefreshOnTimeRangeChange() {
		t.Fatalf("expected refresh on load by default")
	}
	refreshing := NewQueryVariable(State{KeyName: "r", KeyRefresh: RefreshOnTimeRangeChanged})
	if !refreshing.RefreshOnTimeRangeChange() {
		t.Fatalf("expected refresh on time range change")
	}
}

func TestOptionsFromResult(t *testing.T) {
	cases := []struct {
		name   string
		result any
		want   []VariableOption
	}{
		{"nil", nil, nil},
		{"strings", []string{"a"}, []VariableOption{{Label: "a", Value: "a"}}},
		{"numbers", []any{1, 2.5}, []VariableOption{{Label: "1", Value: "1"}, {Label: "2.5", Value: "2.5"}}},
		{"maps", []any{map[string]any{"label": "A", "value": "a"}, map[string]any{"text": "B"}}, []VariableOption{{Label: "A", Value: "a"}, {Label: "B", Value: "B"}}},
		{"single option map", map[string]any{"text": "A", "value": 1}, []VariableOption{{Label: "A", Value: "1"}}},
		{"text to value map", map[string]any{"b": 2, "a": 1}, []VariableOption{{Label: "a", Value: "1"}, {Label: "b", Value: "2"}}},
		{"scalar", true, []VariableOption{{Label: "true", Value: "true"}}},
	}
	for _, tc := range cases {
		if got := optionsFromResult(tc.result); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestSortOptions(t *testing.T) {
	base := []VariableOption{{Label: "b10"}, {Label: "A2"}, {Label: "c1"}, {Label: "none"}}
	cases := map[SortMode][]string{
		SortDisabled:                        {"b10", "A2", "c1", "none"},
		SortAlphabeticalAsc:                 {"A2", "b10", "c1", "none"},
		SortAlphabeticalDesc:                {"none", "c1", "b10", "A2"},
		SortNumericalAsc:                    {"none", "c1", "A2", "b10"},
		SortNumericalDesc:                   {"b10", "A2", "c1", "none"},
		SortAlphabeticalCaseInsensitiveAsc:  {"A2", "b10", "c1", "none"},
		SortAlphabeticalCaseInsensitiveDesc: {"none", "c1", "b10", "A2"},
	}
	for mode, want := range cases {
		options := append([]VariableOption(nil), base...)
		sortOptions(options, mode)
		got := make([]string, len(options))
		for i, o := range options {
			got[i] = o.Label
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("mode %d: expected %v, got %v", mode, want, got)
		}
	}
}

func TestCompileJSRegex(t *testing.T) {
	re, err := compileJSRegex("/^web-(\\d+)$/m")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !re.MatchString("web-12") {
		t.Fatalf("expected match")
	}
	if re, _ := compileJSRegex("/abc/i"); !re.MatchString("ABC") {
		t.Fatalf("expected case-insensitive match")
	}
	if re, _ := compileJSRegex("a/b"); !re.MatchString("a/b") {
		t.Fatalf("expected bare pattern")
	}
}
