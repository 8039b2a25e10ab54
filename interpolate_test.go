package scenes

import (
	"errors"
	"reflect"
	"testing"
)

// interpolationScene returns a panel below a root holding server, host (multi)
// and env variables.
func interpolationScene(logger Logger) (*Object, *TextBoxVariable, *CustomVariable) {
	server := NewTextBoxVariable("server", "srv-1")
	host := NewCustomVariable(State{
		KeyName:    "host",
		KeyQuery:   "a,b",
		KeyIsMulti: true,
		KeyValue:   []string{"a", "b"},
		KeyText:    []string{"A", "B"},
	})
	env := NewConstantVariable("env", "prod")
	panel := New("Panel", nil, WithLogger(logger))
	New("Root", State{
		SlotVariables: NewSceneVariableSet([]Variable{server, host, env}),
		"body":        panel,
	}, WithSlots("body"))
	return panel, server, host
}

func TestInterpolateSyntaxes(t *testing.T) {
	panel, _, _ := interpolationScene(nil)
	cases := map[string]string{
		`up{instance="$server"}`:      `up{instance="srv-1"}`,
		"[[server]]-${server}":        "srv-1-srv-1",
		"$host":                       "{a,b}",
		"[[host:regex]]":              "(a|b)",
		"${host:pipe}":                "a|b",
		"${host:join:' + '}":          "a + b",
		"${host:csv;percentencode}":   "a%2Cb",
		"${host:text}":                "A + B",
		"${env:singlequote}":          "'prod'",
		"$missing and ${missing:csv}": "$missing and ${missing:csv}",
		"no variables":                "no variables",
		"$$server":                    "$srv-1",
	}
	for template, want := range cases {
		got, err := Interpolate(panel, template, nil, "")
		if err != nil {
			t.Fatalf("%q: unexpected error %v", template, err)
		}
		if got != want {
			t.Fatalf("%q: expected %q, got %q", template, want, got)
		}
	}
}

func TestInterpolateCallFormat(t *testing.T) {
	panel, _, _ := interpolationScene(nil)

	got, err := Interpolate(panel, "$host ${host:csv}", nil, "pipe")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got != "a|b a,b" {
		t.Fatalf("expected token chain to override call format, got %q", got)
	}

	if _, err := Interpolate(panel, "$host", nil, "join:'x"); err == nil {
		t.Fatalf("expected error for invalid call format")
	}
}

func TestInterpolateQuotedBraceInTokenChain(t *testing.T) {
	panel, _, _ := interpolationScene(nil)

	got, err := Interpolate(panel, `${host:join:"}"} / ${host:join:'{}'} / ${server}`, nil, "")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if want := "a}b / a{}b / srv-1"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestInterpolateInvalidTokenChain(t *testing.T) {
	panel, _, _ := interpolationScene(nil)

	got, err := Interpolate(panel, "${server:'} and $server", nil, "")
	var syntaxErr *FormatterSyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected FormatterSyntaxError, got %v", err)
	}
	if got != "${server:'} and srv-1" {
		t.Fatalf("expected remaining tokens rendered, got %q", got)
	}
}

func TestInterpolateIsSinglePass(t *testing.T) {
	panel, server, _ := interpolationScene(nil)
	server.SetValue("$env")

	got, err := Interpolate(panel, "$server", nil, "")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got != "$env" {
		t.Fatalf("expected substituted value left as is, got %q", got)
	}
}

func TestInterpolateUnknownFormatFallsBackToGlob(t *testing.T) {
	logs := &logCapture{}
	panel, _, _ := interpolationScene(logs.logger())

	got, err := Interpolate(panel, "${host:nope}", nil, "")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got != "{a,b}" {
		t.Fatalf("expected glob output, got %q", got)
	}
	if !logs.has(LogLevelWarn, "unknown variable format, using glob") {
		t.Fatalf("expected warning, got %v", logs.messages(LogLevelWarn))
	}
}

func TestInterpolateScopedVars(t *testing.T) {
	panel, _, _ := interpolationScene(nil)
	scoped := ScopedVars{
		"server": {Text: "Server B", Value: "srv-2"},
		"row": {Value: map[string]any{
			"name":   "api",
			"labels": map[string]any{"job": "node"},
		}},
	}
	cases := map[string]string{
		"$server":              "srv-2",
		"${server:text}":       "Server B",
		"${row.name}":          "api",
		"${row.labels.job}":    "node",
		"${row.labels.absent}": "${row.labels.absent}",
	}
	for template, want := range cases {
		got, err := Interpolate(panel, template, scoped, "")
		if err != nil {
			t.Fatalf("%q: unexpected error %v", template, err)
		}
		if got != want {
			t.Fatalf("%q: expected %q, got %q", template, want, got)
		}
	}
}

func TestInterpolateWithoutScope(t *testing.T) {
	scoped := ScopedVars{"x": {Value: []string{"1", "2"}}}
	got, err := Interpolate(nil, "${x:csv} $y", scoped, "")
	if err != nil || got != "1,2 $y" {
		t.Fatalf("expected scoped value without scope, got %q (%v)", got, err)
	}

	var typedNil *Object
	got, err = Interpolate(typedNil, "${x:pipe}", scoped, "")
	if err != nil || got != "1|2" {
		t.Fatalf("expected typed nil scope to be ignored, got %q (%v)", got, err)
	}
}

func TestInterpolateAllValue(t *testing.T) {
	custom := NewCustomVariable(State{
		KeyName:       "job",
		KeyIncludeAll: true,
		KeyAllValue:   ".*",
		KeyValue:      AllVariableValue,
		KeyText:       AllVariableText,
	})
	expand := NewCustomVariable(State{
		KeyName:       "node",
		KeyIncludeAll: true,
		KeyValue:      AllVariableValue,
		KeyText:       AllVariableText,
		KeyOptions:    []VariableOption{{Label: "a", Value: "a"}, {Label: "b", Value: "b"}},
	})
	panel := New("Panel", nil)
	New("Root", State{SlotVariables: NewSceneVariableSet([]Variable{custom, expand}), "body": panel}, WithSlots("body"))

	cases := map[string]string{
		"$job":              ".*",
		"${job:regex}":      ".*",
		"${job:text}":       "All",
		"${job:queryparam}": "var-job=%24__all",
		"$node":             "{a,b}",
		"${node:regex}":     "(a|b)",
	}
	for template, want := range cases {
		got, err := Interpolate(panel, template, nil, "")
		if err != nil {
			t.Fatalf("%q: unexpected error %v", template, err)
		}
		if got != want {
			t.Fatalf("%q: expected %q, got %q", template, want, got)
		}
	}
}

func TestInterpolateWithTrace(t *testing.T) {
	panel, _, _ := interpolationScene(nil)

	out, trace, err := InterpolateWithTrace(panel, "$server ${host:csv} $missing $missing", nil, "")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if out != "srv-1 a,b $missing $missing" || trace.Result != out {
		t.Fatalf("unexpected output %q / %q", out, trace.Result)
	}
	if len(trace.Tokens) != 4 {
		t.Fatalf("expected 4 tokens, got %d", len(trace.Tokens))
	}
	first := trace.Tokens[0]
	if !first.Found || first.Variable != "server" || first.Value != "srv-1" || first.Format != FormatGlob {
		t.Fatalf("unexpected first token %+v", first)
	}
	if trace.Tokens[1].Format != "csv" {
		t.Fatalf("expected csv format recorded, got %q", trace.Tokens[1].Format)
	}
	if unresolved := trace.Unresolved(); !reflect.DeepEqual(unresolved, []string{"missing"}) {
		t.Fatalf("expected missing unresolved once, got %v", unresolved)
	}

	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	decoded, err := TraceFromJSON(payload)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if !reflect.DeepEqual(decoded, trace) {
		t.Fatalf("expected decoded trace to match, got %+v", decoded)
	}
}

func TestCustomInterpolatorRegistries(t *testing.T) {
	formats := DefaultFormatRegistry().Clone()
	if err := formats.Register("shout", func(value any, _ []string, _ FormatVariable) string {
		return stringify(value) + "!"
	}); err != nil {
		t.Fatalf("register format: %v", err)
	}
	macros := NewMacroRegistry()
	if err := macros.Register("__tenant", func(name string, _ SceneObject) (FormatVariable, error) {
		return macroValue{name: name, value: "acme"}, nil
	}); err != nil {
		t.Fatalf("register macro: %v", err)
	}

	interp := Interpolator{Formats: formats, Macros: macros}
	got, err := interp.Interpolate(nil, "${__tenant:shout} $__from", nil, "")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got != "acme! $__from" {
		t.Fatalf("expected custom macro and untouched builtin, got %q", got)
	}
}

func TestExtractVariableNames(t *testing.T) {
	type target struct {
		Expr   string
		Legend string
		hidden string
	}
	state := State{
		"title":   "CPU on $server",
		"targets": []target{{Expr: "rate(x{job=~\"${job:regex}\"}[$__interval])", Legend: "[[instance]]", hidden: "$secret"}},
		"nested":  map[string]any{"list": []any{"${row.name}"}},
	}
	names := map[string]struct{}{}
	extractVariableNames(state, names)

	for _, want := range []string{"server", "job", "__interval", "instance", "row"} {
		if _, ok := names[want]; !ok {
			t.Fatalf("expected %q in %v", want, names)
		}
	}
	if _, ok := names["secret"]; ok {
		t.Fatalf("expected unexported fields to be skipped")
	}
}

func TestUnknownFormatWarningSuggestsClosestFormat(t *testing.T) {
	logs := &logCapture{}
	panel, _, _ := interpolationScene(logs.logger())

	if _, err := Interpolate(panel, "${host:cvs}", nil, ""); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	var suggestion any
	for _, event := range logs.events {
		if event.Message == "unknown variable format, using glob" {
			suggestion = event.Fields["suggestion"]
		}
	}
	if suggestion != FormatCSV {
		t.Fatalf("expected csv suggested, got %v", suggestion)
	}
}
