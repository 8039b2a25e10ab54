package scenes

import (
	"fmt"
	"regexp"
	"strings"
)

// variableRegex matches $name, [[name]], [[name:format]], ${name},
// ${name.fieldPath} and ${name:formatChain}. Inside a chain a quoted argument
// may contain '}'; a lone quote still ends at the first '}' so the chain
// parser can report it.
var variableRegex = regexp.MustCompile(`\$(\w+)|\[\[(\w+?)(?::(\w+))?\]\]|\$\{(\w+)(?:\.([^:^\}]+))?(?::((?:[^\}'"]|'[^']*'|"[^"]*"|['"][^\}]*)+))?\}`)

// tokenName returns the variable name of a variableRegex submatch.
func tokenName(m []string) string {
	for _, idx := range []int{1, 2, 4} {
		if idx < len(m) && m[idx] != "" {
			return m[idx]
		}
	}
	return ""
}

// ScopedVar is a value injected for a single interpolation call, for example
// a repeated panel's own value.
type ScopedVar struct {
	Text  string
	Value any
}

// ScopedVars are consulted before any variable or macro.
type ScopedVars map[string]ScopedVar

// Interpolator substitutes variable references in templates.
type Interpolator struct {
	Formats *FormatRegistry
	Macros  *MacroRegistry
}

// DefaultInterpolator uses the process-wide format and macro registries.
func DefaultInterpolator() Interpolator {
	return Interpolator{Formats: DefaultFormatRegistry(), Macros: DefaultMacroRegistry()}
}

// Interpolate replaces the variable references in template as seen from
// scope. format applies to tokens without their own formatter chain; empty
// means the variable's default format. Unknown names stay untouched and
// substituted values are never scanned again.
func Interpolate(scope SceneObject, template string, scopedVars ScopedVars, format string) (string, error) {
	return DefaultInterpolator().Interpolate(scope, template, scopedVars, format)
}

// InterpolateWithTrace is Interpolate that also records every token.
func InterpolateWithTrace(scope SceneObject, template string, scopedVars ScopedVars, format string) (string, Trace, error) {
	return DefaultInterpolator().InterpolateWithTrace(scope, template, scopedVars, format)
}

// Interpolate implements the package-level Interpolate with the registries
// of i.
func (i Interpolator) Interpolate(scope SceneObject, template string, scopedVars ScopedVars, format string) (string, error) {
	out, _, err := i.run(scope, template, scopedVars, format, false)
	return out, err
}

// InterpolateWithTrace implements the package-level InterpolateWithTrace.
func (i Interpolator) InterpolateWithTrace(scope SceneObject, template string, scopedVars ScopedVars, format string) (string, Trace, error) {
	return i.run(scope, template, scopedVars, format, true)
}

func (i Interpolator) run(scope SceneObject, template string, scopedVars ScopedVars, format string, trace bool) (string, Trace, error) {
	result := Trace{Template: template}
	if isNilObject(scope) {
		scope = nil
	}
	if template == "" {
		return "", result, nil
	}

	var callChain FormatterChain
	if format != "" {
		chain, err := ParseFormatterChain(format)
		if err != nil {
			return "", result, err
		}
		callChain = chain
	}

	var (
		b        strings.Builder
		firstErr error
		last     int
	)
	for _, loc := range variableRegex.FindAllStringSubmatchIndex(template, -1) {
		match := template[loc[0]:loc[1]]
		groups := submatches(template, loc)
		b.WriteString(template[last:loc[0]])
		last = loc[1]

		rendered, entry, err := i.renderToken(scope, match, groups, scopedVars, callChain)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		b.WriteString(rendered)
		if trace {
			result.Tokens = append(result.Tokens, entry)
		}
	}
	b.WriteString(template[last:])

	out := b.String()
	result.Result = out
	if firstErr != nil {
		return out, result, firstErr
	}
	return out, result, nil
}

func submatches(s string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for n := range out {
		if loc[2*n] >= 0 {
			out[n] = s[loc[2*n]:loc[2*n+1]]
		}
	}
	return out
}

func (i Interpolator) renderToken(scope SceneObject, match string, groups []string, scopedVars ScopedVars, callChain FormatterChain) (string, TraceToken, error) {
	name := tokenName(groups)
	fieldPath := groups[5]
	entry := TraceToken{Match: match, Variable: name, FieldPath: fieldPath}

	chain := callChain
	switch {
	case groups[3] != "":
		chain = FormatterChain{{Name: groups[3], Args: []string{}}}
	case groups[6] != "":
		parsed, err := ParseFormatterChain(groups[6])
		if err != nil {
			return match, entry, err
		}
		chain = parsed
	}

	variable, err := i.resolve(scope, name, scopedVars)
	if err != nil {
		return match, entry, err
	}
	if variable == nil {
		return match, entry, nil
	}

	value := variable.Value()
	if fieldPath != "" {
		var ok bool
		if fv, isFV := variable.(FieldValuer); isFV {
			value, ok = fv.FieldValue(fieldPath)
		} else {
			value, ok = lookupField(value, fieldPath)
		}
		if !ok {
			return match, entry, nil
		}
	}

	if len(chain) == 0 {
		id := defaultFormat()
		if df, ok := variable.(DefaultFormatter); ok && df.DefaultFormat() != "" {
			id = df.DefaultFormat()
		}
		chain = FormatterChain{{Name: id, Args: []string{}}}
	}

	rendered := i.applyChain(scope, variable, value, chain)
	entry.Found = true
	entry.Format = chain.String()
	entry.Value = rendered
	return rendered, entry, nil
}

// resolve finds name in scopedVars, then among variables visible from scope,
// then among macros. A nil variable with a nil error means name is unknown.
func (i Interpolator) resolve(scope SceneObject, name string, scopedVars ScopedVars) (FormatVariable, error) {
	if sv, ok := scopedVars[name]; ok {
		return scopedVariable{name: name, value: sv}, nil
	}
	if scope != nil {
		if v := LookupVariable(name, scope); v != nil {
			return v, nil
		}
	}
	macros := i.Macros
	if macros == nil {
		macros = DefaultMacroRegistry()
	}
	factory, ok := macros.Lookup(name)
	if !ok {
		return nil, nil
	}
	variable, err := factory(name, scope)
	if err != nil {
		return nil, fmt.Errorf("scenes: macro %q: %w", name, err)
	}
	return variable, nil
}

// applyChain runs chain over value. The first formatter receives the raw
// value, later ones the previous output.
func (i Interpolator) applyChain(scope SceneObject, variable FormatVariable, value any, chain FormatterChain) string {
	formats := i.Formats
	if formats == nil {
		formats = DefaultFormatRegistry()
	}
	var current any = value
	for n, spec := range chain {
		if custom, ok := current.(CustomValue); ok && n == 0 {
			current = custom.FormatValue(strings.ToLower(spec.Name), spec.Args)
			continue
		}
		fn, ok := formats.Lookup(spec.Name)
		if !ok {
			fields := map[string]any{
				"format":   spec.Name,
				"variable": variable.Name(),
			}
			if suggestion, ok := formats.Suggest(spec.Name); ok {
				fields["suggestion"] = suggestion
			}
			warnScope(scope, "unknown variable format, using glob", fields)
			fn, _ = formats.Lookup(FormatGlob)
			if fn == nil {
				fn = formatGlob
			}
		}
		current = fn(normalizeFormatValue(current), spec.Args, variable)
	}
	return stringify(current)
}

func warnScope(scope SceneObject, msg string, fields map[string]any) {
	if !isNilObject(scope) {
		scope.Base().warn(msg, fields)
		return
	}
	processLogger().Log(LogEvent{Level: LogLevelWarn, Message: msg, Fields: fields})
}

// scopedVariable adapts a ScopedVar to FormatVariable.
type scopedVariable struct {
	name  string
	value ScopedVar
}

func (s scopedVariable) Name() string       { return s.name }
func (s scopedVariable) Type() VariableType { return TypeScoped }
func (s scopedVariable) Value() any         { return s.value.Value }

func (s scopedVariable) ValueText() string {
	if s.value.Text != "" {
		return s.value.Text
	}
	return stringify(s.value.Value)
}

func (s scopedVariable) FieldValue(path string) (any, bool) {
	return lookupField(s.value.Value, path)
}
