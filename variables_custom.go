package scenes

import (
	"context"
	"strings"
)

// CustomVariable offers options written inline as a comma separated list.
// "\," escapes a comma and "text : value" sets a distinct label. Variable
// references in the query are interpolated first.
type CustomVariable struct {
	MultiValueVariable
}

// NewCustomVariable creates a custom variable from state. Recognised fields
// are those of MultiValueVariable plus "query".
func NewCustomVariable(state State, opts ...ObjectOption) *CustomVariable {
	v := &CustomVariable{}
	opts = append([]ObjectOption{WithVariableDependency(DependencyOptions{StatePaths: []string{KeyQuery}})}, opts...)
	initMultiValue(v, &v.MultiValueVariable, TypeCustom, state, opts)
	v.provider = v.options
	return v
}

func (v *CustomVariable) options(_ context.Context) ([]VariableOption, error) {
	query, _ := v.Get(KeyQuery).(string)
	interpolated, err := Interpolate(v, query, nil, FormatRaw)
	if err != nil {
		return nil, err
	}
	return ParseCustomOptions(interpolated), nil
}

// ParseCustomOptions splits a custom variable query into options.
func ParseCustomOptions(query string) []VariableOption {
	var (
		options []VariableOption
		cur     strings.Builder
	)
	flush := func() {
		text := cur.String()
		cur.Reset()
		if strings.TrimSpace(text) == "" {
			return
		}
		if idx := strings.Index(text, " : "); idx > 0 {
			label := strings.TrimSpace(text[:idx])
			value := strings.TrimSpace(text[idx+3:])
			if label != "" && value != "" {
				options = append(options, VariableOption{Label: label, Value: value})
				return
			}
		}
		trimmed := strings.TrimSpace(text)
		options = append(options, VariableOption{Label: trimmed, Value: trimmed})
	}
	for i := 0; i < len(query); i++ {
		switch {
		case query[i] == '\\' && i+1 < len(query) && query[i+1] == ',':
			cur.WriteByte(',')
			i++
		case query[i] == ',':
			flush()
		default:
			cur.WriteByte(query[i])
		}
	}
	flush()
	return options
}
