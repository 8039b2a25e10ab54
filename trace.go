package scenes

import (
	"encoding/json"
)

// Trace records how a template was interpolated.
type Trace struct {
	Template string       `json:"template"`
	Result   string       `json:"result"`
	Tokens   []TraceToken `json:"tokens"`
}

// TraceToken details one variable reference of a template.
type TraceToken struct {
	Match     string `json:"match"`
	Variable  string `json:"variable"`
	FieldPath string `json:"field_path,omitempty"`
	Format    string `json:"format,omitempty"`
	Value     string `json:"value,omitempty"`
	Found     bool   `json:"found"`
}

// Unresolved returns the names of tokens left untouched.
func (t Trace) Unresolved() []string {
	var names []string
	for _, token := range t.Tokens {
		if !token.Found && !containsString(names, token.Variable) {
			names = append(names, token.Variable)
		}
	}
	return names
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
