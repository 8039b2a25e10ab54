package scenes

import "context"

// State keys specific to interval variables.
const (
	KeyIntervals       = "intervals"
	KeyAutoEnabled     = "autoEnabled"
	KeyAutoStepCount   = "autoStepCount"
	KeyAutoMinInterval = "autoMinInterval"
)

// DefaultIntervals are offered when an interval variable declares none.
var DefaultIntervals = []string{"1m", "10m", "30m", "1h", "6h", "12h", "1d", "7d", "14d", "30d"}

// IntervalVariable selects a time interval. With auto enabled the value
// "$__auto" resolves to an interval derived from the closest time range.
type IntervalVariable struct {
	VariableBase
}

// NewIntervalVariable creates an interval variable. Recognised state fields:
// "intervals" ([]string), "value", "autoEnabled", "autoStepCount",
// "autoMinInterval" and "refresh".
func NewIntervalVariable(name string, state State, opts ...ObjectOption) *IntervalVariable {
	v := &IntervalVariable{}
	merged := State{
		KeyName:      name,
		KeyValue:     "",
		KeyIntervals: DefaultIntervals,
		KeyRefresh:   RefreshOnTimeRangeChanged,
	}
	for k, val := range state {
		merged[k] = val
	}
	initVariable(v, &v.VariableBase, TypeInterval, merged, opts)
	return v
}

// Intervals returns the selectable intervals.
func (v *IntervalVariable) Intervals() []string {
	return toStringSlice(v.Get(KeyIntervals))
}

func (v *IntervalVariable) autoEnabled() bool {
	b, _ := v.Get(KeyAutoEnabled).(bool)
	return b
}

// Options lists the intervals, preceded by Auto when enabled.
func (v *IntervalVariable) Options() []VariableOption {
	var options []VariableOption
	if v.autoEnabled() {
		options = append(options, VariableOption{Label: AutoVariableText, Value: AutoVariableValue})
	}
	for _, interval := range v.Intervals() {
		options = append(options, VariableOption{Label: interval, Value: interval})
	}
	return options
}

// Value implements FormatVariable.
func (v *IntervalVariable) Value() any {
	value, _ := v.Get(KeyValue).(string)
	if value == AutoVariableValue {
		return v.autoInterval()
	}
	return value
}

// ValueText implements FormatVariable.
func (v *IntervalVariable) ValueText() string {
	return stringify(v.Value())
}

func (v *IntervalVariable) autoInterval() string {
	d := currentDefaults()
	steps := d.autoStepCount
	if n, ok := v.Get(KeyAutoStepCount).(int); ok && n > 0 {
		steps = n
	}
	minInterval := d.autoMinInterval
	if s, ok := v.Get(KeyAutoMinInterval).(string); ok && s != "" {
		minInterval = s
	}
	tr, err := GetTimeRange(v)
	if err != nil {
		return minInterval
	}
	return CalculateInterval(tr.Value(), steps, minInterval).Interval
}

// RefreshOnTimeRangeChange implements TimeRangeRefresher.
func (v *IntervalVariable) RefreshOnTimeRangeChange() bool {
	mode, _ := v.Get(KeyRefresh).(RefreshMode)
	return mode == RefreshOnTimeRangeChanged
}

// ValidateAndUpdate implements Updatable. An auto value is re-announced since
// it follows the time range; an empty value selects the first interval.
func (v *IntervalVariable) ValidateAndUpdate(context.Context) error {
	value, _ := v.Get(KeyValue).(string)
	publish := false
	switch {
	case value == AutoVariableValue:
		publish = true
	case value == "" && len(v.Intervals()) > 0:
		v.SetState(State{KeyValue: v.Intervals()[0]})
		publish = true
	}
	v.SetState(State{KeyLoadingState: LoadingStateDone})
	if publish {
		publishValueChanged(v)
	}
	return nil
}

// ChangeValueTo selects interval and announces the change.
func (v *IntervalVariable) ChangeValueTo(interval string) {
	if current, _ := v.Get(KeyValue).(string); current == interval {
		return
	}
	v.SetState(State{KeyValue: interval})
	publishValueChanged(v)
}

// GetURLState implements URLSyncer.
func (v *IntervalVariable) GetURLState() URLState {
	value, _ := v.Get(KeyValue).(string)
	return URLState{v.urlKey(): {value}}
}

// UpdateFromURL implements URLSyncer. Unknown intervals are ignored.
func (v *IntervalVariable) UpdateFromURL(values URLState) {
	vals, ok := values[v.urlKey()]
	if !ok || len(vals) == 0 {
		return
	}
	value := vals[0]
	if value == AutoVariableValue && v.autoEnabled() {
		v.ChangeValueTo(value)
		return
	}
	if containsString(v.Intervals(), value) {
		v.ChangeValueTo(value)
	}
}
