package scenes

import "context"

// KeyDefaultOptions lists the keys a group-by variable offers.
const KeyDefaultOptions = "defaultOptions"

// GroupByVariable selects the dimensions results are grouped by. It is
// always multi-valued.
type GroupByVariable struct {
	MultiValueVariable
}

// NewGroupByVariable creates a group-by variable offering options.
func NewGroupByVariable(name string, options []VariableOption, state State, opts ...ObjectOption) *GroupByVariable {
	v := &GroupByVariable{}
	merged := State{
		KeyName:           name,
		KeyIsMulti:        true,
		KeyValue:          []string{},
		KeyText:           []string{},
		KeyDefaultOptions: append([]VariableOption(nil), options...),
	}
	for k, val := range state {
		merged[k] = val
	}
	initMultiValue(v, &v.MultiValueVariable, TypeGroupBy, merged, opts)
	v.provider = v.options
	return v
}

func (v *GroupByVariable) options(context.Context) ([]VariableOption, error) {
	options, _ := v.Get(KeyDefaultOptions).([]VariableOption)
	return options, nil
}

// ValidateAndUpdate implements Updatable. Unlike other multi-value variables
// an empty selection stays empty.
func (v *GroupByVariable) ValidateAndUpdate(ctx context.Context) error {
	if len(toStringSlice(v.Get(KeyValue))) == 0 {
		options, _ := v.options(ctx)
		v.SetState(State{KeyOptions: options, KeyLoadingState: LoadingStateDone})
		return nil
	}
	return v.MultiValueVariable.ValidateAndUpdate(ctx)
}
