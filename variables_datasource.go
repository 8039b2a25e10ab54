package scenes

import (
	"context"
	"fmt"
)

// State keys specific to data source variables.
const (
	KeyPluginID             = "pluginId"
	KeyDefaultOptionEnabled = "defaultOptionEnabled"
)

// DataSourceVariable selects one of the runtime data sources of a plugin
// type. "regex" filters them by name.
type DataSourceVariable struct {
	MultiValueVariable
	registry *DataSourceRegistry
}

// NewDataSourceVariable creates a data source variable backed by the
// process-wide registry.
func NewDataSourceVariable(state State, opts ...ObjectOption) *DataSourceVariable {
	return NewDataSourceVariableWithRegistry(RuntimeDataSources(), state, opts...)
}

// NewDataSourceVariableWithRegistry creates a data source variable reading
// from registry.
func NewDataSourceVariableWithRegistry(registry *DataSourceRegistry, state State, opts ...ObjectOption) *DataSourceVariable {
	v := &DataSourceVariable{registry: registry}
	opts = append([]ObjectOption{WithVariableDependency(DependencyOptions{StatePaths: []string{KeyRegex}})}, opts...)
	initMultiValue(v, &v.MultiValueVariable, TypeDataSource, state, opts)
	v.provider = v.options
	return v
}

func (v *DataSourceVariable) options(context.Context) ([]VariableOption, error) {
	pluginID, _ := v.Get(KeyPluginID).(string)
	regexText, _ := v.Get(KeyRegex).(string)
	if regexText != "" {
		interpolated, err := Interpolate(v, regexText, nil, FormatRegex)
		if err != nil {
			return nil, err
		}
		regexText = interpolated
	}

	var options []VariableOption
	if defaultOn, _ := v.Get(KeyDefaultOptionEnabled).(bool); defaultOn {
		options = append(options, VariableOption{Label: "default", Value: "default"})
	}
	sources := v.registry.List(pluginID)
	if regexText != "" {
		re, err := compileJSRegex(regexText)
		if err != nil {
			return nil, fmt.Errorf("scenes: invalid data source regex %q: %w", regexText, err)
		}
		filtered := sources[:0:0]
		for _, ds := range sources {
			if re.MatchString(ds.Name) {
				filtered = append(filtered, ds)
			}
		}
		sources = filtered
	}
	for _, ds := range sources {
		options = append(options, VariableOption{Label: ds.Name, Value: ds.UID})
	}
	return options, nil
}

// Instance returns the selected data source. "default" resolves to the
// registered default of the plugin type.
func (v *DataSourceVariable) Instance() (DataSourceInstance, bool) {
	value := stringify(v.Get(KeyValue))
	if value == "default" {
		pluginID, _ := v.Get(KeyPluginID).(string)
		for _, ds := range v.registry.List(pluginID) {
			if ds.IsDefault {
				return ds, true
			}
		}
		return DataSourceInstance{}, false
	}
	return v.registry.Lookup(value)
}
