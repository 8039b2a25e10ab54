package scenes

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// DataSourceInstance describes a data source registered at runtime.
type DataSourceInstance struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	IsDefault bool   `json:"isDefault"`
}

// DataSourceRegistry stores data sources by uid.
type DataSourceRegistry struct {
	mu      sync.RWMutex
	sources map[string]DataSourceInstance
}

// NewDataSourceRegistry constructs an empty registry.
func NewDataSourceRegistry() *DataSourceRegistry {
	return &DataSourceRegistry{sources: make(map[string]DataSourceInstance)}
}

// Register stores ds. A uid already registered fails with
// ErrDuplicateRegistration.
func (r *DataSourceRegistry) Register(ds DataSourceInstance) error {
	if ds.UID == "" {
		return errors.New("scenes: data source uid must not be empty")
	}
	if ds.Name == "" {
		ds.Name = ds.UID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[ds.UID]; exists {
		return fmt.Errorf("scenes: data source %q: %w", ds.UID, ErrDuplicateRegistration)
	}
	r.sources[ds.UID] = ds
	return nil
}

// Lookup finds a data source by uid, then by name.
func (r *DataSourceRegistry) Lookup(ref string) (DataSourceInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ds, ok := r.sources[ref]; ok {
		return ds, true
	}
	for _, ds := range r.sources {
		if ds.Name == ref {
			return ds, true
		}
	}
	return DataSourceInstance{}, false
}

// List returns the data sources of pluginType, every one when empty, sorted
// by name.
func (r *DataSourceRegistry) List(pluginType string) []DataSourceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DataSourceInstance, 0, len(r.sources))
	for _, ds := range r.sources {
		if pluginType == "" || ds.Type == pluginType {
			out = append(out, ds)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var runtimeDataSources = NewDataSourceRegistry()

// RuntimeDataSources returns the process-wide registry.
func RuntimeDataSources() *DataSourceRegistry {
	return runtimeDataSources
}

// RegisterRuntimeDataSource adds ds to the process-wide registry.
func RegisterRuntimeDataSource(ds DataSourceInstance) error {
	return runtimeDataSources.Register(ds)
}
