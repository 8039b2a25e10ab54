package scenes

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// FormatterFunc renders a value. value is a string or a []string; args are
// the arguments given to the formatter in the chain.
type FormatterFunc func(value any, args []string, variable FormatVariable) string

// FormatRegistry stores formatters keyed by lower-cased id.
type FormatRegistry struct {
	mu         sync.RWMutex
	formatters map[string]FormatterFunc
}

// NewFormatRegistry constructs an empty registry.
func NewFormatRegistry() *FormatRegistry {
	return &FormatRegistry{formatters: make(map[string]FormatterFunc)}
}

// Register stores fn under id. Registering an id twice fails with
// ErrDuplicateRegistration.
func (r *FormatRegistry) Register(id string, fn FormatterFunc) error {
	if fn == nil {
		return fmt.Errorf("scenes: formatter %q is nil", id)
	}
	if id == "" {
		return fmt.Errorf("scenes: formatter id must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(id)
	if _, exists := r.formatters[key]; exists {
		return fmt.Errorf("scenes: formatter %q: %w", id, ErrDuplicateRegistration)
	}
	r.formatters[key] = fn
	return nil
}

// Lookup returns the formatter registered under id.
func (r *FormatRegistry) Lookup(id string) (FormatterFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.formatters[strings.ToLower(id)]
	return fn, ok
}

// IDs returns registered ids sorted alphabetically.
func (r *FormatRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.formatters))
	for id := range r.formatters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// maxSuggestDistance bounds how far a misspelled id may be from a suggestion.
const maxSuggestDistance = 2

// Suggest returns the registered id closest to id by edit distance, when one
// is within two edits. Ties resolve alphabetically.
func (r *FormatRegistry) Suggest(id string) (string, bool) {
	return closestName(id, r.IDs())
}

// closestName picks the sorted candidate nearest to name.
func closestName(name string, candidates []string) (string, bool) {
	name = strings.ToLower(name)
	best, bestDist := "", maxSuggestDistance+1
	for _, candidate := range candidates {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best, best != ""
}

// Clone returns a copy of the registry.
func (r *FormatRegistry) Clone() *FormatRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewFormatRegistry()
	for id, fn := range r.formatters {
		clone.formatters[id] = fn
	}
	return clone
}

var (
	defaultFormatsOnce sync.Once
	defaultFormats     *FormatRegistry
)

// DefaultFormatRegistry returns the process-wide registry, populated with the
// built-in formatters on first use.
func DefaultFormatRegistry() *FormatRegistry {
	defaultFormatsOnce.Do(func() {
		defaultFormats = NewFormatRegistry()
		for id, fn := range builtinFormatters() {
			_ = defaultFormats.Register(id, fn)
		}
	})
	return defaultFormats
}

// RegisterFormat adds a formatter to the process-wide registry.
func RegisterFormat(id string, fn FormatterFunc) error {
	return DefaultFormatRegistry().Register(id, fn)
}
