package scenes

import "net/url"

// URLState maps URL query keys to their values.
type URLState map[string][]string

// First returns the first value stored for key.
func (s URLState) First(key string) string {
	if values := s[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// Encode renders the state as a query string with keys sorted.
func (s URLState) Encode() string {
	return url.Values(s).Encode()
}

// ParseURLState parses a raw query string.
func ParseURLState(query string) (URLState, error) {
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, err
	}
	return URLState(values), nil
}

// URLSyncer is implemented by objects whose state round-trips through the URL.
type URLSyncer interface {
	URLKeys() []string
	GetURLState() URLState
	UpdateFromURL(URLState)
}

// CollectURLState merges the URL state of every syncer in the subtree of root.
// Variables flagged skipUrlSync are ignored.
func CollectURLState(root SceneObject) URLState {
	out := URLState{}
	for _, obj := range FindAllObjects(root, isURLSyncer) {
		for key, values := range obj.(URLSyncer).GetURLState() {
			out[key] = append([]string(nil), values...)
		}
	}
	return out
}

// ApplyURLState hands every syncer in the subtree of root the subset of state
// matching its keys. Syncers with no matching key are left untouched.
func ApplyURLState(root SceneObject, state URLState) {
	for _, obj := range FindAllObjects(root, isURLSyncer) {
		syncer := obj.(URLSyncer)
		subset := URLState{}
		for _, key := range syncer.URLKeys() {
			if values, ok := state[key]; ok {
				subset[key] = values
			}
		}
		if len(subset) > 0 {
			syncer.UpdateFromURL(subset)
		}
	}
}

func isURLSyncer(obj SceneObject) bool {
	if _, ok := obj.(URLSyncer); !ok {
		return false
	}
	skip, _ := obj.Base().Get(KeySkipURLSync).(bool)
	return !skip
}
