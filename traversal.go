package scenes

// Predicate selects scene objects during a search.
type Predicate func(SceneObject) bool

// GetAncestor returns the closest ancestor of obj, excluding obj itself, that
// carries capability.
func GetAncestor(obj SceneObject, capability Capability) (SceneObject, error) {
	for parent := obj.Base().Parent(); parent != nil; parent = parent.Base().Parent() {
		if parent.Base().Has(capability) {
			return parent, nil
		}
	}
	return nil, &NotFoundError{What: "ancestor with capability " + string(capability), From: obj.Base().Key()}
}

// GetAncestorOf is GetAncestor with the result asserted to T.
func GetAncestorOf[T SceneObject](obj SceneObject, capability Capability) (T, error) {
	var zero T
	for parent := obj.Base().Parent(); parent != nil; parent = parent.Base().Parent() {
		if !parent.Base().Has(capability) {
			continue
		}
		if typed, ok := parent.(T); ok {
			return typed, nil
		}
	}
	return zero, &NotFoundError{What: "ancestor with capability " + string(capability), From: obj.Base().Key()}
}

// FindObject searches start, its subtree, then each ancestor and the branches
// of that ancestor not yet visited, up to the root. It returns nil when
// nothing matches.
func FindObject(start SceneObject, match Predicate) SceneObject {
	return findObject(start, match, nil, true)
}

func findObject(obj SceneObject, match Predicate, searched *Object, climb bool) SceneObject {
	if match(obj) {
		return obj
	}

	var found SceneObject
	obj.Base().ForEachChild(func(child SceneObject) bool {
		if searched != nil && child.Base() == searched {
			return true
		}
		if hit := findObject(child, match, nil, false); hit != nil {
			found = hit
			return false
		}
		return true
	})
	if found != nil {
		return found
	}

	if !climb {
		return nil
	}
	if parent := obj.Base().Parent(); parent != nil {
		return findObject(parent, match, obj.Base(), true)
	}
	return nil
}

// FindByKey returns the object whose key equals key, searched from start.
func FindByKey(start SceneObject, key string) SceneObject {
	return FindObject(start, func(o SceneObject) bool { return o.Base().Key() == key })
}

// FindByKind returns the nearest object of the given kind, searched from start.
func FindByKind(start SceneObject, kind string) SceneObject {
	return FindObject(start, func(o SceneObject) bool { return o.Base().Kind() == kind })
}

// FindAllObjects returns every object in the subtree of start, start included,
// that matches, in pre-order.
func FindAllObjects(start SceneObject, match Predicate) []SceneObject {
	var found []SceneObject
	var walk func(SceneObject)
	walk = func(obj SceneObject) {
		if match(obj) {
			found = append(found, obj)
		}
		obj.Base().ForEachChild(func(child SceneObject) bool {
			walk(child)
			return true
		})
	}
	walk(start)
	return found
}

// GetDataLayers collects the data layers held in $data slots from obj up to
// the root. With closestOnly it stops at the first level that provides any.
func GetDataLayers(obj SceneObject, closestOnly bool) []SceneObject {
	var collected []SceneObject
	for current := obj; current != nil; current = current.Base().Parent() {
		provider, ok := current.Base().slotObject(SlotData)
		if !ok {
			continue
		}
		level := dataLayersOf(provider)
		collected = append(collected, level...)
		if closestOnly && len(level) > 0 {
			break
		}
	}
	return collected
}

// dataLayersOf returns provider when it is a layer, otherwise the layers it
// wraps in its own $data slot.
func dataLayersOf(provider SceneObject) []SceneObject {
	if provider.Base().Has(CapDataLayer) {
		return []SceneObject{provider}
	}
	nested, ok := provider.Base().slotObject(SlotData)
	if ok && nested.Base().Has(CapDataLayer) {
		return []SceneObject{nested}
	}
	return nil
}

// closest walks obj and its ancestors returning the first slot value that
// satisfies accept.
func closest[T any](obj SceneObject, slot string, accept func(SceneObject) (T, bool)) (T, bool) {
	for current := obj; current != nil; current = current.Base().Parent() {
		child, ok := current.Base().slotObject(slot)
		if !ok {
			continue
		}
		if value, ok := accept(child); ok {
			return value, true
		}
	}
	var zero T
	return zero, false
}

// GetTimeRange returns the closest time range. A scene without one is a
// programming error reported as *NotFoundError.
func GetTimeRange(obj SceneObject) (TimeRangeLike, error) {
	tr, ok := closest(obj, SlotTimeRange, func(o SceneObject) (TimeRangeLike, bool) {
		typed, ok := o.(TimeRangeLike)
		return typed, ok
	})
	if !ok {
		return nil, &NotFoundError{What: "time range", From: obj.Base().Key()}
	}
	return tr, nil
}

// GetVariables returns the closest variable set or *NotFoundError.
func GetVariables(obj SceneObject) (*SceneVariableSet, error) {
	set, ok := closest(obj, SlotVariables, func(o SceneObject) (*SceneVariableSet, bool) {
		typed, ok := o.(*SceneVariableSet)
		return typed, ok
	})
	if !ok {
		return nil, &NotFoundError{What: "variable set", From: obj.Base().Key()}
	}
	return set, nil
}

// GetData returns the closest data provider or *NotFoundError.
func GetData(obj SceneObject) (DataProviderLike, error) {
	data, ok := closest(obj, SlotData, func(o SceneObject) (DataProviderLike, bool) {
		typed, ok := o.(DataProviderLike)
		return typed, ok
	})
	if !ok {
		return nil, &NotFoundError{What: "data provider", From: obj.Base().Key()}
	}
	return data, nil
}

// GetLayout returns obj or its closest ancestor tagged CapLayout.
func GetLayout(obj SceneObject) (SceneObject, error) {
	for current := obj; current != nil; current = current.Base().Parent() {
		if current.Base().Has(CapLayout) {
			return current, nil
		}
	}
	return nil, &NotFoundError{What: "layout", From: obj.Base().Key()}
}

// GetTimeZone returns the time zone of the closest time range, falling back to
// the configured default.
func GetTimeZone(obj SceneObject) string {
	tr, err := GetTimeRange(obj)
	if err != nil {
		return DefaultTimeZone()
	}
	return tr.GetTimeZone()
}
