package scenes

// LookupVariable resolves name from scope. Local shadow values visible from
// scope win over regular variables; otherwise the nearest set holding name is
// used. It returns nil when no variable matches.
func LookupVariable(name string, scope SceneObject) Variable {
	if scope == nil || name == "" {
		return nil
	}
	if local := lookupLocal(name, scope); local != nil {
		return local
	}
	return lookupInSets(name, scope)
}

func lookupLocal(name string, scope SceneObject) Variable {
	for current := scope; current != nil; current = current.Base().Parent() {
		set, ok := current.Base().slotObject(SlotVariables)
		if !ok {
			continue
		}
		variableSet, ok := set.(*SceneVariableSet)
		if !ok {
			continue
		}
		if v := variableSet.ByName(name); v != nil && v.Type() == TypeLocal {
			return v
		}
	}
	return nil
}

func lookupInSets(name string, scope SceneObject) Variable {
	for current := scope; current != nil; current = current.Base().Parent() {
		set, ok := current.Base().slotObject(SlotVariables)
		if !ok {
			continue
		}
		if variableSet, ok := set.(*SceneVariableSet); ok {
			if v := variableSet.ByName(name); v != nil {
				return v
			}
		}
	}
	return nil
}

// visibleVariables returns every variable visible from scope, closest first,
// without duplicates by name.
func visibleVariables(scope SceneObject) []Variable {
	seen := map[string]bool{}
	var out []Variable
	for current := scope; current != nil; current = current.Base().Parent() {
		set, ok := current.Base().slotObject(SlotVariables)
		if !ok {
			continue
		}
		variableSet, ok := set.(*SceneVariableSet)
		if !ok {
			continue
		}
		for _, v := range variableSet.Variables() {
			if seen[v.Name()] {
				continue
			}
			seen[v.Name()] = true
			out = append(out, v)
		}
	}
	return out
}

// HasVariableDependencyInLoadingState reports whether any variable obj
// references, directly or transitively, is loading or waiting to update. A
// variable referencing itself is reported with a warning and ignored.
func HasVariableDependencyInLoadingState(obj SceneObject) bool {
	return hasDependencyInLoadingState(obj, map[string]bool{})
}

func hasDependencyInLoadingState(obj SceneObject, visited map[string]bool) bool {
	dep := obj.Base().VariableDependency()
	if dep == nil {
		return false
	}

	selfName := ""
	if v, ok := obj.(Variable); ok {
		selfName = v.Name()
	}

	for _, name := range dep.Names() {
		if name == selfName {
			obj.Base().warn("variable references itself", map[string]any{"variable": name})
			continue
		}
		if visited[name] {
			continue
		}
		visited[name] = true

		v := LookupVariable(name, obj)
		if v == nil {
			continue
		}
		set, ok := v.Base().Parent().(*SceneVariableSet)
		if !ok {
			if v.LoadingState() == LoadingStateLoading {
				return true
			}
			continue
		}
		if set.isLoadingOrWaiting(v, visited) {
			return true
		}
	}
	return false
}
