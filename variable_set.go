package scenes

import (
	"context"

	"github.com/goliatone/go-scenes/pkg/activity"
)

// KindVariableSet is the kind of SceneVariableSet objects.
const KindVariableSet = "SceneVariableSet"

// SlotVariableList is the slot holding a set's variables.
const SlotVariableList = "variables"

// SceneVariableSet owns an ordered list of variables and keeps them up to
// date: on activation every updatable variable is validated in dependency
// order, and a value change re-validates the variables that reference it and
// notifies every dependent object below the set's owner.
type SceneVariableSet struct {
	*Object

	queue    []Variable
	updating map[string]bool
	changed  map[string]bool
	batching bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewSceneVariableSet creates a set holding variables.
func NewSceneVariableSet(variables []Variable, opts ...ObjectOption) *SceneVariableSet {
	s := &SceneVariableSet{
		updating: map[string]bool{},
		changed:  map[string]bool{},
	}
	list := append([]Variable(nil), variables...)
	s.Object = Init(s, KindVariableSet, State{SlotVariableList: list},
		append([]ObjectOption{WithCapabilities(CapVariableSet), WithSlots(SlotVariableList)}, opts...)...)
	s.AddActivationHandler(s.onActivate)
	return s
}

// Variables returns the variables in declared order.
func (s *SceneVariableSet) Variables() []Variable {
	list, _ := s.Get(SlotVariableList).([]Variable)
	return list
}

// ByName returns the variable called name or nil.
func (s *SceneVariableSet) ByName(name string) Variable {
	for _, v := range s.Variables() {
		if v.Name() == name {
			return v
		}
	}
	return nil
}

// SetVariables replaces the variable list. New variables are validated when
// the set is active.
func (s *SceneVariableSet) SetVariables(variables []Variable) {
	s.SetState(State{SlotVariableList: append([]Variable(nil), variables...)})
}

func (s *SceneVariableSet) onActivate() (Deactivate, error) {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.Track(s.SubscribeToEvent(EventVariableValueChanged, s.onValueChangedEvent))
	s.Track(s.SubscribeToState(s.onStateChanged))

	if tr, err := GetTimeRange(s); err == nil {
		s.Track(tr.Base().SubscribeToState(func(next, prev State) {
			if !sameValue(next["value"], prev["value"]) {
				s.refreshTimeRangeVariables()
			}
		}))
	}

	for _, v := range s.Variables() {
		if _, ok := v.(Updatable); ok {
			s.enqueue(v)
		}
	}
	s.updateNextBatch()

	return func() {
		s.cancel()
		s.queue = nil
		s.updating = map[string]bool{}
		s.changed = map[string]bool{}
	}, nil
}

func (s *SceneVariableSet) onStateChanged(next, prev State) {
	nextList, _ := next[SlotVariableList].([]Variable)
	prevList, _ := prev[SlotVariableList].([]Variable)
	if sameValue(nextList, prevList) {
		return
	}
	for _, v := range nextList {
		if containsVariable(prevList, v) {
			continue
		}
		if _, ok := v.(Updatable); ok {
			s.enqueue(v)
		}
	}
	s.updateNextBatch()
}

func (s *SceneVariableSet) refreshTimeRangeVariables() {
	for _, v := range s.Variables() {
		if r, ok := v.(TimeRangeRefresher); ok && r.RefreshOnTimeRangeChange() {
			s.enqueue(v)
		}
	}
	s.updateNextBatch()
}

func (s *SceneVariableSet) enqueue(v Variable) {
	if containsVariable(s.queue, v) {
		return
	}
	s.queue = append(s.queue, v)
}

func (s *SceneVariableSet) dequeue(v Variable) {
	for i, queued := range s.queue {
		if queued.Base() == v.Base() {
			s.queue = append(s.queue[:i:i], s.queue[i+1:]...)
			return
		}
	}
}

// updateNextBatch validates queued variables whose dependencies in this set
// are settled. Re-entrant calls only extend the queue; the outer loop drains
// it. A dependency cycle is broken by updating the remaining variables in
// declared order.
func (s *SceneVariableSet) updateNextBatch() {
	if s.batching || !s.IsActive() {
		return
	}
	s.batching = true
	defer func() { s.batching = false }()

	for len(s.queue) > 0 {
		next := s.nextReady()
		if next == nil {
			s.warn("variable dependency cycle, forcing update", map[string]any{"variables": variableNames(s.queue)})
			next = s.queue[0]
		}
		s.dequeue(next)
		s.runUpdate(next)
	}
}

func (s *SceneVariableSet) nextReady() Variable {
	for _, v := range s.queue {
		if !s.waitsOnSibling(v) {
			return v
		}
	}
	return nil
}

// waitsOnSibling reports whether v references another variable of the set
// that is queued or updating. Self references never block.
func (s *SceneVariableSet) waitsOnSibling(v Variable) bool {
	dep := v.Base().VariableDependency()
	if dep == nil {
		return false
	}
	for _, name := range dep.Names() {
		if name == v.Name() {
			continue
		}
		if s.updating[name] {
			return true
		}
		for _, queued := range s.queue {
			if queued.Name() == name && queued.Base() != v.Base() {
				return true
			}
		}
	}
	return false
}

func (s *SceneVariableSet) runUpdate(v Variable) {
	updatable, ok := v.(Updatable)
	if !ok {
		return
	}
	name := v.Name()
	s.updating[name] = true
	delete(s.changed, name)

	err := updatable.ValidateAndUpdate(s.ctx)

	delete(s.updating, name)
	changed := s.changed[name]
	delete(s.changed, name)

	if err != nil {
		s.logError("variable update failed", err, map[string]any{"variable": name})
		s.emitVariableActivity(v, nil, err)
	}
	if !changed {
		s.notifyDependentObjects(v, false)
	}
}

func (s *SceneVariableSet) onValueChangedEvent(event Event) {
	v, ok := event.Payload.(Variable)
	if !ok || v.Base().Parent() == nil || v.Base().Parent().Base() != s.Object {
		return
	}
	name := v.Name()
	if s.updating[name] {
		s.changed[name] = true
	}

	for _, other := range s.Variables() {
		if other.Base() == v.Base() {
			continue
		}
		dep := other.Base().VariableDependency()
		if dep == nil || !dep.HasDependencyOn(name) {
			continue
		}
		if _, ok := other.(Updatable); ok {
			s.enqueue(other)
		}
	}

	s.notifyDependentObjects(v, true)
	s.emitVariableActivity(v, v.Value(), nil)
	s.updateNextBatch()
}

// notifyDependentObjects walks the active objects below the set's owner. A
// subtree whose own set declares the same variable name shadows it.
func (s *SceneVariableSet) notifyDependentObjects(v Variable, changed bool) {
	root := s.Parent()
	if root == nil {
		return
	}
	s.traverseAndNotify(root, v, changed)
}

func (s *SceneVariableSet) traverseAndNotify(obj SceneObject, v Variable, changed bool) {
	base := obj.Base()
	if base == s.Object || !base.IsActive() {
		return
	}
	if other, ok := base.slotObject(SlotVariables); ok && other.Base() != s.Object {
		if set, ok := other.(*SceneVariableSet); ok && set.ByName(v.Name()) != nil {
			return
		}
	}
	if dep := base.VariableDependency(); dep != nil {
		dep.VariableUpdateCompleted(v, changed)
	}
	base.ForEachChild(func(child SceneObject) bool {
		s.traverseAndNotify(child, v, changed)
		return true
	})
}

// IsVariableLoadingOrWaitingToUpdate reports whether v, or a variable it
// depends on, is queued, updating or loading.
func (s *SceneVariableSet) IsVariableLoadingOrWaitingToUpdate(v Variable) bool {
	return s.isLoadingOrWaiting(v, map[string]bool{})
}

func (s *SceneVariableSet) isLoadingOrWaiting(v Variable, visited map[string]bool) bool {
	if local, ok := v.(*LocalValueVariable); ok {
		return local.ancestorLoading(visited)
	}
	if s.updating[v.Name()] || containsVariable(s.queue, v) {
		return true
	}
	if v.LoadingState() == LoadingStateLoading {
		return true
	}
	return hasDependencyInLoadingState(v, visited)
}

func (s *SceneVariableSet) emitVariableActivity(v Variable, value any, err error) {
	emitter := s.activityEmitter()
	if !emitter.Enabled() {
		return
	}
	input := activity.VariableInput{
		VariableKey:  v.Base().Key(),
		VariableName: v.Name(),
		VariableType: string(v.Type()),
		SetKey:       s.Key(),
		NewValue:     value,
		Err:          err,
		OccurredAt:   s.Now(),
	}
	event := activity.BuildVariableChangedEvent(input)
	if err != nil {
		event = activity.BuildVariableFailedEvent(input)
	}
	if emitErr := emitter.Emit(context.Background(), event); emitErr != nil {
		s.warn("activity emit failed", map[string]any{"error": emitErr.Error()})
	}
}

func containsVariable(list []Variable, v Variable) bool {
	for _, item := range list {
		if item.Base() == v.Base() {
			return true
		}
	}
	return false
}

func variableNames(list []Variable) []string {
	names := make([]string, 0, len(list))
	for _, v := range list {
		names = append(names, v.Name())
	}
	return names
}
