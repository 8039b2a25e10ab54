package scenes

import (
	"context"

	"github.com/goliatone/go-scenes/pkg/activity"
)

// Deactivate undoes an activation or releases a handler's resources.
type Deactivate func()

// ActivationHandler runs when an object becomes active. The returned cleanup,
// when non-nil, runs on deactivation in reverse registration order.
type ActivationHandler func() (Deactivate, error)

// BehaviorFunc is a function stored in the $behaviors slot. It runs on
// activation of the owning object after the activation handlers.
type BehaviorFunc func(owner SceneObject) (Deactivate, error)

// AddActivationHandler registers handler for future activations.
func (o *Object) AddActivationHandler(handler ActivationHandler) {
	if handler == nil {
		return
	}
	o.mu.Lock()
	o.activationHandlers = append(o.activationHandlers, handler)
	o.mu.Unlock()
}

// Track ties unsub to the current activation. It runs on deactivation.
func (o *Object) Track(unsub Unsubscribe) {
	if unsub == nil {
		return
	}
	o.mu.Lock()
	o.tracked = append(o.tracked, unsub)
	o.mu.Unlock()
}

// Activate marks the object active, runs its activation handlers and activates
// the objects in its slots. Activating an active object is a no-op. If a handler
// fails the partial activation is rolled back and an *ActivationError returned.
func (o *Object) Activate() (Deactivate, error) {
	o.mu.Lock()
	if o.active {
		o.mu.Unlock()
		return func() {}, nil
	}
	o.active = true
	o.generation++
	generation := o.generation
	handlers := append([]ActivationHandler(nil), o.activationHandlers...)
	o.mu.Unlock()

	var cleanups []Deactivate
	fail := func(err error) (Deactivate, error) {
		o.rollback(cleanups)
		o.logError("activation failed", err, nil)
		return nil, &ActivationError{Key: o.Key(), Kind: o.Kind(), Err: err}
	}

	for _, handler := range handlers {
		cleanup, err := handler()
		if err != nil {
			return fail(err)
		}
		if cleanup != nil {
			cleanups = append(cleanups, cleanup)
		}
	}

	if behaviors, ok := o.State()[SlotBehaviors].([]any); ok {
		for _, behavior := range behaviors {
			fn, ok := behavior.(BehaviorFunc)
			if !ok {
				if plain, isPlain := behavior.(func(SceneObject) (Deactivate, error)); isPlain {
					fn = plain
				} else {
					continue
				}
			}
			cleanup, err := fn(o.Self())
			if err != nil {
				return fail(err)
			}
			if cleanup != nil {
				cleanups = append(cleanups, cleanup)
			}
		}
	}

	o.mu.Lock()
	o.cleanups = cleanups
	o.mu.Unlock()
	cleanups = nil

	var activateErr error
	o.ForEachChild(func(child SceneObject) bool {
		if err := o.activateChild(child.Base()); err != nil {
			activateErr = err
			return false
		}
		return true
	})
	if activateErr != nil {
		o.mu.Lock()
		cleanups = o.cleanups
		o.cleanups = nil
		o.mu.Unlock()
		return fail(activateErr)
	}

	o.emitLifecycle(activity.VerbSceneActivated)
	return func() { o.deactivate(generation) }, nil
}

// Deactivate deactivates the object regardless of which activation produced it.
func (o *Object) Deactivate() {
	o.mu.RLock()
	generation := o.generation
	o.mu.RUnlock()
	o.deactivate(generation)
}

func (o *Object) deactivate(generation int) {
	o.mu.Lock()
	if !o.active || o.generation != generation {
		o.mu.Unlock()
		return
	}
	cleanups := o.cleanups
	children := o.children
	tracked := o.tracked
	o.cleanups, o.children, o.tracked = nil, nil, nil
	o.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	for i := len(children) - 1; i >= 0; i-- {
		children[i].deactivate()
	}
	for _, unsub := range tracked {
		unsub()
	}

	o.mu.Lock()
	o.active = false
	o.mu.Unlock()

	o.emitLifecycle(activity.VerbSceneDeactivated)
}

// rollback undoes a partially completed activation.
func (o *Object) rollback(cleanups []Deactivate) {
	o.mu.Lock()
	children := o.children
	tracked := o.tracked
	o.children, o.tracked = nil, nil
	o.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	for i := len(children) - 1; i >= 0; i-- {
		children[i].deactivate()
	}
	for _, unsub := range tracked {
		unsub()
	}

	o.mu.Lock()
	o.active = false
	o.mu.Unlock()
}

// activateChild activates child on behalf of o unless something else already
// activated it.
func (o *Object) activateChild(child *Object) error {
	if child.IsActive() {
		return nil
	}
	deactivate, err := child.Activate()
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.children = append(o.children, childActivation{obj: child, deactivate: deactivate})
	o.mu.Unlock()
	return nil
}

func (o *Object) deactivateChild(child *Object) {
	o.mu.Lock()
	var found *childActivation
	for i := range o.children {
		if o.children[i].obj == child {
			entry := o.children[i]
			found = &entry
			o.children = append(o.children[:i:i], o.children[i+1:]...)
			break
		}
	}
	o.mu.Unlock()
	if found != nil {
		found.deactivate()
	}
}

// reconcileChildren deactivates slot children removed by a state change and
// activates the ones that were added.
func (o *Object) reconcileChildren(prev, next State) {
	for _, slot := range o.slots {
		before, after := prev[slot], next[slot]
		if sameValue(before, after) {
			continue
		}
		prevObjs := collectObjects(before)
		nextObjs := collectObjects(after)

		for _, old := range prevObjs {
			if !containsObject(nextObjs, old) {
				o.deactivateChild(old)
			}
		}
		for _, added := range nextObjs {
			if containsObject(prevObjs, added) {
				continue
			}
			if err := o.activateChild(added); err != nil {
				o.logError("slot child activation failed", err, map[string]any{"slot": slot})
			}
		}
	}
}

func containsObject(list []*Object, target *Object) bool {
	for _, obj := range list {
		if obj == target {
			return true
		}
	}
	return false
}

func (o *Object) emitLifecycle(verb string) {
	emitter := o.activityEmitter()
	if !emitter.Enabled() {
		return
	}
	event := activity.BuildLifecycleEvent(activity.LifecycleInput{
		Verb:       verb,
		ObjectKey:  o.Key(),
		ObjectKind: o.Kind(),
		OccurredAt: o.Now(),
	})
	if err := emitter.Emit(context.Background(), event); err != nil {
		o.warn("activity emit failed", map[string]any{"verb": verb, "error": err.Error()})
	}
}
