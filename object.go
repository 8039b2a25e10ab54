package scenes

import (
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-scenes/pkg/activity"
)

// State is an immutable snapshot of a scene object's fields. Snapshots returned
// by State must be treated as read-only; use SetState to change them.
type State map[string]any

// Capability tags the roles a scene object fulfils so traversal can select
// nodes without inspecting concrete types.
type Capability string

const (
	CapTimeRange   Capability = "time-range"
	CapVariableSet Capability = "variable-set"
	CapVariable    Capability = "variable"
	CapData        Capability = "data"
	CapDataLayer   Capability = "data-layer"
	CapLayout      Capability = "layout"
	CapBehavior    Capability = "behavior"
)

// Reserved slot names present on every object.
const (
	SlotTimeRange = "$timeRange"
	SlotVariables = "$variables"
	SlotData      = "$data"
	SlotBehaviors = "$behaviors"
)

var reservedSlots = []string{SlotTimeRange, SlotVariables, SlotData, SlotBehaviors}

// Built-in event types.
const (
	EventStateChanged         = "scene-object-state-changed"
	EventVariableValueChanged = "scene-variable-value-changed"
)

// SceneObject is implemented by every node of a scene tree. Concrete types embed
// *Object, which provides the implementation of Base.
type SceneObject interface {
	Base() *Object
}

// Unsubscribe removes a previously registered handler.
type Unsubscribe func()

// StateHandler receives the new and previous snapshots after every SetState.
type StateHandler func(newState, prevState State)

// Event travels over the object event bus.
type Event struct {
	Type    string
	Payload any
	Origin  SceneObject
}

// EventHandler consumes events published on an object.
type EventHandler func(Event)

// StateChange is the payload of EventStateChanged.
type StateChange struct {
	New  State
	Prev State
}

type stateSubscriber struct {
	id      int
	fn      StateHandler
	removed bool
}

type eventSubscriber struct {
	id      int
	fn      EventHandler
	removed bool
}

type childActivation struct {
	obj        *Object
	deactivate Deactivate
}

// Object is the base of every scene node.
type Object struct {
	mu sync.RWMutex

	self   SceneObject
	key    string
	kind   string
	caps   map[Capability]struct{}
	slots  []string
	state  State
	parent SceneObject

	active     bool
	generation int

	nextID      int
	subscribers []*stateSubscriber
	eventSubs   map[string][]*eventSubscriber

	activationHandlers []ActivationHandler
	cleanups           []Deactivate
	tracked            []Unsubscribe
	children           []childActivation

	dependency *VariableDependencyConfig
	logger     Logger
	clock      func() time.Time
	evaluator  Evaluator
	activity   *activity.Emitter
}

// ObjectOption configures an Object at construction.
type ObjectOption func(*objectConfig)

type objectConfig struct {
	key          string
	slots        []string
	capabilities []Capability
	logger       Logger
	clock        func() time.Time
	evaluator    Evaluator
	activity     *activity.Emitter
	dependency   *DependencyOptions
	handlers     []ActivationHandler
}

// WithKey sets the object key. Keys are generated when omitted.
func WithKey(key string) ObjectOption {
	return func(cfg *objectConfig) {
		cfg.key = key
	}
}

// WithSlots declares the state fields that hold child objects.
func WithSlots(names ...string) ObjectOption {
	return func(cfg *objectConfig) {
		cfg.slots = append(cfg.slots, names...)
	}
}

// WithCapabilities tags the object with additional capabilities.
func WithCapabilities(caps ...Capability) ObjectOption {
	return func(cfg *objectConfig) {
		cfg.capabilities = append(cfg.capabilities, caps...)
	}
}

// WithLogger attaches a logger inherited by every descendant that has none.
func WithLogger(logger Logger) ObjectOption {
	return func(cfg *objectConfig) {
		cfg.logger = logger
	}
}

// WithClock overrides the time source for the object and its descendants.
func WithClock(now func() time.Time) ObjectOption {
	return func(cfg *objectConfig) {
		cfg.clock = now
	}
}

// WithEvaluator sets the query evaluator for query variables in the subtree.
func WithEvaluator(evaluator Evaluator) ObjectOption {
	return func(cfg *objectConfig) {
		cfg.evaluator = evaluator
	}
}

// WithActivity routes lifecycle and variable activity of the subtree to emitter.
func WithActivity(emitter *activity.Emitter) ObjectOption {
	return func(cfg *objectConfig) {
		cfg.activity = emitter
	}
}

// WithVariableDependency declares which state fields may contain variable
// references.
func WithVariableDependency(opts DependencyOptions) ObjectOption {
	return func(cfg *objectConfig) {
		cfg.dependency = &opts
	}
}

// WithActivationHandler registers handler before the object is returned.
func WithActivationHandler(handler ActivationHandler) ObjectOption {
	return func(cfg *objectConfig) {
		if handler != nil {
			cfg.handlers = append(cfg.handlers, handler)
		}
	}
}

// New creates a plain scene object of the given kind.
func New(kind string, state State, opts ...ObjectOption) *Object {
	o := &Object{}
	o.init(o, kind, state, opts)
	return o
}

// Init prepares the base of a concrete scene object. self must be the value that
// embeds the returned *Object so traversal hands back the concrete type.
func Init(self SceneObject, kind string, state State, opts ...ObjectOption) *Object {
	o := &Object{}
	o.init(self, kind, state, opts)
	return o
}

func (o *Object) init(self SceneObject, kind string, state State, opts []ObjectOption) {
	cfg := objectConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	o.self = self
	o.kind = kind
	o.key = cfg.key
	if o.key == "" {
		if key, ok := state["key"].(string); ok && key != "" {
			o.key = key
		} else {
			o.key = uuid.NewString()
		}
	}

	o.caps = make(map[Capability]struct{}, len(cfg.capabilities))
	for _, c := range cfg.capabilities {
		o.caps[c] = struct{}{}
	}

	o.slots = append([]string(nil), reservedSlots...)
	for _, name := range cfg.slots {
		if !containsString(o.slots, name) {
			o.slots = append(o.slots, name)
		}
	}

	o.state = make(State, len(state))
	for k, v := range state {
		o.state[k] = v
	}

	o.logger = cfg.logger
	o.clock = cfg.clock
	o.evaluator = cfg.evaluator
	o.activity = cfg.activity
	o.activationHandlers = cfg.handlers
	if cfg.dependency != nil {
		o.dependency = newVariableDependencyConfig(o, *cfg.dependency)
	}

	o.ForEachChild(func(child SceneObject) bool {
		o.adopt(child)
		return true
	})
}

// Base returns o. Embedding types inherit it to satisfy SceneObject.
func (o *Object) Base() *Object {
	return o
}

// Self returns the concrete object embedding o.
func (o *Object) Self() SceneObject {
	if o.self == nil {
		return o
	}
	return o.self
}

// Key returns the stable identifier of the object.
func (o *Object) Key() string {
	return o.key
}

// Kind returns the type tag of the object.
func (o *Object) Kind() string {
	return o.kind
}

// Has reports whether the object carries capability.
func (o *Object) Has(capability Capability) bool {
	_, ok := o.caps[capability]
	return ok
}

// Capabilities returns the capability tags sorted by name.
func (o *Object) Capabilities() []Capability {
	out := make([]Capability, 0, len(o.caps))
	for c := range o.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Slots returns the slot names in traversal order.
func (o *Object) Slots() []string {
	return append([]string(nil), o.slots...)
}

// Parent returns the owning object or nil for a root.
func (o *Object) Parent() SceneObject {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.parent
}

// IsActive reports whether the object is currently activated.
func (o *Object) IsActive() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.active
}

// State returns the current snapshot.
func (o *Object) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Get returns a single state field.
func (o *Object) Get(field string) any {
	return o.State()[field]
}

// VariableDependency returns the object's dependency declaration, if any.
func (o *Object) VariableDependency() *VariableDependencyConfig {
	return o.dependency
}

// SetState merges partial into a new snapshot, assigns parents for slot children,
// reconciles activation of replaced children and notifies subscribers.
func (o *Object) SetState(partial State) {
	o.mu.Lock()
	prev := o.state
	next := make(State, len(prev)+len(partial))
	for k, v := range prev {
		next[k] = v
	}
	for k, v := range partial {
		next[k] = v
	}
	o.state = next
	active := o.active
	subs := append([]*stateSubscriber(nil), o.subscribers...)
	o.mu.Unlock()

	for _, slot := range o.slots {
		value, ok := partial[slot]
		if !ok {
			continue
		}
		eachObject(value, func(child SceneObject) bool {
			o.adopt(child)
			return true
		})
	}

	if active {
		o.reconcileChildren(prev, next)
	}

	for _, sub := range subs {
		if !sub.removed {
			sub.fn(next, prev)
		}
	}

	o.PublishEvent(Event{Type: EventStateChanged, Payload: StateChange{New: next, Prev: prev}}, true)
}

// ForceRender publishes the current fields as a new snapshot.
func (o *Object) ForceRender() {
	o.SetState(State{})
}

// SubscribeToState registers fn for every subsequent SetState.
func (o *Object) SubscribeToState(fn StateHandler) Unsubscribe {
	if fn == nil {
		return func() {}
	}
	o.mu.Lock()
	o.nextID++
	sub := &stateSubscriber{id: o.nextID, fn: fn}
	o.subscribers = append(o.subscribers, sub)
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		sub.removed = true
		for i, s := range o.subscribers {
			if s.id == sub.id {
				o.subscribers = append(o.subscribers[:i:i], o.subscribers[i+1:]...)
				return
			}
		}
	}
}

// SubscribeToEvent registers fn for events of eventType delivered to o.
func (o *Object) SubscribeToEvent(eventType string, fn EventHandler) Unsubscribe {
	if fn == nil {
		return func() {}
	}
	o.mu.Lock()
	if o.eventSubs == nil {
		o.eventSubs = make(map[string][]*eventSubscriber)
	}
	o.nextID++
	sub := &eventSubscriber{id: o.nextID, fn: fn}
	o.eventSubs[eventType] = append(o.eventSubs[eventType], sub)
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		sub.removed = true
		list := o.eventSubs[eventType]
		for i, s := range list {
			if s.id == sub.id {
				o.eventSubs[eventType] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// PublishEvent delivers event to local subscribers and, when bubble is set, to
// every ancestor in turn.
func (o *Object) PublishEvent(event Event, bubble bool) {
	if event.Origin == nil {
		event.Origin = o.Self()
	}
	for current := SceneObject(o); current != nil; current = current.Base().Parent() {
		current.Base().deliver(event)
		if !bubble {
			return
		}
	}
}

func (o *Object) deliver(event Event) {
	o.mu.RLock()
	subs := append([]*eventSubscriber(nil), o.eventSubs[event.Type]...)
	o.mu.RUnlock()
	for _, sub := range subs {
		if !sub.removed {
			sub.fn(event)
		}
	}
}

// ForEachChild visits the objects held in the slots in declared order until fn
// returns false.
func (o *Object) ForEachChild(fn func(SceneObject) bool) {
	state := o.State()
	for _, slot := range o.slots {
		value, ok := state[slot]
		if !ok {
			continue
		}
		if !eachObject(value, fn) {
			return
		}
	}
}

// slotObject returns the single object held in slot.
func (o *Object) slotObject(slot string) (SceneObject, bool) {
	obj, ok := o.State()[slot].(SceneObject)
	if !ok || isNilObject(obj) {
		return nil, false
	}
	return obj, true
}

func (o *Object) adopt(child SceneObject) {
	base := child.Base()
	if base == o {
		return
	}
	base.mu.Lock()
	prev := base.parent
	base.parent = o.Self()
	base.mu.Unlock()

	if prev != nil && prev.Base() != o {
		o.warn("object re-parented", map[string]any{
			"child":      base.Key(),
			"prevParent": prev.Base().Key(),
		})
	}
}

// Logger resolves the closest logger on o or its ancestors.
func (o *Object) Logger() Logger {
	if l, ok := inherited(o, func(b *Object) (Logger, bool) { return b.logger, b.logger != nil }); ok {
		return l
	}
	return processLogger()
}

// Now returns the current time from the closest clock.
func (o *Object) Now() time.Time {
	if clock, ok := inherited(o, func(b *Object) (func() time.Time, bool) { return b.clock, b.clock != nil }); ok {
		return clock()
	}
	return time.Now()
}

func (o *Object) activityEmitter() *activity.Emitter {
	emitter, _ := inherited(o, func(b *Object) (*activity.Emitter, bool) { return b.activity, b.activity != nil })
	return emitter
}

func (o *Object) closestEvaluator() Evaluator {
	evaluator, _ := inherited(o, func(b *Object) (Evaluator, bool) { return b.evaluator, b.evaluator != nil })
	return evaluator
}

func inherited[T any](o *Object, pick func(*Object) (T, bool)) (T, bool) {
	for current := SceneObject(o); current != nil; current = current.Base().Parent() {
		if value, ok := pick(current.Base()); ok {
			return value, true
		}
	}
	var zero T
	return zero, false
}

// eachObject visits the scene objects contained in value: a single object, a
// slice of objects or a slice of values some of which are objects.
func eachObject(value any, fn func(SceneObject) bool) bool {
	switch v := value.(type) {
	case nil:
		return true
	case SceneObject:
		if isNilObject(v) {
			return true
		}
		return fn(v)
	case []SceneObject:
		for _, child := range v {
			if child != nil && !isNilObject(child) && !fn(child) {
				return false
			}
		}
		return true
	case []any:
		for _, child := range v {
			if obj, ok := child.(SceneObject); ok && !isNilObject(obj) && !fn(obj) {
				return false
			}
		}
		return true
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return true
	}
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i)
		if !elem.CanInterface() {
			continue
		}
		if obj, ok := elem.Interface().(SceneObject); ok && !isNilObject(obj) && !fn(obj) {
			return false
		}
	}
	return true
}

func isNilObject(obj SceneObject) bool {
	if obj == nil {
		return true
	}
	rv := reflect.ValueOf(obj)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func collectObjects(value any) []*Object {
	var out []*Object
	eachObject(value, func(child SceneObject) bool {
		out = append(out, child.Base())
		return true
	})
	return out
}

// sameValue reports identity equality: pointer identity for reference kinds and
// == for comparable values.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Slice:
		return ra.Len() == rb.Len() && (ra.Len() == 0 || ra.Pointer() == rb.Pointer())
	case reflect.Map, reflect.Func, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	}
	if ra.Type().Comparable() {
		return a == b
	}
	return false
}

func containsString(values []string, needle string) bool {
	for _, v := range values {
		if v == needle {
			return true
		}
	}
	return false
}
