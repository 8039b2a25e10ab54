package scenes

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/goliatone/go-scenes/pkg/activity"
)

// recordingVariable logs every update and optionally moves to next.
type recordingVariable struct {
	VariableBase
	log  *[]string
	next string
	err  error
}

func newRecordingVariable(name string, log *[]string, deps ...string) *recordingVariable {
	v := &recordingVariable{log: log}
	initVariable(v, &v.VariableBase, TypeCustom, State{KeyName: name, KeyValue: ""},
		[]ObjectOption{WithVariableDependency(DependencyOptions{Names: deps})})
	return v
}

func (v *recordingVariable) Value() any        { return v.Get(KeyValue) }
func (v *recordingVariable) ValueText() string { return stringify(v.Value()) }

func (v *recordingVariable) ValidateAndUpdate(context.Context) error {
	*v.log = append(*v.log, v.Name())
	if v.err != nil {
		v.SetState(State{KeyLoadingState: LoadingStateError})
		return v.err
	}
	if v.next != "" && v.ValueText() != v.next {
		v.SetState(State{KeyValue: v.next})
		publishValueChanged(v)
	}
	v.SetState(State{KeyLoadingState: LoadingStateDone})
	return nil
}

func TestVariableSetUpdatesInDependencyOrder(t *testing.T) {
	var log []string
	a := newRecordingVariable("a", &log)
	a.next = "1"
	b := newRecordingVariable("b", &log, "a")
	c := newRecordingVariable("c", &log, "b")
	set := NewSceneVariableSet([]Variable{c, b, a})

	mustActivate(t, set)

	expected := []string{"a", "b", "c"}
	if !reflect.DeepEqual(log, expected) {
		t.Fatalf("expected %v, got %v", expected, log)
	}
}

func TestVariableSetRevalidatesDependentsOnChange(t *testing.T) {
	var log []string
	source := NewTextBoxVariable("source", "x")
	dependent := newRecordingVariable("dependent", &log, "source")
	set := NewSceneVariableSet([]Variable{source, dependent})
	deactivate := mustActivate(t, set)

	source.SetValue("y")
	source.SetValue("y")

	expected := []string{"dependent", "dependent"}
	if !reflect.DeepEqual(log, expected) {
		t.Fatalf("expected %v, got %v", expected, log)
	}

	deactivate()
	source.SetValue("z")
	if len(log) != 2 {
		t.Fatalf("expected no updates after deactivation, got %v", log)
	}
}

func TestVariableSetBreaksDependencyCycles(t *testing.T) {
	var log []string
	capture := &logCapture{}
	a := newRecordingVariable("a", &log, "b")
	b := newRecordingVariable("b", &log, "a")
	set := NewSceneVariableSet([]Variable{a, b}, WithLogger(capture.logger()))

	mustActivate(t, set)

	if !reflect.DeepEqual(log, []string{"a", "b"}) {
		t.Fatalf("expected declared order under a cycle, got %v", log)
	}
	if !capture.has(LogLevelWarn, "variable dependency cycle, forcing update") {
		t.Fatalf("expected cycle warning, got %v", capture.messages(LogLevelWarn))
	}
}

func TestVariableSetLogsFailedUpdates(t *testing.T) {
	var log []string
	capture := &logCapture{}
	activityCapture := &activity.CaptureHook{}
	emitter := activity.NewEmitter(activity.Hooks{activityCapture}, activity.Config{Enabled: true})
	broken := newRecordingVariable("broken", &log)
	broken.err = errors.New("datasource down")
	set := NewSceneVariableSet([]Variable{broken}, WithLogger(capture.logger()), WithActivity(emitter))

	mustActivate(t, set)

	if !capture.has(LogLevelError, "variable update failed") {
		t.Fatalf("expected error log, got %v", capture.messages(LogLevelError))
	}
	verbs := activityCapture.Verbs()
	if len(verbs) != 2 || verbs[0] != activity.VerbVariableFailed || verbs[1] != activity.VerbSceneActivated {
		t.Fatalf("expected failure then activation events, got %v", verbs)
	}
	if broken.LoadingState() != LoadingStateError {
		t.Fatalf("expected error state, got %s", broken.LoadingState())
	}
}

func TestCustomVariablesChainThroughSet(t *testing.T) {
	region := NewCustomVariable(State{KeyName: "region", KeyQuery: "eu,us"})
	host := NewCustomVariable(State{KeyName: "host", KeyQuery: "${region}-1,${region}-2"})
	set := NewSceneVariableSet([]Variable{host, region})
	mustActivate(t, set)

	if got := host.Value(); got != "eu-1" {
		t.Fatalf("expected eu-1, got %v", got)
	}

	region.ChangeValueTo("us")
	if got := host.Value(); got != "us-1" {
		t.Fatalf("expected us-1 after region change, got %v", got)
	}
	options := host.Options()
	if len(options) != 2 || options[1].Value != "us-2" {
		t.Fatalf("expected reloaded options, got %v", options)
	}
}

func TestDependentObjectsNotifiedAndShadowed(t *testing.T) {
	server := NewTextBoxVariable("server", "a")
	var notified []string
	panel := New("Panel", State{"title": "Server $server"}, WithVariableDependency(DependencyOptions{
		StatePaths: []string{"title"},
		OnReferencedVariableValueChanged: func(v Variable) {
			notified = append(notified, "panel:"+v.ValueText())
		},
	}))
	shadowed := New("Panel", State{"title": "$server"}, WithVariableDependency(DependencyOptions{
		OnReferencedVariableValueChanged: func(v Variable) {
			notified = append(notified, "shadowed:"+v.ValueText())
		},
	}))
	section := New("Section", State{
		SlotVariables: NewSceneVariableSet([]Variable{NewTextBoxVariable("server", "local")}),
		"body":        shadowed,
	}, WithSlots("body"))
	root := New("Root", State{
		SlotVariables: NewSceneVariableSet([]Variable{server}),
		"panels":      []SceneObject{panel, section},
	}, WithSlots("panels"))
	mustActivate(t, root)

	server.SetValue("b")

	expected := []string{"panel:b"}
	if !reflect.DeepEqual(notified, expected) {
		t.Fatalf("expected %v, got %v", expected, notified)
	}
}

func TestDependentObjectForceRendersByDefault(t *testing.T) {
	server := NewTextBoxVariable("server", "a")
	panel := New("Panel", State{"query": "up{instance=\"$server\"}"}, WithVariableDependency(DependencyOptions{}))
	root := New("Root", State{SlotVariables: NewSceneVariableSet([]Variable{server}), "body": panel}, WithSlots("body"))
	mustActivate(t, root)

	renders := 0
	panel.SubscribeToState(func(State, State) { renders++ })
	server.SetValue("b")
	if renders != 1 {
		t.Fatalf("expected one forced render, got %d", renders)
	}
}

func TestSetVariablesValidatesNewVariables(t *testing.T) {
	var log []string
	set := NewSceneVariableSet(nil)
	mustActivate(t, set)

	added := newRecordingVariable("added", &log)
	set.SetVariables([]Variable{added})

	if !reflect.DeepEqual(log, []string{"added"}) {
		t.Fatalf("expected added variable to update, got %v", log)
	}
	if set.ByName("added") == nil {
		t.Fatalf("expected lookup by name")
	}
}

func TestTimeRangeChangeRefreshesVariables(t *testing.T) {
	clock := fixedClock(mustTime(t, "2024-03-10T12:00:00Z"))
	interval := NewIntervalVariable("interval", State{KeyValue: AutoVariableValue, KeyAutoEnabled: true})
	tr := NewSceneTimeRange(State{"from": "now-1h", "to": "now", "timeZone": "utc"})
	root := New("Root", State{
		SlotTimeRange: tr,
		SlotVariables: NewSceneVariableSet([]Variable{interval}),
	}, WithClock(clock))
	mustActivate(t, root)

	before := interval.ValueText()
	published := 0
	root.SubscribeToEvent(EventVariableValueChanged, func(Event) { published++ })

	tr.OnTimeRangeChange(TimeRange{
		From: mustTime(t, "2024-03-01T00:00:00Z"),
		To:   mustTime(t, "2024-03-10T00:00:00Z"),
	})

	if published != 1 {
		t.Fatalf("expected interval re-announced once, got %d", published)
	}
	if after := interval.ValueText(); after == before {
		t.Fatalf("expected auto interval to follow the range, still %q", after)
	}
}

func TestIsVariableLoadingOrWaitingToUpdate(t *testing.T) {
	var log []string
	upstream := newRecordingVariable("upstream", &log)
	downstream := newRecordingVariable("downstream", &log, "upstream")
	set := NewSceneVariableSet([]Variable{upstream, downstream})

	upstream.SetState(State{KeyLoadingState: LoadingStateLoading})
	if !set.IsVariableLoadingOrWaitingToUpdate(downstream) {
		t.Fatalf("expected downstream waiting on loading upstream")
	}
	upstream.SetState(State{KeyLoadingState: LoadingStateDone})
	if set.IsVariableLoadingOrWaitingToUpdate(downstream) {
		t.Fatalf("expected downstream settled")
	}
}

func TestSelfReferenceIsWarnedAndIgnored(t *testing.T) {
	capture := &logCapture{}
	var log []string
	self := newRecordingVariable("self", &log, "self")
	self.Base().logger = capture.logger()

	if HasVariableDependencyInLoadingState(self) {
		t.Fatalf("expected self reference to be ignored")
	}
	if !capture.has(LogLevelWarn, "variable references itself") {
		t.Fatalf("expected self reference warning")
	}
}
