package activity

import (
	"strings"
	"time"
)

// Verbs emitted by the scene runtime.
const (
	VerbSceneActivated   = "scene.activated"
	VerbSceneDeactivated = "scene.deactivated"
	VerbVariableChanged  = "scene.variable.changed"
	VerbVariableFailed   = "scene.variable.failed"
)

// Object types used on scene events.
const (
	ObjectTypeScene    = "scene"
	ObjectTypeVariable = "scene.variable"
)

// LifecycleInput describes an activation or deactivation.
type LifecycleInput struct {
	Verb       string
	ActorID    string
	TenantID   string
	ObjectKey  string
	ObjectKind string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildLifecycleEvent constructs the event for a scene object lifecycle change.
func BuildLifecycleEvent(input LifecycleInput) Event {
	metadata := cloneMap(input.Metadata)
	if kind := strings.TrimSpace(input.ObjectKind); kind != "" {
		metadata = ensureMetadata(metadata)
		metadata["kind"] = kind
	}
	objectID := strings.TrimSpace(input.ObjectKey)
	if objectID == "" {
		objectID = ObjectTypeScene
	}
	return Event{
		Verb:       strings.TrimSpace(input.Verb),
		ActorID:    strings.TrimSpace(input.ActorID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeScene,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

// VariableInput describes a variable value change or load failure.
type VariableInput struct {
	ActorID      string
	TenantID     string
	VariableKey  string
	VariableName string
	VariableType string
	SetKey       string
	OldValue     any
	NewValue     any
	Err          error
	Channel      string
	OccurredAt   time.Time
}

// BuildVariableChangedEvent constructs the event for a variable value change.
func BuildVariableChangedEvent(input VariableInput) Event {
	return buildVariableEvent(VerbVariableChanged, input)
}

// BuildVariableFailedEvent constructs the event for a failed variable update.
func BuildVariableFailedEvent(input VariableInput) Event {
	return buildVariableEvent(VerbVariableFailed, input)
}

func buildVariableEvent(verb string, input VariableInput) Event {
	metadata := map[string]any{}
	if input.VariableName != "" {
		metadata["name"] = input.VariableName
	}
	if input.VariableType != "" {
		metadata["type"] = input.VariableType
	}
	if input.SetKey != "" {
		metadata["set"] = input.SetKey
	}
	if input.OldValue != nil {
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata["new_value"] = input.NewValue
	}
	if input.Err != nil {
		metadata["error"] = input.Err.Error()
	}

	objectID := strings.TrimSpace(input.VariableKey)
	if objectID == "" {
		objectID = strings.TrimSpace(input.VariableName)
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeVariable,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   cloneMap(metadata),
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
