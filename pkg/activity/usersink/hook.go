// Package usersink forwards scene activity to a go-users ActivitySink.
package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-scenes/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts scene activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
	// Scope, when set, is recorded on every record as data["scene_scope"].
	Scope string
}

// Notify maps the event into an ActivityRecord and logs it on the sink.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if !normalized.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, toRecord(normalized, h.Scope))
}

func toRecord(event activity.Event, scope string) usertypes.ActivityRecord {
	data := map[string]any{}
	for key, value := range event.Metadata {
		data[key] = value
	}
	if scope = strings.TrimSpace(scope); scope != "" {
		data["scene_scope"] = scope
	}
	if len(data) == 0 {
		data = nil
	}
	return usertypes.ActivityRecord{
		ActorID:    parseUUID(event.ActorID),
		UserID:     parseUUID(event.UserID),
		TenantID:   parseUUID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	}
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
