package scenes

import (
	"strconv"
	"time"
)

// KindTimeRange is the kind of SceneTimeRange objects.
const KindTimeRange = "SceneTimeRange"

// Default raw bounds of a new time range.
const (
	DefaultFrom = "now-6h"
	DefaultTo   = "now"
)

// RawTimeRange holds the bounds as typed by the user.
type RawTimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TimeRange is an evaluated range with its raw form.
type TimeRange struct {
	From time.Time    `json:"from"`
	To   time.Time    `json:"to"`
	Raw  RawTimeRange `json:"raw"`
}

// TimeRangeLike is the contract of objects placed in a $timeRange slot.
type TimeRangeLike interface {
	SceneObject
	GetTimeZone() string
	OnTimeRangeChange(TimeRange)
	OnTimeZoneChange(string)
	OnRefresh()
	Value() TimeRange
}

// SceneTimeRange evaluates relative bounds against the object clock.
//
// State fields: "from", "to" (raw bounds), "timeZone" (optional) and "value"
// (the evaluated TimeRange).
type SceneTimeRange struct {
	*Object

	evaluatedZone string
	rejectedZone  string
}

// NewSceneTimeRange creates a time range. Missing bounds default to the last
// six hours.
func NewSceneTimeRange(state State, opts ...ObjectOption) *SceneTimeRange {
	merged := State{"from": DefaultFrom, "to": DefaultTo}
	for k, v := range state {
		merged[k] = v
	}

	tr := &SceneTimeRange{}
	tr.Object = Init(tr, KindTimeRange, merged, append([]ObjectOption{WithCapabilities(CapTimeRange)}, opts...)...)
	tr.state["value"] = tr.evaluate(tr.rawFrom(), tr.rawTo(), tr.GetTimeZone())
	tr.AddActivationHandler(tr.onActivate)
	return tr
}

func (tr *SceneTimeRange) onActivate() (Deactivate, error) {
	zone := tr.GetTimeZone()
	if zone != tr.evaluatedZone {
		tr.SetState(State{"value": tr.evaluate(tr.rawFrom(), tr.rawTo(), zone)})
	}
	return nil, nil
}

func (tr *SceneTimeRange) rawFrom() string {
	s, _ := tr.Get("from").(string)
	return s
}

func (tr *SceneTimeRange) rawTo() string {
	s, _ := tr.Get("to").(string)
	return s
}

// evaluate resolves raw bounds in zone. Invalid bounds fall back to the
// defaults with a warning.
func (tr *SceneTimeRange) evaluate(from, to, zone string) TimeRange {
	loc, err := resolveLocation(zone)
	if err != nil {
		tr.warn("invalid time zone", map[string]any{"timeZone": zone, "error": err.Error()})
		loc = time.Local
	}
	tr.evaluatedZone = zone

	now := tr.Now()
	fromTime, errFrom := ParseDateMath(from, now, false, loc)
	toTime, errTo := ParseDateMath(to, now, true, loc)
	if errFrom != nil || errTo != nil {
		tr.warn("invalid time range, using default", map[string]any{"from": from, "to": to})
		from, to = DefaultFrom, DefaultTo
		fromTime, _ = ParseDateMath(from, now, false, loc)
		toTime, _ = ParseDateMath(to, now, true, loc)
	}
	return TimeRange{From: fromTime, To: toTime, Raw: RawTimeRange{From: from, To: to}}
}

// Value returns the evaluated range.
func (tr *SceneTimeRange) Value() TimeRange {
	v, _ := tr.Get("value").(TimeRange)
	return v
}

// GetTimeZone returns the configured zone, the zone of the closest time range
// above the owner, or the process default. A configured zone that cannot be
// loaded is skipped with a warning, logged once per zone.
func (tr *SceneTimeRange) GetTimeZone() string {
	if tz, _ := tr.Get("timeZone").(string); tz != "" {
		_, err := resolveLocation(tz)
		if err == nil {
			return tz
		}
		if tr.rejectedZone != tz {
			tr.rejectedZone = tz
			tr.warn("unknown time zone, using inherited zone", map[string]any{"timeZone": tz, "error": err.Error()})
		}
	}
	if owner := tr.Parent(); owner != nil {
		if above := owner.Base().Parent(); above != nil {
			if parentRange, err := GetTimeRange(above); err == nil && parentRange.Base() != tr.Object {
				return parentRange.GetTimeZone()
			}
		}
	}
	return DefaultTimeZone()
}

// OnTimeRangeChange replaces the range. Raw bounds are derived from the
// absolute values when absent.
func (tr *SceneTimeRange) OnTimeRangeChange(next TimeRange) {
	if next.Raw.From == "" {
		next.Raw.From = strconv.FormatInt(next.From.UnixMilli(), 10)
	}
	if next.Raw.To == "" {
		next.Raw.To = strconv.FormatInt(next.To.UnixMilli(), 10)
	}
	current := tr.Value()
	if current.Raw == next.Raw && current.From.Equal(next.From) && current.To.Equal(next.To) {
		return
	}
	tr.SetState(State{"from": next.Raw.From, "to": next.Raw.To, "value": next})
}

// OnTimeZoneChange sets the zone and re-evaluates the range in it.
func (tr *SceneTimeRange) OnTimeZoneChange(zone string) {
	value := tr.evaluate(tr.rawFrom(), tr.rawTo(), zone)
	tr.SetState(State{"timeZone": zone, "value": value})
}

// OnRefresh re-evaluates relative bounds against the current time.
func (tr *SceneTimeRange) OnRefresh() {
	tr.SetState(State{"value": tr.evaluate(tr.rawFrom(), tr.rawTo(), tr.GetTimeZone())})
}

// URLKeys implements URLSyncer.
func (tr *SceneTimeRange) URLKeys() []string {
	return []string{"from", "to", "timezone"}
}

// GetURLState implements URLSyncer.
func (tr *SceneTimeRange) GetURLState() URLState {
	state := URLState{
		"from": {tr.rawFrom()},
		"to":   {tr.rawTo()},
	}
	if tz, _ := tr.Get("timeZone").(string); tz != "" {
		state["timezone"] = []string{tz}
	}
	return state
}

// UpdateFromURL implements URLSyncer.
func (tr *SceneTimeRange) UpdateFromURL(values URLState) {
	from, to := tr.rawFrom(), tr.rawTo()
	zone, _ := tr.Get("timeZone").(string)
	changed := false
	if v := values.First("from"); v != "" && v != from {
		from, changed = v, true
	}
	if v := values.First("to"); v != "" && v != to {
		to, changed = v, true
	}
	if v := values.First("timezone"); v != "" && v != zone {
		zone, changed = v, true
	}
	if !changed {
		return
	}
	update := State{"from": from, "to": to}
	if zone != "" {
		update["timeZone"] = zone
	}
	effective := zone
	if effective == "" {
		effective = tr.GetTimeZone()
	}
	update["value"] = tr.evaluate(from, to, effective)
	tr.SetState(update)
}
