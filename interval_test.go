package scenes

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func hoursRange(hours int) TimeRange {
	to := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)
	return TimeRange{From: to.Add(-time.Duration(hours) * time.Hour), To: to}
}

func TestCalculateInterval(t *testing.T) {
	cases := []struct {
		hours      int
		resolution int
		lowLimit   string
		interval   string
		ms         int64
	}{
		{1, 100, "", "30s", 30000},
		{6, 100, "", "5m", 300000},
		{24, 100, "", "15m", 900000},
		{168, 100, "", "2h", 7200000},
		{1, 100, "1m", "1m", 60000},
		{1, 0, "", "1h", 3600000},
		{1, 100, "bogus", "30s", 30000},
	}
	for _, tc := range cases {
		got := CalculateInterval(hoursRange(tc.hours), tc.resolution, tc.lowLimit)
		if got.Interval != tc.interval || got.IntervalMs != tc.ms {
			t.Fatalf("%dh/%d low=%q: expected %s (%d), got %s (%d)",
				tc.hours, tc.resolution, tc.lowLimit, tc.interval, tc.ms, got.Interval, got.IntervalMs)
		}
	}
}

func TestIntervalToMs(t *testing.T) {
	cases := map[string]int64{"10s": 10000, "1.5m": 90000, "500ms": 500, "2h": 7200000, "1d": 86400000}
	for input, want := range cases {
		got, err := intervalToMs(input)
		if err != nil || got != want {
			t.Fatalf("%s: expected %d, got %d (%v)", input, want, got, err)
		}
	}
	if _, err := intervalToMs("fast"); err == nil {
		t.Fatalf("expected error for invalid interval")
	}
}

func TestSecondsToHms(t *testing.T) {
	cases := map[float64]string{
		0.0005: "less than a millisecond",
		0.5:    "500ms",
		45:     "45s",
		120:    "2m",
		7200:   "2h",
		172800: "2d",
	}
	for input, want := range cases {
		if got := secondsToHms(input); got != want {
			t.Fatalf("%v: expected %q, got %q", input, want, got)
		}
	}
}

func TestIntervalVariableSelectsFirstWhenEmpty(t *testing.T) {
	v := NewIntervalVariable("interval", State{KeyIntervals: []string{"5m", "1h"}})
	published := 0
	v.SubscribeToEvent(EventVariableValueChanged, func(Event) { published++ })

	if err := v.ValidateAndUpdate(context.Background()); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if v.ValueText() != "5m" {
		t.Fatalf("expected first interval, got %q", v.ValueText())
	}
	if published != 1 || v.LoadingState() != LoadingStateDone {
		t.Fatalf("expected one publish and done state, got %d %s", published, v.LoadingState())
	}
}

func TestIntervalVariableAutoFollowsTimeRange(t *testing.T) {
	clock := fixedClock(time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC))
	v := NewIntervalVariable("interval", State{
		KeyValue:         AutoVariableValue,
		KeyAutoEnabled:   true,
		KeyAutoStepCount: 100,
		KeyIntervals:     []string{"1m", "5m"},
	})
	tr := NewSceneTimeRange(State{"from": "now-6h", "to": "now", "timeZone": "utc"}, WithClock(clock))
	New("Root", State{SlotTimeRange: tr, SlotVariables: NewSceneVariableSet([]Variable{v})})

	if got := v.ValueText(); got != "5m" {
		t.Fatalf("expected 5m for six hours, got %q", got)
	}

	options := v.Options()
	if len(options) != 3 || options[0].Value != AutoVariableValue {
		t.Fatalf("expected auto option first, got %v", options)
	}
}

func TestIntervalVariableAutoWithoutTimeRangeUsesMinimum(t *testing.T) {
	v := NewIntervalVariable("interval", State{
		KeyValue:           AutoVariableValue,
		KeyAutoEnabled:     true,
		KeyAutoMinInterval: "20s",
	})
	if got := v.ValueText(); got != "20s" {
		t.Fatalf("expected min interval, got %q", got)
	}
}

func TestIntervalVariableURLSync(t *testing.T) {
	v := NewIntervalVariable("interval", State{KeyValue: "1h"})

	if got := v.GetURLState(); !reflect.DeepEqual(got, URLState{"var-interval": {"1h"}}) {
		t.Fatalf("unexpected url state %v", got)
	}

	v.UpdateFromURL(URLState{"var-interval": {"17m"}})
	if v.ValueText() != "1h" {
		t.Fatalf("expected unknown interval ignored, got %q", v.ValueText())
	}
	v.UpdateFromURL(URLState{"var-interval": {AutoVariableValue}})
	if v.ValueText() != "1h" {
		t.Fatalf("expected auto ignored when disabled, got %q", v.ValueText())
	}
	v.UpdateFromURL(URLState{"var-interval": {"6h"}})
	if v.ValueText() != "6h" {
		t.Fatalf("expected 6h, got %q", v.ValueText())
	}
	if !v.RefreshOnTimeRangeChange() {
		t.Fatalf("expected refresh on time range change by default")
	}
}
