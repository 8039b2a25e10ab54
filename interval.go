package scenes

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

var intervalPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)(ms|s|m|h|d|w|M|y)$`)

var intervalUnitSeconds = map[string]float64{
	"y":  31536000,
	"M":  2592000,
	"w":  604800,
	"d":  86400,
	"h":  3600,
	"m":  60,
	"s":  1,
	"ms": 0.001,
}

// IntervalValues is the outcome of an interval calculation.
type IntervalValues struct {
	Interval   string
	IntervalMs int64
}

// intervalToMs parses "10s", "5m", "1h" and similar into milliseconds.
func intervalToMs(text string) (int64, error) {
	m := intervalPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("scenes: invalid interval %q", text)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("scenes: invalid interval %q: %w", text, err)
	}
	return int64(math.Round(n * intervalUnitSeconds[m[2]] * 1000)), nil
}

// CalculateInterval divides the range into resolution steps and rounds the
// step to a friendly size no smaller than lowLimit.
func CalculateInterval(tr TimeRange, resolution int, lowLimit string) IntervalValues {
	if resolution <= 0 {
		resolution = 1
	}
	lowLimitMs := int64(1)
	if lowLimit != "" {
		if ms, err := intervalToMs(lowLimit); err == nil {
			lowLimitMs = ms
		}
	}
	span := tr.To.Sub(tr.From).Milliseconds()
	intervalMs := roundInterval(float64(span) / float64(resolution))
	if lowLimitMs > intervalMs {
		intervalMs = lowLimitMs
	}
	return IntervalValues{IntervalMs: intervalMs, Interval: secondsToHms(float64(intervalMs) / 1000)}
}

var intervalSteps = []struct {
	below float64
	value int64
}{
	{15, 10},
	{35, 20},
	{75, 50},
	{150, 100},
	{350, 200},
	{750, 500},
	{1500, 1000},
	{3500, 2000},
	{7500, 5000},
	{12500, 10000},
	{17500, 15000},
	{25000, 20000},
	{45000, 30000},
	{90000, 60000},
	{210000, 120000},
	{450000, 300000},
	{750000, 600000},
	{1050000, 900000},
	{1500000, 1200000},
	{2700000, 1800000},
	{5400000, 3600000},
	{9000000, 7200000},
	{16200000, 10800000},
	{32400000, 21600000},
	{86400000, 43200000},
	{604800000, 86400000},
	{1814400000, 604800000},
	{3628800000, 2592000000},
}

func roundInterval(ms float64) int64 {
	for _, step := range intervalSteps {
		if ms < step.below {
			return step.value
		}
	}
	return 31536000000
}

func secondsToHms(seconds float64) string {
	whole := int64(seconds)
	if years := whole / 31536000; years > 0 {
		return strconv.FormatInt(years, 10) + "y"
	}
	if days := (whole % 31536000) / 86400; days > 0 {
		return strconv.FormatInt(days, 10) + "d"
	}
	if hours := (whole % 86400) / 3600; hours > 0 {
		return strconv.FormatInt(hours, 10) + "h"
	}
	if minutes := (whole % 3600) / 60; minutes > 0 {
		return strconv.FormatInt(minutes, 10) + "m"
	}
	if secs := whole % 60; secs > 0 {
		return strconv.FormatInt(secs, 10) + "s"
	}
	if ms := int64(math.Floor(seconds * 1000)); ms > 0 {
		return strconv.FormatInt(ms, 10) + "ms"
	}
	return "less than a millisecond"
}
