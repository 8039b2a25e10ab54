package scenes

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var absoluteLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDateMath resolves expressions such as "now", "now-6h", "now/d",
// "now-1d/d", RFC3339 timestamps and epoch milliseconds. roundUp selects the
// end of the unit for rounding operations.
func ParseDateMath(text string, now time.Time, roundUp bool, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("scenes: empty date expression")
	}
	if loc == nil {
		loc = time.Local
	}

	var (
		anchor time.Time
		math   string
	)
	if strings.HasPrefix(text, "now") {
		anchor = now.In(loc)
		math = text[len("now"):]
	} else {
		base := text
		if idx := strings.Index(text, "||"); idx >= 0 {
			base = text[:idx]
			math = text[idx+2:]
		}
		parsed, err := parseAbsolute(base, loc)
		if err != nil {
			return time.Time{}, err
		}
		anchor = parsed
	}

	if math == "" {
		return anchor, nil
	}
	return applyDateMath(math, anchor, roundUp)
}

func parseAbsolute(text string, loc *time.Location) (time.Time, error) {
	if ms, err := strconv.ParseInt(text, 10, 64); err == nil {
		return time.UnixMilli(ms).In(loc), nil
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("scenes: invalid date %q", text)
}

func applyDateMath(math string, t time.Time, roundUp bool) (time.Time, error) {
	i := 0
	for i < len(math) {
		op := math[i]
		i++
		if op != '/' && op != '+' && op != '-' {
			return time.Time{}, fmt.Errorf("scenes: invalid date math operator %q in %q", op, math)
		}

		num := 1
		start := i
		for i < len(math) && math[i] >= '0' && math[i] <= '9' {
			i++
		}
		if i > start {
			n, err := strconv.Atoi(math[start:i])
			if err != nil {
				return time.Time{}, fmt.Errorf("scenes: invalid date math amount in %q", math)
			}
			num = n
		}
		if op == '/' && num != 1 {
			return time.Time{}, fmt.Errorf("scenes: rounding does not take an amount in %q", math)
		}
		if i >= len(math) {
			return time.Time{}, fmt.Errorf("scenes: missing date math unit in %q", math)
		}
		unit := math[i]
		i++
		if !strings.ContainsRune("yMwdhms", rune(unit)) {
			return time.Time{}, fmt.Errorf("scenes: invalid date math unit %q in %q", unit, math)
		}

		switch op {
		case '/':
			if roundUp {
				t = endOf(t, unit)
			} else {
				t = startOf(t, unit)
			}
		case '+':
			t = addUnits(t, num, unit)
		case '-':
			t = addUnits(t, -num, unit)
		}
	}
	return t, nil
}

func addUnits(t time.Time, n int, unit byte) time.Time {
	switch unit {
	case 'y':
		return t.AddDate(n, 0, 0)
	case 'M':
		return t.AddDate(0, n, 0)
	case 'w':
		return t.AddDate(0, 0, 7*n)
	case 'd':
		return t.AddDate(0, 0, n)
	case 'h':
		return t.Add(time.Duration(n) * time.Hour)
	case 'm':
		return t.Add(time.Duration(n) * time.Minute)
	default:
		return t.Add(time.Duration(n) * time.Second)
	}
}

// startOf truncates t to the beginning of unit. Weeks start on Monday.
func startOf(t time.Time, unit byte) time.Time {
	y, mo, d := t.Date()
	loc := t.Location()
	switch unit {
	case 'y':
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	case 'M':
		return time.Date(y, mo, 1, 0, 0, 0, 0, loc)
	case 'w':
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, mo, d-offset, 0, 0, 0, 0, loc)
	case 'd':
		return time.Date(y, mo, d, 0, 0, 0, 0, loc)
	case 'h':
		return time.Date(y, mo, d, t.Hour(), 0, 0, 0, loc)
	case 'm':
		return time.Date(y, mo, d, t.Hour(), t.Minute(), 0, 0, loc)
	default:
		return time.Date(y, mo, d, t.Hour(), t.Minute(), t.Second(), 0, loc)
	}
}

// endOf returns the last millisecond of unit containing t.
func endOf(t time.Time, unit byte) time.Time {
	return addUnits(startOf(t, unit), 1, unit).Add(-time.Millisecond)
}

// IsRelative reports whether a raw range bound depends on the current time.
func IsRelative(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), "now")
}
