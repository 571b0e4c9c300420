package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unit is the base sampling unit of a Resolution.
type Unit string

const (
	UnitMinute Unit = "minute"
	UnitHour   Unit = "hour"
	UnitDay    Unit = "day"
)

// Resolution is the sampling period for quotes: a unit plus a multiplier,
// e.g. {minute, 15} for M15 bars.
type Resolution struct {
	Unit Unit
	N    int
}

// ParseResolution parses the compact form used in config files and CLI
// flags: "1m", "15m", "1h", "4h", "1d".
func ParseResolution(s string) (Resolution, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if len(s) < 2 {
		return Resolution{}, fmt.Errorf("resolution %q: too short", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return Resolution{}, fmt.Errorf("resolution %q: bad multiplier", s)
	}
	var unit Unit
	switch s[len(s)-1] {
	case 'm':
		unit = UnitMinute
	case 'h':
		unit = UnitHour
	case 'd':
		unit = UnitDay
	default:
		return Resolution{}, fmt.Errorf("resolution %q: unknown unit", s)
	}
	return Resolution{Unit: unit, N: n}, nil
}

func (r Resolution) String() string {
	switch r.Unit {
	case UnitHour:
		return fmt.Sprintf("%dh", r.N)
	case UnitDay:
		return fmt.Sprintf("%dd", r.N)
	default:
		return fmt.Sprintf("%dm", r.N)
	}
}

// Step is the wall-clock span of one resolution unit.
func (r Resolution) Step() time.Duration {
	switch r.Unit {
	case UnitHour:
		return time.Duration(r.N) * time.Hour
	case UnitDay:
		return time.Duration(r.N) * 24 * time.Hour
	default:
		return time.Duration(r.N) * time.Minute
	}
}

// IsBoundary reports whether t falls on a bar close for this resolution:
// the unit value of t mod the multiplier is zero. Callers are expected to
// pass instants with seconds already zeroed.
func (r Resolution) IsBoundary(t time.Time) bool {
	if r.N <= 0 {
		return false
	}
	t = t.UTC()
	switch r.Unit {
	case UnitHour:
		return t.Hour()%r.N == 0 && t.Minute() == 0
	case UnitDay:
		return t.YearDay()%r.N == 0 && t.Hour() == 0 && t.Minute() == 0
	default:
		return t.Minute()%r.N == 0
	}
}

// Truncate rounds t down to the nearest boundary.
func (r Resolution) Truncate(t time.Time) time.Time {
	t = t.UTC().Truncate(time.Minute)
	for !r.IsBoundary(t) {
		t = t.Add(-time.Minute)
	}
	return t
}

// Compact format for marshaling and unmarshaling.

func (r Resolution) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

func (r *Resolution) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseResolution(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
