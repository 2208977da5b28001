package timeline

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidFormat is returned when a human-readable timestamp cannot be parsed.
var ErrInvalidFormat = errors.New("timeline: invalid timestamp format")

const (
	nsPerMs  = int64(time.Millisecond)
	nsPerSec = int64(time.Second)
	nsPerMin = int64(time.Minute)
	nsPerH   = int64(time.Hour)
	nsPerDay = 24 * nsPerH
)

var elapsedUnits = []struct {
	suffix string
	ns     int64
}{
	{"d", nsPerDay},
	{"h", nsPerH},
	{"m", nsPerMin},
	{"s", nsPerSec},
	{"ms", nsPerMs},
}

// Real times outside this span have no int64 nanosecond representation.
var (
	minRealTime = time.Unix(0, math.MinInt64).UTC()
	maxRealTime = time.Unix(0, math.MaxInt64).UTC()
)

var (
	humanElapsedRe = regexp.MustCompile(`^([0-9]+d)?([0-9]+h)?([0-9]+m)?([0-9]+s)?([0-9]+ms)?([0-9]+ns)?$`)
	humanRealRe    = regexp.MustCompile(`^([0-9]{4})-([0-9]{2})-([0-9]{2})(?:T|, )([0-9]{2}):([0-9]{2}):([0-9]{2})(?:\.([0-9]{1,9}))?Z?$`)
	nsRe           = regexp.MustCompile(`^\s*([0-9]+)\s*(?:ns)?\s*$`)
)

// FormatElapsed renders an elapsed duration as e.g. "1d2h3m4s5ms". Leading zero
// units are omitted. Unless hideNs is set the sub-millisecond remainder is
// appended as "<n>ns".
func FormatElapsed(ns int64, hideNs bool) string {
	var b strings.Builder
	rem := uint64(ns)
	if ns < 0 {
		b.WriteByte('-')
		rem = -rem
	}
	started := false
	for _, u := range elapsedUnits {
		unit := uint64(u.ns)
		v := rem / unit
		rem %= unit
		if v == 0 && !started {
			continue
		}
		started = true
		b.WriteString(strconv.FormatUint(v, 10))
		b.WriteString(u.suffix)
	}
	if hideNs {
		if !started {
			b.WriteString("0ms")
		}
		return b.String()
	}
	b.WriteString(strconv.FormatUint(rem, 10))
	b.WriteString("ns")
	return b.String()
}

// FormatReal renders nanoseconds since the Unix epoch as an ISO-like UTC
// date-time. With hideNs the fraction is rounded to milliseconds.
func FormatReal(ns int64, hideNs bool) string {
	t := time.Unix(0, ns).UTC()
	if hideNs {
		return t.Round(time.Millisecond).Format("2006-01-02T15:04:05.000")
	}
	return t.Format("2006-01-02T15:04:05.000000000")
}

// ParseHumanElapsed parses the output of FormatElapsed back into nanoseconds.
func ParseHumanElapsed(s string) (int64, error) {
	if s == "" {
		return 0, ErrInvalidFormat
	}
	m := humanElapsedRe.FindStringSubmatch(s)
	if m == nil {
		return 0, ErrInvalidFormat
	}
	multipliers := []int64{nsPerDay, nsPerH, nsPerMin, nsPerSec, nsPerMs, 1}
	suffixes := []string{"d", "h", "m", "s", "ms", "ns"}
	var total int64
	for i, group := range m[1:] {
		if group == "" {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSuffix(group, suffixes[i]), 10, 64)
		if err != nil {
			return 0, ErrInvalidFormat
		}
		part, ok := mulNs(v, multipliers[i])
		if !ok {
			return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidFormat, s)
		}
		if total, ok = addNs(total, part); !ok {
			return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidFormat, s)
		}
	}
	return total, nil
}

// ParseHumanReal parses "2022-11-10T22:04:54.186123212" (optionally with a
// trailing Z, or ", " instead of "T") into nanoseconds since the Unix epoch.
// The input is interpreted as UTC.
func ParseHumanReal(s string) (int64, error) {
	m := humanRealRe.FindStringSubmatch(s)
	if m == nil {
		return 0, ErrInvalidFormat
	}
	fields := make([]int, 6)
	for i := range fields {
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, ErrInvalidFormat
		}
		fields[i] = v
	}
	var frac int
	if m[7] != "" {
		padded := m[7] + strings.Repeat("0", 9-len(m[7]))
		v, err := strconv.Atoi(padded)
		if err != nil {
			return 0, ErrInvalidFormat
		}
		frac = v
	}
	t := time.Date(fields[0], time.Month(fields[1]), fields[2], fields[3], fields[4], fields[5], frac, time.UTC)
	if t.Before(minRealTime) || t.After(maxRealTime) {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidFormat, s)
	}
	return t.UnixNano(), nil
}

// ParseNs parses a bare nanosecond count such as "123", "123ns" or " 123 ns ".
func ParseNs(s string) (int64, error) {
	m := nsRe.FindStringSubmatch(s)
	if m == nil {
		return 0, ErrInvalidFormat
	}
	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, ErrInvalidFormat
	}
	return v, nil
}
