package timeline

import (
	"fmt"
	"time"
)

// UTC offsets outside this range come from malformed trace metadata.
const (
	minUTCOffsetNs = -12 * nsPerH
	maxUTCOffsetNs = 14 * nsPerH
)

// UTCOffset is an optional offset from UTC, bounded to [-12h, +14h].
type UTCOffset struct {
	ns    int64
	valid bool
}

// Initialize sets the offset. Values outside the valid range are ignored and
// leave the offset unchanged.
func (o *UTCOffset) Initialize(ns int64) {
	if ns < minUTCOffsetNs || ns > maxUTCOffsetNs {
		return
	}
	o.ns = ns
	o.valid = true
}

// Value returns the offset and whether it has been set.
func (o UTCOffset) Value() (int64, bool) {
	return o.ns, o.valid
}

// Format returns the offset as "UTC+05:30", or "" when unset.
func (o UTCOffset) Format() string {
	if !o.valid {
		return ""
	}
	sign := "+"
	ns := o.ns
	if ns < 0 {
		sign = "-"
		ns = -ns
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, ns/nsPerH, (ns%nsPerH)/nsPerMin)
}

type offset struct {
	ns  int64
	set bool
}

// Converter builds timestamps for one trace. Once the trace provides offsets
// between its clocks and the wall clock, timestamps from the elapsed clocks are
// promoted to Real so that traces from different sources share one time base.
type Converter struct {
	location        *time.Location
	utcOffset       UTCOffset
	realToMonotonic offset
	realToBoot      offset
}

// NewConverter returns a converter formatting real timestamps in loc.
// A nil loc means UTC.
func NewConverter(loc *time.Location) *Converter {
	if loc == nil {
		loc = time.UTC
	}
	return &Converter{location: loc}
}

// SetRealToMonotonicOffsetNs records real = monotonic + ns.
func (c *Converter) SetRealToMonotonicOffsetNs(ns int64) {
	c.realToMonotonic = offset{ns: ns, set: true}
}

// SetRealToBootOffsetNs records real = boot + ns.
func (c *Converter) SetRealToBootOffsetNs(ns int64) {
	c.realToBoot = offset{ns: ns, set: true}
}

// HasRealOffset reports whether any elapsed clock can be mapped to real time.
func (c *Converter) HasRealOffset() bool {
	return c.realToMonotonic.set || c.realToBoot.set
}

// InitializeUTCOffset derives the UTC offset of the converter's location at
// the instant ts. Non-real timestamps are ignored.
func (c *Converter) InitializeUTCOffset(ts Timestamp) {
	if ts.Domain() != Real {
		return
	}
	_, secs := time.Unix(0, ts.ValueNs()).In(c.location).Zone()
	c.utcOffset.Initialize(int64(secs) * nsPerSec)
}

// UTCOffset returns the current UTC offset.
func (c *Converter) UTCOffset() UTCOffset {
	return c.utcOffset
}

// MakeTimestampFromRealNs returns a Real timestamp.
func (c *Converter) MakeTimestampFromRealNs(ns int64) Timestamp {
	return NewTimestamp(Real, ns)
}

// MakeTimestampFromMonotonicNs returns a Real timestamp if the real-to-monotonic
// offset is known, else a Monotonic one.
func (c *Converter) MakeTimestampFromMonotonicNs(ns int64) (Timestamp, error) {
	return c.promote(Monotonic, c.realToMonotonic, ns)
}

// MakeTimestampFromBootNs returns a Real timestamp if the real-to-boot offset
// is known, else a Boot one.
func (c *Converter) MakeTimestampFromBootNs(ns int64) (Timestamp, error) {
	return c.promote(Boot, c.realToBoot, ns)
}

func (c *Converter) promote(d Domain, o offset, ns int64) (Timestamp, error) {
	if !o.set {
		return NewTimestamp(d, ns), nil
	}
	return NewTimestamp(Real, ns).Add(o.ns)
}

// MakeTimestampFromHuman parses a bare nanosecond count, an elapsed duration
// ("1h2m3s") or a real date-time. Real date-times are interpreted in the
// converter's local time.
func (c *Converter) MakeTimestampFromHuman(s string) (Timestamp, error) {
	if ns, err := ParseNs(s); err == nil {
		return c.MakeTimestampFromMonotonicNs(ns)
	}
	if humanElapsedRe.MatchString(s) {
		ns, err := ParseHumanElapsed(s)
		if err != nil {
			return Timestamp{}, err
		}
		return c.MakeTimestampFromMonotonicNs(ns)
	}
	ns, err := ParseHumanReal(s)
	if err != nil {
		return Timestamp{}, err
	}
	off, _ := c.utcOffset.Value()
	return NewTimestamp(Real, ns).Sub(off)
}

// Format renders ts, applying the UTC offset to real timestamps.
func (c *Converter) Format(ts Timestamp, hideNs bool) string {
	if ts.Domain() != Real {
		return FormatElapsed(ts.ValueNs(), hideNs)
	}
	off, _ := c.utcOffset.Value()
	local, ok := addNs(ts.ValueNs(), off)
	if !ok {
		local = ts.ValueNs()
	}
	return FormatReal(local, hideNs)
}

func (c *Converter) offsetToReal(d Domain) (int64, bool) {
	switch d {
	case Real:
		return 0, true
	case Monotonic:
		return c.realToMonotonic.ns, c.realToMonotonic.set
	case Boot:
		return c.realToBoot.ns, c.realToBoot.set
	default:
		return 0, false
	}
}

// Convert maps ts into domain to. It returns false if either domain has no
// known offset to real time or the result is out of range.
func (c *Converter) Convert(ts Timestamp, to Domain) (Timestamp, bool) {
	if ts.Domain() == to {
		return ts, true
	}
	from, ok := c.offsetToReal(ts.Domain())
	if !ok {
		return Timestamp{}, false
	}
	dst, ok := c.offsetToReal(to)
	if !ok {
		return Timestamp{}, false
	}
	v, ok := addNs(ts.ValueNs(), from)
	if !ok {
		return Timestamp{}, false
	}
	if v, ok = subNs(v, dst); !ok {
		return Timestamp{}, false
	}
	return NewTimestamp(to, v), true
}

// ConvertAll maps ts into every domain it can reach. Unreachable domains are
// absent from the result.
func (c *Converter) ConvertAll(ts Timestamp) map[Domain]Timestamp {
	out := make(map[Domain]Timestamp, len(Domains))
	for _, d := range Domains {
		if converted, ok := c.Convert(ts, d); ok {
			out[d] = converted
		}
	}
	return out
}
