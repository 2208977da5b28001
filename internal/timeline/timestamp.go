// Package timeline models instants in the clock domains found in Android traces,
// conversions between those domains, and frame-indexed timelines used for scrubbing.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrOverflow is returned when a timestamp computation leaves the
	// representable nanosecond range instead of wrapping around.
	ErrOverflow = errors.New("timeline: timestamp out of range")

	// ErrDivideByZero is returned by Timestamp.Div for a zero divisor.
	ErrDivideByZero = errors.New("timeline: divide by zero")
)

// Domain identifies the clock a timestamp was recorded against.
type Domain uint8

const (
	// Monotonic is the elapsed-since-boot clock excluding suspend (CLOCK_MONOTONIC).
	Monotonic Domain = iota
	// Boot is the elapsed-since-boot clock including suspend (CLOCK_BOOTTIME).
	Boot
	// Real is wall-clock time in nanoseconds since the Unix epoch.
	Real
)

// Domains lists every supported domain in a stable order.
var Domains = []Domain{Monotonic, Boot, Real}

func (d Domain) String() string {
	switch d {
	case Monotonic:
		return "monotonic"
	case Boot:
		return "boot"
	case Real:
		return "real"
	default:
		return fmt.Sprintf("Domain(%d)", uint8(d))
	}
}

// ParseDomain maps a domain name back to its Domain.
func ParseDomain(s string) (Domain, error) {
	switch s {
	case "monotonic", "elapsed":
		return Monotonic, nil
	case "boot":
		return Boot, nil
	case "real", "realtime":
		return Real, nil
	default:
		return 0, fmt.Errorf("timeline: unknown clock domain %q", s)
	}
}

// Timestamp is an immutable instant in one clock domain.
type Timestamp struct {
	domain  Domain
	valueNs int64
}

// NewTimestamp returns the timestamp valueNs in domain d.
func NewTimestamp(d Domain, valueNs int64) Timestamp {
	return Timestamp{domain: d, valueNs: valueNs}
}

// Domain returns the clock domain of t.
func (t Timestamp) Domain() Domain { return t.domain }

// ValueNs returns the raw nanosecond magnitude of t.
func (t Timestamp) ValueNs() int64 { return t.valueNs }

// Add returns t shifted by ns nanoseconds in the same domain.
func (t Timestamp) Add(ns int64) (Timestamp, error) {
	v, ok := addNs(t.valueNs, ns)
	if !ok {
		return Timestamp{}, fmt.Errorf("%w: %d + %d", ErrOverflow, t.valueNs, ns)
	}
	return Timestamp{domain: t.domain, valueNs: v}, nil
}

// Sub returns t shifted back by ns nanoseconds in the same domain.
func (t Timestamp) Sub(ns int64) (Timestamp, error) {
	v, ok := subNs(t.valueNs, ns)
	if !ok {
		return Timestamp{}, fmt.Errorf("%w: %d - %d", ErrOverflow, t.valueNs, ns)
	}
	return Timestamp{domain: t.domain, valueNs: v}, nil
}

// Div returns t with its magnitude divided by n, truncating toward zero.
func (t Timestamp) Div(n int64) (Timestamp, error) {
	switch {
	case n == 0:
		return Timestamp{}, ErrDivideByZero
	case n == -1 && t.valueNs == math.MinInt64:
		return Timestamp{}, fmt.Errorf("%w: %d / %d", ErrOverflow, t.valueNs, n)
	}
	return Timestamp{domain: t.domain, valueNs: t.valueNs / n}, nil
}

// Diff returns t - other in nanoseconds. It panics if the domains differ.
func (t Timestamp) Diff(other Timestamp) (int64, error) {
	t.mustMatch(other)
	v, ok := subNs(t.valueNs, other.valueNs)
	if !ok {
		return 0, fmt.Errorf("%w: %d - %d", ErrOverflow, t.valueNs, other.valueNs)
	}
	return v, nil
}

// Compare returns -1, 0 or +1 depending on whether t is before, equal to or
// after other. Comparing timestamps from different domains is a programming
// error and panics.
func (t Timestamp) Compare(other Timestamp) int {
	t.mustMatch(other)
	switch {
	case t.valueNs < other.valueNs:
		return -1
	case t.valueNs > other.valueNs:
		return 1
	default:
		return 0
	}
}

// Before reports whether t is strictly before other.
func (t Timestamp) Before(other Timestamp) bool { return t.Compare(other) < 0 }

// After reports whether t is strictly after other.
func (t Timestamp) After(other Timestamp) bool { return t.Compare(other) > 0 }

// Equal reports whether t and other denote the same instant in the same domain.
func (t Timestamp) Equal(other Timestamp) bool {
	return t.domain == other.domain && t.valueNs == other.valueNs
}

// Format renders t for display. Real timestamps are rendered in UTC; use
// Converter.Format to apply a UTC offset.
func (t Timestamp) Format(hideNs bool) string {
	if t.domain == Real {
		return FormatReal(t.valueNs, hideNs)
	}
	return FormatElapsed(t.valueNs, hideNs)
}

// String implements fmt.Stringer.
func (t Timestamp) String() string {
	return t.Format(false)
}

// Duration returns the magnitude of t as a time.Duration.
func (t Timestamp) Duration() time.Duration {
	return time.Duration(t.valueNs)
}

func (t Timestamp) mustMatch(other Timestamp) {
	if t.domain != other.domain {
		panic(fmt.Sprintf("timeline: cannot compare %s timestamp with %s timestamp", t.domain, other.domain))
	}
}

func addNs(a, b int64) (int64, bool) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, false
	}
	return s, true
}

func subNs(a, b int64) (int64, bool) {
	s := a - b
	if (b > 0 && s > a) || (b < 0 && s < a) {
		return 0, false
	}
	return s, true
}

func mulNs(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return p, true
}
