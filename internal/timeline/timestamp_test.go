package timeline_test

import (
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/tracelens/internal/timeline"
)

const (
	ms     = int64(time.Millisecond)
	second = int64(time.Second)
	minute = int64(time.Minute)
	hour   = int64(time.Hour)
	day    = 24 * hour
)

func TestTimestampArithmeticPreservesDomain(t *testing.T) {
	ts := timeline.NewTimestamp(timeline.Boot, 100)

	added, err := ts.Add(50)
	require.NoError(t, err)
	assert.Equal(t, timeline.NewTimestamp(timeline.Boot, 150), added)

	subbed, err := ts.Sub(60)
	require.NoError(t, err)
	assert.Equal(t, timeline.NewTimestamp(timeline.Boot, 40), subbed)

	divided, err := ts.Div(3)
	require.NoError(t, err)
	assert.Equal(t, timeline.NewTimestamp(timeline.Boot, 33), divided)

	diff, err := added.Diff(subbed)
	require.NoError(t, err)
	assert.Equal(t, int64(110), diff)
}

func TestTimestampArithmeticOverflow(t *testing.T) {
	maxTs := timeline.NewTimestamp(timeline.Real, math.MaxInt64)
	minTs := timeline.NewTimestamp(timeline.Real, math.MinInt64)

	tests := []struct {
		name string
		op   func() (timeline.Timestamp, error)
	}{
		{"add past max", func() (timeline.Timestamp, error) { return maxTs.Add(1) }},
		{"add past min", func() (timeline.Timestamp, error) { return minTs.Add(-1) }},
		{"sub past min", func() (timeline.Timestamp, error) { return minTs.Sub(1) }},
		{"sub min from zero", func() (timeline.Timestamp, error) {
			return timeline.NewTimestamp(timeline.Real, 0).Sub(math.MinInt64)
		}},
		{"negate min", func() (timeline.Timestamp, error) { return minTs.Div(-1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.op()
			assert.ErrorIs(t, err, timeline.ErrOverflow)
		})
	}

	_, err := maxTs.Diff(minTs)
	assert.ErrorIs(t, err, timeline.ErrOverflow)

	edge, err := maxTs.Sub(math.MaxInt64)
	require.NoError(t, err)
	assert.Equal(t, int64(0), edge.ValueNs())
}

func TestTimestampDivByZero(t *testing.T) {
	_, err := timeline.NewTimestamp(timeline.Boot, 10).Div(0)
	assert.ErrorIs(t, err, timeline.ErrDivideByZero)
}

func TestTimestampCompareRejectsMixedDomains(t *testing.T) {
	realTs := timeline.NewTimestamp(timeline.Real, 10)
	elapsed := timeline.NewTimestamp(timeline.Monotonic, 10)

	assert.Panics(t, func() { realTs.Compare(elapsed) })
	assert.False(t, realTs.Equal(elapsed))
}

func TestTimestampSort(t *testing.T) {
	values := []int64{100, 10, 12, 110, 11}
	ts := make([]timeline.Timestamp, len(values))
	for i, v := range values {
		ts[i] = timeline.NewTimestamp(timeline.Real, v)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })

	got := make([]int64, len(ts))
	for i, v := range ts {
		got[i] = v.ValueNs()
	}
	assert.Equal(t, []int64{10, 11, 12, 100, 110}, got)
}

func TestParseDomain(t *testing.T) {
	for _, d := range timeline.Domains {
		parsed, err := timeline.ParseDomain(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, parsed)
	}
	_, err := timeline.ParseDomain("tai")
	assert.Error(t, err)
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		ns     int64
		hideNs bool
		want   string
	}{
		{0, true, "0ms"},
		{0, false, "0ns"},
		{1000, true, "0ms"},
		{1000, false, "1000ns"},
		{ms - 1, true, "0ms"},
		{ms, true, "1ms"},
		{10 * ms, true, "10ms"},
		{second - 1, true, "999ms"},
		{second, true, "1s0ms"},
		{second + ms, true, "1s1ms"},
		{second + ms, false, "1s1ms0ns"},
		{minute - 1, true, "59s999ms"},
		{minute, true, "1m0s0ms"},
		{minute + second + ms + 1, false, "1m1s1ms1ns"},
		{hour - 1, true, "59m59s999ms"},
		{hour - 1, false, "59m59s999ms999999ns"},
		{hour, true, "1h0m0s0ms"},
		{day - 1, true, "23h59m59s999ms"},
		{day, true, "1d0h0m0s0ms"},
		{day + hour + minute + second + ms, true, "1d1h1m1s1ms"},
		{100 * ms, false, "100ms0ns"},
		{-second, true, "-1s0ms"},
		{math.MinInt64, false, "-106751d23h47m16s854ms775808ns"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, timeline.FormatElapsed(tt.ns, tt.hideNs), "ns=%d hideNs=%v", tt.ns, tt.hideNs)
	}
}

func TestParseHumanElapsed(t *testing.T) {
	tests := map[string]int64{
		"0ns":         0,
		"1000ns":      1000,
		"0ms":         0,
		"1ms":         ms,
		"999ms":       999 * ms,
		"1s":          second,
		"1s0ms0ns":    second,
		"1s0ms1ns":    second + 1,
		"0d1s1ms":     second + ms,
		"1m1s1ms":     minute + second + ms,
		"1h0m":        hour,
		"1d1h1m1s1ms": day + hour + minute + second + ms,
		"1d":          day,
		"1d1ms":       day + ms,
	}
	for in, want := range tests {
		got, err := timeline.ParseHumanElapsed(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"1d1h1m1s0ns1ms", "1dns", "100", "", "200000d", "106751d23h47m16s854ms775808ns", "99999999999999999999ns"} {
		_, err := timeline.ParseHumanElapsed(bad)
		assert.ErrorIs(t, err, timeline.ErrInvalidFormat, bad)
	}
}

func TestFormatReal(t *testing.T) {
	nov10 := int64(1668038400000) * ms
	assert.Equal(t, "1970-01-01T00:00:00.000", timeline.FormatReal(0, true))
	assert.Equal(t, "2022-11-10T22:04:54.186", timeline.FormatReal(nov10+22*hour+4*minute+54*second+186*ms+123212, true))
	assert.Equal(t, "1970-01-01T00:00:00.000000600", timeline.FormatReal(600, false))
}

func TestParseHumanReal(t *testing.T) {
	nov10 := int64(1668038400000) * ms
	tests := map[string]int64{
		"2022-11-10T22:04:54.186123212":  nov10 + 22*hour + 4*minute + 54*second + 186123212,
		"2022-11-10T22:04:54.186123212Z": nov10 + 22*hour + 4*minute + 54*second + 186123212,
		"2022-11-10T06:04:54.006000002":  nov10 + 6*hour + 4*minute + 54*second + 6000002,
		"2022-11-10T06:04:54":            nov10 + 6*hour + 4*minute + 54*second,
		"2022-11-10T06:04:54.0":          nov10 + 6*hour + 4*minute + 54*second,
		"2022-11-10T06:04:54.0100":       nov10 + 6*hour + 4*minute + 54*second + 10*ms,
		"2022-11-10T06:04:54.0175328":    nov10 + 6*hour + 4*minute + 54*second + 17532800,
		"2022-11-10, 22:04:54.186123212": nov10 + 22*hour + 4*minute + 54*second + 186123212,
	}
	for in, want := range tests {
		got, err := timeline.ParseHumanReal(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{
		"23h59m59s999ms5ns",
		"1d",
		"100",
		"06h4m54s, 10 Nov 2022",
		"",
		"2022-11-10T06:04:54.",
		"2022-11-10T06:04:54.1234567890",
		"06:04:54.1234567890",
	} {
		_, err := timeline.ParseHumanReal(bad)
		assert.ErrorIs(t, err, timeline.ErrInvalidFormat, bad)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	realNs := int64(1668038400000)*ms + 22*hour + 4*minute + 54*second + 186123212
	got, err := timeline.ParseHumanReal(timeline.FormatReal(realNs, false))
	require.NoError(t, err)
	assert.Equal(t, realNs, got)

	for _, elapsedNs := range []int64{day + 3*hour + 7*ms + 12, math.MaxInt64} {
		got, err = timeline.ParseHumanElapsed(timeline.FormatElapsed(elapsedNs, false))
		require.NoError(t, err)
		assert.Equal(t, elapsedNs, got)
	}
}

func TestParseNs(t *testing.T) {
	for _, ok := range []string{"123", "123ns", "123 ns", " 123 ns ", "   123  "} {
		v, err := timeline.ParseNs(ok)
		require.NoError(t, err, ok)
		assert.Equal(t, int64(123), v)
	}
	for _, bad := range []string{"1a23", "a123 ns", ""} {
		_, err := timeline.ParseNs(bad)
		assert.ErrorIs(t, err, timeline.ErrInvalidFormat, bad)
	}
}
