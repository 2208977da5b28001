package timeline_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/tracelens/internal/timeline"
)

const (
	testElapsedNs              = int64(100)
	testRealNs                 = int64(1659243341051481088) // 2022-07-31T04:55:41.051 UTC
	testMonotonicOffsetNs      = 5 * ms
	testRealToBootTimeOffsetNs = ms
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("timezone %s unavailable: %v", name, err)
	}
	return loc
}

func TestConverterWithoutOffsets(t *testing.T) {
	c := timeline.NewConverter(nil)

	ts := c.MakeTimestampFromRealNs(testRealNs)
	assert.Equal(t, timeline.Real, ts.Domain())
	assert.Equal(t, "2022-07-31T04:55:41.051", c.Format(ts, true))

	elapsed, err := c.MakeTimestampFromMonotonicNs(testElapsedNs)
	require.NoError(t, err)
	assert.Equal(t, timeline.Monotonic, elapsed.Domain())
	assert.Equal(t, "100ns", c.Format(elapsed, false))

	boot, err := c.MakeTimestampFromBootNs(testElapsedNs)
	require.NoError(t, err)
	assert.Equal(t, timeline.Boot, boot.Domain())
}

func TestConverterPromotesElapsedToReal(t *testing.T) {
	mono := timeline.NewConverter(nil)
	mono.SetRealToMonotonicOffsetNs(testMonotonicOffsetNs)
	ts, err := mono.MakeTimestampFromMonotonicNs(testRealNs)
	require.NoError(t, err)
	assert.Equal(t, timeline.Real, ts.Domain())
	assert.Equal(t, testRealNs+testMonotonicOffsetNs, ts.ValueNs())
	assert.Equal(t, "2022-07-31T04:55:41.056", mono.Format(ts, true))

	boot := timeline.NewConverter(nil)
	boot.SetRealToBootOffsetNs(testRealToBootTimeOffsetNs)
	ts, err = boot.MakeTimestampFromBootNs(testRealNs)
	require.NoError(t, err)
	assert.Equal(t, testRealNs+testRealToBootTimeOffsetNs, ts.ValueNs())
	assert.Equal(t, "2022-07-31T04:55:41.052", boot.Format(ts, true))
}

func TestConverterTimezones(t *testing.T) {
	tests := []struct {
		zone string
		want string
	}{
		{"Asia/Kolkata", "2022-07-31T10:25:41.051"},
		{"Europe/London", "2022-07-31T05:55:41.051"},
		{"Europe/Zurich", "2022-07-31T06:55:41.051"},
		{"America/Los_Angeles", "2022-07-30T21:55:41.051"},
	}
	for _, tt := range tests {
		t.Run(tt.zone, func(t *testing.T) {
			c := timeline.NewConverter(mustLocation(t, tt.zone))
			c.InitializeUTCOffset(c.MakeTimestampFromRealNs(testRealNs))
			assert.Equal(t, tt.want, c.Format(c.MakeTimestampFromRealNs(testRealNs), true))
		})
	}
}

func TestConverterHumanRealUsesUTCOffset(t *testing.T) {
	c := timeline.NewConverter(mustLocation(t, "Asia/Kolkata"))
	c.InitializeUTCOffset(c.MakeTimestampFromRealNs(testRealNs))

	ts, err := c.MakeTimestampFromHuman("2022-11-11T03:34:54.186123212")
	require.NoError(t, err)
	nov10 := int64(1668038400000) * ms
	assert.Equal(t, nov10+22*hour+4*minute+54*second+186123212, ts.ValueNs())
	assert.Equal(t, "2022-11-11T03:34:54.186", c.Format(ts, true))
}

func TestConverterHumanElapsed(t *testing.T) {
	c := timeline.NewConverter(nil)

	ts, err := c.MakeTimestampFromHuman("1s0ms1ns")
	require.NoError(t, err)
	assert.Equal(t, timeline.NewTimestamp(timeline.Monotonic, second+1), ts)

	ts, err = c.MakeTimestampFromHuman("42 ns")
	require.NoError(t, err)
	assert.Equal(t, timeline.NewTimestamp(timeline.Monotonic, 42), ts)

	_, err = c.MakeTimestampFromHuman("06h4m54s, 10 Nov 2022")
	assert.ErrorIs(t, err, timeline.ErrInvalidFormat)
}

func TestUTCOffsetBounds(t *testing.T) {
	var o timeline.UTCOffset
	o.Initialize(15 * hour)
	_, ok := o.Value()
	assert.False(t, ok, "offset above +14h must be ignored")

	o.Initialize(-13 * hour)
	_, ok = o.Value()
	assert.False(t, ok, "offset below -12h must be ignored")

	o.Initialize(5*hour + 30*minute)
	v, ok := o.Value()
	require.True(t, ok)
	assert.Equal(t, 5*hour+30*minute, v)
	assert.Equal(t, "UTC+05:30", o.Format())

	o.Initialize(20 * hour)
	v, _ = o.Value()
	assert.Equal(t, 5*hour+30*minute, v, "rejected value must not clobber a valid offset")

	o.Initialize(-12 * hour)
	assert.Equal(t, "UTC-12:00", o.Format())
}

func TestConverterConvertRoundTrip(t *testing.T) {
	c := timeline.NewConverter(nil)
	c.SetRealToMonotonicOffsetNs(testMonotonicOffsetNs)
	c.SetRealToBootOffsetNs(testRealToBootTimeOffsetNs)

	for _, v := range []int64{0, 1, testElapsedNs, testRealNs} {
		mono := timeline.NewTimestamp(timeline.Monotonic, v)

		toReal, ok := c.Convert(mono, timeline.Real)
		require.True(t, ok)
		assert.Equal(t, v+testMonotonicOffsetNs, toReal.ValueNs())

		back, ok := c.Convert(toReal, timeline.Monotonic)
		require.True(t, ok)
		assert.Equal(t, mono, back)

		toBoot, ok := c.Convert(mono, timeline.Boot)
		require.True(t, ok)
		assert.Equal(t, v+testMonotonicOffsetNs-testRealToBootTimeOffsetNs, toBoot.ValueNs())
	}
}

func TestConverterReportsOverflow(t *testing.T) {
	c := timeline.NewConverter(nil)
	c.SetRealToBootOffsetNs(testRealNs)

	_, err := c.MakeTimestampFromBootNs(math.MaxInt64 - 1)
	assert.ErrorIs(t, err, timeline.ErrOverflow)

	_, ok := c.Convert(timeline.NewTimestamp(timeline.Boot, math.MaxInt64), timeline.Real)
	assert.False(t, ok)

	_, err = c.MakeTimestampFromHuman("200000d")
	assert.ErrorIs(t, err, timeline.ErrInvalidFormat)

	_, err = c.MakeTimestampFromHuman("9999-01-01T00:00:00")
	assert.ErrorIs(t, err, timeline.ErrInvalidFormat)
}

func TestConverterConvertAllOmitsUnsupportedDomains(t *testing.T) {
	c := timeline.NewConverter(nil)
	c.SetRealToMonotonicOffsetNs(testMonotonicOffsetNs)

	all := c.ConvertAll(timeline.NewTimestamp(timeline.Monotonic, testElapsedNs))
	assert.Len(t, all, 2)
	assert.Contains(t, all, timeline.Monotonic)
	assert.Contains(t, all, timeline.Real)
	assert.NotContains(t, all, timeline.Boot)
}
