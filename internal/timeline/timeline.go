package timeline

import (
	"sort"
	"strconv"
	"strings"
)

// FrameDuration is the length in seconds of the synthetic gap inserted next to
// non-numeric frames, and of the last frame.
const FrameDuration = 0.016

// Frame is one timeline frame: either a numeric offset in milliseconds or a
// free-form label such as "before".
type Frame struct {
	Label   string
	Ms      float64
	Numeric bool
}

// NumericFrame returns a frame at ms milliseconds.
func NumericFrame(ms float64) Frame {
	return Frame{Ms: ms, Numeric: true}
}

// LabelFrame returns a non-numeric frame.
func LabelFrame(label string) Frame {
	return Frame{Label: label}
}

// ParseFrames turns raw frame strings into frames; anything that parses as a
// number is a numeric frame.
func ParseFrames(raw []string) []Frame {
	frames := make([]Frame, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if v, err := strconv.ParseFloat(r, 64); err == nil {
			frames = append(frames, NumericFrame(v))
			continue
		}
		frames = append(frames, LabelFrame(r))
	}
	return frames
}

// Timeline maps frame indices to times in seconds and back. Frame i covers
// [FrameTimes[i], FrameTimes[i+1]); the last frame extends to Duration.
type Timeline struct {
	labels []string
	times  []float64
}

// NewTimeline builds a timeline. The first frame is at time 0. The gap between
// two consecutive numeric frames is their difference in milliseconds; any gap
// touching a non-numeric frame is FrameDuration.
func NewTimeline(frames []Frame) *Timeline {
	tl := &Timeline{
		labels: make([]string, len(frames)),
		times:  make([]float64, len(frames)),
	}
	for i, f := range frames {
		if f.Numeric {
			tl.labels[i] = strconv.FormatFloat(f.Ms, 'f', -1, 64) + "ms"
		} else {
			tl.labels[i] = f.Label
		}
		if i == 0 {
			continue
		}
		prev := frames[i-1]
		gap := FrameDuration
		if prev.Numeric && f.Numeric {
			gap = max((f.Ms-prev.Ms)/1000, 0)
		}
		tl.times[i] = tl.times[i-1] + gap
	}
	return tl
}

// FrameCount returns the number of frames.
func (tl *Timeline) FrameCount() int { return len(tl.labels) }

// FrameLabels returns a copy of the frame labels.
func (tl *Timeline) FrameLabels() []string {
	return append([]string(nil), tl.labels...)
}

// FrameTimes returns a copy of the frame start times in seconds.
func (tl *Timeline) FrameTimes() []float64 {
	return append([]float64(nil), tl.times...)
}

// Duration is the end of the last frame.
func (tl *Timeline) Duration() float64 {
	if len(tl.times) == 0 {
		return 0
	}
	return tl.times[len(tl.times)-1] + FrameDuration
}

// FrameToTime returns the start time of frame i, clamping i into range.
func (tl *Timeline) FrameToTime(i int) float64 {
	if len(tl.times) == 0 {
		return 0
	}
	i = min(max(i, 0), len(tl.times)-1)
	return tl.times[i]
}

// TimeToFrame returns the frame whose interval contains t, clamping times
// before the first frame to 0 and after the last to the final frame.
func (tl *Timeline) TimeToFrame(t float64) int {
	if len(tl.times) == 0 {
		return 0
	}
	idx := sort.Search(len(tl.times), func(i int) bool { return tl.times[i] > t })
	return max(idx-1, 0)
}

// FrameInterval returns the [start, end) interval of frame i.
func (tl *Timeline) FrameInterval(i int) (start, end float64) {
	if len(tl.times) == 0 {
		return 0, 0
	}
	i = min(max(i, 0), len(tl.times)-1)
	if i+1 < len(tl.times) {
		return tl.times[i], tl.times[i+1]
	}
	return tl.times[i], tl.Duration()
}
