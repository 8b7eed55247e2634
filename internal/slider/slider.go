// Package slider holds the before/after comparison state: a single clip
// boundary in percent driven by pointer and touch drags.
package slider

import (
	"fmt"
	"math"
	"sync"
)

// DefaultPercent is the boundary position on mount.
const DefaultPercent = 50.0

// Rect is the measured horizontal extent of the slider container.
type Rect struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

// Right returns the right edge of the container.
func (r Rect) Right() float64 { return r.Left + r.Width }

// Slider owns one boundary value. It is safe for concurrent use.
type Slider struct {
	mu         sync.Mutex
	percent    float64
	dragging   bool
	unregister func()
}

// New returns a slider at the given default, clamped to [0, 100]. A NaN
// default falls back to DefaultPercent.
func New(defaultPercent float64) *Slider {
	if math.IsNaN(defaultPercent) {
		defaultPercent = DefaultPercent
	}
	return &Slider{percent: clamp(defaultPercent)}
}

// Percent returns the boundary position.
func (s *Slider) Percent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.percent
}

// Dragging reports whether a drag is in progress.
func (s *Slider) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragging
}

// DragStart begins a drag and moves the boundary to x.
func (s *Slider) DragStart(x float64, rect Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragging = true
	s.updateLocked(x, rect)
}

// DragMove moves the boundary to x while a drag is in progress.
func (s *Slider) DragMove(x float64, rect Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dragging {
		return
	}
	s.updateLocked(x, rect)
}

// DragEnd finishes a drag.
func (s *Slider) DragEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragging = false
}

// Jump sets the boundary directly, regardless of drag state.
func (s *Slider) Jump(percent float64) {
	if math.IsNaN(percent) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.percent = clamp(percent)
}

// updateLocked maps x into the container. An unmeasured container (zero or
// negative width) leaves the boundary unchanged.
func (s *Slider) updateLocked(x float64, rect Rect) {
	if p, ok := PercentAt(x, rect); ok {
		s.percent = p
	}
}

// PercentAt converts a client x coordinate into a clamped percentage of rect.
// ok is false when rect has no usable width or x is not a number.
func PercentAt(x float64, rect Rect) (float64, bool) {
	if !(rect.Width > 0) || math.IsInf(rect.Width, 0) || math.IsNaN(x) || math.IsNaN(rect.Left) {
		return 0, false
	}
	return clamp((x - rect.Left) / rect.Width * 100), true
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// ClipInset is the CSS clip-path revealing the after layer from the left edge
// up to the boundary.
func (s *Slider) ClipInset() string {
	return ClipInset(s.Percent())
}

// HandleLeft is the CSS left offset of the boundary handle.
func (s *Slider) HandleLeft() string {
	return HandleLeft(s.Percent())
}

// ClipInset formats the clip-path for percent.
func ClipInset(percent float64) string {
	return fmt.Sprintf("inset(0 %s%% 0 0)", trim(100-clamp(percent)))
}

// HandleLeft formats the handle offset for percent.
func HandleLeft(percent float64) string {
	return trim(clamp(percent)) + "%"
}

func trim(v float64) string {
	return fmt.Sprintf("%.4g", math.Round(v*100)/100)
}
