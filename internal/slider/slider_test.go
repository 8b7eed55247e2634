package slider

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var container = Rect{Left: 100, Width: 400}

func TestNewClampsDefault(t *testing.T) {
	assert.Equal(t, 50.0, New(50).Percent())
	assert.Equal(t, 0.0, New(-20).Percent())
	assert.Equal(t, 100.0, New(250).Percent())
	assert.Equal(t, DefaultPercent, New(math.NaN()).Percent())
}

func TestDragStartRecomputesImmediately(t *testing.T) {
	s := New(50)
	s.DragStart(200, container)
	assert.True(t, s.Dragging())
	assert.Equal(t, 25.0, s.Percent())
}

func TestDragMoveRequiresDragging(t *testing.T) {
	s := New(50)
	s.DragMove(400, container)
	assert.Equal(t, 50.0, s.Percent(), "move without start is ignored")

	s.DragStart(300, container)
	s.DragMove(400, container)
	assert.Equal(t, 75.0, s.Percent())

	s.DragEnd()
	s.DragMove(100, container)
	assert.Equal(t, 75.0, s.Percent(), "move after end is ignored")
}

func TestPercentAlwaysClamped(t *testing.T) {
	xs := []float64{-1e9, -500, 0, 99.999, 100, 250, 500, 500.001, 1e9, math.Inf(1), math.Inf(-1)}
	for _, x := range xs {
		s := New(50)
		s.DragStart(x, container)
		p := s.Percent()
		assert.GreaterOrEqual(t, p, 0.0, "x=%v", x)
		assert.LessOrEqual(t, p, 100.0, "x=%v", x)
		s.DragMove(-x, container)
		p = s.Percent()
		assert.GreaterOrEqual(t, p, 0.0, "x=%v", -x)
		assert.LessOrEqual(t, p, 100.0, "x=%v", -x)
	}
}

func TestZeroWidthContainerLeavesPercentUnchanged(t *testing.T) {
	s := New(42)
	require.NotPanics(t, func() {
		s.DragStart(300, Rect{Left: 100, Width: 0})
		s.DragMove(10, Rect{Left: 100, Width: 0})
		s.DragMove(10, Rect{Left: 100, Width: -5})
	})
	assert.Equal(t, 42.0, s.Percent())
	assert.True(t, s.Dragging(), "drag still starts so a later measurement can apply")

	s.DragMove(300, container)
	assert.Equal(t, 50.0, s.Percent())
}

func TestJumpIgnoresDragState(t *testing.T) {
	s := New(50)
	for _, p := range []float64{0, 50, 100} {
		s.Jump(p)
		assert.Equal(t, p, s.Percent())
	}
	s.Jump(140)
	assert.Equal(t, 100.0, s.Percent())
	s.Jump(math.NaN())
	assert.Equal(t, 100.0, s.Percent())
	assert.False(t, s.Dragging())
}

func TestDragAcrossContainerTracksMonotonically(t *testing.T) {
	s := New(50)
	s.DragStart(container.Left, container)
	assert.Equal(t, 0.0, s.Percent())
	assert.Equal(t, "0%", s.HandleLeft())

	prev := s.Percent()
	for x := container.Left; x <= container.Right(); x += 7 {
		s.DragMove(x, container)
		p := s.Percent()
		assert.GreaterOrEqual(t, p, prev)
		assert.LessOrEqual(t, p, 100.0)
		prev = p
	}
	s.DragMove(container.Right(), container)
	assert.Equal(t, 100.0, s.Percent())
	assert.Equal(t, "100%", s.HandleLeft())
	assert.Equal(t, "inset(0 0% 0 0)", s.ClipInset())
}

func TestClipInsetAndHandle(t *testing.T) {
	assert.Equal(t, "inset(0 50% 0 0)", ClipInset(50))
	assert.Equal(t, "inset(0 100% 0 0)", ClipInset(0))
	assert.Equal(t, "inset(0 87.5% 0 0)", ClipInset(12.5))
	assert.Equal(t, "33.33%", HandleLeft(100.0/3))
	assert.Equal(t, "100%", HandleLeft(130))
}

func TestGlobalReleaseEndsDragOutsideBounds(t *testing.T) {
	hub := NewHub()
	s := New(50)
	s.Mount(hub)
	require.Equal(t, 1, hub.Listeners())

	s.DragStart(200, container)
	s.DragMove(900, container)
	require.True(t, s.Dragging())

	hub.Release()
	assert.False(t, s.Dragging())
	assert.Equal(t, 100.0, s.Percent())
}

func TestUnmountReleasesListener(t *testing.T) {
	hub := NewHub()
	s := New(50)
	s.Mount(hub)
	s.Mount(hub)
	assert.Equal(t, 1, hub.Listeners(), "remount replaces the registration")

	s.DragStart(200, container)
	s.Unmount()
	assert.Equal(t, 0, hub.Listeners())
	assert.False(t, s.Dragging())

	s.Unmount()
	assert.Equal(t, 0, hub.Listeners())
}
