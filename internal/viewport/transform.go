// Package viewport turns pan, zoom and focus requests into a clamped affine
// view of the canvas: a translate (X, Y) in viewport pixels plus a uniform
// scale, with the transform origin at the canvas' top-left corner.
//
// A canvas-local point a is drawn at viewport position (X, Y) + Scale·a. The
// translate is kept inside a range recomputed from the canvas size, the scale
// and the viewport size, so that the viewport center never leaves the canvas.
package viewport

import "time"

// ZoomStep is the multiplicative change applied by one wheel or keyboard zoom
// tick.
const ZoomStep = 1.1

// Transition hints tell a renderer how long to animate towards a new
// position. They carry no correctness obligation.
const (
	TransitionPan        = 100 * time.Millisecond
	TransitionZoom       = 200 * time.Millisecond
	TransitionClickFocus = 700 * time.Millisecond
	TransitionEnterFocus = 400 * time.Millisecond
	TransitionUnfocus    = 200 * time.Millisecond
)

type ZoomDirection int

const (
	ZoomIn ZoomDirection = iota + 1
	ZoomOut
)

func (d ZoomDirection) String() string {
	switch d {
	case ZoomIn:
		return "in"
	case ZoomOut:
		return "out"
	default:
		return "none"
	}
}

// Position is the current affine view.
type Position struct {
	X     float64
	Y     float64
	Scale float64
}

// FocusState names the cell targeted by the color picker.
type FocusState struct {
	Focused bool
	Row     int
	Col     int
}

type Config struct {
	GridSize   int
	CellSize   float64
	Viewport   Size
	ScaleRange Range
	FocusRange Range
}

// Transform is the viewport state machine. It is not safe for concurrent use;
// the owning session serializes every call.
type Transform struct {
	cfg      Config
	viewport Size
	canvas   Size

	pos    Position
	xRange Range
	yRange Range

	crosshair     Crosshair
	focus         FocusState
	preFocusScale float64
	transition    time.Duration
}

// New returns a transform centered on the canvas origin at unit scale.
func New(cfg Config) *Transform {
	side := float64(cfg.GridSize) * cfg.CellSize
	t := &Transform{
		cfg:        cfg,
		viewport:   cfg.Viewport,
		canvas:     Size{W: side, H: side},
		transition: TransitionPan,
	}
	t.pos = Position{
		X:     cfg.Viewport.W / 2,
		Y:     cfg.Viewport.H / 2,
		Scale: cfg.ScaleRange.Clamp(1),
	}
	t.updateRanges()
	t.translate(0, 0)
	t.updateCrosshair()
	return t
}

func (t *Transform) Position() Position { return t.pos }
func (t *Transform) Crosshair() Crosshair { return t.crosshair }
func (t *Transform) Focus() FocusState { return t.focus }
func (t *Transform) Transition() time.Duration { return t.transition }
func (t *Transform) Ranges() (x Range, y Range) { return t.xRange, t.yRange }
func (t *Transform) Viewport() Size { return t.viewport }
func (t *Transform) Canvas() Size { return t.canvas }
func (t *Transform) CellSize() float64 { return t.cfg.CellSize }

// SetCanvasDimension records the unscaled canvas size and re-clamps the
// translate into the range it implies.
func (t *Transform) SetCanvasDimension(width, height float64) {
	t.canvas = Size{W: width, H: height}
	t.updateRanges()
	t.translate(0, 0)
	t.updateCrosshair()
}

// SetViewportSize handles a window resize.
func (t *Transform) SetViewportSize(width, height float64) {
	t.viewport = Size{W: width, H: height}
	t.updateRanges()
	t.translate(0, 0)
	t.updateCrosshair()
}

// Translate pans the view by (dX, dY) viewport pixels.
func (t *Transform) Translate(dX, dY float64) {
	t.transition = TransitionPan
	t.translate(dX, dY)
	t.updateCrosshair()
}

// ScaleAt zooms one step in dir, keeping the canvas point under the viewport
// point anchor fixed.
func (t *Transform) ScaleAt(dir ZoomDirection, anchor Point) {
	t.transition = TransitionZoom
	t.zoomAbout(anchor, t.stepScale(dir), Point{})
	t.updateCrosshair()
}

// ScaleAtCenter zooms one step about the viewport center.
func (t *Transform) ScaleAtCenter(dir ZoomDirection) {
	t.transition = TransitionZoom
	t.zoomAbout(t.viewport.Center(), t.stepScale(dir), Point{})
	t.updateCrosshair()
}

// FocusAt zooms into the focus range and brings the point under anchor to
// the viewport center. The focused cell is the crosshair that results.
func (t *Transform) FocusAt(anchor Point) {
	t.transition = TransitionClickFocus
	center := t.viewport.Center()
	t.enterFocus(anchor, Point{X: anchor.X - center.X, Y: anchor.Y - center.Y})
}

// FocusCenter focuses the cell under the crosshair.
func (t *Transform) FocusCenter() {
	t.transition = TransitionEnterFocus
	t.enterFocus(t.viewport.Center(), Point{})
}

// Unfocus leaves focus mode, zooming back to the scale in use before focus
// about the viewport center. It does nothing when no cell is focused.
func (t *Transform) Unfocus() {
	if !t.focus.Focused {
		return
	}
	t.transition = TransitionUnfocus
	target := t.cfg.ScaleRange.Clamp(t.preFocusScale)
	t.focus = FocusState{}
	t.zoomAbout(t.viewport.Center(), target, Point{})
	t.updateCrosshair()
}

func (t *Transform) enterFocus(anchor, shift Point) {
	if !t.focus.Focused {
		t.preFocusScale = t.pos.Scale
	}
	next := t.cfg.FocusRange.Clamp(t.pos.Scale)
	t.zoomAbout(anchor, next, shift)
	t.updateCrosshair()
	t.focus = FocusState{Focused: true, Row: t.crosshair.Row, Col: t.crosshair.Col}
}

// activeRange is the scale interval the current mode allows.
func (t *Transform) activeRange() Range {
	if t.focus.Focused {
		return t.cfg.FocusRange
	}
	return t.cfg.ScaleRange
}

// stepScale returns the scale one zoom tick away, rounded to one decimal.
// When rounding would swallow the step entirely (small scales), the scale
// moves by a tenth instead so zooming never stalls before the range bound.
func (t *Transform) stepScale(dir ZoomDirection) float64 {
	rng := t.activeRange()
	cur := t.pos.Scale

	raw := cur
	switch dir {
	case ZoomIn:
		raw = cur * ZoomStep
	case ZoomOut:
		raw = cur / ZoomStep
	default:
		return cur
	}

	next := rng.Clamp(roundTenth(rng.Clamp(raw)))
	if next != cur {
		return next
	}
	switch {
	case dir == ZoomIn && cur < rng.Max:
		next = cur + 0.1
	case dir == ZoomOut && cur > rng.Min:
		next = cur - 0.1
	}
	return rng.Clamp(roundTenth(next))
}

// zoomAbout changes the scale to next while keeping the canvas point under
// anchor at the same viewport position, then pans by -shift.
func (t *Transform) zoomAbout(anchor Point, next float64, shift Point) {
	prev := t.pos.Scale
	local := t.ToCanvas(anchor)

	t.pos.Scale = next
	t.updateRanges()
	t.translate(local.X*(prev-next)-shift.X, local.Y*(prev-next)-shift.Y)
}

// ToCanvas converts a viewport point into unscaled canvas coordinates under
// the current position.
func (t *Transform) ToCanvas(p Point) Point {
	return Point{
		X: (p.X - t.pos.X) / t.pos.Scale,
		Y: (p.Y - t.pos.Y) / t.pos.Scale,
	}
}

func (t *Transform) updateRanges() {
	center := t.viewport.Center()
	t.xRange = Range{Min: -t.canvas.W*t.pos.Scale + center.X, Max: center.X}
	t.yRange = Range{Min: -t.canvas.H*t.pos.Scale + center.Y, Max: center.Y}
}

func (t *Transform) translate(dX, dY float64) {
	t.pos.X = t.xRange.Clamp(t.pos.X + dX)
	t.pos.Y = t.yRange.Clamp(t.pos.Y + dY)
}

func (t *Transform) updateCrosshair() {
	t.crosshair = ResolveCrosshair(t.pos, t.viewport, t.cfg.CellSize, t.cfg.GridSize)
}
