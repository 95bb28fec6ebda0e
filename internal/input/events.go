package input

// Event is any raw input the dispatcher understands. Pointer coordinates are
// viewport pixels.
type Event interface {
	isEvent()
}

type PointerDown struct {
	X, Y float64
}

// PointerMove carries the movement since the previous move event.
type PointerMove struct {
	DX, DY float64
}

type PointerUp struct {
	X, Y float64
}

// Wheel is a scroll tick at (X, Y). A positive DeltaY scrolls down, which
// zooms out.
type Wheel struct {
	X, Y   float64
	DeltaY float64
}

type KeyCode string

const (
	KeyLeft   KeyCode = "ArrowLeft"
	KeyRight  KeyCode = "ArrowRight"
	KeyUp     KeyCode = "ArrowUp"
	KeyDown   KeyCode = "ArrowDown"
	KeyEnter  KeyCode = "Enter"
	KeyEscape KeyCode = "Escape"
)

type Key struct {
	Code KeyCode
	Ctrl bool
}

// CommitColor is the color picker's choice for the focused cell.
type CommitColor struct {
	Index int
}

// CancelPicker closes the color picker without painting.
type CancelPicker struct{}

// Resize reports a new viewport size.
type Resize struct {
	W, H float64
}

func (PointerDown) isEvent()  {}
func (PointerMove) isEvent()  {}
func (PointerUp) isEvent()    {}
func (Wheel) isEvent()        {}
func (Key) isEvent()          {}
func (CommitColor) isEvent()  {}
func (CancelPicker) isEvent() {}
func (Resize) isEvent()       {}
