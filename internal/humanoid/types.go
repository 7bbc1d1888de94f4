// -- internal/humanoid/types.go --
package humanoid

// Vector2D is a point or offset in page coordinates.
type Vector2D struct {
	X float64
	Y float64
}

// Add returns the component-wise sum.
func (v Vector2D) Add(o Vector2D) Vector2D {
	return Vector2D{X: v.X + o.X, Y: v.Y + o.Y}
}

// MouseEventType mirrors the DOM event type strings used by automation
// protocols.
type MouseEventType string

const (
	MouseMove    MouseEventType = "mouseMoved"
	MousePress   MouseEventType = "mousePressed"
	MouseRelease MouseEventType = "mouseReleased"
)

// MouseButton identifies the button involved in a mouse event.
type MouseButton string

const (
	ButtonNone MouseButton = "none"
	ButtonLeft MouseButton = "left"
)

// MouseEventData is the protocol-agnostic payload for a dispatched mouse
// event.
type MouseEventData struct {
	Type   MouseEventType
	X      float64
	Y      float64
	Button MouseButton
	// ClickCount is set for press/release events.
	ClickCount int
}
