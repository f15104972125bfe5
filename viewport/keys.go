package viewport

// Key is a navigation key understood by the viewport. Hosts translate their
// toolkit's key events into these codes.
type Key int

const (
	KeyUnknown Key = iota
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyZoomIn
	KeyZoomOut
	// KeyShift selects large scroll steps while held.
	KeyShift
)

// HandleKeyPress performs the key's action and reports whether the key was
// consumed. Unknown keys are left to other handlers.
func (v *Viewport) HandleKeyPress(key Key) bool {
	switch key {
	case KeyLeft:
		v.Scroll(West, v.largeStep)
	case KeyRight:
		v.Scroll(East, v.largeStep)
	case KeyUp:
		v.Scroll(North, v.largeStep)
	case KeyDown:
		v.Scroll(South, v.largeStep)
	case KeyZoomIn:
		v.ZoomIn()
	case KeyZoomOut:
		v.ZoomOut()
	case KeyShift:
		v.largeStep = true
	default:
		return false
	}
	return true
}

// HandleKeyRelease reports whether the key belongs to the viewport.
func (v *Viewport) HandleKeyRelease(key Key) bool {
	switch key {
	case KeyShift:
		v.largeStep = false
	case KeyLeft, KeyRight, KeyUp, KeyDown, KeyZoomIn, KeyZoomOut:
	default:
		return false
	}
	return true
}
