package viewport

import "time"

const (
	// ScrollStep is the distance of one Scroll call in pixels.
	ScrollStep = 32
	// LargeStepFactor multiplies ScrollStep for large steps.
	LargeStepFactor = 4

	DefaultFriction = 0.85
	MinFriction     = 0.01
	MaxFriction     = 0.99

	// GlideEpsilon is the speed in pixels per second below which a glide stops.
	GlideEpsilon = 1.0

	// AnimationDuration is the length of a non-immediate center transition.
	AnimationDuration = 300 * time.Millisecond

	// TickInterval is the suggested period of the timer driving Advance.
	TickInterval = time.Second / 60

	// maxSampleGap is the longest pause between pointer samples that still
	// counts as one movement for velocity estimation.
	maxSampleGap = 100 * time.Millisecond
)

// PanMode selects how the viewport reacts to pointer-driven panning.
type PanMode int

const (
	// PanFree follows the pointer and stops when it is released.
	PanFree PanMode = iota
	// PanFriction follows the pointer and glides on release, decaying by the
	// friction coefficient every tick.
	PanFriction
	// PanDisabled ignores pointer-driven panning.
	PanDisabled
)

func (m PanMode) String() string {
	switch m {
	case PanFree:
		return "free"
	case PanFriction:
		return "friction"
	case PanDisabled:
		return "disabled"
	}
	return "unknown"
}

// ParsePanMode is the inverse of PanMode.String.
func ParsePanMode(s string) (PanMode, bool) {
	for _, m := range []PanMode{PanFree, PanFriction, PanDisabled} {
		if m.String() == s {
			return m, true
		}
	}
	return PanFriction, false
}

// Direction of a discrete scroll.
type Direction int

const (
	North Direction = iota
	South
	East
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	case West:
		return "west"
	}
	return "unknown"
}

// delta returns the unit screen vector of the direction.
func (d Direction) delta() (float64, float64) {
	switch d {
	case North:
		return 0, -1
	case South:
		return 0, 1
	case East:
		return 1, 0
	case West:
		return -1, 0
	}
	return 0, 0
}
