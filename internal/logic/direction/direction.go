// Package direction defines the per-cycle movement command shared by the
// input sources and the actuators.
package direction

import "fmt"

// X is a horizontal command.
type X int

const (
	XNone X = iota
	Right
	Left
)

func (x X) String() string {
	switch x {
	case XNone:
		return "None"
	case Right:
		return "Right"
	case Left:
		return "Left"
	default:
		return fmt.Sprintf("X(%d)", int(x))
	}
}

// Y is a vertical command.
type Y int

const (
	YNone Y = iota
	Up
	Down
)

func (y Y) String() string {
	switch y {
	case YNone:
		return "None"
	case Up:
		return "Up"
	case Down:
		return "Down"
	default:
		return fmt.Sprintf("Y(%d)", int(y))
	}
}

// Pair is the command for one control cycle. A None component means no
// change on that axis.
type Pair struct {
	X X
	Y Y
}

// None is the do-nothing pair.
var None = Pair{}

// IsNone reports whether neither axis is commanded.
func (p Pair) IsNone() bool {
	return p.X == XNone && p.Y == YNone
}

func (p Pair) String() string {
	return fmt.Sprintf("(%s, %s)", p.X, p.Y)
}

// FromSpeeds maps signed speeds to a pair: positive X is Right, positive Y is Up.
func FromSpeeds(sx, sy int) Pair {
	var p Pair
	switch {
	case sx > 0:
		p.X = Right
	case sx < 0:
		p.X = Left
	}
	switch {
	case sy > 0:
		p.Y = Up
	case sy < 0:
		p.Y = Down
	}
	return p
}

// MarshalText renders the pair for JSON snapshots.
func (p Pair) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
