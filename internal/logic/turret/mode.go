package turret

import "fmt"

// Mode selects the direction source.
type Mode int

const (
	Autonomous Mode = iota // motion detector drives the turret
	Manual                 // joystick drives the turret
)

func (m Mode) String() string {
	switch m {
	case Autonomous:
		return "AI_AUTONOMOUS"
	case Manual:
		return "USER_MANUAL"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == Manual {
		return Autonomous
	}
	return Manual
}

// MarshalText renders the mode name for JSON snapshots.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode accepts "manual" or "autonomous" as well as the display names.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "manual", "USER_MANUAL":
		return Manual, nil
	case "autonomous", "auto", "AI_AUTONOMOUS":
		return Autonomous, nil
	default:
		return Autonomous, fmt.Errorf("unknown mode %q (want manual or autonomous)", s)
	}
}
