package motion

import (
	"time"

	"github.com/cjeanneret/TurretGo/internal/debug"
	"github.com/cjeanneret/TurretGo/internal/logic/direction"
)

// Pan is the horizontal actuator (the stepper).
type Pan interface {
	SetRelativeTarget(delta int)
	Tick(now time.Time)
	IsMoving() bool
	Off()
}

// Tilt is the vertical actuator (the servo).
type Tilt interface {
	SetTarget(angle int)
	CurrentAngle() int
	Tick(now time.Time)
}

// Controller orchestrates pan/tilt movements from direction pairs.
// It's an intermediate layer between the turret logic (manual or
// autonomous direction sources) and the actuator drivers.
type Controller struct {
	pan       Pan
	tilt      Tilt
	panSteps  int // steps per Left/Right command
	tiltDelta int // degrees per Up/Down command
}

func NewController(pan Pan, tilt Tilt, panSteps, tiltDegrees int) *Controller {
	return &Controller{
		pan:       pan,
		tilt:      tilt,
		panSteps:  panSteps,
		tiltDelta: tiltDegrees,
	}
}

// MoveRelative turns a direction pair into new actuator targets, measured
// from where each actuator is now. Right and Up are positive. None leaves
// the axis untouched.
func (c *Controller) MoveRelative(p direction.Pair) {
	switch p.X {
	case direction.Right:
		c.pan.SetRelativeTarget(c.panSteps)
	case direction.Left:
		c.pan.SetRelativeTarget(-c.panSteps)
	}
	switch p.Y {
	case direction.Up:
		c.tilt.SetTarget(c.tilt.CurrentAngle() + c.tiltDelta)
	case direction.Down:
		c.tilt.SetTarget(c.tilt.CurrentAngle() - c.tiltDelta)
	}
	if !p.IsNone() {
		debug.Verbose("Motion: %v", p)
	}
}

// Tick advances both actuators.
func (c *Controller) Tick(now time.Time) {
	c.pan.Tick(now)
	c.tilt.Tick(now)
}

// IsMoving reports whether the pan axis still has steps to do.
func (c *Controller) IsMoving() bool {
	return c.pan.IsMoving()
}

// Off releases the stepper coils.
func (c *Controller) Off() {
	c.pan.Off()
}
