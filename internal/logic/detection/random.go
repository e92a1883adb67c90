package detection

import (
	"math/rand"

	"github.com/cjeanneret/TurretGo/internal/hw/camera"
	"github.com/cjeanneret/TurretGo/internal/logic/direction"
)

// Random ignores frame content and commands a random direction each cycle.
// It exercises the actuators when no camera scene is available.
type Random struct {
	rng  *rand.Rand
	last Observation
}

// NewRandom creates a random detector with a fixed seed.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

// Observe draws a random pair; the frame only sizes the fake centroid.
func (r *Random) Observe(f *camera.Frame) direction.Pair {
	if f == nil {
		return direction.None
	}
	p := direction.Pair{
		X: direction.X(r.rng.Intn(3)),
		Y: direction.Y(r.rng.Intn(3)),
	}
	r.last = Observation{}
	if !p.IsNone() && f.Width > 0 && f.Height > 0 {
		r.last = Observation{
			Detected:    true,
			CentroidX:   r.rng.Intn(f.Width),
			CentroidY:   r.rng.Intn(f.Height),
			FrameWidth:  f.Width,
			FrameHeight: f.Height,
		}
	}
	return p
}

// LastObservation returns the observation of the last non-nil frame.
func (r *Random) LastObservation() Observation {
	return r.last
}
