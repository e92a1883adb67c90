package turret

import (
	"time"

	"github.com/cjeanneret/TurretGo/internal/hw/camera"
	"github.com/cjeanneret/TurretGo/internal/logic/detection"
	"github.com/cjeanneret/TurretGo/internal/logic/direction"
)

// PanStatus reports the stepper axis.
type PanStatus struct {
	Position   int     `json:"position"`
	Target     int     `json:"target"`
	HeadingDeg float64 `json:"heading_deg"`
	Moving     bool    `json:"moving"`
}

// TiltStatus reports the servo axis.
type TiltStatus struct {
	Angle  int `json:"angle"`
	Target int `json:"target"`
}

// Snapshot is the state published after a cycle. Slices are never modified
// once published, so readers may keep them.
type Snapshot struct {
	Time        time.Time             `json:"time"`
	Cycle       uint64                `json:"cycle"`
	Mode        Mode                  `json:"mode"`
	Direction   direction.Pair        `json:"direction"`
	Observation detection.Observation `json:"observation"`
	Pan         PanStatus             `json:"pan"`
	Tilt        TiltStatus            `json:"tilt"`
	Health      []string              `json:"health,omitempty"`

	// Latest frame seen by the detector and its difference map.
	Frame      *camera.Frame `json:"-"`
	DiffMap    []byte        `json:"-"`
	DiffWidth  int           `json:"-"`
	DiffHeight int           `json:"-"`
}
