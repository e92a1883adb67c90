// Package detection turns camera frames into a direction pair.
package detection

import (
	"errors"

	"github.com/cjeanneret/TurretGo/internal/hw/camera"
	"github.com/cjeanneret/TurretGo/internal/logic/direction"
)

var (
	// ErrBufferBudget means the frame needs more working memory than allowed.
	ErrBufferBudget = errors.New("detection: frame exceeds buffer budget")
	// ErrDecode means the compressed frame could not be decoded.
	ErrDecode = errors.New("detection: decode failed")
	// ErrBadFrame means the frame is empty or its size does not match its format.
	ErrBadFrame = errors.New("detection: malformed frame")
)

// Observation is the outcome of one detection cycle. No motion is the zero
// Observation; the frame size is only filled in for a detection.
type Observation struct {
	Detected    bool `json:"detected"`
	CentroidX   int  `json:"centroid_x"`
	CentroidY   int  `json:"centroid_y"`
	FrameWidth  int  `json:"frame_width"`
	FrameHeight int  `json:"frame_height"`
	PixelCount  int  `json:"pixel_count"`
}

// Detector converts a frame into a movement command.
// A nil frame yields direction.None and leaves the detector unchanged.
type Detector interface {
	Observe(f *camera.Frame) direction.Pair
	LastObservation() Observation
}

// Config holds the detector thresholds.
type Config struct {
	DiffThreshold       int // per-pixel luminance change counted as motion
	MotionThreshold     int // minimum changed pixels for a detection
	CenterDeadzone      int // pixels around the centre with no command
	EdgeMarginPercent   int // top, left and right noise bands
	BottomMarginPercent int // bottom noise band
	MaxBufferBytes      int // 0 = unlimited
}

// DefaultConfig returns the thresholds tuned for a 320x240 sensor.
func DefaultConfig() Config {
	return Config{
		DiffThreshold:       20,
		MotionThreshold:     800,
		CenterDeadzone:      80,
		EdgeMarginPercent:   5,
		BottomMarginPercent: 10,
		MaxBufferBytes:      4 << 20,
	}
}
