package camera

import (
	"fmt"

	"github.com/cjeanneret/TurretGo/internal/config"
	"github.com/cjeanneret/TurretGo/internal/debug"
)

// PixelFormat tells how Frame.Data is encoded.
type PixelFormat int

const (
	JPEG      PixelFormat = iota
	Grayscale             // 1 byte per pixel
	RGB565                // 2 bytes per pixel, big endian
)

func (f PixelFormat) String() string {
	switch f {
	case JPEG:
		return "jpeg"
	case Grayscale:
		return "grayscale"
	case RGB565:
		return "rgb565"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// Frame is one captured image. Data belongs to the Source until Release.
type Frame struct {
	Width  int
	Height int
	Format PixelFormat
	Data   []byte
}

// Source is the high-level interface used by the rest of the application.
// It represents an abstract "camera", regardless of how it's attached
// (USB/V4L2, replayed files, synthetic).
//
// Every frame returned by Acquire must be passed to Release exactly once
// before the next Acquire.
type Source interface {
	// Acquire returns the next frame, or false when none is available.
	Acquire() (*Frame, bool)
	// Release hands the frame buffer back to the source.
	Release(*Frame)
	Close() error
}

// Open builds the source selected by cfg.Type.
func Open(cfg config.CameraConfig) (Source, error) {
	debug.Info("Camera: %s %dx%d", cfg.Type, cfg.Width, cfg.Height)
	switch cfg.Type {
	case "gocv":
		return OpenGoCV(cfg)
	case "dir":
		return OpenDir(cfg.Dir)
	case "mock":
		return NewSynthetic(cfg.Width, cfg.Height), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Type)
	}
}
