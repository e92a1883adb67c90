//go:build !gocv

package camera

import (
	"errors"

	"github.com/cjeanneret/TurretGo/internal/config"
)

// OpenGoCV is unavailable without the gocv build tag (OpenCV is not linked).
func OpenGoCV(config.CameraConfig) (Source, error) {
	return nil, errors.New("camera type gocv requires building with -tags gocv")
}
