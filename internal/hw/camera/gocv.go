//go:build gocv

package camera

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/cjeanneret/TurretGo/internal/config"
	"github.com/cjeanneret/TurretGo/internal/debug"
)

// GoCV captures from a V4L2 device and hands out JPEG-encoded frames.
type GoCV struct {
	mu      sync.Mutex
	webcam  *gocv.VideoCapture
	img     gocv.Mat
	quality int
	held    *gocv.NativeByteBuffer
	reader  *timedRead
}

// OpenGoCV opens video device cfg.Device at the configured resolution.
func OpenGoCV(cfg config.CameraConfig) (Source, error) {
	webcam, err := gocv.VideoCaptureDevice(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open video device %d: %w", cfg.Device, err)
	}
	webcam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	webcam.Set(gocv.VideoCaptureBufferSize, 1)
	debug.Info("GoCV: device %d opened, read timeout %v", cfg.Device, cfg.ReadTimeout())
	c := &GoCV{
		webcam:  webcam,
		img:     gocv.NewMat(),
		quality: cfg.JPEGQuality,
	}
	c.reader = newTimedRead(func() bool { return c.webcam.Read(&c.img) }, cfg.ReadTimeout())
	return c, nil
}

func (c *GoCV) Acquire() (*Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held != nil {
		debug.Info("GoCV: frame acquired while previous one is still held")
		c.held.Close()
		c.held = nil
	}
	if ok := c.reader.Do(); !ok || c.img.Empty() {
		return nil, false
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, c.img, []int{gocv.IMWriteJpegQuality, c.quality})
	if err != nil {
		debug.Error(fmt.Errorf("gocv encode: %w", err))
		return nil, false
	}
	c.held = buf
	return &Frame{
		Width:  c.img.Cols(),
		Height: c.img.Rows(),
		Format: JPEG,
		Data:   buf.GetBytes(),
	}, true
}

func (c *GoCV) Release(f *Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held != nil {
		c.held.Close()
		c.held = nil
	}
	f.Data = nil
}

func (c *GoCV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held != nil {
		c.held.Close()
		c.held = nil
	}
	if err := c.reader.Wait(time.Second); err != nil {
		return err
	}
	c.img.Close()
	return c.webcam.Close()
}
