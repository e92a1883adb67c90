// Package turret runs the control cycle: it arbitrates between the joystick
// and the motion detector and dispatches the resulting direction pair to the
// actuators.
//
// All state lives in the goroutine that calls RunCycle. Other goroutines only
// see Snapshot copies handed to the Publisher and may ask for a mode change
// through RequestMode.
package turret

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/TurretGo/internal/debug"
	"github.com/cjeanneret/TurretGo/internal/hw/camera"
	"github.com/cjeanneret/TurretGo/internal/logic/detection"
	"github.com/cjeanneret/TurretGo/internal/logic/direction"
)

// Joystick is the manual input.
type Joystick interface {
	Poll(now time.Time)
	ButtonPressedEdge() bool
	SpeedX(min, max int) int
	SpeedY(min, max int) int
}

// Mover dispatches direction pairs to the actuators.
type Mover interface {
	MoveRelative(p direction.Pair)
	Tick(now time.Time)
}

// Event describes a direction or mode transition.
type Event struct {
	Time        time.Time
	Mode        Mode
	ModeChanged bool
	Pair        direction.Pair
	Observation detection.Observation
}

// Sink records transitions (log file, telemetry). Failures are ignored.
type Sink interface {
	Record(Event) error
}

// FrameSaver stores frames that produced a detection.
type FrameSaver interface {
	SaveFrame(data []byte, name string) error
}

// Publisher receives a snapshot after every cycle. It must not block.
type Publisher interface {
	Publish(Snapshot)
}

// StatusFunc fills the actuator and health fields of a snapshot.
type StatusFunc func(*Snapshot)

// Config holds the controller settings.
type Config struct {
	SpeedMin    int  // joystick output range
	SpeedMax    int
	SaveFrames  bool // hand frames with a detection to the FrameSaver
	InitialMode Mode
}

// diffMapper is implemented by detectors that keep a difference map.
type diffMapper interface {
	DiffMap(dst []byte) (w, h int, out []byte)
}

// Controller is the turret state machine.
type Controller struct {
	cfg   Config
	js    Joystick
	cam   camera.Source
	det   detection.Detector
	mover Mover

	sinks  []Sink
	saver  FrameSaver
	pub    Publisher
	status StatusFunc

	requests chan Mode

	mode     Mode
	lastPair direction.Pair
	cycle    uint64
	snap     Snapshot
}

// New creates a controller in cfg.InitialMode.
func New(cfg Config, js Joystick, cam camera.Source, det detection.Detector, mover Mover) *Controller {
	return &Controller{
		cfg:      cfg,
		js:       js,
		cam:      cam,
		det:      det,
		mover:    mover,
		mode:     cfg.InitialMode,
		requests: make(chan Mode, 1),
	}
}

// AddSink registers a transition recorder.
func (c *Controller) AddSink(s Sink) { c.sinks = append(c.sinks, s) }

// SetFrameSaver registers where detection frames go when SaveFrames is set.
func (c *Controller) SetFrameSaver(f FrameSaver) { c.saver = f }

// SetPublisher registers the snapshot consumer.
func (c *Controller) SetPublisher(p Publisher) { c.pub = p }

// SetStatus registers the function that reports actuator state.
func (c *Controller) SetStatus(f StatusFunc) { c.status = f }

// Mode returns the active mode. Call it from the control goroutine only.
func (c *Controller) Mode() Mode { return c.mode }

// RequestMode asks for a mode change at the start of the next cycle.
// It is safe to call from any goroutine; a newer request replaces a pending one.
func (c *Controller) RequestMode(m Mode) {
	for {
		select {
		case c.requests <- m:
			return
		default:
		}
		select {
		case <-c.requests:
		default:
		}
	}
}

// RunCycle executes one control cycle and returns the dispatched pair.
func (c *Controller) RunCycle(now time.Time) direction.Pair {
	c.cycle++
	modeChanged := c.updateMode(now)

	var pair direction.Pair
	switch c.mode {
	case Manual:
		sx := c.js.SpeedX(c.cfg.SpeedMin, c.cfg.SpeedMax)
		sy := c.js.SpeedY(c.cfg.SpeedMin, c.cfg.SpeedMax)
		pair = direction.FromSpeeds(sx, sy)
	case Autonomous:
		pair = c.detect(now)
	}

	c.mover.MoveRelative(pair)
	c.mover.Tick(now)

	if modeChanged || pair != c.lastPair {
		c.record(Event{
			Time:        now,
			Mode:        c.mode,
			ModeChanged: modeChanged,
			Pair:        pair,
			Observation: c.det.LastObservation(),
		})
	}
	c.lastPair = pair
	c.publish(now, pair)
	return pair
}

// Run calls RunCycle every interval until ctx is cancelled.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	debug.Mode(c.mode)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			c.RunCycle(now)
		}
	}
}

func (c *Controller) updateMode(now time.Time) bool {
	prev := c.mode
	c.js.Poll(now)
	if c.js.ButtonPressedEdge() {
		c.mode = c.mode.Toggle()
	}
	select {
	case m := <-c.requests:
		c.mode = m
	default:
	}
	if c.mode == prev {
		return false
	}
	debug.Mode(c.mode)
	return true
}

// detect acquires one frame, runs the detector and always releases the frame.
func (c *Controller) detect(now time.Time) (pair direction.Pair) {
	f, ok := c.cam.Acquire()
	if !ok {
		return direction.None
	}
	defer c.cam.Release(f)
	defer func() {
		if r := recover(); r != nil {
			debug.Error(fmt.Errorf("detector panic: %v", r))
			pair = direction.None
		}
	}()

	pair = c.det.Observe(f)
	obs := c.det.LastObservation()
	if obs.Detected && c.cfg.SaveFrames && c.saver != nil {
		name := fmt.Sprintf("frame_%s_%06d%s", now.UTC().Format("20060102T150405"), c.cycle, frameExt(f.Format))
		if err := c.saver.SaveFrame(f.Data, name); err != nil {
			debug.Verbose("Frame not saved: %v", err)
		}
	}
	if c.pub != nil {
		c.captureForSnapshot(f)
	}
	return pair
}

func (c *Controller) captureForSnapshot(f *camera.Frame) {
	c.snap.Frame = &camera.Frame{
		Width:  f.Width,
		Height: f.Height,
		Format: f.Format,
		Data:   append([]byte(nil), f.Data...),
	}
	if dm, ok := c.det.(diffMapper); ok {
		c.snap.DiffWidth, c.snap.DiffHeight, c.snap.DiffMap = dm.DiffMap(nil)
	}
}

func (c *Controller) record(ev Event) {
	if ev.ModeChanged {
		debug.Info("Mode %s, direction %v", ev.Mode, ev.Pair)
	} else {
		debug.Direction(sourceName(ev.Mode), ev.Pair)
	}
	for _, s := range c.sinks {
		if err := s.Record(ev); err != nil {
			debug.Verbose("Sink %T: %v", s, err)
		}
	}
}

func (c *Controller) publish(now time.Time, pair direction.Pair) {
	if c.pub == nil {
		return
	}
	c.snap.Time = now
	c.snap.Cycle = c.cycle
	c.snap.Mode = c.mode
	c.snap.Direction = pair
	c.snap.Observation = c.det.LastObservation()
	c.snap.Health = nil
	if c.status != nil {
		c.status(&c.snap)
	}
	c.pub.Publish(c.snap)
}

func sourceName(m Mode) string {
	if m == Manual {
		return "Joystick"
	}
	return "Detector"
}

func frameExt(f camera.PixelFormat) string {
	switch f {
	case camera.JPEG:
		return ".jpg"
	case camera.Grayscale:
		return ".gray"
	default:
		return ".rgb565"
	}
}
