// Package joystick reads a two-axis analog stick with a push button.
//
// Axes are sampled through an ADC and reported relative to a centre captured
// at calibration. The button is wired active LOW with the internal pull-up and
// debounced in software: a new state is accepted only after the raw reading
// has been stable for the debounce interval.
package joystick

import (
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/TurretGo/internal/debug"
	"github.com/cjeanneret/TurretGo/internal/hw/adc"
	"github.com/cjeanneret/TurretGo/internal/hw/gpio"
)

// Config describes the wiring and filtering of the stick.
type Config struct {
	XChannel           int
	YChannel           int
	ButtonPin          int
	Deadzone           int
	CalibrationSamples int
	Debounce           time.Duration
	ADCMax             int
}

// Joystick holds calibration and button debounce state.
type Joystick struct {
	mu      sync.Mutex
	adc     adc.Reader
	gpio    gpio.Driver
	cfg     Config
	centerX int
	centerY int

	lastRaw    bool // last raw reading, true = pressed
	lastChange time.Time
	pressed    bool // debounced state
	edge       bool // latched released->pressed transition

	err error
}

// New configures the button pin with its pull-up. Axes read relative to
// mid-scale until Calibrate is called.
func New(r adc.Reader, g gpio.Driver, cfg Config) (*Joystick, error) {
	if cfg.CalibrationSamples <= 0 {
		cfg.CalibrationSamples = 16
	}
	if cfg.ADCMax <= 0 {
		cfg.ADCMax = adc.MaxValue
	}
	if cfg.Deadzone < 0 {
		cfg.Deadzone = 0
	}
	if err := g.SetupPin(cfg.ButtonPin, gpio.InputPullUp); err != nil {
		return nil, fmt.Errorf("joystick button pin %d: %w", cfg.ButtonPin, err)
	}
	mid := (cfg.ADCMax + 1) / 2
	return &Joystick{
		adc:     r,
		gpio:    g,
		cfg:     cfg,
		centerX: mid,
		centerY: mid,
	}, nil
}

// Calibrate averages CalibrationSamples readings per axis with the stick at rest.
func (j *Joystick) Calibrate() error {
	cx, err := j.average(j.cfg.XChannel)
	if err != nil {
		return fmt.Errorf("calibrate x: %w", err)
	}
	cy, err := j.average(j.cfg.YChannel)
	if err != nil {
		return fmt.Errorf("calibrate y: %w", err)
	}
	j.mu.Lock()
	j.centerX, j.centerY = cx, cy
	j.mu.Unlock()
	debug.Info("Joystick calibrated: center=(%d, %d) deadzone=%d", cx, cy, j.cfg.Deadzone)
	return nil
}

func (j *Joystick) average(ch int) (int, error) {
	sum := 0
	for i := 0; i < j.cfg.CalibrationSamples; i++ {
		v, err := j.adc.ReadChannel(ch)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum / j.cfg.CalibrationSamples, nil
}

// Center returns the calibrated rest readings.
func (j *Joystick) Center() (x, y int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.centerX, j.centerY
}

// AxisX returns the horizontal deflection beyond the deadzone.
func (j *Joystick) AxisX() int {
	j.mu.Lock()
	center := j.centerX
	j.mu.Unlock()
	return j.axis(j.cfg.XChannel, center)
}

// AxisY returns the vertical deflection beyond the deadzone.
func (j *Joystick) AxisY() int {
	j.mu.Lock()
	center := j.centerY
	j.mu.Unlock()
	return j.axis(j.cfg.YChannel, center)
}

func (j *Joystick) axis(ch, center int) int {
	raw, err := j.adc.ReadChannel(ch)
	if err != nil {
		j.setErr(err)
		return 0
	}
	return Deflection(raw, center, j.cfg.Deadzone)
}

// Deflection returns raw-center with the deadzone removed; readings within
// center±deadzone give 0.
func Deflection(raw, center, deadzone int) int {
	d := raw - center
	switch {
	case d > deadzone:
		return d - deadzone
	case d < -deadzone:
		return d + deadzone
	default:
		return 0
	}
}

// SpeedX maps the horizontal deflection onto [min, max].
func (j *Joystick) SpeedX(min, max int) int {
	j.mu.Lock()
	center := j.centerX
	j.mu.Unlock()
	return j.speed(j.AxisX(), center, min, max)
}

// SpeedY maps the vertical deflection onto [min, max].
func (j *Joystick) SpeedY(min, max int) int {
	j.mu.Lock()
	center := j.centerY
	j.mu.Unlock()
	return j.speed(j.AxisY(), center, min, max)
}

func (j *Joystick) speed(d, center, min, max int) int {
	return Speed(d, center-j.cfg.Deadzone, j.cfg.ADCMax-center-j.cfg.Deadzone, min, max)
}

// Speed rescales a deflection d, whose reachable span is [-negSpan, posSpan],
// onto [min, max]. Zero deflection always maps to zero.
func Speed(d, negSpan, posSpan, min, max int) int {
	switch {
	case d > 0:
		if posSpan <= 0 {
			return max
		}
		return clamp(d*max/posSpan, 0, max)
	case d < 0:
		if negSpan <= 0 {
			return min
		}
		return clamp(-d*min/negSpan, min, 0)
	default:
		return 0
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IsActive reports whether either axis is outside its deadzone.
func (j *Joystick) IsActive() bool {
	return j.AxisX() != 0 || j.AxisY() != 0
}

// Poll samples the button and updates the debounce state.
// Call it once per control cycle before ButtonPressedEdge or ButtonHeld.
func (j *Joystick) Poll(now time.Time) {
	level, err := j.gpio.ReadPin(j.cfg.ButtonPin)
	if err != nil {
		j.setErr(err)
		return
	}
	raw := level == gpio.Low

	j.mu.Lock()
	defer j.mu.Unlock()
	if raw != j.lastRaw {
		j.lastRaw = raw
		j.lastChange = now
		return
	}
	if raw != j.pressed && now.Sub(j.lastChange) >= j.cfg.Debounce {
		j.pressed = raw
		if raw {
			j.edge = true
			debug.Live("Joystick: button pressed")
		}
	}
}

// ButtonPressedEdge reports a confirmed released->pressed transition once.
func (j *Joystick) ButtonPressedEdge() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	e := j.edge
	j.edge = false
	return e
}

// ButtonHeld reports the debounced button state.
func (j *Joystick) ButtonHeld() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pressed
}

// Err returns the last ADC or GPIO error seen, or nil.
func (j *Joystick) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Joystick) setErr(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err == nil {
		debug.Error(err)
	}
	j.err = err
}
