package servo

import (
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/TurretGo/internal/debug"
	"github.com/cjeanneret/TurretGo/internal/hw/gpio"
)

// FrequencyHz is the standard hobby servo refresh rate.
const FrequencyHz = 50

// Config holds the angular limits and pulse calibration of a servo.
type Config struct {
	MinAngle     int
	MaxAngle     int
	InitialAngle int
	StepDelay    time.Duration // time between 1-degree increments
	MinPulse     time.Duration // pulse width at 0 degrees
	MaxPulse     time.Duration // pulse width at 180 degrees
}

// DefaultConfig returns a full-range servo centred at 90 degrees.
func DefaultConfig() Config {
	return Config{
		MinAngle:     0,
		MaxAngle:     180,
		InitialAngle: 90,
		StepDelay:    15 * time.Millisecond,
		MinPulse:     500 * time.Microsecond,
		MaxPulse:     2500 * time.Microsecond,
	}
}

// Servo ramps its angle toward a target one degree at a time.
type Servo struct {
	mu       sync.Mutex
	pwm      gpio.PWM
	cfg      Config
	pin      int
	attached bool
	current  int
	target   int
	lastMove time.Time
	err      error
}

// New creates a servo at the clamped initial angle. Nothing is written until Attach.
func New(pwm gpio.PWM, cfg Config) *Servo {
	if cfg.MinAngle > cfg.MaxAngle {
		cfg.MinAngle, cfg.MaxAngle = cfg.MaxAngle, cfg.MinAngle
	}
	if cfg.StepDelay < 0 {
		cfg.StepDelay = 0
	}
	s := &Servo{pwm: pwm, cfg: cfg}
	s.current = s.clamp(cfg.InitialAngle)
	s.target = s.current
	return s
}

// Attach starts the pulse train on pin at the current angle.
func (s *Servo) Attach(pin int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pwm.SetupPWM(pin, FrequencyHz); err != nil {
		s.err = err
		return fmt.Errorf("servo attach pin %d: %w", pin, err)
	}
	s.pin = pin
	s.attached = true
	debug.Info("Servo attached on pin %d at %d°", pin, s.current)
	s.write()
	return s.err
}

// SetTarget sets the angle to ramp toward, clamped to [MinAngle, MaxAngle].
func (s *Servo) SetTarget(angle int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = s.clamp(angle)
	if s.target != angle {
		debug.Verbose("Servo: target %d° clamped to %d°", angle, s.target)
	}
}

// SetSpeed sets the delay between 1-degree increments. Negative delays are ignored.
func (s *Servo) SetSpeed(delayPerDegree time.Duration) {
	if delayPerDegree < 0 {
		debug.Ignored("servo", "negative step delay %v", delayPerDegree)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.StepDelay = delayPerDegree
}

// Tick moves one degree toward the target if the step delay has elapsed.
func (s *Servo) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == s.target {
		return
	}
	if now.Sub(s.lastMove) < s.cfg.StepDelay {
		return
	}
	if s.target > s.current {
		s.current++
	} else {
		s.current--
	}
	s.lastMove = now
	s.write()
}

// SetPositionImmediate jumps to the clamped angle without ramping.
func (s *Servo) SetPositionImmediate(angle int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = s.clamp(angle)
	s.target = s.current
	debug.Verbose("Servo: immediate position %d°", s.current)
	s.write()
}

// CurrentAngle returns the angle last written.
func (s *Servo) CurrentAngle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// TargetAngle returns the angle being ramped toward.
func (s *Servo) TargetAngle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Bounds returns the configured angular range.
func (s *Servo) Bounds() (lo, hi int) {
	return s.cfg.MinAngle, s.cfg.MaxAngle
}

// Err returns the last PWM error seen, or nil.
func (s *Servo) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// PulseWidth maps an angle in [0, 180] linearly onto the pulse range.
func (s *Servo) PulseWidth(angle int) time.Duration {
	span := s.cfg.MaxPulse - s.cfg.MinPulse
	return s.cfg.MinPulse + span*time.Duration(angle)/180
}

func (s *Servo) clamp(angle int) int {
	if angle < s.cfg.MinAngle {
		return s.cfg.MinAngle
	}
	if angle > s.cfg.MaxAngle {
		return s.cfg.MaxAngle
	}
	return angle
}

func (s *Servo) write() {
	if !s.attached {
		return
	}
	if err := s.pwm.SetPulse(s.pin, s.PulseWidth(s.current)); err != nil {
		if s.err == nil {
			debug.Error(err)
		}
		s.err = err
	}
}
