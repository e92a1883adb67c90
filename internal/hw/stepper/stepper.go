package stepper

import (
	"sync"
	"time"

	"github.com/cjeanneret/TurretGo/internal/debug"
	"github.com/cjeanneret/TurretGo/internal/hw/gpio"
)

// DefaultInterval is the step interval used until SetSpeed is called (500 steps/s).
const DefaultInterval = 2000 * time.Microsecond

// sequence is the wave-drive pattern, one coil energized per phase.
// Bit 3 maps to Pins[0] (IN1), bit 0 to Pins[3] (IN4).
var sequence = [4]uint8{0b1000, 0b0100, 0b0010, 0b0001}

// Config holds the hardware configuration for a 4-wire unipolar stepper (28BYJ-48 + ULN2003).
type Config struct {
	Pins           [4]int // IN1..IN4 (BCM)
	StepsPerRev    int
	StepsPerSecond int // 0 = DefaultInterval
}

// Stepper advances a 4-phase sequence toward a target position without ever sleeping.
// Callers drive it by calling Tick from the control loop.
type Stepper struct {
	mu       sync.Mutex
	gpio     gpio.Driver
	cfg      Config
	interval time.Duration
	current  int
	target   int
	phase    int
	lastStep time.Time
	err      error
}

// NewStepper configures the coil pins as outputs and leaves them de-energized.
func NewStepper(g gpio.Driver, cfg Config) *Stepper {
	s := &Stepper{
		gpio:     g,
		cfg:      cfg,
		interval: DefaultInterval,
	}
	for _, p := range cfg.Pins {
		if err := g.SetupPin(p, gpio.Output); err != nil {
			s.err = err
		}
	}
	if cfg.StepsPerSecond > 0 {
		s.SetSpeed(cfg.StepsPerSecond)
	}
	s.mu.Lock()
	s.coilsOff()
	s.mu.Unlock()
	return s
}

// SetSpeed sets the step rate. Non-positive rates are ignored.
func (s *Stepper) SetSpeed(stepsPerSecond int) {
	if stepsPerSecond <= 0 {
		debug.Ignored("stepper", "non-positive rate %d steps/s", stepsPerSecond)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = time.Second / time.Duration(stepsPerSecond)
	debug.Verbose("Stepper: interval %v (%d steps/s)", s.interval, stepsPerSecond)
}

// Interval returns the time between two steps.
func (s *Stepper) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetRelativeTarget moves the target by delta steps from the current position.
func (s *Stepper) SetRelativeTarget(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = s.current + delta
	debug.Verbose("Stepper: target %d (relative %+d)", s.target, delta)
}

// SetAbsoluteTarget sets the target step position.
func (s *Stepper) SetAbsoluteTarget(position int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = position
	debug.Verbose("Stepper: target %d", s.target)
}

// Stop cancels the pending motion; coils are released on the next Tick.
func (s *Stepper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = s.current
}

// IsMoving reports whether the current position differs from the target.
func (s *Stepper) IsMoving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != s.target
}

// Tick advances at most one step if the step interval has elapsed since the last one.
// When idle it drives every coil low.
func (s *Stepper) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == s.target {
		s.coilsOff()
		return
	}
	if !s.lastStep.IsZero() && now.Sub(s.lastStep) < s.interval {
		return
	}

	if s.target > s.current {
		s.current++
		s.phase = (s.phase + 1) % len(sequence)
	} else {
		s.current--
		s.phase = (s.phase + len(sequence) - 1) % len(sequence)
	}
	s.lastStep = now
	s.drive(sequence[s.phase])
}

// Off de-energizes every coil immediately, regardless of pending motion.
func (s *Stepper) Off() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coilsOff()
}

// Position returns the current step count.
func (s *Stepper) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Target returns the target step count.
func (s *Stepper) Target() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Phase returns the index (0..3) of the last driven phase.
func (s *Stepper) Phase() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// StepsPerRev returns the configured steps per output revolution.
func (s *Stepper) StepsPerRev() int {
	return s.cfg.StepsPerRev
}

// Err returns the last GPIO error seen, or nil.
func (s *Stepper) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stepper) coilsOff() {
	s.drive(0)
}

func (s *Stepper) drive(pattern uint8) {
	for i, p := range s.cfg.Pins {
		level := gpio.Level(pattern&(1<<(3-i)) != 0)
		if err := s.gpio.WritePin(p, level); err != nil {
			if s.err == nil {
				debug.Error(err)
			}
			s.err = err
		}
	}
}
