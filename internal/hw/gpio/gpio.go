package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/TurretGo/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
	InputPullUp // input with the internal pull-up enabled (reads HIGH when floating)
)

func (m PinMode) String() string {
	switch m {
	case Input:
		return "input"
	case Output:
		return "output"
	case InputPullUp:
		return "input-pullup"
	default:
		return fmt.Sprintf("PinMode(%d)", int(m))
	}
}

// Driver is the digital I/O used by the stepper coils and the joystick button.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// PWM drives a servo-style pulse train on a pin.
type PWM interface {
	SetupPWM(pin int, freqHz int) error
	SetPulse(pin int, width time.Duration) error
}

// NewDriver returns a MockDriver on development machines and the go-rpio
// driver on the Pi.
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("GPIO: mock driver")
		return NewMockDriver(), nil
	}
	return OpenRPi()
}

// MockDriver keeps pin state in memory. Inputs read back whatever SetInput
// stored; pull-up inputs float HIGH.
type MockDriver struct {
	mu     sync.Mutex
	modes  map[int]PinMode
	levels map[int]Level
	pulses map[int]time.Duration
	writes int
}

// NewMockDriver returns an empty in-memory driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		modes:  make(map[int]PinMode),
		levels: make(map[int]Level),
		pulses: make(map[int]time.Duration),
	}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[pin] = mode
	if _, ok := m.levels[pin]; !ok && mode == InputPullUp {
		m.levels[pin] = High
	}
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
	m.writes++
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}

func (m *MockDriver) SetupPWM(pin int, freqHz int) error {
	debug.GPIO("SetupPWM", pin, freqHz)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[pin] = Output
	return nil
}

func (m *MockDriver) SetPulse(pin int, width time.Duration) error {
	debug.GPIO("SetPulse", pin, width)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pulses[pin] = width
	return nil
}

// SetInput forces the level an input pin reads back.
func (m *MockDriver) SetInput(pin int, level Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
}

// Mode returns the last mode configured on pin.
func (m *MockDriver) Mode(pin int) (PinMode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mode, ok := m.modes[pin]
	return mode, ok
}

// Pulse returns the last pulse width written to pin.
func (m *MockDriver) Pulse(pin int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pulses[pin]
}

// Writes returns the number of WritePin calls so far.
func (m *MockDriver) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
