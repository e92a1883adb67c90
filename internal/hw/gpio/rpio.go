package gpio

import (
	"fmt"
	"time"

	"github.com/cjeanneret/TurretGo/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// pwmCycle is the number of clock ticks per PWM period; one tick is one microsecond.
const pwmCycle = 20000

// rpiPin remembers how a BCM pin was configured.
type rpiPin struct {
	p    rpio.Pin
	mode PinMode
	pwm  bool
}

// RPiDriver drives the Raspberry Pi header through go-rpio's memory-mapped registers.
type RPiDriver struct {
	pins map[int]*rpiPin
}

// OpenRPi maps the GPIO registers. It needs /dev/gpiomem (or root);
// hardware PWM additionally needs /dev/mem.
func OpenRPi() (*RPiDriver, error) {
	debug.Info("GPIO: opening go-rpio")
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio registers: %w", err)
	}
	return &RPiDriver{pins: make(map[int]*rpiPin)}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	p := rpio.Pin(pin)
	switch mode {
	case Input:
		p.Input()
		p.PullOff()
	case InputPullUp:
		p.Input()
		p.PullUp()
	case Output:
		p.Output()
		p.Low()
	default:
		return fmt.Errorf("pin %d: unknown mode %d", pin, mode)
	}
	r.pins[pin] = &rpiPin{p: p, mode: mode}
	return nil
}

// lookup returns a configured pin, setting it up as mode on first use.
func (r *RPiDriver) lookup(pin int, mode PinMode) (*rpiPin, error) {
	if s, ok := r.pins[pin]; ok {
		if s.pwm {
			return nil, fmt.Errorf("pin %d is in PWM mode", pin)
		}
		return s, nil
	}
	if err := r.SetupPin(pin, mode); err != nil {
		return nil, err
	}
	return r.pins[pin], nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	s, err := r.lookup(pin, Output)
	if err != nil {
		return err
	}
	if s.mode != Output {
		return fmt.Errorf("pin %d is an input", pin)
	}
	if level == High {
		s.p.High()
	} else {
		s.p.Low()
	}
	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	s, err := r.lookup(pin, Input)
	if err != nil {
		return Low, err
	}
	if s.p.Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

// SetupPWM switches pin to its hardware PWM function (BCM 12, 13, 18 or 19).
func (r *RPiDriver) SetupPWM(pin int, freqHz int) error {
	debug.GPIO("SetupPWM", pin, freqHz)
	switch pin {
	case 12, 13, 18, 19:
	default:
		return fmt.Errorf("pin %d has no hardware PWM channel", pin)
	}
	if freqHz <= 0 {
		return fmt.Errorf("invalid PWM frequency: %d", freqHz)
	}
	p := rpio.Pin(pin)
	p.Mode(rpio.Pwm)
	p.Freq(freqHz * pwmCycle)
	r.pins[pin] = &rpiPin{p: p, pwm: true}
	return nil
}

// SetPulse sets the high time of each PWM period.
func (r *RPiDriver) SetPulse(pin int, width time.Duration) error {
	debug.GPIO("SetPulse", pin, width)
	s, ok := r.pins[pin]
	if !ok || !s.pwm {
		return fmt.Errorf("pin %d not configured for PWM", pin)
	}
	us := uint32(width / time.Microsecond)
	if us > pwmCycle {
		us = pwmCycle
	}
	s.p.DutyCycle(us, pwmCycle)
	return nil
}

// Close drives outputs low (stepper coils off), returns every pin to
// input and unmaps the registers.
func (r *RPiDriver) Close() error {
	debug.Verbose("GPIO: releasing %d pins", len(r.pins))
	for _, s := range r.pins {
		if s.mode == Output && !s.pwm {
			s.p.Low()
		}
		s.p.Input()
	}
	r.pins = make(map[int]*rpiPin)
	return rpio.Close()
}
