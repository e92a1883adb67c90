// Package pca9685 drives the 16-channel I2C PWM controller found on most
// servo hats. Channels are addressed as pins so the device satisfies gpio.PWM.
package pca9685

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"

	"github.com/cjeanneret/TurretGo/internal/debug"
)

// DefaultAddr is the factory I2C address.
const DefaultAddr = 0x40

const (
	regMode1    = 0x00
	regLED0OnL  = 0x06
	regPrescale = 0xFE

	mode1Sleep   = 0x10
	mode1AutoInc = 0x20
	mode1Restart = 0x80

	oscillatorHz = 25000000
	resolution   = 4096
)

type tx interface {
	Tx(w, r []byte) error
}

// Device is a PCA9685 on an I2C bus.
type Device struct {
	mu     sync.Mutex
	dev    tx
	freqHz int
}

// Open initializes periph and opens the controller at addr on the named bus ("1" on a Pi).
func Open(bus string, addr uint16) (*Device, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, nil, fmt.Errorf("open i2c bus %q: %w", bus, err)
	}
	debug.Info("PCA9685 on I2C bus %q addr %#x", bus, addr)
	return New(&i2c.Dev{Addr: addr, Bus: b}), b, nil
}

// New wraps an I2C device.
func New(dev tx) *Device {
	return &Device{dev: dev}
}

func (d *Device) write(reg byte, data ...byte) error {
	return d.dev.Tx(append([]byte{reg}, data...), nil)
}

// SetupPWM sets the output frequency shared by all channels.
func (d *Device) SetupPWM(channel int, freqHz int) error {
	if channel < 0 || channel > 15 {
		return fmt.Errorf("pca9685: invalid channel %d", channel)
	}
	if freqHz < 24 || freqHz > 1526 {
		return fmt.Errorf("pca9685: frequency %d Hz out of range", freqHz)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.freqHz == freqHz {
		return nil
	}

	prescale := Prescale(freqHz)
	debug.GPIO("PCA9685 prescale", channel, prescale)
	if err := d.write(regMode1, mode1Sleep); err != nil {
		return fmt.Errorf("pca9685: sleep: %w", err)
	}
	if err := d.write(regPrescale, prescale); err != nil {
		return fmt.Errorf("pca9685: prescale: %w", err)
	}
	if err := d.write(regMode1, mode1AutoInc); err != nil {
		return fmt.Errorf("pca9685: wake: %w", err)
	}
	// oscillator needs 500us to stabilise before restart
	time.Sleep(500 * time.Microsecond)
	if err := d.write(regMode1, mode1AutoInc|mode1Restart); err != nil {
		return fmt.Errorf("pca9685: restart: %w", err)
	}
	d.freqHz = freqHz
	return nil
}

// SetPulse sets the high time of channel within each period.
func (d *Device) SetPulse(channel int, width time.Duration) error {
	if channel < 0 || channel > 15 {
		return fmt.Errorf("pca9685: invalid channel %d", channel)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.freqHz == 0 {
		return fmt.Errorf("pca9685: channel %d used before SetupPWM", channel)
	}
	off := Ticks(width, d.freqHz)
	debug.GPIO("PCA9685 pulse", channel, off)
	reg := byte(regLED0OnL + 4*channel)
	return d.write(reg, 0, 0, byte(off&0xFF), byte(off>>8))
}

// Prescale returns the PRESCALE register value for freqHz.
func Prescale(freqHz int) byte {
	return byte((oscillatorHz+resolution*freqHz/2)/(resolution*freqHz) - 1)
}

// Ticks converts a pulse width to the 12-bit OFF count at freqHz.
func Ticks(width time.Duration, freqHz int) uint16 {
	t := int64(width) * int64(freqHz) * resolution / int64(time.Second)
	if t < 0 {
		t = 0
	}
	if t > resolution-1 {
		t = resolution - 1
	}
	return uint16(t)
}
