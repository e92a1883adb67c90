package pca9685

import (
	"bytes"
	"testing"
	"time"
)

type fakeBus struct {
	writes [][]byte
}

func (f *fakeBus) Tx(w, r []byte) error {
	f.writes = append(f.writes, append([]byte(nil), w...))
	return nil
}

func TestPrescale(t *testing.T) {
	// 25MHz / (4096 * 50Hz) = 122.07 -> 121
	if got := Prescale(50); got != 121 {
		t.Errorf("Prescale(50) = %d, want 121", got)
	}
	if got := Prescale(1000); got != 5 {
		t.Errorf("Prescale(1000) = %d, want 5", got)
	}
}

func TestTicks(t *testing.T) {
	cases := []struct {
		width time.Duration
		want  uint16
	}{
		{500 * time.Microsecond, 102},
		{1500 * time.Microsecond, 307},
		{2500 * time.Microsecond, 512},
		{-time.Millisecond, 0},
		{time.Second, 4095},
	}
	for _, tc := range cases {
		if got := Ticks(tc.width, 50); got != tc.want {
			t.Errorf("Ticks(%v, 50) = %d, want %d", tc.width, got, tc.want)
		}
	}
}

func TestDevice_SetupAndPulse(t *testing.T) {
	bus := &fakeBus{}
	d := New(bus)
	if err := d.SetupPWM(3, 50); err != nil {
		t.Fatal(err)
	}
	if len(bus.writes) != 4 {
		t.Fatalf("setup wrote %d transfers, want 4", len(bus.writes))
	}
	if !bytes.Equal(bus.writes[1], []byte{regPrescale, 121}) {
		t.Errorf("prescale write = % X", bus.writes[1])
	}

	// Same frequency again is a no-op.
	if err := d.SetupPWM(4, 50); err != nil {
		t.Fatal(err)
	}
	if len(bus.writes) != 4 {
		t.Errorf("repeated setup wrote again: %d transfers", len(bus.writes))
	}

	bus.writes = nil
	if err := d.SetPulse(3, 1500*time.Microsecond); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x06 + 12, 0, 0, 307 & 0xFF, 307 >> 8}
	if len(bus.writes) != 1 || !bytes.Equal(bus.writes[0], want) {
		t.Errorf("pulse write = % X, want % X", bus.writes, want)
	}
}

func TestDevice_Errors(t *testing.T) {
	d := New(&fakeBus{})
	if err := d.SetPulse(0, time.Millisecond); err == nil {
		t.Error("SetPulse before SetupPWM should fail")
	}
	if err := d.SetupPWM(16, 50); err == nil {
		t.Error("channel 16 should be rejected")
	}
	if err := d.SetupPWM(0, 5000); err == nil {
		t.Error("5kHz should be rejected")
	}
}
