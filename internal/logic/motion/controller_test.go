package motion

import (
	"testing"
	"time"

	"github.com/cjeanneret/TurretGo/internal/hw/gpio"
	"github.com/cjeanneret/TurretGo/internal/hw/servo"
	"github.com/cjeanneret/TurretGo/internal/hw/stepper"
	"github.com/cjeanneret/TurretGo/internal/logic/direction"
)

func newMockAxes(t *testing.T) (*stepper.Stepper, *servo.Servo, *gpio.MockDriver) {
	t.Helper()
	drv := gpio.NewMockDriver()
	pan := stepper.NewStepper(drv, stepper.Config{
		Pins:           [4]int{16, 5, 17, 18},
		StepsPerRev:    2048,
		StepsPerSecond: 500,
	})
	cfg := servo.DefaultConfig()
	cfg.MinAngle, cfg.MaxAngle = 45, 135
	tilt := servo.New(drv, cfg)
	if err := tilt.Attach(15); err != nil {
		t.Fatal(err)
	}
	return pan, tilt, drv
}

func TestController_MoveRelative(t *testing.T) {
	cases := []struct {
		pair      direction.Pair
		wantSteps int
		wantAngle int
	}{
		{direction.None, 0, 90},
		{direction.Pair{X: direction.Right}, 500, 90},
		{direction.Pair{X: direction.Left}, -500, 90},
		{direction.Pair{Y: direction.Up}, 0, 95},
		{direction.Pair{Y: direction.Down}, 0, 85},
		{direction.Pair{X: direction.Left, Y: direction.Up}, -500, 95},
	}
	for _, tc := range cases {
		pan, tilt, _ := newMockAxes(t)
		ctrl := NewController(pan, tilt, 500, 5)
		ctrl.MoveRelative(tc.pair)
		if pan.Target() != tc.wantSteps {
			t.Errorf("%v: stepper target = %d, want %d", tc.pair, pan.Target(), tc.wantSteps)
		}
		if tilt.TargetAngle() != tc.wantAngle {
			t.Errorf("%v: servo target = %d, want %d", tc.pair, tilt.TargetAngle(), tc.wantAngle)
		}
	}
}

func TestController_TiltClampedAtBounds(t *testing.T) {
	pan, tilt, _ := newMockAxes(t)
	ctrl := NewController(pan, tilt, 500, 5)
	tilt.SetPositionImmediate(133)
	ctrl.MoveRelative(direction.Pair{Y: direction.Up})
	if tilt.TargetAngle() != 135 {
		t.Errorf("servo target = %d, want 135", tilt.TargetAngle())
	}
}

func TestController_TickDrivesBothAxes(t *testing.T) {
	pan, tilt, _ := newMockAxes(t)
	ctrl := NewController(pan, tilt, 10, 5)
	ctrl.MoveRelative(direction.Pair{X: direction.Right, Y: direction.Down})

	now := time.Unix(0, 0)
	for i := 0; i < 100; i++ {
		ctrl.Tick(now)
		now = now.Add(20 * time.Millisecond)
	}
	if pan.Position() != 10 || ctrl.IsMoving() {
		t.Errorf("stepper position = %d moving=%v, want 10 false", pan.Position(), ctrl.IsMoving())
	}
	if tilt.CurrentAngle() != 85 {
		t.Errorf("servo angle = %d, want 85", tilt.CurrentAngle())
	}
}

func TestController_Off(t *testing.T) {
	pan, tilt, drv := newMockAxes(t)
	ctrl := NewController(pan, tilt, 10, 5)
	ctrl.MoveRelative(direction.Pair{X: direction.Right})
	ctrl.Tick(time.Unix(0, 0))
	ctrl.Off()
	for _, pin := range []int{16, 5, 17, 18} {
		if lvl, _ := drv.ReadPin(pin); lvl != gpio.Low {
			t.Errorf("pin %d is %v after Off", pin, lvl)
		}
	}
}
