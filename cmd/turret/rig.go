package main

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/periph/conn/physic"

	"github.com/cjeanneret/TurretGo/internal/config"
	"github.com/cjeanneret/TurretGo/internal/debug"
	"github.com/cjeanneret/TurretGo/internal/hw/adc"
	"github.com/cjeanneret/TurretGo/internal/hw/camera"
	"github.com/cjeanneret/TurretGo/internal/hw/gpio"
	"github.com/cjeanneret/TurretGo/internal/hw/joystick"
	"github.com/cjeanneret/TurretGo/internal/hw/pca9685"
	"github.com/cjeanneret/TurretGo/internal/hw/servo"
	"github.com/cjeanneret/TurretGo/internal/hw/stepper"
	"github.com/cjeanneret/TurretGo/internal/logic/detection"
	"github.com/cjeanneret/TurretGo/internal/logic/geometry"
	"github.com/cjeanneret/TurretGo/internal/logic/motion"
	"github.com/cjeanneret/TurretGo/internal/logic/turret"
)

// rig is the assembled hardware.
type rig struct {
	joy    *joystick.Joystick
	pan    *stepper.Stepper
	tilt   *servo.Servo
	motion *motion.Controller
	cam    camera.Source
	det    detection.Detector
	steps  *geometry.StepsCalculator

	closers []func() error
}

// buildRig opens every device described by cfg. On error, whatever was
// already opened is closed.
func buildRig(cfg *config.Config, g gpio.Driver) (*rig, error) {
	r := &rig{}
	ok := false
	defer func() {
		if !ok {
			r.Close()
		}
	}()

	debug.Step(2, "Initializing joystick")
	reader, err := r.openADC(cfg)
	if err != nil {
		return nil, err
	}
	r.joy, err = joystick.New(reader, g, joystick.Config{
		XChannel:           cfg.Joystick.XChannel,
		YChannel:           cfg.Joystick.YChannel,
		ButtonPin:          cfg.Joystick.ButtonPin,
		Deadzone:           cfg.Joystick.Deadzone,
		CalibrationSamples: cfg.Joystick.CalibrationSamples,
		Debounce:           cfg.DebounceInterval(),
		ADCMax:             cfg.Joystick.ADCMax,
	})
	if err != nil {
		return nil, fmt.Errorf("init joystick: %w", err)
	}
	if err := r.joy.Calibrate(); err != nil {
		return nil, fmt.Errorf("calibrate joystick: %w", err)
	}
	cx, cy := r.joy.Center()
	debug.Info("Joystick centre (%d, %d)", cx, cy)

	debug.Step(3, "Initializing pan stepper")
	var pins [4]int
	copy(pins[:], cfg.Stepper.Pins)
	r.pan = stepper.NewStepper(g, stepper.Config{
		Pins:           pins,
		StepsPerRev:    cfg.Stepper.StepsPerRev,
		StepsPerSecond: cfg.Stepper.StepsPerSecond,
	})
	r.closers = append(r.closers, func() error { r.pan.Off(); return nil })
	r.steps = geometry.NewStepsCalculator(cfg)
	debug.PrintStruct("Pan stepper config", cfg.Stepper)

	debug.Step(4, "Initializing tilt servo")
	pwm, pin, err := r.openPWM(cfg, g)
	if err != nil {
		return nil, err
	}
	r.tilt = servo.New(pwm, servo.Config{
		MinAngle:     cfg.Servo.MinAngle,
		MaxAngle:     cfg.Servo.MaxAngle,
		InitialAngle: cfg.Servo.InitialAngle,
		StepDelay:    cfg.RampDelay(),
		MinPulse:     time.Duration(cfg.Servo.MinPulseUs) * time.Microsecond,
		MaxPulse:     time.Duration(cfg.Servo.MaxPulseUs) * time.Microsecond,
	})
	if err := r.tilt.Attach(pin); err != nil {
		return nil, fmt.Errorf("attach servo: %w", err)
	}
	debug.PrintStruct("Tilt servo config", cfg.Servo)

	r.motion = motion.NewController(r.pan, r.tilt, cfg.Stepper.StepIncrement, cfg.Servo.Increment)

	debug.Step(5, "Initializing camera")
	r.cam, err = camera.Open(cfg.Camera)
	if err != nil {
		return nil, fmt.Errorf("init camera: %w", err)
	}
	r.closers = append(r.closers, r.cam.Close)

	debug.Step(6, "Initializing detector")
	r.det, err = newDetector(cfg.Detector)
	if err != nil {
		return nil, err
	}
	ok = true
	return r, nil
}

func (r *rig) openADC(cfg *config.Config) (adc.Reader, error) {
	debug.Value("ADC type", cfg.ADC.Type)
	switch cfg.ADC.Type {
	case "mock":
		return adc.NewMock(), nil
	case "mcp3208":
		m, port, err := adc.OpenMCP3208(cfg.ADC.SPIPort, physic.Frequency(cfg.SPIFrequencyHz())*physic.Hertz)
		if err != nil {
			return nil, fmt.Errorf("init adc: %w", err)
		}
		r.closers = append(r.closers, port.Close)
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported adc type: %s", cfg.ADC.Type)
	}
}

// openPWM returns the servo output and the pin or channel it uses.
func (r *rig) openPWM(cfg *config.Config, g gpio.Driver) (gpio.PWM, int, error) {
	debug.Value("Servo driver", cfg.Servo.Driver)
	if cfg.Servo.Driver == "pca9685" && !cfg.Defaults.MockGPIO {
		dev, bus, err := pca9685.Open(cfg.Servo.I2CBus, pca9685.DefaultAddr)
		if err != nil {
			return nil, 0, fmt.Errorf("init pca9685: %w", err)
		}
		r.closers = append(r.closers, bus.Close)
		return dev, cfg.Servo.PCA9685Channel, nil
	}
	pwm, ok := g.(gpio.PWM)
	if !ok {
		return nil, 0, fmt.Errorf("gpio driver %T has no PWM output", g)
	}
	return pwm, cfg.Servo.Pin, nil
}

func newDetector(cfg config.DetectorConfig) (detection.Detector, error) {
	debug.Value("Detector type", cfg.Type)
	switch cfg.Type {
	case "diff":
		return detection.NewDiff(detection.Config{
			DiffThreshold:       cfg.DiffThreshold,
			MotionThreshold:     cfg.MotionThreshold,
			CenterDeadzone:      cfg.CenterDeadzone,
			EdgeMarginPercent:   cfg.EdgeMarginPercent,
			BottomMarginPercent: cfg.BottomMarginPercent,
			MaxBufferBytes:      cfg.MaxBufferBytes,
		}), nil
	case "random":
		return detection.NewRandom(time.Now().UnixNano()), nil
	default:
		return nil, fmt.Errorf("unsupported detector type: %s", cfg.Type)
	}
}

// status fills the actuator and health fields of a snapshot.
func (r *rig) status(s *turret.Snapshot) {
	pos := r.pan.Position()
	s.Pan = turret.PanStatus{
		Position:   pos,
		Target:     r.pan.Target(),
		HeadingDeg: r.steps.Heading(pos),
		Moving:     r.pan.IsMoving(),
	}
	s.Tilt = turret.TiltStatus{
		Angle:  r.tilt.CurrentAngle(),
		Target: r.tilt.TargetAngle(),
	}
	report := func(name string, err error) {
		if err != nil {
			s.Health = append(s.Health, name+": "+err.Error())
		}
	}
	report("joystick", r.joy.Err())
	report("stepper", r.pan.Err())
	report("servo", r.tilt.Err())
	if d, ok := r.det.(interface{ Err() error }); ok {
		report("detector", d.Err())
	}
}

// Close releases devices in reverse order of opening.
func (r *rig) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
