package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// JoystickConfig holds the analog stick and button wiring.
type JoystickConfig struct {
	XChannel           int `yaml:"x_channel"`           // ADC channel for the X axis
	YChannel           int `yaml:"y_channel"`           // ADC channel for the Y axis
	ButtonPin          int `yaml:"button_pin"`          // BCM pin of the push button (active LOW, pull-up)
	Deadzone           int `yaml:"deadzone"`            // raw ADC counts treated as rest around the centre
	CalibrationSamples int `yaml:"calibration_samples"` // samples averaged per axis at startup
	DebounceMs         int `yaml:"debounce_ms"`         // button must be stable this long
	ADCMax             int `yaml:"adc_max"`             // full-scale ADC reading (4095 for 12 bits)
	SpeedMin           int `yaml:"speed_min"`           // output of a full negative deflection
	SpeedMax           int `yaml:"speed_max"`           // output of a full positive deflection
}

// ADCConfig selects the analog-to-digital converter used by the joystick.
type ADCConfig struct {
	Type        string `yaml:"type"`          // "mcp3208" or "mock"
	SPIPort     string `yaml:"spi_port"`      // periph SPI port name; "" = first available
	SPISpeedKHz int    `yaml:"spi_speed_khz"` // SPI clock
}

// StepperConfig holds the configuration for the pan stepper (4-wire, ULN2003 style).
type StepperConfig struct {
	Pins           []int `yaml:"pins"`             // IN1..IN4 (BCM)
	StepsPerRev    int   `yaml:"steps_per_rev"`    // full steps for one output shaft revolution
	StepsPerSecond int   `yaml:"steps_per_second"` // step rate
	StepIncrement  int   `yaml:"step_increment"`   // steps commanded per Left/Right cycle
}

// ServoConfig holds the configuration for the tilt servo.
type ServoConfig struct {
	Pin            int    `yaml:"pin"`             // BCM pin for the rpio driver
	Driver         string `yaml:"driver"`          // "rpio" (hardware PWM) or "pca9685" (I2C)
	I2CBus         string `yaml:"i2c_bus"`         // periph I2C bus name for pca9685
	PCA9685Channel int    `yaml:"pca9685_channel"` // output channel 0-15 for pca9685
	MinAngle       int    `yaml:"min_angle"`
	MaxAngle       int    `yaml:"max_angle"`
	InitialAngle   int    `yaml:"initial_angle"`
	RampDelayMs    int    `yaml:"ramp_delay_ms"` // delay between 1-degree increments
	Increment      int    `yaml:"increment"`     // degrees commanded per Up/Down cycle
	MinPulseUs     int    `yaml:"min_pulse_us"`  // pulse width at 0 degrees
	MaxPulseUs     int    `yaml:"max_pulse_us"`  // pulse width at 180 degrees
}

// DetectorConfig holds the motion detector thresholds.
type DetectorConfig struct {
	Type                string `yaml:"type"`                  // "diff" or "random"
	DiffThreshold       int    `yaml:"diff_threshold"`        // per-pixel luminance difference (0-255)
	MotionThreshold     int    `yaml:"motion_threshold"`      // minimum changed pixels
	CenterDeadzone      int    `yaml:"center_deadzone"`       // pixels around the frame centre
	EdgeMarginPercent   int    `yaml:"edge_margin_percent"`   // top/left/right noise band
	BottomMarginPercent int    `yaml:"bottom_margin_percent"` // bottom noise band
	MaxBufferBytes      int    `yaml:"max_buffer_bytes"`      // memory budget for detector buffers
}

// CameraConfig describes the frame source.
// Type selects a concrete implementation (e.g., "gocv").
type CameraConfig struct {
	Type        string `yaml:"type"`         // "gocv", "dir" or "mock"
	Device      int    `yaml:"device"`       // video device index for gocv
	Dir         string `yaml:"dir"`          // directory of JPEG files for "dir"
	Width       int    `yaml:"width"`        // frame width in pixels
	Height      int    `yaml:"height"`       // frame height in pixels
	JPEGQuality int    `yaml:"jpeg_quality"` // encode quality for gocv frames

	ReadTimeoutMs int `yaml:"read_timeout_ms"` // longest a gocv read may block a cycle
}

// StorageConfig enables the on-disk recorder. An empty Dir disables it.
type StorageConfig struct {
	Dir        string `yaml:"dir"`
	SaveFrames bool   `yaml:"save_frames"` // save frames that produced a detection
}

// TelemetryConfig enables direction-transition telemetry. An empty InfluxURL disables it.
type TelemetryConfig struct {
	InfluxURL   string `yaml:"influx_url"`
	InfluxToken string `yaml:"influx_token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel     int  `yaml:"debug_level"`      // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO       bool `yaml:"mock_gpio"`        // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	LoopIntervalMs int  `yaml:"loop_interval_ms"` // pacing of the control loop
}

// Config aggregates all application configuration.
type Config struct {
	Joystick  JoystickConfig  `yaml:"joystick"`
	ADC       ADCConfig       `yaml:"adc"`
	Stepper   StepperConfig   `yaml:"stepper"`
	Servo     ServoConfig     `yaml:"servo"`
	Detector  DetectorConfig  `yaml:"detector"`
	Camera    CameraConfig    `yaml:"camera"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// MaxConfigFileBytes bounds the size of a configuration file.
const MaxConfigFileBytes = 1 << 20

// ValidateConfigPath accepts only .yaml files that live directly in a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path must not contain '..': %s", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config file must have a .yaml extension: %s", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config file must be in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}
	return Parse(data)
}

// Parse unmarshals YAML, fills defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, suitable for mock hardware.
func Default() *Config {
	cfg := Config{
		Camera:   CameraConfig{Type: "mock"},
		Defaults: DefaultsConfig{MockGPIO: true},
	}
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	j := &c.Joystick
	if j.XChannel == 0 && j.YChannel == 0 {
		j.YChannel = 1
	}
	if j.ButtonPin == 0 {
		j.ButtonPin = 26
	}
	if j.Deadzone <= 0 {
		j.Deadzone = 150
	}
	if j.CalibrationSamples <= 0 {
		j.CalibrationSamples = 16
	}
	if j.DebounceMs <= 0 {
		j.DebounceMs = 50
	}
	if j.ADCMax <= 0 {
		j.ADCMax = 4095
	}
	if j.SpeedMin == 0 && j.SpeedMax == 0 {
		j.SpeedMin, j.SpeedMax = -255, 255
	}

	if c.ADC.Type == "" {
		c.ADC.Type = "mcp3208"
		if c.Defaults.MockGPIO {
			c.ADC.Type = "mock"
		}
	}
	if c.ADC.SPISpeedKHz <= 0 {
		c.ADC.SPISpeedKHz = 1000
	}

	s := &c.Stepper
	if len(s.Pins) == 0 {
		s.Pins = []int{16, 5, 17, 18}
	}
	if s.StepsPerRev <= 0 {
		s.StepsPerRev = 2048
	}
	if s.StepsPerSecond <= 0 {
		s.StepsPerSecond = 500
	}
	if s.StepIncrement <= 0 {
		s.StepIncrement = 500
	}

	v := &c.Servo
	if v.Pin == 0 {
		v.Pin = 13
	}
	if v.Driver == "" {
		v.Driver = "rpio"
	}
	if v.I2CBus == "" {
		v.I2CBus = "1"
	}
	if v.MinAngle == 0 && v.MaxAngle == 0 {
		v.MaxAngle = 180
	}
	if v.InitialAngle == 0 {
		v.InitialAngle = (v.MinAngle + v.MaxAngle) / 2
	}
	if v.RampDelayMs <= 0 {
		v.RampDelayMs = 15
	}
	if v.Increment <= 0 {
		v.Increment = 5
	}
	if v.MinPulseUs <= 0 {
		v.MinPulseUs = 500
	}
	if v.MaxPulseUs <= 0 {
		v.MaxPulseUs = 2500
	}

	d := &c.Detector
	if d.Type == "" {
		d.Type = "diff"
	}
	if d.DiffThreshold <= 0 {
		d.DiffThreshold = 20
	}
	if d.MotionThreshold <= 0 {
		d.MotionThreshold = 800
	}
	if d.CenterDeadzone <= 0 {
		d.CenterDeadzone = 80
	}
	if d.EdgeMarginPercent <= 0 {
		d.EdgeMarginPercent = 5
	}
	if d.BottomMarginPercent <= 0 {
		d.BottomMarginPercent = 10
	}
	if d.MaxBufferBytes <= 0 {
		d.MaxBufferBytes = 4 << 20
	}

	if c.Camera.Width <= 0 {
		c.Camera.Width = 320
	}
	if c.Camera.Height <= 0 {
		c.Camera.Height = 240
	}
	if c.Camera.JPEGQuality <= 0 {
		c.Camera.JPEGQuality = 80
	}
	if c.Camera.ReadTimeoutMs <= 0 {
		c.Camera.ReadTimeoutMs = 200
	}

	if c.Defaults.LoopIntervalMs <= 0 {
		c.Defaults.LoopIntervalMs = 1
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	switch c.Camera.Type {
	case "gocv", "mock":
	case "dir":
		if c.Camera.Dir == "" {
			return fmt.Errorf("camera.dir is required for camera type %q", c.Camera.Type)
		}
	case "":
		return fmt.Errorf("camera.type is required")
	default:
		return fmt.Errorf("unsupported camera type: %s", c.Camera.Type)
	}

	switch c.ADC.Type {
	case "mcp3208", "mock":
	default:
		return fmt.Errorf("unsupported adc type: %s", c.ADC.Type)
	}
	for _, ch := range []int{c.Joystick.XChannel, c.Joystick.YChannel} {
		if ch < 0 || ch > 7 {
			return fmt.Errorf("joystick channel must be between 0 and 7, got %d", ch)
		}
	}
	if c.Joystick.SpeedMin > 0 || c.Joystick.SpeedMax < 0 {
		return fmt.Errorf("joystick speed range must contain 0, got [%d, %d]", c.Joystick.SpeedMin, c.Joystick.SpeedMax)
	}

	if len(c.Stepper.Pins) != 4 {
		return fmt.Errorf("stepper.pins must list 4 pins, got %d", len(c.Stepper.Pins))
	}
	for _, p := range append([]int{c.Servo.Pin, c.Joystick.ButtonPin}, c.Stepper.Pins...) {
		if p < 0 || p > 53 {
			return fmt.Errorf("pin must be between 0 and 53, got %d", p)
		}
	}

	v := c.Servo
	switch v.Driver {
	case "rpio", "pca9685":
	default:
		return fmt.Errorf("unsupported servo driver: %s", v.Driver)
	}
	if v.PCA9685Channel < 0 || v.PCA9685Channel > 15 {
		return fmt.Errorf("servo.pca9685_channel must be between 0 and 15, got %d", v.PCA9685Channel)
	}
	if v.MinAngle < 0 || v.MaxAngle > 180 || v.MinAngle > v.MaxAngle {
		return fmt.Errorf("servo angles must satisfy 0 <= min_angle <= max_angle <= 180, got [%d, %d]", v.MinAngle, v.MaxAngle)
	}
	if v.InitialAngle < v.MinAngle || v.InitialAngle > v.MaxAngle {
		return fmt.Errorf("servo.initial_angle %d outside [%d, %d]", v.InitialAngle, v.MinAngle, v.MaxAngle)
	}
	if v.MinPulseUs >= v.MaxPulseUs {
		return fmt.Errorf("servo.min_pulse_us must be < max_pulse_us, got %d >= %d", v.MinPulseUs, v.MaxPulseUs)
	}

	switch c.Detector.Type {
	case "diff", "random":
	default:
		return fmt.Errorf("unsupported detector type: %s", c.Detector.Type)
	}
	if c.Detector.DiffThreshold > 255 {
		return fmt.Errorf("detector.diff_threshold must be <= 255, got %d", c.Detector.DiffThreshold)
	}
	if c.Detector.EdgeMarginPercent >= 50 || c.Detector.BottomMarginPercent >= 50 {
		return fmt.Errorf("detector margins must be below 50%%")
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// DebounceInterval returns how long the button must be stable.
func (c *Config) DebounceInterval() time.Duration {
	return time.Duration(c.Joystick.DebounceMs) * time.Millisecond
}

// RampDelay returns the delay between two 1-degree servo increments.
func (c *Config) RampDelay() time.Duration {
	return time.Duration(c.Servo.RampDelayMs) * time.Millisecond
}

// LoopInterval returns the pacing of the control loop.
func (c *Config) LoopInterval() time.Duration {
	return time.Duration(c.Defaults.LoopIntervalMs) * time.Millisecond
}

// ReadTimeout returns how long Acquire waits for the capture device.
func (c CameraConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

// SPIFrequencyHz returns the ADC SPI clock in hertz.
func (c *Config) SPIFrequencyHz() int64 {
	return int64(c.ADC.SPISpeedKHz) * 1000
}
