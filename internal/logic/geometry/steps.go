package geometry

import (
	"math"

	"github.com/cjeanneret/TurretGo/internal/config"
)

// StepsCalculator converts between pan angles and stepper step counts.
type StepsCalculator struct {
	stepsPerDegree float64
}

// NewStepsCalculator creates a step calculator from configuration.
func NewStepsCalculator(cfg *config.Config) *StepsCalculator {
	return NewStepsCalculatorForRev(cfg.Stepper.StepsPerRev)
}

// NewStepsCalculatorForRev creates a step calculator for a motor making
// stepsPerRev steps per output revolution.
func NewStepsCalculatorForRev(stepsPerRev int) *StepsCalculator {
	return &StepsCalculator{stepsPerDegree: float64(stepsPerRev) / 360.0}
}

// StepsFromAngle converts a pan angle (in degrees) to motor steps, truncating.
func (s *StepsCalculator) StepsFromAngle(angleDegrees float64) int {
	return int(angleDegrees * s.stepsPerDegree)
}

// AngleFromSteps converts a step count to a pan angle in degrees.
func (s *StepsCalculator) AngleFromSteps(steps int) float64 {
	if s.stepsPerDegree == 0 {
		return 0
	}
	return float64(steps) / s.stepsPerDegree
}

// Heading returns the pan angle of a step position folded into [0, 360).
func (s *StepsCalculator) Heading(steps int) float64 {
	h := math.Mod(s.AngleFromSteps(steps), 360)
	if h < 0 {
		h += 360
	}
	return h
}
