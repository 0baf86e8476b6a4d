// Package estimation maps the apparent pixel height of a detection to a distance.
//
// The model is a cubic polynomial fitted against field measurements of a cone. Other classes
// are normalized to the cone's scale with a per-class height multiplier first.
package estimation

import (
	"math"

	"github.com/roktrack/perception-node/models"
)

// Coefficients of dist_cm = A*h^3 + B*h^2 + C*h + D
const (
	DefaultA = -5.86230652281417e-05
	DefaultB = 0.041512419539938
	DefaultC = -9.70395960666584
	DefaultD = 877.331591326026

	cmInMeter = 100.0
)

type Model struct {
	A, B, C, D float64
	// Multipliers normalize a class's pixel height to the fitted class. Labels that are not
	// listed are used unscaled.
	Multipliers map[string]float64
}

func DefaultModel() Model {
	return Model{
		A: DefaultA,
		B: DefaultB,
		C: DefaultC,
		D: DefaultD,
		Multipliers: map[string]float64{
			"cone":              1.0,
			"pylon":             1.0,
			"bucket":            2.3,
			"hen":               2.0,
			models.LabelNothing: 0.0,
		},
	}
}

func (m Model) multiplier(label string) float64 {
	if k, ok := m.Multipliers[label]; ok {
		return k
	}
	return 1.0
}

// Estimate returns the distance in meters, rounded to centimeters.
func (m Model) Estimate(pixelHeight float64, label string) float64 {
	n := pixelHeight * m.multiplier(label)
	raw := ((m.A*n+m.B)*n+m.C)*n + m.D
	return math.Round(raw) / cmInMeter
}

// Apply fills in Distance for every detection.
func (m Model) Apply(dets []models.Detection) {
	for i := range dets {
		dets[i].Distance = m.Estimate(float64(dets[i].Box.Height()), dets[i].Label)
	}
}
