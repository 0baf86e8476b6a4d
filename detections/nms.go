package detections

import (
	"sort"

	"github.com/chewxy/math32"

	"github.com/roktrack/perception-node/models"
)

type NMSParams struct {
	// IOUThreshold is the overlap at which the lower-confidence detection is suppressed
	IOUThreshold float32
	// PerClass restricts suppression to detections with the same label. By default a
	// detection suppresses overlapping detections of every class.
	PerClass bool
}

func DefaultNMSParams() NMSParams {
	return NMSParams{
		IOUThreshold: DefaultIOUThreshold,
	}
}

// Deduplicate runs greedy non-max suppression. The result is a subset of dets ordered by
// non-increasing confidence; equal confidences keep their input order. dets is not modified.
func Deduplicate(dets []models.Detection, p NMSParams) []models.Detection {
	pool := make([]models.Detection, len(dets))
	copy(pool, dets)
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Confidence > pool[j].Confidence
	})

	result := make([]models.Detection, 0, len(pool))
	for len(pool) > 0 {
		best := pool[0]
		result = append(result, best)

		remaining := pool[:0]
		for _, d := range pool[1:] {
			if !p.suppresses(best, d) {
				remaining = append(remaining, d)
			}
		}
		pool = remaining
	}

	return result
}

func (p NMSParams) suppresses(kept, other models.Detection) bool {
	if p.PerClass && kept.Label != other.Label {
		return false
	}
	return IOU(kept.Box, other.Box) >= p.IOUThreshold
}

// IOU returns the intersection over union of two boxes. Disjoint boxes give 0.
func IOU(a, b models.BoundingBox) float32 {
	w := math32.Max(0, math32.Min(a.X2, b.X2)-math32.Max(a.X1, b.X1))
	h := math32.Max(0, math32.Min(a.Y2, b.Y2)-math32.Max(a.Y1, b.Y1))
	intersection := w * h

	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}

	return intersection / union
}
