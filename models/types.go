package models

import "time"

// LabelNothing is the label of the synthetic entry reported when a tick finds no objects.
const LabelNothing = "nothing"

// BoundingBox is a box in the pixel space of the captured image.
// X1 <= X2 and Y1 <= Y2 hold for boxes produced by a well-formed model, but are not enforced.
type BoundingBox struct {
	X1, Y1, X2, Y2 float32
}

func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

type Detection struct {
	Box        BoundingBox
	Label      string
	Confidence float32
	// Distance in meters, filled in by the distance estimator
	Distance float64
}

// NothingDetected returns the entry that stands in for an empty detection list.
func NothingDetected() Detection {
	return Detection{
		Label:      LabelNothing,
		Confidence: 1.0,
	}
}

type ProcessingTimings struct {
	Tick        uint64
	Capture     time.Duration
	ImageDecode time.Duration
	Preview     time.Duration
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
	Publish     time.Duration
	Total       time.Duration
}
