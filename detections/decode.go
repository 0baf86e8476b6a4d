package detections

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/roktrack/perception-node/models"
)

// ErrLabelMismatch means the label table does not have one entry per score column.
var ErrLabelMismatch = errors.New("label table does not match model output")

type DecodeParams struct {
	// Threshold is the minimum class score for an anchor to be kept
	Threshold float32
	// Labels maps score column index to class name
	Labels []string
	// ModelWidth and ModelHeight are the model-space resolution
	ModelWidth  int
	ModelHeight int
}

func DefaultDecodeParams(labels []string) DecodeParams {
	return DecodeParams{
		Threshold:   DefaultConfThreshold,
		Labels:      labels,
		ModelWidth:  InputWidth,
		ModelHeight: InputHeight,
	}
}

func ValidateOutput(out Output, labels []string) error {
	if out.Classes() <= 0 {
		return errors.Wrapf(ErrLabelMismatch, "output has %d attributes per anchor", out.Attributes)
	}
	if out.Classes() != len(labels) {
		return errors.Wrapf(ErrLabelMismatch, "model has %d classes, label table has %d", out.Classes(), len(labels))
	}
	if len(out.Data) < out.Attributes*out.Anchors {
		return errors.Errorf("output holds %d values, want %d", len(out.Data), out.Attributes*out.Anchors)
	}
	return nil
}

// Decode converts the raw output into detections in the pixel space of an imgWidth x imgHeight
// image. Anchors whose best score is below the threshold are dropped. The result keeps anchor
// order and is not deduplicated.
func Decode(out Output, imgWidth, imgHeight int, p DecodeParams) ([]models.Detection, error) {
	if err := ValidateOutput(out, p.Labels); err != nil {
		return nil, err
	}
	if p.ModelWidth <= 0 || p.ModelHeight <= 0 {
		return nil, errors.Errorf("invalid model resolution %dx%d", p.ModelWidth, p.ModelHeight)
	}

	scaleX := float32(imgWidth) / float32(p.ModelWidth)
	scaleY := float32(imgHeight) / float32(p.ModelHeight)

	detections := make([]models.Detection, 0, 16)
	for i := 0; i < out.Anchors; i++ {
		classID, score := bestClass(out, i)
		if score < p.Threshold {
			continue
		}

		cx := out.At(0, i) * scaleX
		cy := out.At(1, i) * scaleY
		w := out.At(2, i) * scaleX
		h := out.At(3, i) * scaleY

		detections = append(detections, models.Detection{
			Box: models.BoundingBox{
				X1: cx - w/2,
				Y1: cy - h/2,
				X2: cx + w/2,
				Y2: cy + h/2,
			},
			Label:      p.Labels[classID],
			Confidence: roundToDecimals(score, 1),
		})
	}

	return detections, nil
}

// bestClass returns the score column with the highest value. The first column wins ties.
func bestClass(out Output, anchor int) (int, float32) {
	best := 0
	bestScore := out.At(boxAttributes, anchor)
	for c := 1; c < out.Classes(); c++ {
		s := out.At(boxAttributes+c, anchor)
		if s > bestScore {
			best = c
			bestScore = s
		}
	}
	return best, bestScore
}

func roundToDecimals(v float32, decimals int) float32 {
	m := math32.Pow(10, float32(decimals))
	return math32.Round(v*m) / m
}
