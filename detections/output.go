package detections

import (
	"github.com/pkg/errors"
)

// Output is the raw detector output in the YOLOv8 layout [1, 4+K, N]: attribute-major,
// one column per anchor. Column i is the row [cx, cy, w, h, score_0 .. score_K-1].
type Output struct {
	Data       []float32
	Attributes int
	Anchors    int
}

// NewOutput wraps a tensor of shape [1, A, N] or [A, N].
func NewOutput(data []float32, shape []int64) (Output, error) {
	dims := shape
	if len(dims) == 3 {
		if dims[0] != 1 {
			return Output{}, errors.Errorf("unsupported output batch size %d", dims[0])
		}
		dims = dims[1:]
	}
	if len(dims) != 2 {
		return Output{}, errors.Errorf("unsupported output shape %v", shape)
	}
	out := Output{
		Data:       data,
		Attributes: int(dims[0]),
		Anchors:    int(dims[1]),
	}
	if len(data) < out.Attributes*out.Anchors {
		return Output{}, errors.Errorf("output holds %d values, shape %v needs %d", len(data), shape, out.Attributes*out.Anchors)
	}
	return out, nil
}

// OutputFromRows builds an Output from anchor rows. All rows must have the same length.
func OutputFromRows(rows [][]float32) (Output, error) {
	if len(rows) == 0 {
		return Output{}, nil
	}
	attrs := len(rows[0])
	for i, row := range rows {
		if len(row) != attrs {
			return Output{}, errors.Errorf("row %d has %d values, row 0 has %d", i, len(row), attrs)
		}
	}
	out := Output{
		Data:       make([]float32, attrs*len(rows)),
		Attributes: attrs,
		Anchors:    len(rows),
	}
	for i, row := range rows {
		for a, v := range row {
			out.Data[a*out.Anchors+i] = v
		}
	}
	return out, nil
}

func (o Output) At(attr, anchor int) float32 {
	return o.Data[attr*o.Anchors+anchor]
}

// Classes is the number of score columns.
func (o Output) Classes() int {
	return o.Attributes - boxAttributes
}
