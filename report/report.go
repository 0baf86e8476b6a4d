// Package report serializes detections into the JSON document published on the
// detections topic:
//
//	[{"box_location":[x1,y1,x2,y2],"otype":"cone","prob":0.8,"dist":1.52}]
//
// Numbers are always written with a decimal point so consumers can rely on float typing.
package report

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/roktrack/perception-node/models"
)

type Entry struct {
	BoxLocation [4]Float32 `json:"box_location"`
	Type        string     `json:"otype"`
	Probability Float32    `json:"prob"`
	Distance    Float64    `json:"dist"`
}

func NewEntry(d models.Detection) Entry {
	return Entry{
		BoxLocation: [4]Float32{Float32(d.Box.X1), Float32(d.Box.Y1), Float32(d.Box.X2), Float32(d.Box.Y2)},
		Type:        d.Label,
		Probability: Float32(d.Confidence),
		Distance:    Float64(d.Distance),
	}
}

// Build converts detections into report entries. An empty list yields the single
// "nothing" entry so consumers always receive at least one element.
func Build(dets []models.Detection) []Entry {
	if len(dets) == 0 {
		return []Entry{NewEntry(models.NothingDetected())}
	}
	entries := make([]Entry, len(dets))
	for i, d := range dets {
		entries[i] = NewEntry(d)
	}
	return entries
}

func Marshal(dets []models.Detection) ([]byte, error) {
	data, err := json.Marshal(Build(dets))
	if err != nil {
		return nil, errors.Wrap(err, "marshal report")
	}
	return data, nil
}

// Float32 is a float32 that always marshals with a fractional part ("1.0", not "1").
type Float32 float32

func (f Float32) MarshalJSON() ([]byte, error) {
	return formatFloat(float64(f), 32)
}

// Float64 is the float64 counterpart of Float32.
type Float64 float64

func (f Float64) MarshalJSON() ([]byte, error) {
	return formatFloat(float64(f), 64)
}

func formatFloat(v float64, bits int) ([]byte, error) {
	s := strconv.FormatFloat(v, 'f', -1, bits)
	if s == "NaN" || strings.Contains(s, "Inf") {
		return nil, errors.Errorf("unsupported value %s", s)
	}
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return []byte(s), nil
}
