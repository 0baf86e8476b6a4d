package models

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ModelVariant selects the detector weights and the label table that goes with them.
type ModelVariant int

const (
	VariantA ModelVariant = iota
	VariantB
)

var (
	variantALabels = []string{"hen", "bucket", "cone"}
	variantBLabels = []string{"pylon", "person", "roktrack"}
)

func ParseModelVariant(s string) (ModelVariant, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return VariantA, nil
	case "B":
		return VariantB, nil
	}
	return 0, errors.Errorf("unknown model variant %q (want A or B)", s)
}

func (v ModelVariant) String() string {
	switch v {
	case VariantA:
		return "A"
	case VariantB:
		return "B"
	}
	return fmt.Sprintf("ModelVariant(%d)", int(v))
}

// Labels returns the class names in the order of the model's score columns.
func (v ModelVariant) Labels() []string {
	switch v {
	case VariantA:
		return append([]string(nil), variantALabels...)
	case VariantB:
		return append([]string(nil), variantBLabels...)
	}
	return nil
}

// ModelFile is the ONNX file name of the variant, relative to the models directory.
func (v ModelVariant) ModelFile() string {
	switch v {
	case VariantA:
		return "farm_yolov8_nano_fixed_640_640.onnx"
	case VariantB:
		return "roktrack_yolov8_nano_fixed_640_640.onnx"
	}
	return ""
}
