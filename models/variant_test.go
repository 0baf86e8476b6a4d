package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseModelVariant(t *testing.T) {
	v, err := ParseModelVariant("a")
	require.NoError(t, err)
	require.Equal(t, VariantA, v)
	require.Equal(t, []string{"hen", "bucket", "cone"}, v.Labels())

	v, err = ParseModelVariant(" B ")
	require.NoError(t, err)
	require.Equal(t, VariantB, v)
	require.Equal(t, []string{"pylon", "person", "roktrack"}, v.Labels())
	require.Equal(t, "roktrack_yolov8_nano_fixed_640_640.onnx", v.ModelFile())

	_, err = ParseModelVariant("C")
	require.Error(t, err)
}

func TestLabelsAreCopied(t *testing.T) {
	labels := VariantA.Labels()
	labels[0] = "changed"
	require.Equal(t, "hen", VariantA.Labels()[0])
}

func TestBoundingBoxGeometry(t *testing.T) {
	b := BoundingBox{X1: 10, Y1: 20, X2: 30, Y2: 60}
	require.Equal(t, float32(20), b.Width())
	require.Equal(t, float32(40), b.Height())
	require.Equal(t, float32(800), b.Area())
}
