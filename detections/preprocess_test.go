package detections

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreprocessorPlanarLayout(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 36))
	for y := 0; y < 36; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{R: 255, G: 51, B: 0, A: 255})
		}
	}

	p := NewPreprocessor(32, 32)
	buf := make([]float32, p.TensorSize())
	require.NoError(t, p.Process(img, buf))

	plane := 32 * 32
	for _, i := range []int{0, 17, plane - 1} {
		require.InDelta(t, 1.0, buf[i], 1e-6)
		require.InDelta(t, 0.2, buf[plane+i], 1e-6)
		require.InDelta(t, 0.0, buf[2*plane+i], 1e-6)
	}
}

func TestPreprocessorErrors(t *testing.T) {
	p := NewPreprocessor(32, 32)
	require.Error(t, p.Process(image.NewNRGBA(image.Rect(0, 0, 8, 8)), make([]float32, 10)))
	require.Error(t, p.Process(image.NewNRGBA(image.Rectangle{}), make([]float32, p.TensorSize())))
}
