package preview

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

const Quality = 80

// Mode trades preview fidelity against link bandwidth.
type Mode int

const (
	ModeNone Mode = iota
	ModeLow
	ModeMed
	ModeHigh
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return ModeNone, nil
	case "low":
		return ModeLow, nil
	case "med":
		return ModeMed, nil
	case "high":
		return ModeHigh, nil
	}
	return ModeNone, errors.Errorf("unknown preview mode %q (want none, low, med or high)", s)
}

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeLow:
		return "low"
	case ModeMed:
		return "med"
	case ModeHigh:
		return "high"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Size is the output resolution of the mode. ModeNone has no output.
func (m Mode) Size() (int, int) {
	switch m {
	case ModeLow, ModeMed:
		return 320, 180
	case ModeHigh:
		return 640, 360
	}
	return 0, 0
}

func (m Mode) Enabled() bool {
	return m != ModeNone
}

type Encoder struct {
	mode Mode
}

func NewEncoder(mode Mode) *Encoder {
	return &Encoder{mode: mode}
}

func (e *Encoder) Mode() Mode {
	return e.mode
}

// Encode resizes img for the configured mode and returns it as JPEG.
// It returns nil, nil when previews are disabled.
func (e *Encoder) Encode(img image.Image) ([]byte, error) {
	if !e.mode.Enabled() {
		return nil, nil
	}
	if img.Bounds().Empty() {
		return nil, errors.New("empty preview source")
	}

	w, h := e.mode.Size()
	var out image.Image = imaging.Resize(img, w, h, imaging.NearestNeighbor)
	if e.mode == ModeLow {
		out = toGray(out)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(Quality)); err != nil {
		return nil, errors.Wrap(err, "encode preview")
	}
	return buf.Bytes(), nil
}

// toGray converts to a single-channel image so the JPEG is written with one component.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}
