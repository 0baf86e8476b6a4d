package camera

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeDevice struct {
	path string
}

func (d *fakeDevice) Capture() ([]byte, error) { return []byte{0xff, 0xd8}, nil }
func (d *fakeDevice) Close() error             { return nil }

func TestOpenFirstPicksFirstWorkingCandidate(t *testing.T) {
	var tried []string
	open := func(path string) (Device, error) {
		tried = append(tried, path)
		if path == "/dev/video1" || path == "/dev/video2" {
			return &fakeDevice{path: path}, nil
		}
		return nil, errors.New("busy")
	}

	dev, path, err := OpenFirst([]string{"/dev/video0", "/dev/video1", "/dev/video2"}, open, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	require.Equal(t, "/dev/video1", path)
	require.Equal(t, "/dev/video1", dev.(*fakeDevice).path)
	require.Equal(t, []string{"/dev/video0", "/dev/video1"}, tried)
}

func TestOpenFirstNoDevice(t *testing.T) {
	open := func(path string) (Device, error) {
		return nil, errors.Errorf("no such device %s", path)
	}

	_, _, err := OpenFirst([]string{"/dev/video0", "/dev/video1"}, open, zaptest.NewLogger(t).Sugar())
	require.ErrorIs(t, err, ErrNoDevice)
	require.Contains(t, err.Error(), "/dev/video1")

	_, _, err = OpenFirst(nil, open, zaptest.NewLogger(t).Sugar())
	require.ErrorIs(t, err, ErrNoDevice)
}

func TestCheckCharDevice(t *testing.T) {
	require.NoError(t, checkCharDevice("/dev/null"))

	regular := filepath.Join(t.TempDir(), "frame.jpg")
	require.NoError(t, os.WriteFile(regular, []byte("x"), 0o644))
	require.Error(t, checkCharDevice(regular))

	require.Error(t, checkCharDevice(filepath.Join(t.TempDir(), "missing")))
}

func TestOpenWebcamRejectsNonDevice(t *testing.T) {
	_, err := OpenWebcam(t.TempDir(), DefaultConfig())
	require.Error(t, err)
}
