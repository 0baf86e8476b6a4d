package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestResolveSharedLibraryExplicit(t *testing.T) {
	lib := filepath.Join(t.TempDir(), libraryName())
	require.NoError(t, os.WriteFile(lib, []byte("x"), 0o644))

	got, err := resolveSharedLibrary(lib)
	require.NoError(t, err)
	assert.Equal(t, lib, got)

	_, err = resolveSharedLibrary(filepath.Join(t.TempDir(), "missing.so"))
	assert.ErrorContains(t, err, "not found")

	_, err = resolveSharedLibrary(t.TempDir())
	assert.ErrorContains(t, err, "is a directory")
}

func TestResolveSharedLibraryFromEnv(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "custom.so")
	require.NoError(t, os.WriteFile(lib, []byte("x"), 0o644))
	t.Setenv(libraryEnv, lib)

	got, err := resolveSharedLibrary("")
	require.NoError(t, err)
	assert.Equal(t, lib, got)

	// an explicit path wins over the environment
	other := filepath.Join(t.TempDir(), "other.so")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	got, err = resolveSharedLibrary(other)
	require.NoError(t, err)
	assert.Equal(t, other, got)
}

func TestResolveSharedLibraryFallback(t *testing.T) {
	t.Setenv(libraryEnv, "")

	got, err := resolveSharedLibrary("")
	require.NoError(t, err)
	assert.Equal(t, libraryName(), filepath.Base(got))
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")
	logger, err := newLogger(false, path)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("published detections")
	logger.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"published detections"`)
	assert.NotContains(t, string(b), "hidden")
}

func TestNewLoggerVerbose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")
	logger, err := newLogger(true, path)
	require.NoError(t, err)

	logger.Debug("tick timings")
	logger.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "tick timings")
}

type sizedDevice struct {
	width, height uint32
}

func (d *sizedDevice) Capture() ([]byte, error) { return nil, nil }
func (d *sizedDevice) Close() error { return nil }
func (d *sizedDevice) Size() (uint32, uint32) { return d.width, d.height }

type plainDevice struct{}

func (plainDevice) Capture() ([]byte, error) { return nil, nil }
func (plainDevice) Close() error { return nil }

func TestLogCaptureFormat(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core).Sugar()

	logCaptureFormat(log, "/dev/video0", &sizedDevice{width: 640, height: 360})
	logCaptureFormat(log, "/dev/video1", &sizedDevice{width: 320, height: 240})
	logCaptureFormat(log, "/dev/video2", plainDevice{})

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "capture format", entries[0].Message)
	assert.Equal(t, uint32(640), entries[0].ContextMap()["width"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "/dev/video1", entries[1].ContextMap()["path"])
	assert.Equal(t, uint32(320), entries[1].ContextMap()["width"])
	assert.Equal(t, uint32(360), entries[1].ContextMap()["wantHeight"])
}
