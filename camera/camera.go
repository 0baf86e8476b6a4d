// Package camera grabs MJPEG frames from a V4L2 capture device.
package camera

import (
	"time"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// V4L2 fourcc 'MJPG'
const pixFmtMJPEG webcam.PixelFormat = 0x47504A4D

var ErrNoDevice = errors.New("no capture device could be opened")

type Device interface {
	// Capture returns one JPEG-encoded frame.
	Capture() ([]byte, error)
	Close() error
}

// Opener opens the device at path.
type Opener func(path string) (Device, error)

type Config struct {
	Width   uint32
	Height  uint32
	FPS     float32
	Buffers uint32
	// FrameTimeout bounds the wait for a single frame; V4L2 works in whole seconds
	FrameTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Width:        640,
		Height:       360,
		FPS:          30,
		Buffers:      1,
		FrameTimeout: 2 * time.Second,
	}
}

// OpenFirst tries each candidate in order and returns the first device that opens,
// together with its path.
func OpenFirst(candidates []string, open Opener, log *zap.SugaredLogger) (Device, string, error) {
	var errs error
	for _, path := range candidates {
		dev, err := open(path)
		if err == nil {
			log.Infow("opened capture device", "path", path)
			return dev, path, nil
		}
		log.Debugw("capture device unavailable", "path", path, "error", err)
		errs = multierr.Append(errs, err)
	}
	if errs == nil {
		return nil, "", errors.Wrap(ErrNoDevice, "no candidates given")
	}
	return nil, "", errors.Wrapf(ErrNoDevice, "tried %v: %v", candidates, errs)
}

// Opener returns an Opener that configures devices with cfg.
func (cfg Config) Opener() Opener {
	return func(path string) (Device, error) {
		return OpenWebcam(path, cfg)
	}
}

type Webcam struct {
	cam     *webcam.Webcam
	path    string
	width   uint32
	height  uint32
	timeout uint32
}

func OpenWebcam(path string, cfg Config) (*Webcam, error) {
	if err := checkCharDevice(path); err != nil {
		return nil, err
	}

	cam, err := webcam.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open webcam %s", path)
	}

	w, err := configure(cam, path, cfg)
	if err != nil {
		cam.Close()
		return nil, err
	}
	return w, nil
}

func configure(cam *webcam.Webcam, path string, cfg Config) (*Webcam, error) {
	formats := cam.GetSupportedFormats()
	if _, ok := formats[pixFmtMJPEG]; !ok {
		return nil, errors.Errorf("%s does not support MJPEG, supported formats: %v", path, formats)
	}

	_, w, h, err := cam.SetImageFormat(pixFmtMJPEG, cfg.Width, cfg.Height)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot set image format on %s", path)
	}

	if cfg.FPS > 0 {
		// Not every driver exposes frame intervals; the device default is fine then
		_ = cam.SetFramerate(cfg.FPS)
	}

	if err := cam.SetBufferCount(cfg.Buffers); err != nil {
		return nil, errors.Wrapf(err, "cannot set buffer count on %s", path)
	}

	if err := cam.StartStreaming(); err != nil {
		return nil, errors.Wrapf(err, "cannot start streaming on %s", path)
	}

	timeout := uint32(cfg.FrameTimeout / time.Second)
	if timeout == 0 {
		timeout = 1
	}

	return &Webcam{
		cam:     cam,
		path:    path,
		width:   w,
		height:  h,
		timeout: timeout,
	}, nil
}

// Size is the negotiated frame size, which may differ from the requested one.
func (c *Webcam) Size() (uint32, uint32) {
	return c.width, c.height
}

func (c *Webcam) Capture() ([]byte, error) {
	err := c.cam.WaitForFrame(c.timeout)
	switch err.(type) {
	case nil:
	case *webcam.Timeout:
		return nil, errors.Errorf("timed out waiting for a frame from %s", c.path)
	default:
		return nil, errors.Wrapf(err, "couldn't get frame from %s", c.path)
	}

	frame, err := c.cam.ReadFrame()
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't read frame from %s", c.path)
	}
	if len(frame) == 0 {
		return nil, errors.Errorf("empty frame from %s", c.path)
	}

	return append([]byte(nil), frame...), nil
}

func (c *Webcam) Close() error {
	return multierr.Combine(c.cam.StopStreaming(), c.cam.Close())
}

func checkCharDevice(path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return errors.Errorf("%s is not a character device", path)
	}
	return nil
}
