package config

import (
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/akamensky/argparse"
	"github.com/pkg/errors"

	"github.com/roktrack/perception-node/detections"
	"github.com/roktrack/perception-node/models"
	"github.com/roktrack/perception-node/preview"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	FPS       float64
	Period    time.Duration
	Threshold float64
	Variant   models.ModelVariant
	Preview   preview.Mode
	Verbose   bool

	// Candidate capture devices, tried in order
	Devices        []string
	ModelsDir      string
	ONNXRuntimeLib string
	Threads        int
	Listen         string
	IOUThreshold   float64
	PerClassNMS    bool
	LogFile        string
	SnapshotPath   string
}

func Default() Config {
	return Config{
		FPS:          0.5,
		Period:       PeriodFromFPS(0.5),
		Threshold:    detections.DefaultConfThreshold,
		Variant:      models.VariantA,
		Preview:      preview.ModeHigh,
		Devices:      []string{"/dev/video0", "/dev/video1"},
		ModelsDir:    ".",
		Listen:       ":9090",
		IOUThreshold: detections.DefaultIOUThreshold,
	}
}

// PeriodFromFPS converts a frame rate into a tick period rounded to the millisecond.
func PeriodFromFPS(fps float64) time.Duration {
	return time.Duration(math.Round(1000/fps)) * time.Millisecond
}

// Parse reads the command line. args includes the program name, as in os.Args.
func Parse(args []string) (*Config, error) {
	def := Default()

	parser := argparse.NewParser("perception-node", "Detect objects on camera frames and publish them with distance estimates")
	fps := parser.Float("f", "fps", &argparse.Options{Help: "Frames processed per second", Default: def.FPS})
	threshold := parser.Float("t", "threshold", &argparse.Options{Help: "Minimum class confidence", Default: def.Threshold})
	model := parser.Selector("m", "model", []string{"A", "B"}, &argparse.Options{Help: "Model variant: A (hen, bucket, cone) or B (pylon, person, roktrack)", Default: def.Variant.String()})
	previewMode := parser.Selector("p", "preview", []string{"none", "low", "med", "high"}, &argparse.Options{Help: "Preview image quality", Default: def.Preview.String()})
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "Debug logging with per-stage timings"})
	devices := parser.String("", "devices", &argparse.Options{Help: "Comma-separated capture devices, tried in order", Default: strings.Join(def.Devices, ",")})
	modelsDir := parser.String("", "models-dir", &argparse.Options{Help: "Directory holding the ONNX models", Default: def.ModelsDir})
	ortLib := parser.String("", "onnxruntime-lib", &argparse.Options{Help: "Path to the ONNX Runtime shared library (default: $ONNXRUNTIME_LIB, then the platform default)"})
	threads := parser.Int("", "threads", &argparse.Options{Help: "Inference threads, 0 lets ONNX Runtime decide", Default: def.Threads})
	listen := parser.String("l", "listen", &argparse.Options{Help: "Address of the topic server", Default: def.Listen})
	iou := parser.Float("", "iou", &argparse.Options{Help: "IOU at which overlapping detections are suppressed", Default: def.IOUThreshold})
	perClass := parser.Flag("", "per-class-nms", &argparse.Options{Help: "Only suppress overlapping detections of the same class"})
	logFile := parser.String("", "log-file", &argparse.Options{Help: "Also write logs to this file, rotated"})
	snapshot := parser.String("", "snapshot", &argparse.Options{Help: "Save the frame used by each tick to this path"})

	if err := parser.Parse(args); err != nil {
		return nil, errors.Wrap(ErrInvalid, parser.Usage(err))
	}

	c := &Config{
		FPS:            *fps,
		Threshold:      *threshold,
		Verbose:        *verbose,
		Devices:        splitList(*devices),
		ModelsDir:      *modelsDir,
		ONNXRuntimeLib: *ortLib,
		Threads:        *threads,
		Listen:         *listen,
		IOUThreshold:   *iou,
		PerClassNMS:    *perClass,
		LogFile:        *logFile,
		SnapshotPath:   *snapshot,
	}

	var err error
	if c.Variant, err = models.ParseModelVariant(*model); err != nil {
		return nil, errors.Wrap(ErrInvalid, err.Error())
	}
	if c.Preview, err = preview.ParseMode(*previewMode); err != nil {
		return nil, errors.Wrap(ErrInvalid, err.Error())
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.Period = PeriodFromFPS(c.FPS)
	return c, nil
}

func (c *Config) Validate() error {
	if !(c.FPS > 0) || math.IsInf(c.FPS, 0) {
		return errors.Wrapf(ErrInvalid, "fps must be positive, got %v", c.FPS)
	}
	if PeriodFromFPS(c.FPS) <= 0 {
		return errors.Wrapf(ErrInvalid, "fps %v is too high", c.FPS)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return errors.Wrapf(ErrInvalid, "threshold must be within [0, 1], got %v", c.Threshold)
	}
	if c.IOUThreshold <= 0 || c.IOUThreshold > 1 {
		return errors.Wrapf(ErrInvalid, "iou must be within (0, 1], got %v", c.IOUThreshold)
	}
	if len(c.Devices) == 0 {
		return errors.Wrap(ErrInvalid, "no capture devices given")
	}
	if c.Threads < 0 {
		return errors.Wrapf(ErrInvalid, "threads must not be negative, got %d", c.Threads)
	}
	return nil
}

// ModelPath is the ONNX file of the selected variant.
func (c *Config) ModelPath() string {
	return filepath.Join(c.ModelsDir, c.Variant.ModelFile())
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
