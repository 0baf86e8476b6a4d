// Package pipeline runs the perception loop: capture, detect, estimate, publish.
package pipeline

import (
	"bytes"
	"context"
	"image"
	"os"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/roktrack/perception-node/detections"
	"github.com/roktrack/perception-node/estimation"
	"github.com/roktrack/perception-node/models"
	"github.com/roktrack/perception-node/preview"
	"github.com/roktrack/perception-node/report"
	"github.com/roktrack/perception-node/transport"
)

// DefaultWarmupFrames is the number of buffered frames dropped before the frame a tick uses.
const DefaultWarmupFrames = 3

type Camera interface {
	Capture() ([]byte, error)
}

// Engine runs the detector's forward pass.
type Engine interface {
	// InputSize is the model-space resolution
	InputSize() (int, int)
	Run(input []float32) (detections.Output, error)
}

type Publisher interface {
	PublishReport(report []byte) error
	PublishPreview(img transport.CompressedImage) error
}

type Settings struct {
	Period       time.Duration
	WarmupFrames int
	// Decode.ModelWidth and Decode.ModelHeight are taken from the engine
	Decode   detections.DecodeParams
	NMS      detections.NMSParams
	Distance estimation.Model
	Preview  preview.Mode
	Verbose  bool
	// SnapshotPath, if set, receives a copy of the frame used by each tick
	SnapshotPath string
}

type Option func(*Loop)

// WithClock replaces the wall clock that drives Run.
func WithClock(c clock.Clock) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

// Loop owns the capture device, inference engine and publisher for its lifetime.
// Ticks run one at a time on the goroutine that calls Run.
type Loop struct {
	settings     Settings
	log          *zap.SugaredLogger
	clock        clock.Clock
	camera       Camera
	engine       Engine
	publisher    Publisher
	preview      *preview.Encoder
	preprocessor *detections.Preprocessor
	input        []float32
	tick         uint64
	metrics      *Metrics
}

func New(s Settings, cam Camera, engine Engine, pub Publisher, log *zap.SugaredLogger, opts ...Option) *Loop {
	w, h := engine.InputSize()
	s.Decode.ModelWidth = w
	s.Decode.ModelHeight = h
	if s.WarmupFrames < 0 {
		s.WarmupFrames = 0
	}

	pre := detections.NewPreprocessor(w, h)
	l := &Loop{
		settings:     s,
		log:          log,
		clock:        clock.New(),
		camera:       cam,
		engine:       engine,
		publisher:    pub,
		preview:      preview.NewEncoder(s.Preview),
		preprocessor: pre,
		input:        make([]float32, pre.TensorSize()),
		metrics:      newMetrics(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) Metrics() MetricsSnapshot {
	return l.metrics.Snapshot()
}

// Run fires Tick every Settings.Period until ctx is cancelled. A tick that overruns the
// period delays the next one; ticks never overlap and missed timer fires are not queued.
func (l *Loop) Run(ctx context.Context) error {
	if l.settings.Period <= 0 {
		return errors.Errorf("invalid tick period %v", l.settings.Period)
	}

	ticker := l.clock.Ticker(l.settings.Period)
	defer ticker.Stop()

	l.log.Infow("perception loop started",
		"period", l.settings.Period,
		"threshold", l.settings.Decode.Threshold,
		"preview", l.settings.Preview.String(),
		"perClassNMS", l.settings.NMS.PerClass,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Failures are logged and counted by Tick; the loop carries on
			_ = l.Tick(ctx)
		}
	}
}

// Tick runs one full cycle. On error nothing from this tick has been published, except a
// preview when the failure happened after the preview stage.
func (l *Loop) Tick(ctx context.Context) error {
	l.tick++
	timings := &models.ProcessingTimings{Tick: l.tick}
	start := l.clock.Now()

	err := l.runTick(ctx, timings)

	timings.Total = l.clock.Since(start)
	l.metrics.tickDone(start, timings.Total, err)
	if err != nil {
		l.log.Errorw("tick aborted", "tick", l.tick, "error", err)
		return err
	}
	if l.settings.Verbose {
		logTimings(l.log, timings)
	}
	return nil
}

func (l *Loop) runTick(ctx context.Context, timings *models.ProcessingTimings) error {
	stageStart := l.clock.Now()
	frame, err := l.captureFrame()
	if err != nil {
		return stageError(StageCapture, err)
	}
	timings.Capture = l.clock.Since(stageStart)
	captured := l.clock.Now()

	stageStart = l.clock.Now()
	img, err := imaging.Decode(bytes.NewReader(frame))
	if err != nil {
		return stageError(StageCapture, errors.Wrap(err, "decode frame"))
	}
	timings.ImageDecode = l.clock.Since(stageStart)

	l.saveSnapshot(frame)

	if l.preview.Mode().Enabled() {
		stageStart = l.clock.Now()
		if err := l.publishPreview(img, captured); err != nil {
			return err
		}
		timings.Preview = l.clock.Since(stageStart)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	stageStart = l.clock.Now()
	if err := l.preprocessor.Process(img, l.input); err != nil {
		return stageError(StageInference, errors.Wrap(err, "prepare input"))
	}
	timings.Preprocess = l.clock.Since(stageStart)

	stageStart = l.clock.Now()
	out, err := l.engine.Run(l.input)
	if err != nil {
		return stageError(StageInference, err)
	}
	timings.Inference = l.clock.Since(stageStart)
	l.log.Debugw("inference done", "tick", l.tick, "took", timings.Inference)

	stageStart = l.clock.Now()
	bounds := img.Bounds()
	found, err := detections.Decode(out, bounds.Dx(), bounds.Dy(), l.settings.Decode)
	if err != nil {
		return stageError(StageDecode, err)
	}
	kept := detections.Deduplicate(found, l.settings.NMS)
	l.settings.Distance.Apply(kept)
	timings.Postprocess = l.clock.Since(stageStart)

	payload, err := report.Marshal(kept)
	if err != nil {
		return stageError(StageSerialize, err)
	}

	stageStart = l.clock.Now()
	if err := l.publisher.PublishReport(payload); err != nil {
		return stageError(StagePublish, err)
	}
	timings.Publish = l.clock.Since(stageStart)
	l.metrics.reportPublished()

	l.log.Infow("published detections", "tick", l.tick, "candidates", len(found), "report", string(payload))
	return nil
}

// captureFrame drops the frames the device buffered since the last tick, then returns a
// fresh one. Only the final capture's error counts.
func (l *Loop) captureFrame() ([]byte, error) {
	for i := 0; i < l.settings.WarmupFrames; i++ {
		_, _ = l.camera.Capture()
	}
	return l.camera.Capture()
}

func (l *Loop) publishPreview(img image.Image, stamp time.Time) error {
	data, err := l.preview.Encode(img)
	if err != nil {
		return stageError(StagePreview, err)
	}

	msg := transport.CompressedImage{
		Header: transport.Header{
			Stamp:   stamp,
			FrameID: strconv.FormatUint(l.tick, 10),
		},
		Format: transport.FormatJPEG,
		Data:   data,
	}
	if err := l.publisher.PublishPreview(msg); err != nil {
		return stageError(StagePreview, errors.Wrap(err, "publish preview"))
	}
	l.metrics.previewPublished()
	return nil
}

func (l *Loop) saveSnapshot(frame []byte) {
	if l.settings.SnapshotPath == "" {
		return
	}
	if err := os.WriteFile(l.settings.SnapshotPath, frame, 0o644); err != nil {
		l.log.Warnw("could not save snapshot", "path", l.settings.SnapshotPath, "error", err)
	}
}

func logTimings(log *zap.SugaredLogger, t *models.ProcessingTimings) {
	log.Debugw("tick timings",
		"tick", t.Tick,
		"capture", t.Capture,
		"imageDecode", t.ImageDecode,
		"preview", t.Preview,
		"preprocess", t.Preprocess,
		"inference", t.Inference,
		"postprocess", t.Postprocess,
		"publish", t.Publish,
		"total", t.Total,
	)
}
