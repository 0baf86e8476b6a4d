package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/roktrack/perception-node/camera"
	"github.com/roktrack/perception-node/config"
	"github.com/roktrack/perception-node/detections"
	"github.com/roktrack/perception-node/estimation"
	"github.com/roktrack/perception-node/pipeline"
	"github.com/roktrack/perception-node/transport"
)

func main() {
	cfg, err := config.Parse(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Verbose, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Errorw("perception node stopped", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (err error) {
	log.Infow("starting perception node",
		"model", cfg.Variant,
		"fps", cfg.FPS,
		"threshold", cfg.Threshold,
		"preview", cfg.Preview,
	)

	libPath, err := resolveSharedLibrary(cfg.ONNXRuntimeLib)
	if err != nil {
		return err
	}
	modelPath := cfg.ModelPath()
	if err := checkFile(modelPath, "model"); err != nil {
		return err
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrapf(err, "initialize ONNX Runtime from %s", libPath)
	}
	defer func() {
		err = multierr.Append(err, ort.DestroyEnvironment())
	}()

	session, err := detections.NewSession(modelPath, cfg.Variant.Labels(), cfg.Threads)
	if err != nil {
		return errors.Wrapf(err, "load model %s", modelPath)
	}
	defer func() {
		err = multierr.Append(err, session.Destroy())
	}()
	log.Infow("loaded model", "path", modelPath, "labels", cfg.Variant.Labels())

	dev, devPath, err := camera.OpenFirst(cfg.Devices, camera.DefaultConfig().Opener(), log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil {
			err = multierr.Append(err, errors.Wrapf(cerr, "close %s", devPath))
		}
	}()
	logCaptureFormat(log, devPath, dev)

	hub := transport.NewHub(log.Named("transport"))
	defer hub.Close()

	decode := detections.DefaultDecodeParams(cfg.Variant.Labels())
	decode.Threshold = float32(cfg.Threshold)

	loop := pipeline.New(pipeline.Settings{
		Period:       cfg.Period,
		WarmupFrames: pipeline.DefaultWarmupFrames,
		Decode:       decode,
		NMS: detections.NMSParams{
			IOUThreshold: float32(cfg.IOUThreshold),
			PerClass:     cfg.PerClassNMS,
		},
		Distance:     estimation.DefaultModel(),
		Preview:      cfg.Preview,
		Verbose:      cfg.Verbose,
		SnapshotPath: cfg.SnapshotPath,
	}, dev, session, hub, log.Named("pipeline"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	router := transport.NewRouter(hub, func() interface{} { return loop.Metrics() })
	go func() {
		serveErr <- transport.Serve(ctx, cfg.Listen, router, log.Named("transport"))
		cancel()
	}()

	runErr := loop.Run(ctx)
	cancel()
	if srvErr := <-serveErr; srvErr != nil {
		return errors.Wrap(srvErr, "transport server")
	}
	if errors.Is(runErr, context.Canceled) {
		log.Infow("shutting down")
		return nil
	}
	return runErr
}

type frameSizer interface {
	Size() (uint32, uint32)
}

// logCaptureFormat reports the frame size the driver negotiated, which may differ from
// the requested one.
func logCaptureFormat(log *zap.SugaredLogger, path string, dev camera.Device) {
	fs, ok := dev.(frameSizer)
	if !ok {
		return
	}
	w, h := fs.Size()
	want := camera.DefaultConfig()
	if w != want.Width || h != want.Height {
		log.Warnw("capture device negotiated a different frame size",
			"path", path, "width", w, "height", h, "wantWidth", want.Width, "wantHeight", want.Height)
		return
	}
	log.Infow("capture format", "path", path, "width", w, "height", h)
}
