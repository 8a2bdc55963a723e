// Command streamd runs one StreamSupervisor per enabled registry entry,
// each as its own goroutine with its own inference session, following a
// one-task-per-stream concurrency model.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/proximeter/visioncore"
	"github.com/proximeter/visioncore/internal/onnxsession"
)

func main() {
	var (
		registryPath string
		modelPath    string
		gpuBackend   string
		ortLibPath   string
	)

	cmd := &cobra.Command{
		Use:   "streamd",
		Short: "Run the persisted stream registry as concurrent analytics pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(registryPath, modelPath, gpuBackend, ortLibPath)
		},
	}

	cmd.Flags().StringVar(&registryPath, "registry", "./config/streams.yaml", "path to the stream registry YAML file")
	cmd.Flags().StringVar(&modelPath, "model", "./models/yolo11n_640.onnx", "path to the YOLO11 .onnx model")
	cmd.Flags().StringVar(&gpuBackend, "gpu-backend", "none", "inference backend: nvidia, amd, intel, or none")
	cmd.Flags().StringVar(&ortLibPath, "onnxruntime-lib", "", "path to the onnxruntime shared library (optional)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(registryPath, modelPath, gpuBackend, ortLibPath string) error {
	log, err := visioncore.NewProductionLogger()
	if err != nil {
		return fmt.Errorf("streamd: logger: %w", err)
	}
	defer log.Sync()

	if ortLibPath != "" {
		if err := onnxsession.InitRuntime(ortLibPath); err != nil {
			return fmt.Errorf("streamd: init onnxruntime: %w", err)
		}
		defer onnxsession.ShutdownRuntime()
	}

	registry, err := visioncore.NewStreamRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("streamd: open registry: %w", err)
	}

	records, err := registry.List()
	if err != nil {
		return fmt.Errorf("streamd: list streams: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := &daemon{
		modelPath:  modelPath,
		gpuBackend: onnxsession.GPUBackend(gpuBackend),
		log:        log,
	}

	var wg sync.WaitGroup
	for _, rec := range records {
		if !rec.Enabled {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.runStream(ctx, rec)
		}()
	}
	wg.Wait()
	return nil
}

// daemon holds the state shared read-only across every stream goroutine.
// onnxsession.Session is not safe for concurrent Run calls (it copies
// into a single bound input/output tensor pair), so each goroutine opens
// its own session from the shared modelPath/gpuBackend instead of
// sharing one. Each stream also owns its own MotionDetector/
// DetectionPipeline/ObjectTracker/video source, so no analytics state is
// shared either.
type daemon struct {
	modelPath  string
	gpuBackend onnxsession.GPUBackend
	log        *zap.SugaredLogger
}

func (d *daemon) runStream(ctx context.Context, rec visioncore.StreamRecord) {
	log := d.log.Named(rec.ID)

	session, err := onnxsession.New(
		onnxsession.Config{
			ModelPath: d.modelPath,
			Backend:   d.gpuBackend,
			FailFast:  true,
		},
		ort.NewShape(1, 3, 640, 640),
		ort.NewShape(1, 84, 8400),
	)
	if err != nil {
		log.Errorw("inference session failed", "error", err)
		return
	}
	defer session.Close()

	srcPath := rec.SourceURI
	video, err := visioncore.NewVideo(visioncore.VideoOptions{
		InputPath: &srcPath,
		Label:     rec.Name,
	})
	if err != nil {
		log.Errorw("stream open failed", "source", rec.SourceURI, "error", err)
		return
	}
	defer video.Close()

	motion := visioncore.NewMotionDetector(visioncore.DefaultMotionDetectorConfig(), log)
	defer motion.Close()
	pipeline := visioncore.NewDetectionPipeline(visioncore.DefaultDetectionPipelineConfig(), session, log)
	tracker := visioncore.NewObjectTracker(visioncore.DefaultObjectTrackerConfig(), log)

	supervisor := visioncore.NewStreamSupervisor(motion, pipeline, tracker, rec.Detection, log)

	// Rendered frames and track snapshots are discarded here; a REST
	// layer or RTSP re-muxer would consume out.Frame/out.Tracks instead.
	err = supervisor.Run(ctx, video, func(out visioncore.StreamOutput) {})
	if err != nil && ctx.Err() == nil {
		log.Errorw("stream stopped unexpectedly", "error", err)
	}
}
