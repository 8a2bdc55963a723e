// Command analyze runs the full motion+detection+tracking pipeline over
// a single recorded video file, writing an annotated copy to disk. It is
// the batch/offline counterpart to streamd.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	ort "github.com/yalue/onnxruntime_go"
	"github.com/spf13/cobra"

	"github.com/proximeter/visioncore"
	"github.com/proximeter/visioncore/internal/onnxsession"
)

func main() {
	var (
		inputPath  string
		outputPath string
		modelPath  string
		gpuBackend string
		ortLibPath string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run motion detection, YOLO11 inference, and tracking over a recorded video",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(inputPath, outputPath, modelPath, gpuBackend, ortLibPath)
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "path to the source video file (required)")
	cmd.Flags().StringVar(&outputPath, "output", "./output", "directory or file path for the annotated video")
	cmd.Flags().StringVar(&modelPath, "model", "./models/yolo11n_640.onnx", "path to the YOLO11 .onnx model")
	cmd.Flags().StringVar(&gpuBackend, "gpu-backend", "none", "inference backend: nvidia, amd, intel, or none")
	cmd.Flags().StringVar(&ortLibPath, "onnxruntime-lib", "", "path to the onnxruntime shared library (optional)")
	cmd.MarkFlagRequired("input")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(inputPath, outputPath, modelPath, gpuBackend, ortLibPath string) error {
	log, err := visioncore.NewProductionLogger()
	if err != nil {
		return fmt.Errorf("analyze: logger: %w", err)
	}
	defer log.Sync()

	if ortLibPath != "" {
		if err := onnxsession.InitRuntime(ortLibPath); err != nil {
			return fmt.Errorf("analyze: init onnxruntime: %w", err)
		}
		defer onnxsession.ShutdownRuntime()
	}

	session, err := onnxsession.New(
		onnxsession.Config{
			ModelPath: modelPath,
			Backend:   onnxsession.GPUBackend(gpuBackend),
			FailFast:  true,
		},
		ort.NewShape(1, 3, 640, 640),
		ort.NewShape(1, 84, 8400),
	)
	if err != nil {
		return fmt.Errorf("analyze: inference session: %w", err)
	}
	defer session.Close()
	log.Infow("inference session ready", "model", modelPath, "active_provider", session.ActiveProvider)

	video, err := visioncore.NewVideo(visioncore.VideoOptions{
		InputPath:  &inputPath,
		OutputPath: outputPath,
		Label:      "analyze",
	})
	if err != nil {
		return fmt.Errorf("analyze: open video: %w", err)
	}
	defer video.Close()

	motion := visioncore.NewMotionDetector(visioncore.DefaultMotionDetectorConfig(), log)
	defer motion.Close()
	pipeline := visioncore.NewDetectionPipeline(visioncore.DefaultDetectionPipelineConfig(), session, log)
	tracker := visioncore.NewObjectTracker(visioncore.DefaultObjectTrackerConfig(), log)

	allLabels := append([]string(nil), visioncore.COCOClasses...)
	cfg, err := visioncore.NewStreamDetectionConfig(true, allLabels, 0.25)
	if err != nil {
		return fmt.Errorf("analyze: default detection config: %w", err)
	}

	supervisor := visioncore.NewStreamSupervisor(motion, pipeline, tracker, cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return supervisor.Run(ctx, video, func(out visioncore.StreamOutput) {
		if err := video.Write(out.Frame); err != nil {
			log.Warnw("analyze: failed to write frame", "frame", out.FrameNum, "error", err)
		}
	})
}
