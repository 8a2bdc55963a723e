package visioncore

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// stationaryRecheckInterval is how often (in frames, counted per track
// via TrackedObject.FramesSinceStationaryRecheck) a Stationary track's
// own bbox is resubmitted for inference even though no motion was
// detected there (~10s at 5fps).
const stationaryRecheckInterval = 50

// StreamOutput is what StreamSupervisor.Step produces for one input
// frame: the frame with overlays drawn in place, and a snapshot of the
// tracker's current state.
type StreamOutput struct {
	Frame      gocv.Mat
	FrameNum   int
	Tracks     []*TrackedObject
	Detections []Detection
}

// StreamSupervisor orchestrates one stream's per-frame pipeline:
// motion detection -> work-set construction -> detection -> dedupe ->
// live-config filter -> tracking -> rendering. One
// instance owns one stream; it holds no state shared with other streams.
type StreamSupervisor struct {
	motion   *MotionDetector
	pipeline *DetectionPipeline
	tracker  *ObjectTracker
	renderer *Renderer
	log      *zap.SugaredLogger

	cfg *atomic.Pointer[StreamDetectionConfig]
}

// NewStreamSupervisor wires the four pipeline stages together. cfg is the
// initial live-detection config; SetConfig swaps it atomically between
// frames.
func NewStreamSupervisor(
	motion *MotionDetector,
	pipeline *DetectionPipeline,
	tracker *ObjectTracker,
	cfg StreamDetectionConfig,
	log *zap.SugaredLogger,
) *StreamSupervisor {
	if log == nil {
		log = NewNopLogger()
	}
	s := &StreamSupervisor{
		motion:   motion,
		pipeline: pipeline,
		tracker:  tracker,
		renderer: NewRenderer(),
		log:      log,
		cfg:      &atomic.Pointer[StreamDetectionConfig]{},
	}
	s.cfg.Store(&cfg)
	return s
}

// SetConfig atomically replaces the live detection config. The
// supervisor reads the config once per frame, so no frame observes a
// half-applied update. cfg must already satisfy
// ValidateStreamDetectionConfig — callers (e.g. the registry update
// path) are responsible for rejecting invalid sets before calling this.
func (s *StreamSupervisor) SetConfig(cfg StreamDetectionConfig) {
	s.cfg.Store(&cfg)
}

// Step advances the stream by one frame, mutating frame in place with
// rendered overlays. It never panics on a stage failure: motion-detector
// panics are not recovered here (MotionDetector.Extract does not panic
// by construction), detection errors fall through with no detections
// for the region (the tracker still predicts forward on its existing
// tracks), a fail-closed/fall-through containment policy.
func (s *StreamSupervisor) Step(ctx context.Context, frame gocv.Mat, timestamp float64, frameNumber int) StreamOutput {
	regions := s.motion.Extract(frame, timestamp)

	var allDets []Detection
	for _, region := range regions {
		if ctx.Err() != nil {
			break
		}
		dets, err := s.pipeline.RunRegion(frame, region.BBox)
		if err != nil {
			s.log.Warnw("stream supervisor: detection region failed, skipping", "error", err)
			continue
		}
		allDets = append(allDets, dets...)
	}

	for _, tr := range s.tracker.StationaryObjects() {
		tr.FramesSinceStationaryRecheck++
		if tr.FramesSinceStationaryRecheck < stationaryRecheckInterval {
			continue
		}
		tr.FramesSinceStationaryRecheck = 0
		dets, err := s.pipeline.RunRegion(frame, tr.BBox)
		if err != nil {
			s.log.Warnw("stream supervisor: stationary recheck failed, skipping", "track_id", tr.ID, "error", err)
			continue
		}
		allDets = append(allDets, dets...)
	}

	deduped := applyClassNMS(allDets, defaultNMSIoU)

	cfg := s.cfg.Load()
	var filtered []Detection
	if cfg != nil {
		filtered = FilterDetections(deduped, *cfg)
	}

	tracks := s.tracker.Update(filtered)

	s.renderer.DrawAll(&frame, regions, tracks)

	return StreamOutput{
		Frame:      frame,
		FrameNum:   frameNumber,
		Tracks:     tracks,
		Detections: filtered,
	}
}

// Run drains src until its channel closes or ctx is cancelled, calling fn
// with every rendered output. It is the cooperative-cancellation analogue
// of video.go's Frames()/Write() loop, generalized across the extra
// pipeline stages.
func (s *StreamSupervisor) Run(ctx context.Context, src FrameSource, fn func(StreamOutput)) error {
	frames, err := src.Frames(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return ctx.Err()
			}
			out := s.Step(ctx, f.Mat, f.Timestamp, f.Number)
			fn(out)
			f.Mat.Close()
		}
	}
}
