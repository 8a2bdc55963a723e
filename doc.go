/*
Package visioncore implements a real-time video analytics pipeline:
motion-gated YOLO11 object detection and SORT-style multi-object
tracking for one or more concurrent video streams.

Each stream runs a fixed pipeline stage order:

	Frame -> MotionDetector -> DetectionPipeline -> ObjectTracker -> Renderer

MotionDetector (motion.go) runs MOG2 background subtraction to find
regions of interest, cutting down how much of each frame the detector
needs to run inference on. DetectionPipeline (detection_pipeline.go)
letterboxes each region, runs it through an ONNX Runtime session
(internal/onnxsession) loaded with a YOLO11 model, and decodes the raw
tensor output into Detections. ObjectTracker (tracker.go) associates
detections against existing tracks frame to frame using a Kalman
filter per track (internal/kalman) and a configurable assignment
solver (assignment.go), and maintains each track's lifecycle state.
Renderer (render.go) draws motion regions, detections, and tracks onto
the frame for preview or recording.

# Basic Usage

	motion := visioncore.NewMotionDetector(visioncore.DefaultMotionDetectorConfig(), log)
	pipeline := visioncore.NewDetectionPipeline(cfg, session, log)
	tracker := visioncore.NewObjectTracker(visioncore.DefaultObjectTrackerConfig(), log)

	regions := motion.Extract(frame, timestamp)
	var dets []visioncore.Detection
	for _, r := range regions {
		found, _ := pipeline.RunRegion(frame, r.BBox)
		dets = append(dets, found...)
	}
	tracks := tracker.Update(dets)
*/
package visioncore
