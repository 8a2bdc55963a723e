package visioncore

import (
	"image"
	"math"
	"sort"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// MotionRegion is a region of detected motion for one frame, produced by
// MotionDetector.Extract. Immutable after creation; its lifetime ends with
// the frame it was computed from.
type MotionRegion struct {
	BBox        BoundingBox
	Area        int
	Timestamp   float64
	MergedCount int
}

// MotionDetectorConfig holds the tunable parameters of the background
// model and post-processing pipeline, ported from
// original_source/services/motion.py.
type MotionDetectorConfig struct {
	History         int
	VarThreshold    float64
	DetectShadows   bool
	LearningRate    float64
	MinContourArea  float64
	MaxAreaFraction float64
	MergeDistance   float64
	NMSIoUThreshold float64
	PaddingFraction float64
	FPWindowSize    int
	FPCheckInterval int
	FPRateThreshold float64
}

// DefaultMotionDetectorConfig returns the detector's default parameter
// set.
func DefaultMotionDetectorConfig() MotionDetectorConfig {
	return MotionDetectorConfig{
		History:         500,
		VarThreshold:    16,
		DetectShadows:   true,
		LearningRate:    0.005,
		MinContourArea:  500,
		MaxAreaFraction: 0.8,
		MergeDistance:   40,
		NMSIoUThreshold: 0.4,
		PaddingFraction: 0.15,
		FPWindowSize:    300,
		FPCheckInterval: 50,
		FPRateThreshold: 0.50,
	}
}

// MotionDetector performs MOG2 background subtraction, morphological
// cleanup, contour extraction, region merging and NMS, ported from
// original_source/src/app/services/motion.py:MotionDetector.
type MotionDetector struct {
	cfg MotionDetectorConfig
	log *zap.SugaredLogger

	bgSubtractor gocv.BackgroundSubtractorMOG2
	kernel       gocv.Mat

	frameCount int

	// false-positive monitor: rolling window of whether motion was
	// detected in each of the last FPWindowSize frames.
	fpWindow    []bool
	fpWindowPos int
	fpWindowLen int
}

// NewMotionDetector constructs a detector with the given config. Pass
// DefaultMotionDetectorConfig() for the reference parameter set.
func NewMotionDetector(cfg MotionDetectorConfig, log *zap.SugaredLogger) *MotionDetector {
	if log == nil {
		log = NewNopLogger()
	}
	md := &MotionDetector{
		cfg:      cfg,
		log:      log,
		kernel:   gocv.GetStructuringElement(gocv.MorphRect, image.Pt(5, 5)),
		fpWindow: make([]bool, cfg.FPWindowSize),
	}
	md.bgSubtractor = gocv.NewBackgroundSubtractorMOG2WithParams(cfg.History, cfg.VarThreshold, cfg.DetectShadows)
	return md
}

// Close releases native OpenCV resources.
func (m *MotionDetector) Close() error {
	m.kernel.Close()
	return m.bgSubtractor.Close()
}

// Reset recreates the background model. This does NOT reset frame
// counters or the false-positive window, matching the Python
// original's reset() which only recreates the
// subtractor.
func (m *MotionDetector) Reset() {
	_ = m.bgSubtractor.Close()
	m.bgSubtractor = gocv.NewBackgroundSubtractorMOG2WithParams(m.cfg.History, m.cfg.VarThreshold, m.cfg.DetectShadows)
}

// Extract runs the full per-frame motion-detection pipeline on a BGR
// frame and returns the resulting regions.
func (m *MotionDetector) Extract(frame gocv.Mat, timestamp float64) []MotionRegion {
	m.frameCount++
	frameW, frameH := frame.Cols(), frame.Rows()
	frameArea := float64(frameW * frameH)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	fgMask := gocv.NewMat()
	defer fgMask.Close()
	m.bgSubtractor.Apply(gray, &fgMask)

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(fgMask, &opened, gocv.MorphOpen, m.kernel)

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(opened, &dilated, m.kernel)

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var candidates []boxWithArea
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < m.cfg.MinContourArea || area > m.cfg.MaxAreaFraction*frameArea {
			continue
		}
		rect := gocv.BoundingRect(contour)
		bbox := BoundingBox{X: rect.Min.X, Y: rect.Min.Y, W: rect.Dx(), H: rect.Dy()}
		if !bbox.Valid() {
			continue
		}
		candidates = append(candidates, boxWithArea{bbox: bbox, area: area})
	}

	merged := mergeNearbyBoxes(candidates, m.cfg.MergeDistance)
	kept := nmsMotionBoxes(merged, m.cfg.NMSIoUThreshold)

	regions := make([]MotionRegion, 0, len(kept))
	for _, k := range kept {
		padding := int(m.cfg.PaddingFraction * float64(maxInt(k.bbox.W, k.bbox.H)))
		padded := BoundingBox{
			X: k.bbox.X - padding,
			Y: k.bbox.Y - padding,
			W: k.bbox.W + 2*padding,
			H: k.bbox.H + 2*padding,
		}.Clip(frameW, frameH)
		if !padded.Valid() {
			continue
		}
		regions = append(regions, MotionRegion{
			BBox:        padded,
			Area:        int(k.area),
			Timestamp:   timestamp,
			MergedCount: k.mergedCount,
		})
	}

	m.recordFalsePositiveSample(len(regions) > 0)
	return regions
}

type boxWithArea struct {
	bbox        BoundingBox
	area        float64
	mergedCount int
}

// mergeNearbyBoxes iteratively collapses any two boxes whose centres lie
// within distance into their union bounding rectangle, updating the
// centre after each absorb, matching
// motion.py:MotionDetector._merge_nearby_bboxes.
func mergeNearbyBoxes(boxes []boxWithArea, distance float64) []boxWithArea {
	remaining := make([]boxWithArea, len(boxes))
	copy(remaining, boxes)
	for i := range remaining {
		if remaining[i].mergedCount == 0 {
			remaining[i].mergedCount = 1
		}
	}

	var out []boxWithArea
	used := make([]bool, len(remaining))

	for i := range remaining {
		if used[i] {
			continue
		}
		used[i] = true
		group := remaining[i]

		changed := true
		for changed {
			changed = false
			gcx, gcy := group.bbox.Center()
			for j := range remaining {
				if used[j] {
					continue
				}
				ocx, ocy := remaining[j].bbox.Center()
				if euclidean(gcx, gcy, ocx, ocy) < distance {
					group.bbox = unionBBox(group.bbox, remaining[j].bbox)
					group.area += remaining[j].area
					group.mergedCount += remaining[j].mergedCount
					used[j] = true
					changed = true
				}
			}
		}
		out = append(out, group)
	}
	return out
}

func euclidean(x1, y1, x2, y2 float64) float64 {
	dx, dy := x1-x2, y1-y2
	return math.Sqrt(dx*dx + dy*dy)
}

func unionBBox(a, b BoundingBox) BoundingBox {
	x1 := minInt(a.X, b.X)
	y1 := minInt(a.Y, b.Y)
	x2 := maxInt(a.X2(), b.X2())
	y2 := maxInt(a.Y2(), b.Y2())
	return BoundingBox{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// nmsMotionBoxes sorts by descending area and greedily keeps the current
// largest, dropping any remaining box whose IoU with it exceeds
// threshold, matching motion.py:MotionDetector._apply_nms.
func nmsMotionBoxes(boxes []boxWithArea, iouThreshold float64) []boxWithArea {
	sorted := make([]boxWithArea, len(boxes))
	copy(sorted, boxes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].area > sorted[j].area })

	kept := make([]boxWithArea, 0, len(sorted))
	suppressed := make([]bool, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] {
				continue
			}
			if IoU(sorted[i].bbox, sorted[j].bbox) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// recordFalsePositiveSample appends one frame's motion/no-motion sample
// to the rolling window and, every FPCheckInterval frames, warns if the
// motion rate over the last FPWindowSize frames exceeds FPRateThreshold.
func (m *MotionDetector) recordFalsePositiveSample(hadMotion bool) {
	idx := m.fpWindowPos % len(m.fpWindow)
	m.fpWindow[idx] = hadMotion
	m.fpWindowPos++
	if m.fpWindowLen < len(m.fpWindow) {
		m.fpWindowLen++
	}

	if m.cfg.FPCheckInterval <= 0 || m.frameCount%m.cfg.FPCheckInterval != 0 {
		return
	}
	if m.fpWindowLen == 0 {
		return
	}
	count := 0
	for i := 0; i < m.fpWindowLen; i++ {
		if m.fpWindow[i] {
			count++
		}
	}
	rate := float64(count) / float64(m.fpWindowLen)
	if rate > m.cfg.FPRateThreshold {
		m.log.Warnw("motion detector: high motion rate, possible false-positive source",
			"rate", rate, "window_frames", m.fpWindowLen)
	}
}
