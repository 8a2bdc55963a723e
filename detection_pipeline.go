package visioncore

import (
	"fmt"
	"image"
	"sort"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/proximeter/visioncore/internal/onnxsession"
)

// Detection is a single class-labeled bounding box produced by the
// detection pipeline, in full-frame pixel coordinates.
type Detection struct {
	ClassID    int
	ClassName  string
	Confidence float64
	BBox       BoundingBox
}

const (
	modelInputSize  = 640
	numCOCOClasses  = 80
	lowConfCutoff   = 0.01
	defaultNMSIoU   = 0.5
)

// DetectionPipelineConfig holds the tunables threaded through every
// stage of Run/RunRegion.
type DetectionPipelineConfig struct {
	InputSize     int
	NMSIoUThreshold float64
}

// DefaultDetectionPipelineConfig returns the reference YOLO11 parameter
// set.
func DefaultDetectionPipelineConfig() DetectionPipelineConfig {
	return DetectionPipelineConfig{InputSize: modelInputSize, NMSIoUThreshold: defaultNMSIoU}
}

// DetectionPipeline wraps a single ONNX inference session with the
// letterbox preprocessing, YOLO11 decode, and class-wise NMS described
// grounded on
// original_source/src/app/services/detection.py.
type DetectionPipeline struct {
	cfg     DetectionPipelineConfig
	session *onnxsession.Session
	log     *zap.SugaredLogger
}

// NewDetectionPipeline wraps an already-constructed inference session.
func NewDetectionPipeline(cfg DetectionPipelineConfig, session *onnxsession.Session, log *zap.SugaredLogger) *DetectionPipeline {
	if log == nil {
		log = NewNopLogger()
	}
	if cfg.InputSize == 0 {
		cfg.InputSize = modelInputSize
	}
	if cfg.NMSIoUThreshold == 0 {
		cfg.NMSIoUThreshold = defaultNMSIoU
	}
	return &DetectionPipeline{cfg: cfg, session: session, log: log}
}

// Run detects objects across the full frame.
func (p *DetectionPipeline) Run(frame gocv.Mat) ([]Detection, error) {
	return p.runOn(frame, BoundingBox{X: 0, Y: 0, W: frame.Cols(), H: frame.Rows()})
}

// RunRegion detects objects within region, cropped from frame, and
// returns detections already remapped into full-frame coordinates.
func (p *DetectionPipeline) RunRegion(frame gocv.Mat, region BoundingBox) ([]Detection, error) {
	return p.runOn(frame, region)
}

func (p *DetectionPipeline) runOn(frame gocv.Mat, region BoundingBox) ([]Detection, error) {
	frameW, frameH := frame.Cols(), frame.Rows()
	clipped := region.Clip(frameW, frameH)
	if !clipped.Valid() {
		return nil, ErrEmptyRegion
	}

	rect := imageRect(clipped)
	cropped := frame.Region(rect)
	defer cropped.Close()

	lb := Letterbox(cropped.Rows(), cropped.Cols(), p.cfg.InputSize)
	tensor, err := p.preprocess(cropped, lb)
	if err != nil {
		return nil, err
	}

	output, shape, err := p.session.Run(tensor)
	if err != nil {
		return nil, fmt.Errorf("detection pipeline: inference: %w", err)
	}

	raw := decodeYOLO11(output, shape, lb, clipped.W, clipped.H)
	kept := applyClassNMS(raw, p.cfg.NMSIoUThreshold)
	return remapToFrame(kept, clipped.X, clipped.Y, frameW, frameH), nil
}

// preprocess implements the letterbox-resize, BGR->RGB, normalize,
// HWC->CHW, batch-prepend pipeline of preprocess_frame/preprocess_region.
func (p *DetectionPipeline) preprocess(region gocv.Mat, lb LetterboxTransform) ([]float32, error) {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(region, &resized, imagePoint(lb.NewW, lb.NewH), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMatWithSize(lb.Target, lb.Target, gocv.MatTypeCV8UC3)
	defer padded.Close()
	padded.SetTo(gocv.NewScalar(114, 114, 114, 0))

	roi := padded.Region(imageRectXYWH(lb.Left, lb.Top, lb.NewW, lb.NewH))
	resized.CopyTo(&roi)
	roi.Close()

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(padded, &rgb, gocv.ColorBGRToRGB)

	floatMat := gocv.NewMat()
	defer floatMat.Close()
	rgb.ConvertTo(&floatMat, gocv.MatTypeCV32F)

	channels := gocv.Split(floatMat)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()

	hw := lb.Target * lb.Target
	tensor := make([]float32, 3*hw)
	for c := 0; c < 3; c++ {
		data, err := channels[c].DataPtrFloat32()
		if err != nil {
			return nil, fmt.Errorf("detection pipeline: channel data: %w", err)
		}
		for i, v := range data {
			tensor[c*hw+i] = v / 255.0
		}
	}
	return tensor, nil
}

// decodeYOLO11 parses a (1, 4+80, N) or (4+80, N) output tensor into
// region-space detections, per parse_detections: transpose, per-row
// argmax over class probabilities, drop confidence below lowConfCutoff,
// invert letterbox, reject out-of-bounds-before-clip, clip, reject
// degenerate.
func decodeYOLO11(data []float32, shape []int64, lb LetterboxTransform, regionW, regionH int) []Detection {
	var features, numDet int
	switch len(shape) {
	case 3:
		features, numDet = int(shape[1]), int(shape[2])
	case 2:
		features, numDet = int(shape[0]), int(shape[1])
	default:
		return nil
	}
	numClasses := features - 4
	if numClasses <= 0 {
		return nil
	}

	var out []Detection
	for i := 0; i < numDet; i++ {
		xc := float64(data[0*numDet+i])
		yc := float64(data[1*numDet+i])
		w := float64(data[2*numDet+i])
		h := float64(data[3*numDet+i])

		bestClass := 0
		bestProb := float64(data[4*numDet+i])
		for c := 1; c < numClasses; c++ {
			v := float64(data[(4+c)*numDet+i])
			if v > bestProb {
				bestProb = v
				bestClass = c
			}
		}
		if bestProb < lowConfCutoff {
			continue
		}

		mx1, my1 := xc-w/2, yc-h/2
		mx2, my2 := xc+w/2, yc+h/2
		x1, y1 := lb.ToFrame(mx1, my1)
		x2, y2 := lb.ToFrame(mx2, my2)

		if x1 >= float64(regionW) || x2 >= float64(regionW) || y1 >= float64(regionH) || y2 >= float64(regionH) || x1 < 0 || y1 < 0 {
			continue
		}

		x1 = fclip(x1, 0, float64(regionW))
		y1 = fclip(y1, 0, float64(regionH))
		x2 = fclip(x2, 0, float64(regionW))
		y2 = fclip(y2, 0, float64(regionH))
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		className := ""
		if bestClass < len(COCOClasses) {
			className = COCOClasses[bestClass]
		}
		out = append(out, Detection{
			ClassID:    bestClass,
			ClassName:  className,
			Confidence: bestProb,
			BBox:       BoundingBox{X: int(x1), Y: int(y1), W: int(x2 - x1), H: int(y2 - y1)},
		})
	}
	return out
}

// applyClassNMS groups by class, sorts by confidence descending, and
// greedily suppresses IoU > threshold within each class, matching
// apply_nms.
func applyClassNMS(dets []Detection, iouThreshold float64) []Detection {
	if len(dets) == 0 {
		return nil
	}
	byClass := make(map[int][]Detection)
	for _, d := range dets {
		byClass[d.ClassID] = append(byClass[d.ClassID], d)
	}

	var kept []Detection
	for _, group := range byClass {
		sort.Slice(group, func(i, j int) bool { return group[i].Confidence > group[j].Confidence })
		suppressed := make([]bool, len(group))
		for i := range group {
			if suppressed[i] {
				continue
			}
			kept = append(kept, group[i])
			for j := i + 1; j < len(group); j++ {
				if suppressed[j] {
					continue
				}
				if IoU(group[i].BBox, group[j].BBox) > iouThreshold {
					suppressed[j] = true
				}
			}
		}
	}
	return kept
}

// remapToFrame adds the region offset and clamps to full-frame bounds,
// matching map_detections_to_frame's offset+clamp steps (the inverse
// letterbox step already happened in decodeYOLO11 against region space).
func remapToFrame(dets []Detection, offsetX, offsetY, frameW, frameH int) []Detection {
	if len(dets) == 0 {
		return nil
	}
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		b := BoundingBox{X: d.BBox.X + offsetX, Y: d.BBox.Y + offsetY, W: d.BBox.W, H: d.BBox.H}.Clip(frameW, frameH)
		if !b.Valid() {
			continue
		}
		d.BBox = b
		out = append(out, d)
	}
	return out
}

func imageRect(b BoundingBox) image.Rectangle {
	return image.Rect(b.X, b.Y, b.X2(), b.Y2())
}

func imageRectXYWH(x, y, w, h int) image.Rectangle {
	return image.Rect(x, y, x+w, y+h)
}

func imagePoint(w, h int) image.Point {
	return image.Pt(w, h)
}

// FilterDetections applies the live per-stream config: label allow-list,
// confidence floor, then a final full-frame NMS pass, matching
// filter_detections.
func FilterDetections(dets []Detection, cfg StreamDetectionConfig) []Detection {
	if !cfg.Enabled {
		return nil
	}
	var filtered []Detection
	for _, d := range dets {
		if _, ok := cfg.EnabledLabels[d.ClassName]; !ok {
			continue
		}
		if d.Confidence < cfg.MinConfidence {
			continue
		}
		filtered = append(filtered, d)
	}
	if len(filtered) == 0 {
		return filtered
	}
	return applyClassNMS(filtered, defaultNMSIoU)
}
