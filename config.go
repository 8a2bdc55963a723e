package visioncore

import "fmt"

// COCOClasses is the standard 80-entry COCO detection label list; position
// in the slice equals class_id, matching YOLO11's class_probs ordering.
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

var cocoClassIndex = func() map[string]int {
	m := make(map[string]int, len(COCOClasses))
	for i, name := range COCOClasses {
		m[name] = i
	}
	return m
}()

// IsCOCOClass reports whether name is a member of COCOClasses.
func IsCOCOClass(name string) bool {
	_, ok := cocoClassIndex[name]
	return ok
}

// StreamDetectionConfig is the per-stream live detection configuration.
// It is a fixed, enumerated struct per the design notes (no dynamic
// field bags): enabled toggle, the label allow-list, and a confidence
// floor. Instances are swapped atomically between frames; see
// StreamSupervisor's config store.
type StreamDetectionConfig struct {
	Enabled       bool
	EnabledLabels map[string]struct{}
	MinConfidence float64
}

// InvalidLabelsError is returned by ValidateStreamDetectionConfig when
// enabled_labels is not a subset of COCOClasses. It names exactly the
// invalid entries.
type InvalidLabelsError struct {
	InvalidLabels []string
}

func (e *InvalidLabelsError) Error() string {
	return fmt.Sprintf("invalid labels: %v", e.InvalidLabels)
}

// ValidateStreamDetectionConfig checks enabled_labels against COCOClasses
// and min_confidence against [0,1]. On label failure it returns
// *InvalidLabelsError naming every offending label.
func ValidateStreamDetectionConfig(cfg StreamDetectionConfig) error {
	var invalid []string
	for label := range cfg.EnabledLabels {
		if !IsCOCOClass(label) {
			invalid = append(invalid, label)
		}
	}
	if len(invalid) > 0 {
		return &InvalidLabelsError{InvalidLabels: invalid}
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return fmt.Errorf("min_confidence %v out of range [0,1]", cfg.MinConfidence)
	}
	return nil
}

// NewStreamDetectionConfig builds a config from a label slice, validating
// before construction succeeds.
func NewStreamDetectionConfig(enabled bool, labels []string, minConfidence float64) (StreamDetectionConfig, error) {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	cfg := StreamDetectionConfig{Enabled: enabled, EnabledLabels: set, MinConfidence: minConfidence}
	if err := ValidateStreamDetectionConfig(cfg); err != nil {
		return StreamDetectionConfig{}, err
	}
	return cfg, nil
}
