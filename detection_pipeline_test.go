package visioncore

import "testing"

// buildYOLOTensor lays out a (4+numClasses, numDet) tensor in the flat
// row-major form decodeYOLO11 expects: data[feature*numDet + detIndex].
func buildYOLOTensor(numClasses, numDet int, dets []struct {
	xc, yc, w, h float32
	classIdx     int
	prob         float32
}) []float32 {
	features := 4 + numClasses
	data := make([]float32, features*numDet)
	for i, d := range dets {
		data[0*numDet+i] = d.xc
		data[1*numDet+i] = d.yc
		data[2*numDet+i] = d.w
		data[3*numDet+i] = d.h
		data[(4+d.classIdx)*numDet+i] = d.prob
	}
	return data
}

func TestDecodeYOLO11_BasicDetection(t *testing.T) {
	lb := Letterbox(640, 640, 640) // identity transform: scale 1, no padding
	numDet := 1
	data := buildYOLOTensor(80, numDet, []struct {
		xc, yc, w, h float32
		classIdx     int
		prob         float32
	}{
		{xc: 100, yc: 100, w: 50, h: 50, classIdx: 3, prob: 0.9},
	})

	dets := decodeYOLO11(data, []int64{84, int64(numDet)}, lb, 640, 640)
	if len(dets) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(dets))
	}
	d := dets[0]
	if d.ClassID != 3 {
		t.Errorf("expected class 3, got %d", d.ClassID)
	}
	if d.ClassName != COCOClasses[3] {
		t.Errorf("expected class name %q, got %q", COCOClasses[3], d.ClassName)
	}
	if d.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", d.Confidence)
	}
	// center (100,100) size 50x50 -> box (75,75)-(125,125)
	if d.BBox.X != 75 || d.BBox.Y != 75 || d.BBox.W != 50 || d.BBox.H != 50 {
		t.Errorf("unexpected bbox: %+v", d.BBox)
	}
}

func TestDecodeYOLO11_DropsBelowConfidenceCutoff(t *testing.T) {
	lb := Letterbox(640, 640, 640)
	numDet := 1
	data := buildYOLOTensor(80, numDet, []struct {
		xc, yc, w, h float32
		classIdx     int
		prob         float32
	}{
		{xc: 100, yc: 100, w: 50, h: 50, classIdx: 3, prob: 0.005},
	})
	dets := decodeYOLO11(data, []int64{84, int64(numDet)}, lb, 640, 640)
	if len(dets) != 0 {
		t.Errorf("expected detection below lowConfCutoff to be dropped, got %d", len(dets))
	}
}

func TestDecodeYOLO11_RejectsOutOfBoundsBeforeClip(t *testing.T) {
	lb := Letterbox(640, 640, 640)
	numDet := 1
	// Center far outside the region entirely, so the box never overlaps.
	data := buildYOLOTensor(80, numDet, []struct {
		xc, yc, w, h float32
		classIdx     int
		prob         float32
	}{
		{xc: 2000, yc: 2000, w: 50, h: 50, classIdx: 0, prob: 0.9},
	})
	dets := decodeYOLO11(data, []int64{84, int64(numDet)}, lb, 640, 640)
	if len(dets) != 0 {
		t.Errorf("expected fully out-of-bounds detection to be rejected, got %d", len(dets))
	}
}

func TestDecodeYOLO11_UnsupportedShapeReturnsNil(t *testing.T) {
	lb := Letterbox(640, 640, 640)
	if dets := decodeYOLO11(nil, []int64{1, 2, 3, 4}, lb, 640, 640); dets != nil {
		t.Errorf("expected nil for unsupported shape rank, got %v", dets)
	}
}

func TestApplyClassNMS_Idempotent(t *testing.T) {
	dets := []Detection{
		{ClassID: 0, ClassName: "person", Confidence: 0.9, BBox: BoundingBox{0, 0, 100, 100}},
		{ClassID: 0, ClassName: "person", Confidence: 0.8, BBox: BoundingBox{5, 5, 100, 100}},
		{ClassID: 1, ClassName: "car", Confidence: 0.95, BBox: BoundingBox{500, 500, 50, 50}},
	}
	once := applyClassNMS(dets, defaultNMSIoU)
	twice := applyClassNMS(once, defaultNMSIoU)

	if len(once) != len(twice) {
		t.Fatalf("NMS not idempotent: first pass %d dets, second pass %d dets", len(once), len(twice))
	}
	sameSet := func(a, b []Detection) bool {
		if len(a) != len(b) {
			return false
		}
		for _, da := range a {
			found := false
			for _, db := range b {
				if da.ClassID == db.ClassID && da.BBox == db.BBox && da.Confidence == db.Confidence {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	if !sameSet(once, twice) {
		t.Errorf("NMS(NMS(D)) != NMS(D): %v vs %v", once, twice)
	}
}

func TestApplyClassNMS_KeepsHighestConfidencePerOverlapGroup(t *testing.T) {
	dets := []Detection{
		{ClassID: 0, Confidence: 0.6, BBox: BoundingBox{0, 0, 100, 100}},
		{ClassID: 0, Confidence: 0.9, BBox: BoundingBox{2, 2, 100, 100}},
	}
	kept := applyClassNMS(dets, 0.3)
	if len(kept) != 1 {
		t.Fatalf("expected 1 surviving detection, got %d", len(kept))
	}
	if kept[0].Confidence != 0.9 {
		t.Errorf("expected the higher-confidence detection to survive, got confidence %v", kept[0].Confidence)
	}
}

func TestApplyClassNMS_DoesNotSuppressAcrossClasses(t *testing.T) {
	dets := []Detection{
		{ClassID: 0, Confidence: 0.9, BBox: BoundingBox{0, 0, 100, 100}},
		{ClassID: 1, Confidence: 0.9, BBox: BoundingBox{0, 0, 100, 100}},
	}
	kept := applyClassNMS(dets, 0.1)
	if len(kept) != 2 {
		t.Errorf("expected both same-box different-class detections to survive, got %d", len(kept))
	}
}

func TestRemapToFrame_OffsetsAndClips(t *testing.T) {
	dets := []Detection{
		{ClassID: 0, BBox: BoundingBox{X: 10, Y: 10, W: 20, H: 20}},
	}
	remapped := remapToFrame(dets, 100, 200, 640, 480)
	if len(remapped) != 1 {
		t.Fatalf("expected 1 remapped detection, got %d", len(remapped))
	}
	want := BoundingBox{X: 110, Y: 210, W: 20, H: 20}
	if remapped[0].BBox != want {
		t.Errorf("expected offset bbox %+v, got %+v", want, remapped[0].BBox)
	}
}

func TestRemapToFrame_DropsDetectionsClippedToNothing(t *testing.T) {
	dets := []Detection{
		{ClassID: 0, BBox: BoundingBox{X: 10, Y: 10, W: 20, H: 20}},
	}
	// Offset pushes the box entirely outside a tiny frame.
	remapped := remapToFrame(dets, 1000, 1000, 640, 480)
	if len(remapped) != 0 {
		t.Errorf("expected detection clipped to nothing to be dropped, got %d", len(remapped))
	}
}

func TestFilterDetections_DisabledReturnsNil(t *testing.T) {
	cfg := StreamDetectionConfig{Enabled: false}
	dets := []Detection{{ClassName: "person", Confidence: 0.9, BBox: BoundingBox{0, 0, 10, 10}}}
	if got := FilterDetections(dets, cfg); got != nil {
		t.Errorf("expected nil when detection disabled, got %v", got)
	}
}

// TestFilterDetections_S4_ConfidenceFloor mirrors the S4 scenario: three
// same-class detections at confidences [0.9, 0.6, 0.4] with a 0.7 floor
// should leave only the 0.9 detection.
func TestFilterDetections_S4_ConfidenceFloor(t *testing.T) {
	cfg, err := NewStreamDetectionConfig(true, []string{"person"}, 0.7)
	if err != nil {
		t.Fatalf("NewStreamDetectionConfig: %v", err)
	}
	dets := []Detection{
		{ClassName: "person", Confidence: 0.9, BBox: BoundingBox{0, 0, 10, 10}},
		{ClassName: "person", Confidence: 0.6, BBox: BoundingBox{100, 100, 10, 10}},
		{ClassName: "person", Confidence: 0.4, BBox: BoundingBox{200, 200, 10, 10}},
	}
	filtered := FilterDetections(dets, cfg)
	if len(filtered) != 1 || filtered[0].Confidence != 0.9 {
		t.Errorf("expected only the 0.9-confidence detection to survive, got %v", filtered)
	}
}

func TestFilterDetections_AppliesLabelAndConfidenceFilters(t *testing.T) {
	cfg, err := NewStreamDetectionConfig(true, []string{"person", "car"}, 0.5)
	if err != nil {
		t.Fatalf("NewStreamDetectionConfig: %v", err)
	}
	dets := []Detection{
		{ClassName: "person", Confidence: 0.9, BBox: BoundingBox{0, 0, 10, 10}},
		{ClassName: "car", Confidence: 0.3, BBox: BoundingBox{100, 100, 10, 10}},
		{ClassName: "dog", Confidence: 0.95, BBox: BoundingBox{200, 200, 10, 10}},
	}
	filtered := FilterDetections(dets, cfg)
	if len(filtered) != 1 || filtered[0].ClassName != "person" {
		t.Errorf("expected only the high-confidence person detection to survive, got %v", filtered)
	}
}
