package visioncore

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	colorpkg "github.com/proximeter/visioncore/color"
	"github.com/proximeter/visioncore/drawing"
)

// classPalette is a fixed 80-entry pseudo-random BGR palette, one color
// per COCO class, matching detection.py's seeded CLASS_COLORS (np.random
// with seed 42). Generated with a small xorshift generator reseeded at a
// fixed value so the mapping is stable without depending on numpy's
// specific PRNG stream.
var classPalette = buildClassPalette()

func buildClassPalette() []colorpkg.Color {
	palette := make([]colorpkg.Color, len(COCOClasses))
	seed := uint32(42)
	next := func() uint32 {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		return seed
	}
	for i := range palette {
		r := uint8(next() % 256)
		g := uint8(next() % 256)
		b := uint8(next() % 256)
		palette[i] = colorpkg.Color{B: b, G: g, R: r}
	}
	return palette
}

// stateColor maps a track's lifecycle state to its overlay color,
// matching render_tracking_boxes: yellow/stationary, green/active,
// orange/tentative, gray/lost.
func stateColor(s ObjectState) colorpkg.Color {
	switch s {
	case Stationary:
		return colorpkg.Yellow
	case Active:
		return colorpkg.Color{B: 0, G: 255, R: 0} // green
	case Tentative:
		return colorpkg.Color{B: 0, G: 165, R: 255} // orange
	default:
		return colorpkg.Color{B: 128, G: 128, R: 128} // gray
	}
}

// Renderer draws motion regions, detections, and tracked objects onto a
// frame, matching the overlay conventions of
// original_source/src/app/services/detection.py's render_* functions.
type Renderer struct {
	drawer *drawing.Drawer
}

// NewRenderer constructs a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{drawer: drawing.NewDrawer()}
}

// DrawMotionRegions outlines motion regions in thin red rectangles.
func (r *Renderer) DrawMotionRegions(frame *gocv.Mat, regions []MotionRegion) {
	for _, region := range regions {
		pt1 := image.Pt(region.BBox.X, region.BBox.Y)
		pt2 := image.Pt(region.BBox.X2(), region.BBox.Y2())
		r.drawer.Rectangle(frame, pt1, pt2, colorpkg.Red, 1)
	}
}

// DrawDetections draws raw detections with a per-class palette color and
// a "class confidence" label.
func (r *Renderer) DrawDetections(frame *gocv.Mat, dets []Detection) {
	for _, d := range dets {
		c := colorpkg.White
		if d.ClassID >= 0 && d.ClassID < len(classPalette) {
			c = classPalette[d.ClassID]
		}
		pt1 := image.Pt(d.BBox.X, d.BBox.Y)
		pt2 := image.Pt(d.BBox.X2(), d.BBox.Y2())
		r.drawer.Rectangle(frame, pt1, pt2, c, 2)

		label := fmt.Sprintf("%s %.2f", d.ClassName, d.Confidence)
		labelY := d.BBox.Y - 10
		if labelY < 0 {
			labelY = d.BBox.Y2() + 15
		}
		r.drawer.Text(frame, label, image.Pt(d.BBox.X, labelY), 0.6, c, 2, true, colorpkg.Black, 1)
	}
}

// DrawTracks draws tracked objects colored by lifecycle state, with an
// "id class (state)" label.
func (r *Renderer) DrawTracks(frame *gocv.Mat, tracks []*TrackedObject) {
	for _, t := range tracks {
		c := stateColor(t.State)
		pt1 := image.Pt(t.BBox.X, t.BBox.Y)
		pt2 := image.Pt(t.BBox.X2(), t.BBox.Y2())
		r.drawer.Rectangle(frame, pt1, pt2, c, 2)

		label := fmt.Sprintf("%d %s (%s)", t.ID, t.ClassName, t.State)
		labelY := t.BBox.Y - 5
		if labelY < 0 {
			labelY = t.BBox.Y2() + 15
		}
		r.drawer.Text(frame, label, image.Pt(t.BBox.X, labelY), 0.5, c, 1, true, colorpkg.Black, 1)
	}
}

// DrawAll is the per-frame convenience entrypoint used by StreamSupervisor.
func (r *Renderer) DrawAll(frame *gocv.Mat, regions []MotionRegion, tracks []*TrackedObject) {
	r.DrawMotionRegions(frame, regions)
	r.DrawTracks(frame, tracks)
}
