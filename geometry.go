package visioncore

import "math"

// BoundingBox is an axis-aligned rectangle in frame pixel coordinates,
// stored as origin + extent rather than corners.
type BoundingBox struct {
	X, Y, W, H int
}

// X2 returns the exclusive right edge.
func (b BoundingBox) X2() int { return b.X + b.W }

// Y2 returns the exclusive bottom edge.
func (b BoundingBox) Y2() int { return b.Y + b.H }

// Area returns w*h.
func (b BoundingBox) Area() int { return b.W * b.H }

// Center returns the box centroid.
func (b BoundingBox) Center() (cx, cy float64) {
	return float64(b.X) + float64(b.W)/2, float64(b.Y) + float64(b.H)/2
}

// Valid reports whether the box satisfies the positive-extent invariant.
func (b BoundingBox) Valid() bool {
	return b.X >= 0 && b.Y >= 0 && b.W > 0 && b.H > 0
}

// Clip constrains the box to lie within [0,W) x [0,H), shrinking the
// extent as needed. It never produces negative origin or extent.
func (b BoundingBox) Clip(frameW, frameH int) BoundingBox {
	x1, y1 := b.X, b.Y
	x2, y2 := b.X2(), b.Y2()

	if x1 < 0 {
		x1 = 0
	}
	if y1 < 0 {
		y1 = 0
	}
	if x2 > frameW {
		x2 = frameW
	}
	if y2 > frameH {
		y2 = frameH
	}

	if x2 <= x1 || y2 <= y1 {
		return BoundingBox{}
	}
	return BoundingBox{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// IoU computes Intersection over Union for two boxes in (x,y,w,h) form.
// Returns 0 when the union area is zero.
func IoU(a, b BoundingBox) float64 {
	ax1, ay1, ax2, ay2 := a.X, a.Y, a.X2(), a.Y2()
	bx1, by1, bx2, by2 := b.X, b.Y, b.X2(), b.Y2()

	ix1 := maxInt(ax1, bx1)
	iy1 := maxInt(ay1, by1)
	ix2 := minInt(ax2, bx2)
	iy2 := minInt(ay2, by2)

	interW := maxInt(0, ix2-ix1)
	interH := maxInt(0, iy2-iy1)
	intersection := float64(interW * interH)

	union := float64(a.Area()+b.Area()) - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// IoUMatrix computes the N x M matrix of pairwise IoU values between two
// box slices. Element (i,j) equals IoU(a[i], b[j]); this must agree with
// the scalar IoU function for every pair (tested property).
func IoUMatrix(a, b []BoundingBox) [][]float64 {
	out := make([][]float64, len(a))
	for i := range a {
		row := make([]float64, len(b))
		for j := range b {
			row[j] = IoU(a[i], b[j])
		}
		out[i] = row
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// LetterboxTransform describes the scale and padding applied when an
// (origH, origW) frame is resized into a (target x target) square with
// aspect ratio preserved and symmetric fill padding.
type LetterboxTransform struct {
	Scale        float64
	Top, Left    int
	NewH, NewW   int
	Target       int
	OrigH, OrigW int
}

// Letterbox computes the scale/padding for resizing an (origH, origW)
// source into a (target x target) square, matching the reference
// aspect-preserving resize-then-pad convention (fill value 114).
func Letterbox(origH, origW, target int) LetterboxTransform {
	scale := math.Min(float64(target)/float64(origH), float64(target)/float64(origW))
	newH := int(float64(origH) * scale)
	newW := int(float64(origW) * scale)
	top := (target - newH) / 2
	left := (target - newW) / 2
	return LetterboxTransform{
		Scale: scale, Top: top, Left: left,
		NewH: newH, NewW: newW,
		Target: target, OrigH: origH, OrigW: origW,
	}
}

// ToModel maps a point in source-frame coordinates to letterboxed
// model-space coordinates.
func (t LetterboxTransform) ToModel(x, y float64) (mx, my float64) {
	return x*t.Scale + float64(t.Left), y*t.Scale + float64(t.Top)
}

// ToFrame is the inverse of ToModel: it maps letterboxed model-space
// coordinates back to source-frame coordinates.
func (t LetterboxTransform) ToFrame(mx, my float64) (x, y float64) {
	return (mx - float64(t.Left)) / t.Scale, (my - float64(t.Top)) / t.Scale
}

// fclip constrains a float to [lo, hi].
func fclip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
