/*
Package drawing provides visualization primitives for overlaying motion
regions, detections, and tracked objects on video frames using gocv.

# Basic Usage

	import "github.com/proximeter/visioncore/drawing"

	d := drawing.NewDrawer()
	d.Rectangle(frame, pt1, pt2, color.Red, 2)
	d.Text(frame, "label", pos, 0, color.White, 0, true, color.Black, 1)

# Components

Drawer: primitive drawing operations (rectangles, text, circles, lines)
Color: BGR color type with conversion utilities
Palette: deterministic per-ID/per-class color assignment via hashing
*/
package drawing
