// Package kalman implements the fixed constant-velocity Kalman filter used
// by the SORT-style object tracker: a 6-dimensional state
// [cx, cy, w, h, vx, vy] observing only position and extent. It wraps
// internal/filterpy's gonum-based matrix engine (itself a port of
// filterpy.kalman.KalmanFilter) and adds the numerical-failure self-reset
// behavior ported from the Python original's
// utils/tracking.py:KalmanTracker.update.
package kalman

import (
	"gonum.org/v1/gonum/mat"

	"github.com/proximeter/visioncore/internal/filterpy"
)

const (
	dimX = 6
	dimZ = 4

	dt = 0.2

	posVariance  = 10.0
	velVariance  = 1000.0
	processNoise = 0.01
	measNoise    = 10.0
)

// Filter tracks a single bounding box with a constant-velocity model.
type Filter struct {
	kf *filterpy.KalmanFilter
}

// New creates a Filter seeded from an initial bounding box (x, y, w, h)
// with zero velocity, matching KalmanTracker.__init__.
func New(x, y, w, h float64) *Filter {
	f := &Filter{kf: filterpy.NewKalmanFilter(dimX, dimZ)}
	f.reset(x, y, w, h)
	f.configureMatrices()
	return f
}

func (f *Filter) configureMatrices() {
	kf := f.kf
	F := mat.NewDense(dimX, dimX, nil)
	for i := 0; i < dimX; i++ {
		F.Set(i, i, 1.0)
	}
	F.Set(0, 4, dt)
	F.Set(1, 5, dt)
	kf.F = F

	H := mat.NewDense(dimZ, dimX, nil)
	H.Set(0, 0, 1.0)
	H.Set(1, 1, 1.0)
	H.Set(2, 2, 1.0)
	H.Set(3, 3, 1.0)
	kf.H = H

	Q := mat.NewDense(dimX, dimX, nil)
	for i := 0; i < dimX; i++ {
		Q.Set(i, i, processNoise)
	}
	kf.Q = Q

	R := mat.NewDense(dimZ, dimZ, nil)
	for i := 0; i < dimZ; i++ {
		R.Set(i, i, measNoise)
	}
	kf.R = R
}

// reset sets state to the given bbox with zero velocity and reinitialises
// the covariance to its initial values, matching the numerical-failure
// self-reset and the constructor's initial state.
func (f *Filter) reset(x, y, w, h float64) {
	cx := x + w/2
	cy := y + h/2

	state := mat.NewDense(dimX, 1, []float64{cx, cy, w, h, 0, 0})
	f.kf.SetState(state)

	P := mat.NewDense(dimX, dimX, nil)
	for i := 0; i < 4; i++ {
		P.Set(i, i, posVariance)
	}
	for i := 4; i < dimX; i++ {
		P.Set(i, i, velVariance)
	}
	f.kf.SetCovariance(P)
}

// Predict advances the state one step under the constant-velocity model.
func (f *Filter) Predict() {
	f.kf.Predict()
}

// Update incorporates a new bbox measurement. On a singular innovation
// covariance it self-resets to the measurement with zero velocity rather
// than propagating the failure, matching the reference tracker's
// LinAlgError handler; the caller should log a warning in this case.
func (f *Filter) Update(x, y, w, h float64) (reset bool) {
	cx := x + w/2
	cy := y + h/2
	z := mat.NewDense(dimZ, 1, []float64{cx, cy, w, h})

	if err := f.kf.Update(z, nil, nil); err != nil {
		f.reset(x, y, w, h)
		return true
	}
	return false
}

// BBox returns the current state converted back to (x, y, w, h).
func (f *Filter) BBox() (x, y, w, h float64) {
	state := f.kf.GetState()
	cx, cy, w, h := state.At(0, 0), state.At(1, 0), state.At(2, 0), state.At(3, 0)
	return cx - w/2, cy - h/2, w, h
}

// Velocity returns the current (vx, vy) estimate in pixels/frame.
func (f *Filter) Velocity() (vx, vy float64) {
	state := f.kf.GetState()
	return state.At(4, 0), state.At(5, 0)
}
