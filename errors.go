package visioncore

import (
	"errors"

	"github.com/proximeter/visioncore/internal/onnxsession"
)

// Sentinel errors for conditions callers may need to detect
// programmatically.
var (
	// ErrGPUBackendUnavailable is returned by the inference session
	// factory when a non-"none" GPU backend was requested but the
	// runtime fell back to CPU ("fail-fast GPU validation"). This is an
	// alias for onnxsession.ErrGPUBackendUnavailable, not a separate
	// copy, so errors.Is(err, visioncore.ErrGPUBackendUnavailable) works
	// against the error onnxsession.New actually returns.
	ErrGPUBackendUnavailable = onnxsession.ErrGPUBackendUnavailable

	// ErrStreamNotFound is returned by registry/config lookups for an
	// unknown stream id.
	ErrStreamNotFound = errors.New("visioncore: unknown stream id")

	// ErrEmptyRegion is returned by region preprocessing when the crop
	// rectangle does not intersect the source frame.
	ErrEmptyRegion = errors.New("visioncore: empty detection region")

	// ErrModelActive is returned by ModelCache.Delete when the named
	// model is the one currently loaded by an inference session.
	ErrModelActive = errors.New("visioncore: model is currently active, cannot delete")

	// ErrModelNotFound is returned by ModelCache.Delete when no .onnx
	// file matches the requested name.
	ErrModelNotFound = errors.New("visioncore: model not found")
)
