// Package onnxsession wraps github.com/yalue/onnxruntime_go with the
// GPU-backend selection and fail-fast validation contract ported from
// original_source/src/app/services/yolo.py:create_onnx_session.
package onnxsession

import (
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"
)

// GPUBackend names a requested execution backend.
type GPUBackend string

const (
	BackendNone   GPUBackend = "none"
	BackendNvidia GPUBackend = "nvidia"
	BackendAMD    GPUBackend = "amd"
	BackendIntel  GPUBackend = "intel"
)

// Config controls session construction.
type Config struct {
	ModelPath string
	Backend   GPUBackend
	// FailFast, when true (the default posture), causes New to return an
	// error if Backend != BackendNone but the runtime could only bind the
	// CPU execution provider.
	FailFast bool
}

// Session is a single-model inference session plus the metadata needed
// to reconstruct its input/output tensor shapes.
type Session struct {
	session *ort.AdvancedSession

	inputName   string
	inputShape  ort.Shape
	outputName  string
	outputShape ort.Shape

	input  *ort.Tensor[float32]
	output *ort.Tensor[float32]

	ActiveProvider string
}

// New constructs an inference session for modelPath, selecting execution
// providers by cfg.Backend and always appending CPU as a fallback. When
// cfg.FailFast is set and cfg.Backend is not "none", New returns
// ErrGPUBackendUnavailable-wrapping error if the runtime fell back to
// CPU, matching the Python original's fail-fast contract.
func New(cfg Config, inputShape, outputShape ort.Shape) (*Session, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("onnxsession: model not found: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnxsession: session options: %w", err)
	}
	defer options.Destroy()

	requestedProvider := ""
	providerBound := false
	switch cfg.Backend {
	case BackendNvidia:
		requestedProvider = "CUDAExecutionProvider"
		cudaOpts, cerr := ort.NewCUDAProviderOptions()
		if cerr == nil {
			defer cudaOpts.Destroy()
			providerBound = options.AppendExecutionProviderCUDA(cudaOpts) == nil
		}
	case BackendAMD:
		requestedProvider = "ROCMExecutionProvider"
		rocmOpts, rerr := ort.NewROCMProviderOptions()
		if rerr == nil {
			defer rocmOpts.Destroy()
			providerBound = options.AppendExecutionProviderROCM(rocmOpts) == nil
		}
	case BackendIntel:
		requestedProvider = "OpenVINOExecutionProvider"
		providerBound = options.AppendExecutionProviderOpenVINO(map[string]string{"device_type": "GPU_FP32"}) == nil
	case BackendNone, "":
		// CPU only, appended below.
	}

	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("onnxsession: input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("onnxsession: output tensor: %w", err)
	}

	inputNames, outputNames, err := ort.GetInputOutputInfo(cfg.ModelPath)
	inputName, outputName := "images", "output0"
	if err == nil && len(inputNames) > 0 && len(outputNames) > 0 {
		inputName = inputNames[0].Name
		outputName = outputNames[0].Name
	}

	sess, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{inputName}, []string{outputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		options)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("onnxsession: create session: %w", err)
	}

	// onnxruntime_go does not expose an active-provider query after
	// construction; a provider actually bound is the requested one only
	// if its provider-options constructor and AppendExecutionProvider*
	// call both returned no error, else CPU.
	active := "CPUExecutionProvider"
	if requestedProvider != "" && providerBound {
		active = requestedProvider
	}

	if cfg.FailFast && cfg.Backend != BackendNone && cfg.Backend != "" && active == "CPUExecutionProvider" {
		sess.Destroy()
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("onnxsession: requested backend %q unavailable, fell back to CPU: %w", cfg.Backend, ErrGPUBackendUnavailable)
	}

	return &Session{
		session:        sess,
		inputName:      inputName,
		inputShape:     inputShape,
		outputName:     outputName,
		outputShape:    outputShape,
		input:          input,
		output:         output,
		ActiveProvider: active,
	}, nil
}

// ErrGPUBackendUnavailable is the canonical sentinel for a requested
// non-CPU backend falling back to CPU. The root visioncore package's
// ErrGPUBackendUnavailable is this same value rather than declaring
// a separate copy, so errors.Is works from either package.
var ErrGPUBackendUnavailable = fmt.Errorf("onnxsession: requested GPU backend unavailable, fell back to CPU")

// Run copies input into the bound input tensor, executes the session,
// and returns the output tensor's backing data.
func (s *Session) Run(input []float32) ([]float32, ort.Shape, error) {
	copy(s.input.GetData(), input)
	if err := s.session.Run(); err != nil {
		return nil, nil, fmt.Errorf("onnxsession: run: %w", err)
	}
	return s.output.GetData(), s.outputShape, nil
}

// Close releases the session and its bound tensors.
func (s *Session) Close() error {
	s.session.Destroy()
	s.input.Destroy()
	s.output.Destroy()
	return nil
}

// InitRuntime loads the shared onnxruntime library; must be called once
// per process before New. libPath may be empty to use the platform
// default search path.
func InitRuntime(libPath string) error {
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	return ort.InitializeEnvironment()
}

// ShutdownRuntime releases process-wide ONNX Runtime state.
func ShutdownRuntime() error {
	return ort.DestroyEnvironment()
}
