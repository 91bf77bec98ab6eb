package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/engine/node_builder"
	"go.uber.org/multierr"
)

var (
	// ErrBackendNotInitialized is returned by renderer calls made before Init completed.
	ErrBackendNotInitialized = errors.New("renderer: backend not initialized")

	// ErrDisposed is returned by calls on a disposed renderer.
	ErrDisposed = errors.New("renderer: disposed")

	// ErrTextureNotReady is returned when a texture read needs pixels that have not arrived.
	ErrTextureNotReady = errors.New("renderer: texture not ready")

	// ErrUnsupportedBackend is returned for backend operations the active backend lacks.
	ErrUnsupportedBackend = errors.New("renderer: unsupported by backend")
)

// ProgramError reports a material whose graph failed to compile. The render objects using it are disabled.
type ProgramError struct {
	Material string
	Err      error
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("program for material %q: %v", e.Material, e.Err)
}

func (e *ProgramError) Unwrap() error {
	return e.Err
}

// Details returns every diagnostic of the failed compile.
func (e *ProgramError) Details() []error {
	var ce *node_builder.CompileError
	if errors.As(e.Err, &ce) {
		return ce.Diagnostics()
	}
	return multierr.Errors(e.Err)
}

// PipelineError reports a pipeline the backend rejected. Source holds the generated stages.
type PipelineError struct {
	Label   string
	Source  string
	Message string
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline %q: %s", e.Label, e.Message)
}
