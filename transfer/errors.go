package transfer

import (
	"fmt"

	"github.com/openfluke/dye/imaging"
	"github.com/openfluke/dye/nn"
)

// The engine surfaces three terminal error kinds. DecodeError and
// ShapeError originate in the loader and extractor; they are aliased
// here so callers can match every failure mode of Run against one
// package.
type (
	// DecodeError reports input bytes that are not a valid image
	DecodeError = imaging.DecodeError

	// ShapeError reports a resize or channel-count mismatch
	ShapeError = nn.ShapeError
)

// DivergenceError reports a non-finite loss during optimization. It
// aborts the remaining iterations immediately and no image is
// returned: identical inputs and parameters would reproduce the same
// divergence, so there is nothing to retry. Lowering StyleWeight is
// the usual fix.
type DivergenceError struct {
	Step int
	Loss float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("optimization diverged at step %d: loss is %v", e.Step, e.Loss)
}
