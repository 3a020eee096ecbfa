package outpaint

import (
	"errors"
	"fmt"
)

// ErrMaxAttemptsExceeded is returned when a region exhausts its retry
// budget. It is always wrapped in a PartialCanvasFailure.
var ErrMaxAttemptsExceeded = errors.New("outpaint: max attempts exceeded")

// PartialCanvasFailure reports a job that stopped mid-canvas: the named
// region could not be generated and everything painted so far is preserved
// on disk for a later resume. RegionIndex is the ordinal position in the
// plan, Attempts the number of generation calls spent on the region.
type PartialCanvasFailure struct {
	RegionIndex int
	Attempts    int
	Err         error
}

func (e *PartialCanvasFailure) Error() string {
	return fmt.Sprintf("outpaint: region %d failed after %d attempts: %v", e.RegionIndex, e.Attempts, e.Err)
}

func (e *PartialCanvasFailure) Unwrap() error { return e.Err }

// AsPartialFailure extracts a PartialCanvasFailure from an error chain.
func AsPartialFailure(err error) (*PartialCanvasFailure, bool) {
	var pf *PartialCanvasFailure
	if errors.As(err, &pf) {
		return pf, true
	}
	return nil, false
}
