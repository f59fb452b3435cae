package nn

import "fmt"

// ShapeError reports a tensor whose dimensions cannot be processed:
// wrong channel count, wrong rank, or a resize collapsing to zero.
type ShapeError struct {
	Op     string
	Detail string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}
