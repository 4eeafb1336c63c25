package rewrite

import (
	"errors"
	"fmt"
)

// ErrUnsupportedShape is returned when the input uses a construct the passes
// do not recognize. It is fatal for the whole module.
var ErrUnsupportedShape = errors.New("unsupported input shape")

// ShapeError describes an unsupported construct.
type ShapeError struct {
	Pass      string // pass that rejected the construct
	Function  string // enclosing function, "" at module level
	Construct string // offending source text
	Reason    string
}

func (e *ShapeError) Error() string {
	where := "module"
	if e.Function != "" {
		where = "fn " + e.Function
	}
	return fmt.Sprintf("%s in %s: %s: %q", ErrUnsupportedShape, where, e.Reason, e.Construct)
}

func (e *ShapeError) Unwrap() error { return ErrUnsupportedShape }
