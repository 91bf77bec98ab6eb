package loader

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is returned for paths whose extension no backend decodes.
var ErrUnsupportedFormat = errors.New("loader: unsupported document format")

// NodeError locates a problem at one node of a document.
type NodeError struct {
	ID   string
	Line int
	Err  error
}

func (e *NodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("node %q (line %d): %v", e.ID, e.Line, e.Err)
	}
	return fmt.Sprintf("node %q: %v", e.ID, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// CycleError reports node references that loop. Path starts and ends at the same id.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "node cycle: " + strings.Join(e.Path, " -> ")
}
