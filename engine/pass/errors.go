package pass

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownOutput is returned when a pass has no output of the requested name.
	ErrUnknownOutput = errors.New("pass: unknown output")

	// ErrDuplicatePass is returned when a graph already holds a pass of the same name.
	ErrDuplicatePass = errors.New("pass: duplicate name")

	// ErrDisposed is returned by calls on a disposed graph.
	ErrDisposed = errors.New("pass: graph disposed")
)

// HazardError reports a pass sampling its own current output while rendering it. Reads of the prior frame go
// through PreviousTexture.
type HazardError struct {
	Pass   string
	Output string
}

func (e *HazardError) Error() string {
	return fmt.Sprintf("pass %q reads its own output %q while rendering it", e.Pass, e.Output)
}

// CycleError reports a pull that re-entered a pass still rendering. Path lists the passes from the re-entered one
// to the puller, closed by the re-entered pass again.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "pass cycle: " + strings.Join(e.Path, " -> ")
}
