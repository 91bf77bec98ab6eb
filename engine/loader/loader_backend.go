package loader

import (
	"io"
)

// loaderBackend decodes one document format into the format-neutral documentSpec. Building nodes from the spec
// is shared by every backend.
type loaderBackend interface {
	// Decode reads a whole document.
	//
	// Parameters:
	//   - r: the reader providing the document
	//
	// Returns:
	//   - *documentSpec: the decoded document
	//   - error: error if the document is malformed
	Decode(r io.Reader) (*documentSpec, error)
}
