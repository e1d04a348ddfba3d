package accumulator

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCommitment is returned by Prove when the commitment's root
	// does not match the accumulator's current root.
	ErrInvalidCommitment = errors.New("commitment does not match current root")

	// ErrInvalidProof is returned when a proof is structurally malformed,
	// such as a mismatch between element and position counts.
	ErrInvalidProof = errors.New("malformed proof")
)

// ElementNotFoundError reports that an element referenced by Delete or Prove
// is not present in the accumulator. Index is the element's position in the
// input list.
type ElementNotFoundError struct {
	Index int
}

func (e ElementNotFoundError) Error() string {
	return fmt.Sprintf("element not found: index %d", e.Index)
}

// ElementExistsError reports that an element given to Add is already present
// in the accumulator. Index is the element's position in the input list.
type ElementExistsError struct {
	Index int
}

func (e ElementExistsError) Error() string {
	return fmt.Sprintf("element already exists: index %d", e.Index)
}
