// Package host defines the contract between docpane and the document that
// owns the objects it edits. Nothing outside this package knows how a host
// stores paragraphs or tables; callers only ever hold Handles.
package host

import "context"

// Handle is an opaque reference to an object owned by the host document.
// The client never sees the object's state, only this reference.
type Handle string

// Well-known handles every host must resolve.
const (
	Body      Handle = "body"
	Selection Handle = "selection"
)

// Service is the host document service. Body and Selection are resolved
// without a round trip; every mutation and read travels through Commit.
type Service interface {
	Body() Handle
	Selection() Handle
	// Commit applies ops in order and returns one Result per op.
	// Implementations must not reorder or coalesce operations.
	Commit(ctx context.Context, ops []Operation) (Ack, error)
}

// Ack is the host's acknowledgement of a committed batch.
type Ack struct {
	Results []Result
}

// Result carries what the host produced for a single operation.
// Values is only populated for KindLoad operations.
type Result struct {
	Values map[string]any
}
