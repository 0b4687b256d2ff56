package proxy

import (
	"sync"

	"github.com/dgallion1/docpane/internal/host"
)

// Batch is an ordered list of operations waiting for one commit.
// Operations reach the host in exactly the order they were enqueued.
type Batch struct {
	session *Session

	mu     sync.Mutex
	ops    []host.Operation
	loads  []*Load
	sealed bool
}

// Enqueue appends op. It never blocks and never fails; a batch that has
// already been committed simply refuses the next Commit.
func (b *Batch) Enqueue(op host.Operation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, op)
}

// Len is the number of queued operations.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// Operations returns a copy of the queued operations.
func (b *Batch) Operations() []host.Operation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]host.Operation(nil), b.ops...)
}

// Sealed reports whether the batch has been handed to Commit.
func (b *Batch) Sealed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sealed
}

// InsertParagraph queues a new paragraph relative to target and returns its handle.
func (b *Batch) InsertParagraph(target host.Handle, text string, loc host.Location) host.Handle {
	return b.produce(host.Operation{Kind: host.KindInsertParagraph, Target: target, Text: text, Location: loc})
}

// InsertText queues text relative to target and returns the handle of the inserted range.
func (b *Batch) InsertText(target host.Handle, text string, loc host.Location) host.Handle {
	return b.produce(host.Operation{Kind: host.KindInsertText, Target: target, Text: text, Location: loc})
}

// InsertTable queues a table filled with values (row-major) and returns its handle.
func (b *Batch) InsertTable(target host.Handle, values [][]string, loc host.Location) host.Handle {
	return b.produce(host.Operation{Kind: host.KindInsertTable, Target: target, Values: values, Location: loc})
}

// InsertHTML queues an HTML fragment for the host to convert and insert.
func (b *Batch) InsertHTML(target host.Handle, fragment string, loc host.Location) host.Handle {
	return b.produce(host.Operation{Kind: host.KindInsertHTML, Target: target, Text: fragment, Location: loc})
}

// InsertHyperlink queues a hyperlink showing text and pointing at url.
func (b *Batch) InsertHyperlink(target host.Handle, url, text string, loc host.Location) host.Handle {
	return b.produce(host.Operation{Kind: host.KindInsertHyperlink, Target: target, URL: url, Text: text, Location: loc})
}

// Set queues a property write such as font.color.
func (b *Batch) Set(target host.Handle, property string, value any) {
	b.Enqueue(host.Operation{Kind: host.KindSetProperty, Target: target, Property: property, Value: value})
}

// Search queues a search below target and returns the handle of the result set.
// Load its "items" to get one handle per match.
func (b *Batch) Search(target host.Handle, term string, opts host.SearchOptions) host.Handle {
	return b.produce(host.Operation{Kind: host.KindSearch, Target: target, Text: term, Search: opts})
}

// RequestLoad marks properties of target for retrieval. The returned Load
// resolves when the batch's commit does.
func (b *Batch) RequestLoad(target host.Handle, props ...string) *Load {
	l := newLoad(target, props)
	b.mu.Lock()
	defer b.mu.Unlock()
	l.index = len(b.ops)
	b.ops = append(b.ops, host.Operation{
		Kind:       host.KindLoad,
		Target:     target,
		Properties: append([]string(nil), props...),
	})
	b.loads = append(b.loads, l)
	return l
}

func (b *Batch) produce(op host.Operation) host.Handle {
	op.Result = b.session.mint(op.Kind)
	b.Enqueue(op)
	return op.Result
}

// seal hands ownership of the queued work to a commit.
func (b *Batch) seal() ([]host.Operation, []*Load, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return nil, nil, ErrBatchSealed
	}
	b.sealed = true
	ops, loads := b.ops, b.loads
	b.ops, b.loads = nil, nil
	return ops, loads, nil
}
