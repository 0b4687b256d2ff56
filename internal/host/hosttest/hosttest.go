// Package hosttest provides an in-memory host.Service that records every
// commit, for tests of code built on the batching proxy.
package hosttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgallion1/docpane/internal/host"
)

// Host is a recording host.Service. Its zero value is not usable; use New.
type Host struct {
	mu sync.Mutex

	commits [][]host.Operation
	matches map[string]int
	texts   map[host.Handle]string
	props   map[host.Handle]map[string]any
	items   map[host.Handle][]host.Handle
	fail    error

	gate        chan struct{}
	entered     chan struct{}
	inFlight    int
	maxInFlight int
}

// New returns an empty recording host.
func New() *Host {
	return &Host{
		matches: make(map[string]int),
		texts:   make(map[host.Handle]string),
		props:   make(map[host.Handle]map[string]any),
		items:   make(map[host.Handle][]host.Handle),
		entered: make(chan struct{}, 64),
	}
}

func (h *Host) Body() host.Handle      { return host.Body }
func (h *Host) Selection() host.Handle { return host.Selection }

// SetMatches scripts how many hits a search for term returns.
func (h *Host) SetMatches(term string, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.matches[term] = n
}

// SetText scripts the value returned when handle's text is loaded.
func (h *Host) SetText(handle host.Handle, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.texts[handle] = text
}

// FailNext makes the next commit return err without applying anything.
func (h *Host) FailNext(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fail = err
}

// Hold makes commits block until the returned release func is called.
func (h *Host) Hold() (release func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	gate := make(chan struct{})
	h.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			h.gate = nil
			h.mu.Unlock()
			close(gate)
		})
	}
}

// Entered receives one value each time a commit reaches the host.
func (h *Host) Entered() <-chan struct{} { return h.entered }

// Commits returns a copy of every batch received, in arrival order.
func (h *Host) Commits() [][]host.Operation {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]host.Operation, len(h.commits))
	for i, c := range h.commits {
		out[i] = append([]host.Operation(nil), c...)
	}
	return out
}

// MaxInFlight is the largest number of commits ever running at once.
func (h *Host) MaxInFlight() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxInFlight
}

// Prop returns the last value set for handle's property, if any.
func (h *Host) Prop(handle host.Handle, prop string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.props[handle][prop]
	return v, ok
}

func (h *Host) Commit(ctx context.Context, ops []host.Operation) (host.Ack, error) {
	h.mu.Lock()
	h.commits = append(h.commits, append([]host.Operation(nil), ops...))
	h.inFlight++
	if h.inFlight > h.maxInFlight {
		h.maxInFlight = h.inFlight
	}
	fail := h.fail
	h.fail = nil
	gate := h.gate
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.inFlight--
		h.mu.Unlock()
	}()

	select {
	case h.entered <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return host.Ack{}, ctx.Err()
		}
	}
	if fail != nil {
		return host.Ack{}, fail
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	results := make([]host.Result, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case host.KindSearch:
			n := h.matches[op.Text]
			hits := make([]host.Handle, n)
			for j := range hits {
				hits[j] = host.Handle(fmt.Sprintf("%s.items[%d]", op.Result, j))
			}
			h.items[op.Result] = hits
		case host.KindSetProperty:
			if h.props[op.Target] == nil {
				h.props[op.Target] = make(map[string]any)
			}
			h.props[op.Target][op.Property] = op.Value
		case host.KindLoad:
			values := make(map[string]any, len(op.Properties))
			for _, p := range op.Properties {
				switch p {
				case host.PropItems:
					values[p] = append([]host.Handle(nil), h.items[op.Target]...)
				case host.PropText:
					values[p] = h.texts[op.Target]
				default:
					values[p] = h.props[op.Target][p]
				}
			}
			results[i].Values = values
		}
	}
	return host.Ack{Results: results}, nil
}
