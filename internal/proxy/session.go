// Package proxy batches operations against host handles and commits them in
// a single round trip. A Session owns one host; each user action builds its
// own Batch and hands it to Session.Commit exactly once.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgallion1/docpane/internal/host"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrBatchSealed is returned when a batch is committed a second time.
	ErrBatchSealed = errors.New("proxy: batch already committed")
	// ErrForeignBatch is returned when a batch is committed through a
	// session other than the one that created it.
	ErrForeignBatch = errors.New("proxy: batch belongs to another session")
	// ErrNotLoaded is returned when a load is read before its commit resolved.
	ErrNotLoaded = errors.New("proxy: property not loaded")
)

// Session is the client side of one host document.
type Session struct {
	host  host.Service
	sem   *semaphore.Weighted
	seq   atomic.Uint64
	stats *CommitStats
	log   *slog.Logger
}

// NewSession binds a session to h. stats may be nil.
func NewSession(h host.Service, stats *CommitStats, log *slog.Logger) *Session {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Session{
		host:  h,
		sem:   semaphore.NewWeighted(1),
		stats: stats,
		log:   log,
	}
}

// Body returns the host's body handle.
func (s *Session) Body() host.Handle { return s.host.Body() }

// Selection returns the host's selection handle.
func (s *Session) Selection() host.Handle { return s.host.Selection() }

// NewBatch starts an empty batch bound to this session.
func (s *Session) NewBatch() *Batch {
	return &Batch{session: s}
}

// mint returns a handle unique within the session for an object that an
// operation will create.
func (s *Session) mint(kind host.Kind) host.Handle {
	return host.Handle(fmt.Sprintf("%s#%d", kind, s.seq.Add(1)))
}

// Commit sends every queued operation of b to the host in one call and
// resolves b's loads. ctx bounds only the wait for a commit slot: once the
// host has the batch there is no way to cancel it.
//
// A rejected commit returns the host's error as-is and rejects every load in
// the batch with it. The batch is sealed either way; callers that want to
// try again must build a new one.
func (s *Session) Commit(ctx context.Context, b *Batch) error {
	if b.session != s {
		return ErrForeignBatch
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for commit slot: %w", err)
	}
	defer s.sem.Release(1)

	ops, loads, err := b.seal()
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	start := time.Now()
	ack, err := s.host.Commit(context.WithoutCancel(ctx), ops)
	elapsed := time.Since(start)
	if s.stats != nil {
		s.stats.Record(elapsed.Milliseconds(), len(ops), err != nil)
	}

	if err == nil && len(ack.Results) != len(ops) {
		err = fmt.Errorf("host acknowledged %d of %d operations", len(ack.Results), len(ops))
	}
	if err != nil {
		s.log.Warn("commit rejected", "ops", len(ops), "duration_ms", elapsed.Milliseconds(), "error", err)
		for _, l := range loads {
			l.reject(err)
		}
		return err
	}

	for _, l := range loads {
		l.resolve(ack.Results[l.index].Values)
	}
	s.log.Debug("commit", "ops", len(ops), "loads", len(loads), "duration_ms", elapsed.Milliseconds())
	return nil
}
