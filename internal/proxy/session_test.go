package proxy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/docpane/internal/host"
	"github.com/dgallion1/docpane/internal/host/hosttest"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func kinds(ops []host.Operation) []host.Kind {
	out := make([]host.Kind, len(ops))
	for i, op := range ops {
		out[i] = op.Kind
	}
	return out
}

func TestCommit_PreservesEnqueueOrder(t *testing.T) {
	h := hosttest.New()
	s := NewSession(h, nil, nil)

	b := s.NewBatch()
	b.Enqueue(host.Operation{Kind: host.KindInsertText, Target: host.Body, Text: "op1", Location: host.LocationEnd})
	b.Enqueue(host.Operation{Kind: host.KindInsertText, Target: host.Body, Text: "op2", Location: host.LocationEnd})
	b.Enqueue(host.Operation{Kind: host.KindInsertText, Target: host.Body, Text: "op3", Location: host.LocationEnd})

	if err := s.Commit(context.Background(), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	commits := h.Commits()
	if len(commits) != 1 {
		t.Fatalf("expected 1 round trip, got %d", len(commits))
	}
	var got []string
	for _, op := range commits[0] {
		got = append(got, op.Text)
	}
	if diff := cmp.Diff([]string{"op1", "op2", "op3"}, got); diff != "" {
		t.Errorf("operation order mismatch (-want +got):\n%s", diff)
	}
}

func TestCommit_LaterOperationTargetsEarlierResult(t *testing.T) {
	h := hosttest.New()
	s := NewSession(h, nil, nil)

	b := s.NewBatch()
	para := b.InsertParagraph(s.Body(), "Hello", host.LocationEnd)
	b.Set(para, host.PropFontColor, "red")
	if err := s.Commit(context.Background(), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ops := h.Commits()[0]
	if ops[0].Result == "" {
		t.Fatal("expected insert to mint a result handle")
	}
	if ops[1].Target != ops[0].Result {
		t.Errorf("expected set to target %q, got %q", ops[0].Result, ops[1].Target)
	}
	if v, _ := h.Prop(para, host.PropFontColor); v != "red" {
		t.Errorf("expected host to record color red, got %v", v)
	}
}

func TestSession_MintsUniqueHandles(t *testing.T) {
	s := NewSession(hosttest.New(), nil, nil)
	seen := map[host.Handle]bool{}
	for range 3 {
		b := s.NewBatch()
		for range 4 {
			hd := b.InsertParagraph(s.Body(), "x", host.LocationEnd)
			if seen[hd] {
				t.Fatalf("handle %q minted twice", hd)
			}
			seen[hd] = true
		}
	}
}

func TestLoad_UnavailableBeforeCommit(t *testing.T) {
	h := hosttest.New()
	h.SetText(host.Selection, "picked")
	s := NewSession(h, nil, nil)

	b := s.NewBatch()
	load := b.RequestLoad(s.Selection(), host.PropText)

	if _, err := load.String(host.PropText); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded before commit, got %v", err)
	}
	select {
	case <-load.Done():
		t.Fatal("load resolved before commit")
	default:
	}

	if err := s.Commit(context.Background(), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-load.Done()
	text, err := load.String(host.PropText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "picked" {
		t.Errorf("expected %q, got %q", "picked", text)
	}
}

func TestLoad_UnrequestedProperty(t *testing.T) {
	s := NewSession(hosttest.New(), nil, nil)
	b := s.NewBatch()
	load := b.RequestLoad(s.Body(), host.PropText)
	if err := s.Commit(context.Background(), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := load.Value(host.PropFontBold); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded for unrequested property, got %v", err)
	}
}

func TestCommit_RejectionSealsBatch(t *testing.T) {
	h := hosttest.New()
	hostErr := host.Errorf(host.CodeGeneralException, 1, "boom")
	h.FailNext(hostErr)
	s := NewSession(h, nil, nil)

	b := s.NewBatch()
	b.InsertText(s.Body(), "a", host.LocationEnd)
	load := b.RequestLoad(s.Body(), host.PropText)

	err := s.Commit(context.Background(), b)
	var got *host.Error
	if !errors.As(err, &got) || got != hostErr {
		t.Fatalf("expected host error to pass through unmodified, got %v", err)
	}
	if load.Err() != err {
		t.Errorf("expected load to be rejected with the commit error, got %v", load.Err())
	}

	if err := s.Commit(context.Background(), b); !errors.Is(err, ErrBatchSealed) {
		t.Fatalf("expected ErrBatchSealed on second commit, got %v", err)
	}
	if n := len(h.Commits()); n != 1 {
		t.Errorf("expected exactly 1 host call, got %d", n)
	}
	if b.Len() != 0 {
		t.Errorf("expected sealed batch to hold no operations, got %d", b.Len())
	}
}

func TestCommit_SuccessAlsoSeals(t *testing.T) {
	h := hosttest.New()
	s := NewSession(h, nil, nil)
	b := s.NewBatch()
	b.InsertText(s.Body(), "a", host.LocationEnd)
	if err := s.Commit(context.Background(), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.InsertText(s.Body(), "b", host.LocationEnd)
	if err := s.Commit(context.Background(), b); !errors.Is(err, ErrBatchSealed) {
		t.Fatalf("expected ErrBatchSealed, got %v", err)
	}
	if n := len(h.Commits()); n != 1 {
		t.Errorf("expected 1 host call, got %d", n)
	}
}

func TestCommit_EmptyBatchSkipsRoundTrip(t *testing.T) {
	h := hosttest.New()
	s := NewSession(h, nil, nil)
	if err := s.Commit(context.Background(), s.NewBatch()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(h.Commits()); n != 0 {
		t.Errorf("expected no host call, got %d", n)
	}
}

func TestCommit_ForeignBatch(t *testing.T) {
	h := hosttest.New()
	a := NewSession(h, nil, nil)
	b := NewSession(h, nil, nil)
	batch := a.NewBatch()
	batch.InsertText(a.Body(), "x", host.LocationEnd)
	if err := b.Commit(context.Background(), batch); !errors.Is(err, ErrForeignBatch) {
		t.Fatalf("expected ErrForeignBatch, got %v", err)
	}
	if batch.Sealed() {
		t.Error("foreign commit must not seal the batch")
	}
}

func TestCommit_SerializesConcurrentCommits(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := hosttest.New()
	release := h.Hold()
	s := NewSession(h, nil, nil)

	first, second := s.NewBatch(), s.NewBatch()
	first.InsertText(s.Body(), "first", host.LocationEnd)
	second.InsertText(s.Body(), "second", host.LocationEnd)

	errs := make(chan error, 2)
	go func() { errs <- s.Commit(context.Background(), first) }()
	<-h.Entered()
	go func() { errs <- s.Commit(context.Background(), second) }()

	time.Sleep(30 * time.Millisecond)
	if n := len(h.Commits()); n != 1 {
		t.Fatalf("second commit started while first was in flight (%d host calls)", n)
	}

	release()
	for range 2 {
		if err := <-errs; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := h.MaxInFlight(); got != 1 {
		t.Errorf("expected at most 1 commit in flight, got %d", got)
	}
	commits := h.Commits()
	if len(commits) != 2 || commits[0][0].Text != "first" || commits[1][0].Text != "second" {
		t.Errorf("unexpected commit sequence: %v", commits)
	}
}

func TestCommit_WaitHonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := hosttest.New()
	release := h.Hold()
	s := NewSession(h, nil, nil)

	first, second := s.NewBatch(), s.NewBatch()
	first.InsertText(s.Body(), "first", host.LocationEnd)
	second.InsertText(s.Body(), "second", host.LocationEnd)

	done := make(chan error, 1)
	go func() { done <- s.Commit(context.Background(), first) }()
	<-h.Entered()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Commit(ctx, second); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error while waiting, got %v", err)
	}
	if second.Sealed() {
		t.Fatal("batch that never reached the host must stay unsealed")
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Commit(context.Background(), second); err != nil {
		t.Fatalf("expected unsent batch to commit later, got %v", err)
	}
	if diff := cmp.Diff([]host.Kind{host.KindInsertText}, kinds(h.Commits()[1])); diff != "" {
		t.Errorf("unexpected second commit (-want +got):\n%s", diff)
	}
}

func TestCommit_InFlightIgnoresCancellation(t *testing.T) {
	h := hosttest.New()
	release := h.Hold()
	s := NewSession(h, nil, nil)

	b := s.NewBatch()
	b.InsertText(s.Body(), "x", host.LocationEnd)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Commit(ctx, b) }()
	<-h.Entered()
	cancel()

	select {
	case err := <-done:
		t.Fatalf("commit returned after cancellation while host still held it: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	release()
	if err := <-done; err != nil {
		t.Fatalf("expected commit to complete, got %v", err)
	}
}

func TestCommit_RecordsStats(t *testing.T) {
	h := hosttest.New()
	stats := NewCommitStats(time.Hour)
	s := NewSession(h, stats, nil)

	ok := s.NewBatch()
	ok.InsertText(s.Body(), "a", host.LocationEnd)
	ok.InsertText(s.Body(), "b", host.LocationEnd)
	if err := s.Commit(context.Background(), ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h.FailNext(errors.New("nope"))
	bad := s.NewBatch()
	bad.InsertText(s.Body(), "c", host.LocationEnd)
	_ = s.Commit(context.Background(), bad)

	snap := stats.Snapshot()
	if snap.Count != 2 {
		t.Errorf("expected 2 commits, got %d", snap.Count)
	}
	if snap.Failures != 1 {
		t.Errorf("expected 1 failure, got %d", snap.Failures)
	}
	if snap.Operations != 3 {
		t.Errorf("expected 3 operations, got %d", snap.Operations)
	}
}
