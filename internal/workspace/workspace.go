// Package workspace owns the documents docpane edits. Each document is a
// .docx file plus a JSON metadata file under one directory; opened documents
// stay in memory with their proxy session until they sit idle past the TTL.
package workspace

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/docpane/internal/docxhost"
	"github.com/dgallion1/docpane/internal/parser"
	"github.com/dgallion1/docpane/internal/proxy"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrUnsupported = errors.New("unsupported file type")
)

// Meta describes a stored document.
type Meta struct {
	ID          string    `json:"doc_id"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title"`
	ContentHash string    `json:"content_hash"`
	Actions     int       `json:"actions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Document is an opened document: the host actions edit and the session
// that batches operations against it.
type Document struct {
	Host    *docxhost.Document
	Session *proxy.Session
}

type entry struct {
	id   string
	lock *semaphore.Weighted
	doc  Document

	// guarded by Store.mu
	deleted  bool
	meta     Meta
	lastUsed time.Time
	refs     int
}

// Store is a directory of documents with an in-memory cache of opened ones.
type Store struct {
	dir     string
	ttl     time.Duration
	stats   *proxy.CommitStats
	parsers parser.Options
	log     *slog.Logger
	now     func() time.Time

	mu   sync.Mutex
	open map[string]*entry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates dir if needed and returns a Store over it. stats collects
// commit latencies for every session the store opens.
func New(dir string, ttl time.Duration, stats *proxy.CommitStats, opts parser.Options, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Store{
		dir:     dir,
		ttl:     ttl,
		stats:   stats,
		parsers: opts,
		log:     log,
		now:     time.Now,
		open:    make(map[string]*entry),
	}, nil
}

// Start launches the idle-document cleanup loop.
func (s *Store) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	interval := min(s.ttl, 5*time.Minute)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// Stop ends the cleanup loop. Documents are already on disk.
func (s *Store) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Cleanup drops opened documents that have been idle longer than the TTL,
// and deleted ones as soon as nothing holds them.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, e := range s.open {
		if e.refs == 0 && (e.deleted || now.Sub(e.lastUsed) > s.ttl) {
			delete(s.open, id)
			s.log.Debug("document evicted", "doc_id", id)
		}
	}
}

// Create stores a new document. With no data it is empty; a .docx file is
// kept as is; any other supported file is parsed and converted.
func (s *Store) Create(filename string, data []byte) (Meta, error) {
	id := uuid.NewString()
	log := s.log.With("doc_id", id)

	var (
		host  *docxhost.Document
		title string
		err   error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); {
	case len(data) == 0:
		host = docxhost.New(log)
	case ext == ".docx":
		host, err = docxhost.Open(bytes.NewReader(data), int64(len(data)), log)
		if err != nil {
			return Meta{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
	default:
		p, err := parser.ForFile(filename, s.parsers)
		if err != nil {
			return Meta{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		tree, err := p.Parse(bytes.NewReader(data), filename)
		if err != nil {
			return Meta{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		title = tree.Title
		host = docxhost.FromTree(tree, log)
	}
	if filename == "" {
		filename = "untitled.docx"
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	now := s.now().UTC()
	e := &entry{
		id:   id,
		lock: semaphore.NewWeighted(1),
		doc:  Document{Host: host, Session: proxy.NewSession(host, s.stats, log)},
		meta: Meta{ID: id, Filename: filename, Title: title, CreatedAt: now, UpdatedAt: now},
	}
	meta, err := s.persist(e, false)
	if err != nil {
		return Meta{}, err
	}
	s.mu.Lock()
	e.lastUsed = s.now()
	s.open[id] = e
	s.mu.Unlock()
	log.Info("document created", "filename", filename)
	return meta, nil
}

// Get returns a document's metadata.
func (s *Store) Get(id string) (Meta, error) {
	if !validID(id) {
		return Meta{}, ErrNotFound
	}
	s.mu.Lock()
	if e, ok := s.open[id]; ok {
		meta, deleted := e.meta, e.deleted
		s.mu.Unlock()
		if deleted {
			return Meta{}, ErrNotFound
		}
		return meta, nil
	}
	s.mu.Unlock()
	return s.readMeta(id)
}

// List returns every stored document, oldest first.
func (s *Store) List() ([]Meta, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	metas := make([]Meta, 0, len(paths))
	for _, p := range paths {
		id := strings.TrimSuffix(filepath.Base(p), ".json")
		m, err := s.Get(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		metas = append(metas, m)
	}
	slices.SortFunc(metas, func(a, b Meta) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return metas, nil
}

// Delete removes a document from memory and disk. It first waits, bounded
// by ctx, for an action already running on the document to finish. Actions
// queued behind the delete fail with ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	e, err := s.acquire(id)
	if err != nil {
		// A document that cannot be opened is still removed from disk.
		return s.removeFiles(id)
	}
	defer s.release(e)

	if err := e.lock.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for document: %w", err)
	}
	defer e.lock.Release(1)

	// The entry stays in the map as a tombstone until Cleanup drops it, so
	// nothing reloads the files while they are being removed.
	s.mu.Lock()
	deleted := e.deleted
	e.deleted = true
	s.mu.Unlock()
	if deleted {
		return ErrNotFound
	}

	if err := s.removeFiles(id); err != nil {
		return err
	}
	s.log.Info("document deleted", "doc_id", id)
	return nil
}

func (s *Store) removeFiles(id string) error {
	err := os.Remove(s.path(id, ".json"))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete metadata: %w", err)
	}
	if err := os.Remove(s.path(id, ".docx")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Do runs fn with exclusive use of the document and saves the document
// afterwards, whether or not fn failed. ctx bounds the wait for the
// document; fn receives it unchanged.
func (s *Store) Do(ctx context.Context, id string, fn func(context.Context, Document) error) error {
	return s.run(ctx, id, true, fn)
}

// View is Do without saving, for reads and selection changes.
func (s *Store) View(ctx context.Context, id string, fn func(context.Context, Document) error) error {
	return s.run(ctx, id, false, fn)
}

func (s *Store) run(ctx context.Context, id string, save bool, fn func(context.Context, Document) error) error {
	e, err := s.acquire(id)
	if err != nil {
		return err
	}
	defer s.release(e)

	if err := e.lock.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for document: %w", err)
	}
	defer e.lock.Release(1)
	if s.isDeleted(e) {
		return ErrNotFound
	}

	ferr := fn(ctx, e.doc)
	if !save {
		return ferr
	}
	if _, perr := s.persist(e, true); perr != nil {
		return errors.Join(ferr, perr)
	}
	return ferr
}

// acquire returns the opened entry for id, loading it from disk if needed,
// and pins it against eviction.
func (s *Store) acquire(id string) (*entry, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	if e, ok := s.open[id]; ok {
		e.refs++
		s.mu.Unlock()
		return e, nil
	}
	s.mu.Unlock()

	loaded, err := s.load(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have loaded it meanwhile; keep the first.
	e, ok := s.open[id]
	if !ok {
		e = loaded
		s.open[id] = e
	}
	e.refs++
	return e, nil
}

func (s *Store) isDeleted(e *entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return e.deleted
}

func (s *Store) release(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.refs--
	e.lastUsed = s.now()
}

func (s *Store) load(id string) (*entry, error) {
	meta, err := s.readMeta(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(id, ".docx"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read document: %w", err)
	}
	log := s.log.With("doc_id", id)
	host, err := docxhost.Open(bytes.NewReader(data), int64(len(data)), log)
	if err != nil {
		return nil, fmt.Errorf("open document %s: %w", id, err)
	}
	log.Debug("document loaded")
	return &entry{
		id:   id,
		lock: semaphore.NewWeighted(1),
		doc:  Document{Host: host, Session: proxy.NewSession(host, s.stats, log)},
		meta: meta,
	}, nil
}

// persist writes the document and its metadata. Callers hold e.lock or own
// e exclusively.
func (s *Store) persist(e *entry, action bool) (Meta, error) {
	var buf bytes.Buffer
	if _, err := e.doc.Host.WriteTo(&buf); err != nil {
		return Meta{}, fmt.Errorf("encode document: %w", err)
	}
	if err := writeFileAtomic(s.path(e.id, ".docx"), buf.Bytes()); err != nil {
		return Meta{}, fmt.Errorf("save document: %w", err)
	}

	s.mu.Lock()
	e.meta.ContentHash = ContentHashHex(buf.Bytes())
	e.meta.UpdatedAt = s.now().UTC()
	if action {
		e.meta.Actions++
	}
	meta := e.meta
	s.mu.Unlock()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Meta{}, err
	}
	if err := writeFileAtomic(s.path(e.id, ".json"), data); err != nil {
		return Meta{}, fmt.Errorf("save metadata: %w", err)
	}
	return meta, nil
}

func (s *Store) readMeta(id string) (Meta, error) {
	data, err := os.ReadFile(s.path(id, ".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Meta{}, ErrNotFound
		}
		return Meta{}, fmt.Errorf("read metadata: %w", err)
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("decode metadata %s: %w", id, err)
	}
	return m, nil
}

func (s *Store) path(id, ext string) string {
	return filepath.Join(s.dir, id+ext)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// validID keeps request paths from escaping the document directory.
func validID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.String() == id
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
