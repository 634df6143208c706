// Package store persists the ledger's top-level documents.
// Every Load parses a whole document and every Save rewrites it in full.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Document names a top-level collection.
type Document string

// Documents kept by the ledger.
const (
	Users      Document = "users"
	Deliveries Document = "deliveries"
	Stats      Document = "stats"
)

// AllDocuments lists every document in bootstrap order.
var AllDocuments = []Document{Users, Deliveries, Stats}

// ErrStorage indicates a document is missing, unreadable or malformed.
var ErrStorage = errors.New("storage error")

// ErrUnknownBackend is returned by New for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown store backend")

// Backend names accepted by New.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Store loads and saves whole documents.
type Store interface {
	// Load decodes the entire document into v.
	Load(ctx context.Context, doc Document, v any) error
	// Save replaces the entire document with the encoding of v.
	Save(ctx context.Context, doc Document, v any) error
	// Bootstrap writes the empty form of every absent document.
	Bootstrap(ctx context.Context) error
	// Ping checks backend connectivity.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend       string
	DataDir       string
	RedisURL      string
	RedisPrefix   string
	DatabaseURL   string
	PostgresTable string
}

// New opens the configured backend.
func New(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFileStore(opts.DataDir)
	case BackendRedis:
		return NewRedisStore(ctx, opts.RedisURL, opts.RedisPrefix)
	case BackendPostgres:
		return OpenPostgresStore(ctx, opts.DatabaseURL, opts.PostgresTable)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// emptyForm returns the bootstrap content of a document.
func emptyForm(doc Document) []byte {
	if doc == Stats {
		return []byte("{}")
	}
	return []byte("[]")
}

func storageErr(doc Document, op string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrStorage, op, doc, err)
}

// Locker serializes read-modify-write cycles per document.
// A disabled Locker runs fn without any isolation and concurrent
// cycles on the same document may lose updates (last writer wins).
type Locker struct {
	enabled bool
	mu      sync.Mutex
	locks   map[Document]*sync.Mutex
}

// NewLocker returns a Locker; enabled selects single-writer mode.
func NewLocker(enabled bool) *Locker {
	return &Locker{
		enabled: enabled,
		locks:   make(map[Document]*sync.Mutex),
	}
}

// Enabled reports whether cycles are serialized.
func (l *Locker) Enabled() bool {
	return l != nil && l.enabled
}

// With runs fn while holding doc's lock when serialization is enabled.
func (l *Locker) With(doc Document, fn func() error) error {
	if !l.Enabled() {
		return fn()
	}

	l.mu.Lock()
	m, ok := l.locks[doc]
	if !ok {
		m = &sync.Mutex{}
		l.locks[doc] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn()
}
