// Package store is the key binding layer: it bridges the external
// keyspace and in-memory documents, exposing the command set callers
// drive the engine with. Every mutating command writes the document
// back through to the keyspace before returning.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"jsonkv/internal/document"
	"jsonkv/internal/jsonpath"
	"jsonkv/internal/jsonvalue"
	"jsonkv/internal/keyspace"
)

var (
	// ErrNotFound is returned when a key has no entry, or a sub-path
	// addressed at open time matches nothing.
	ErrNotFound = errors.New("store: key not found")

	// ErrWrongType is returned when a keyspace entry exists but does
	// not hold a JSON document.
	ErrWrongType = errors.New("store: key holds a non-JSON value")

	// ErrPathMiss is returned by Set when the path matches nothing and
	// no member can be created.
	ErrPathMiss = errors.New("store: path matches no node and cannot create one")
)

// Store serializes all access to its documents: one logical operation
// runs to completion before the next, which is what lets match sets
// and iterators rely on generation counters instead of locks.
type Store struct {
	mu   sync.Mutex
	ks   *keyspace.Store
	docs map[string]*document.Document
	log  zerolog.Logger
}

// Open starts a store over a keyspace.
func Open(cfg keyspace.Config, log zerolog.Logger) (*Store, error) {
	ks, err := keyspace.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{
		ks:   ks,
		docs: make(map[string]*document.Document),
		log:  log,
	}, nil
}

// Close releases the underlying keyspace.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
	return s.ks.Close()
}

// OpenKey loads (or returns the cached) document bound to key. The
// returned document is owned by the store; callers read it through
// match sets and mutate it only through store commands.
func (s *Store) OpenKey(ctx context.Context, key string) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(ctx, key)
}

func (s *Store) openLocked(ctx context.Context, key string) (*document.Document, error) {
	if doc, ok := s.docs[key]; ok {
		return doc, nil
	}

	kind, payload, err := s.ks.Get(ctx, key)
	if errors.Is(err, keyspace.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	if kind != keyspace.KindJSON {
		return nil, fmt.Errorf("%w: %q", ErrWrongType, key)
	}

	doc, err := document.FromJSON(key, payload)
	if err != nil {
		return nil, fmt.Errorf("loading document %q: %w", key, err)
	}
	s.docs[key] = doc
	return doc, nil
}

// OpenKeyFromPath resolves a combined "key$.sub.path" reference in
// one call: everything before the first '$' names the key, the rest
// is an initial path whose first match is returned alongside the
// document. A bare key binds at the root.
func (s *Store) OpenKeyFromPath(ctx context.Context, ref string) (*document.Document, *jsonvalue.Value, error) {
	key, expr := splitKeyPath(ref)

	p, err := jsonpath.Compile(expr)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.openLocked(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	node := p.First(doc.Root())
	if node == nil {
		return nil, nil, fmt.Errorf("%w: %q has no node at %q", ErrNotFound, key, expr)
	}
	return doc, node, nil
}

func splitKeyPath(ref string) (key, expr string) {
	if i := strings.IndexByte(ref, '$'); i >= 0 {
		return ref[:i], ref[i:]
	}
	return ref, "$"
}

// IsJSON probes whether key holds a JSON document. It reads only the
// keyspace kind tag; absent or non-JSON keys report false, never an
// error.
func (s *Store) IsJSON(ctx context.Context, key string) bool {
	kind, err := s.ks.Kind(ctx, key)
	return err == nil && kind == keyspace.KindJSON
}

// persistLocked writes a document back to the keyspace.
func (s *Store) persistLocked(ctx context.Context, doc *document.Document) error {
	if err := s.ks.Put(ctx, doc.Key(), keyspace.KindJSON, []byte(doc.JSON())); err != nil {
		return fmt.Errorf("persisting %q: %w", doc.Key(), err)
	}
	return nil
}

// Set parses data and writes it at path inside key. Writing the root
// of a missing key creates the document.
func (s *Store) Set(ctx context.Context, key, path string, data []byte) error {
	p, err := jsonpath.Compile(path)
	if err != nil {
		return err
	}
	value, err := jsonvalue.Parse(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.openLocked(ctx, key)
	if errors.Is(err, ErrNotFound) {
		if !p.IsRoot() {
			return fmt.Errorf("%w: new documents must be created at the root", ErrNotFound)
		}
		doc = document.New(key, value)
		if err := s.persistLocked(ctx, doc); err != nil {
			return err
		}
		s.docs[key] = doc
		s.log.Debug().Str("key", key).Msg("document created")
		return nil
	}
	if err != nil {
		return err
	}

	if doc.Set(p, value) == 0 {
		return fmt.Errorf("%w: %q at %q", ErrPathMiss, key, path)
	}
	return s.persistLocked(ctx, doc)
}

// Get evaluates path against key and returns the match set.
func (s *Store) Get(ctx context.Context, key, path string) (*document.MatchSet, error) {
	p, err := jsonpath.Compile(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.openLocked(ctx, key)
	if err != nil {
		return nil, err
	}
	return doc.Eval(p), nil
}

// GetJSON evaluates path against key and serializes every match into
// one JSON array. Evaluation and serialization both happen under the
// store lock, so a concurrent mutation can neither race the traversal
// nor invalidate the matches mid-render.
func (s *Store) GetJSON(ctx context.Context, key, path string) ([]byte, error) {
	p, err := jsonpath.Compile(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.openLocked(ctx, key)
	if err != nil {
		return nil, err
	}
	return renderMatches(p.Evaluate(doc.Root())), nil
}

// MGet serializes the matches of one path across several keys, in
// key argument order. Keys that are absent, hold non-JSON values, or
// have no match at the path yield a nil entry rather than an error.
func (s *Store) MGet(ctx context.Context, keys []string, path string) ([][]byte, error) {
	p, err := jsonpath.Compile(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]byte, len(keys))
	for i, key := range keys {
		doc, err := s.openLocked(ctx, key)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrWrongType) {
			continue
		}
		if err != nil {
			return nil, err
		}
		matches := p.Evaluate(doc.Root())
		if len(matches) == 0 {
			continue
		}
		out[i] = renderMatches(matches)
	}
	return out, nil
}

// renderMatches serializes matched nodes as a JSON array.
func renderMatches(matches []*jsonvalue.Value) []byte {
	out := []byte{'['}
	for i, m := range matches {
		if i > 0 {
			out = append(out, ',')
		}
		out = m.AppendJSON(out)
	}
	return append(out, ']')
}

// Del removes the nodes matched by path. A root path deletes the key
// itself. It returns the number of nodes (or keys) removed.
func (s *Store) Del(ctx context.Context, key, path string) (int, error) {
	p, err := jsonpath.Compile(path)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.IsRoot() {
		doc, err := s.openLocked(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		} else if err != nil {
			return 0, err
		}
		doc.Invalidate()
		delete(s.docs, key)
		if err := s.ks.Delete(ctx, key); err != nil {
			return 0, err
		}
		s.log.Debug().Str("key", key).Msg("document deleted")
		return 1, nil
	}

	doc, err := s.openLocked(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := doc.Delete(p)
	if removed == 0 {
		return 0, nil
	}
	return removed, s.persistLocked(ctx, doc)
}

// PutRaw stores an opaque non-JSON value, evicting any cached
// document previously bound to the key. It exists so IsJSON has
// something to distinguish.
func (s *Store) PutRaw(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[key]; ok {
		doc.Invalidate()
		delete(s.docs, key)
	}
	return s.ks.Put(ctx, key, keyspace.KindRaw, data)
}

// Keys lists key names by prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.ks.Keys(ctx, prefix)
}
