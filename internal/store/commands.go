package store

import (
	"context"

	"jsonkv/internal/document"
	"jsonkv/internal/jsonpath"
	"jsonkv/internal/jsonvalue"
)

// The path-addressed command set, mirrored over documents with
// write-through persistence. Read-only commands never persist;
// mutating commands persist once after applying to all matches.

func (s *Store) TypeOf(ctx context.Context, key, path string) ([]string, error) {
	var out []string
	err := s.withDocument(ctx, key, path, false, func(doc *document.Document, p *jsonpath.Path) {
		out = doc.TypeOf(p)
	})
	return out, err
}

func (s *Store) NumIncrBy(ctx context.Context, key, path string, delta *jsonvalue.Value) ([]*jsonvalue.Value, error) {
	var out []*jsonvalue.Value
	var opErr error
	err := s.withDocument(ctx, key, path, true, func(doc *document.Document, p *jsonpath.Path) {
		out, opErr = doc.NumIncrBy(p, delta)
	})
	return out, firstError(opErr, err)
}

func (s *Store) NumMultBy(ctx context.Context, key, path string, factor *jsonvalue.Value) ([]*jsonvalue.Value, error) {
	var out []*jsonvalue.Value
	var opErr error
	err := s.withDocument(ctx, key, path, true, func(doc *document.Document, p *jsonpath.Path) {
		out, opErr = doc.NumMultBy(p, factor)
	})
	return out, firstError(opErr, err)
}

func (s *Store) NumPowBy(ctx context.Context, key, path string, exponent *jsonvalue.Value) ([]*jsonvalue.Value, error) {
	var out []*jsonvalue.Value
	var opErr error
	err := s.withDocument(ctx, key, path, true, func(doc *document.Document, p *jsonpath.Path) {
		out, opErr = doc.NumPowBy(p, exponent)
	})
	return out, firstError(opErr, err)
}

func (s *Store) Toggle(ctx context.Context, key, path string) ([]*jsonvalue.Value, error) {
	var out []*jsonvalue.Value
	err := s.withDocument(ctx, key, path, true, func(doc *document.Document, p *jsonpath.Path) {
		out = doc.Toggle(p)
	})
	return out, err
}

func (s *Store) StrAppend(ctx context.Context, key, path, suffix string) ([]int, error) {
	var out []int
	err := s.withDocument(ctx, key, path, true, func(doc *document.Document, p *jsonpath.Path) {
		out = doc.StrAppend(p, suffix)
	})
	return out, err
}

func (s *Store) StrLen(ctx context.Context, key, path string) ([]int, error) {
	var out []int
	err := s.withDocument(ctx, key, path, false, func(doc *document.Document, p *jsonpath.Path) {
		out = doc.StrLen(p)
	})
	return out, err
}

func (s *Store) ArrAppend(ctx context.Context, key, path string, vals ...*jsonvalue.Value) ([]int, error) {
	var out []int
	err := s.withDocument(ctx, key, path, true, func(doc *document.Document, p *jsonpath.Path) {
		out = doc.ArrAppend(p, vals...)
	})
	return out, err
}

func (s *Store) ArrInsert(ctx context.Context, key, path string, idx int, vals ...*jsonvalue.Value) ([]int, error) {
	var out []int
	err := s.withDocument(ctx, key, path, true, func(doc *document.Document, p *jsonpath.Path) {
		out = doc.ArrInsert(p, idx, vals...)
	})
	return out, err
}

func (s *Store) ArrLen(ctx context.Context, key, path string) ([]int, error) {
	var out []int
	err := s.withDocument(ctx, key, path, false, func(doc *document.Document, p *jsonpath.Path) {
		out = doc.ArrLen(p)
	})
	return out, err
}

func (s *Store) ArrPop(ctx context.Context, key, path string, idx int) ([]*jsonvalue.Value, error) {
	var out []*jsonvalue.Value
	err := s.withDocument(ctx, key, path, true, func(doc *document.Document, p *jsonpath.Path) {
		out = doc.ArrPop(p, idx)
	})
	return out, err
}

func (s *Store) ArrTrim(ctx context.Context, key, path string, start, stop int) ([]int, error) {
	var out []int
	err := s.withDocument(ctx, key, path, true, func(doc *document.Document, p *jsonpath.Path) {
		out = doc.ArrTrim(p, start, stop)
	})
	return out, err
}

func (s *Store) ArrIndex(ctx context.Context, key, path string, needle *jsonvalue.Value, start, stop int) ([]int, error) {
	var out []int
	err := s.withDocument(ctx, key, path, false, func(doc *document.Document, p *jsonpath.Path) {
		out = doc.ArrIndex(p, needle, start, stop)
	})
	return out, err
}

func (s *Store) ObjKeys(ctx context.Context, key, path string) ([][]string, error) {
	var out [][]string
	err := s.withDocument(ctx, key, path, false, func(doc *document.Document, p *jsonpath.Path) {
		out = doc.ObjKeys(p)
	})
	return out, err
}

func (s *Store) ObjLen(ctx context.Context, key, path string) ([]int, error) {
	var out []int
	err := s.withDocument(ctx, key, path, false, func(doc *document.Document, p *jsonpath.Path) {
		out = doc.ObjLen(p)
	})
	return out, err
}

func (s *Store) Clear(ctx context.Context, key, path string) (int, error) {
	var out int
	err := s.withDocument(ctx, key, path, true, func(doc *document.Document, p *jsonpath.Path) {
		out = doc.Clear(p)
	})
	return out, err
}

// withDocument opens the document, runs op under the store lock, and
// persists afterwards when the operation is a mutator.
func (s *Store) withDocument(ctx context.Context, key, path string, mutates bool, op func(doc *document.Document, p *jsonpath.Path)) error {
	p, err := jsonpath.Compile(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.openLocked(ctx, key)
	if err != nil {
		return err
	}

	before := doc.Generation()
	op(doc, p)

	if mutates && doc.Generation() != before {
		return s.persistLocked(ctx, doc)
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
