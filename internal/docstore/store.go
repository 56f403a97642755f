// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package docstore is the system of record: named collections of schemaless
// documents. Filters are equality-only, which is all the backup subsystem
// needs to scope reads and writes to a single tenant.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/goccy/go-json"
)

// IDField is the document identity field.
const IDField = "_id"

var (
	// ErrDuplicateID is returned by InsertMany when a document's _id already
	// exists in the collection. Nothing from the batch is written.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrInvalidCollection is returned for empty collection names or names
	// containing '/'.
	ErrInvalidCollection = errors.New("invalid collection name")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("document store closed")
)

// Document is an opaque record. Values are JSON-compatible.
type Document map[string]any

// ID returns the document identity as a string.
func (d Document) ID() (string, bool) {
	v, ok := d[IDField]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, s != ""
	}
	return fmt.Sprint(v), true
}

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Filter selects documents whose fields equal every listed value. An empty
// filter matches everything.
type Filter map[string]any

// Matches reports whether doc satisfies f.
func (f Filter) Matches(doc Document) bool {
	for field, want := range f {
		got, ok := doc[field]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// Store is the document store contract used by backup and restore.
type Store interface {
	Find(ctx context.Context, collection string, filter Filter) ([]Document, error)
	DeleteMany(ctx context.Context, collection string, filter Filter) (int, error)
	InsertMany(ctx context.Context, collection string, docs []Document) error
}

// Replacer is implemented by stores that can swap a filtered subset of a
// collection for a new set of documents in one atomic step.
type Replacer interface {
	ReplaceMany(ctx context.Context, collection string, filter Filter, docs []Document) (int, error)
}

// ReplaceMany uses the store's atomic replace when it has one and falls back
// to DeleteMany followed by InsertMany.
func ReplaceMany(ctx context.Context, s Store, collection string, filter Filter, docs []Document) (int, error) {
	if r, ok := s.(Replacer); ok {
		return r.ReplaceMany(ctx, collection, filter, docs)
	}
	deleted, err := s.DeleteMany(ctx, collection, filter)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return deleted, nil
	}
	return deleted, s.InsertMany(ctx, collection, docs)
}

func validateCollection(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

// valuesEqual compares JSON-compatible values, treating every numeric type as
// float64 so a filter built from an int matches a decoded document.
func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
