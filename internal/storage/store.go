package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names used by the game core
const (
	CollectionStudents       = "students"
	CollectionLevels         = "levels"
	CollectionCompletedTasks = "completed_tasks"
)

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("document not found")

// Document is a schemaless document body
type Document map[string]any

// Filter is an equality predicate on a top-level document field
type Filter struct {
	Field string
	Value any
}

// Store defines per-document CRUD against a document store. All operations
// are single-document reads or writes; no multi-document transactions are
// assumed by callers.
type Store interface {
	// Get returns the document at (collection, id), or ErrNotFound
	Get(ctx context.Context, collection, id string) (Document, error)

	// Set writes the document at (collection, id), creating it if absent.
	// With merge=true existing fields not present in fields are kept.
	Set(ctx context.Context, collection, id string, fields Document, merge bool) error

	// Update merges partial fields into an existing document; ErrNotFound if
	// the document does not exist
	Update(ctx context.Context, collection, id string, fields Document) error

	// Query returns all documents in the collection matching every filter
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)

	// Ping checks store connectivity
	Ping(ctx context.Context) error

	// Close releases store resources
	Close() error
}

// Encode converts a typed value into a Document via its JSON form
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return doc, nil
}

// Decode converts a Document into a typed value via its JSON form
func Decode(doc Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}
