// Package docstore defines the document store boundary used by the catalog
// and an in-memory implementation of it.
package docstore

import (
	"context"
	"errors"
)

// Collection names.
const (
	CollectionProducts = "products"
	CollectionOrders   = "orders"
)

// ErrNotFound is returned when a document id does not exist in a collection.
var ErrNotFound = errors.New("document not found")

// Direction is the ordering applied by QueryOrderedByTime.
type Direction int

const (
	Descending Direction = iota
	Ascending
)

// Document is a stored record: a store-assigned id plus its field map.
type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Store is the document store boundary. Implementations perform a single
// attempt per call; updates are last-write-wins and no cross-request
// locking is provided.
type Store interface {
	// Create stores fields under a new id and returns the id.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Update merges partial into the stored fields. ErrNotFound when absent.
	Update(ctx context.Context, collection, id string, partial map[string]any) error
	// Delete removes the document. ErrNotFound when absent.
	Delete(ctx context.Context, collection, id string) error
	// QueryByEquality returns documents where field == value in insertion
	// order. limit <= 0 means no limit.
	QueryByEquality(ctx context.Context, collection, field string, value any, limit, offset int) ([]Document, error)
	// CountByEquality counts documents where field == value.
	CountByEquality(ctx context.Context, collection, field string, value any) (int, error)
	// QueryOrderedByTime returns documents where field == value ordered by the
	// timestamp stored under timeField.
	QueryOrderedByTime(ctx context.Context, collection, field string, value any, timeField string, dir Direction) ([]Document, error)
	Ping(ctx context.Context) error
	Close()
}
