// Package store is the document-store adapter boundary. Drivers translate a small
// set of key/value and equality-query operations into their native client calls
// and classify native failures into an ErrorKind.
package store

import (
	"context"
)

// Collection names a logical collection.
type Collection int

const (
	Customers Collection = iota
	Tickets
)

func (c Collection) String() string {
	switch c {
	case Customers:
		return "customers"
	case Tickets:
		return "tickets"
	default:
		return "unknown"
	}
}

// Namespace maps logical collections to physical names.
type Namespace struct {
	Bucket    string
	Scope     string
	Customers string
	Tickets   string
}

// Name returns the physical collection name.
func (n Namespace) Name(c Collection) string {
	if c == Tickets {
		return n.Tickets
	}
	return n.Customers
}

// Document is a stored record with its key and compare-and-swap revision.
type Document struct {
	Key      string
	Body     map[string]any
	Revision int64
}

// Filter is an equality predicate on a dotted field path.
type Filter struct {
	Field string
	Value any
}

// Query selects documents matching every filter.
type Query struct {
	Collection Collection
	Filters    []Filter
	SortField  string
	SortDesc   bool
	Limit      int
}

// Session is a live connection to a document store.
type Session interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, c Collection, key string) (*Document, error)
	Find(ctx context.Context, q Query) ([]Document, error)
	Count(ctx context.Context, c Collection) (int64, error)
	// Insert fails with KindConflict when the key already exists.
	Insert(ctx context.Context, c Collection, key string, body map[string]any) (*Document, error)
	// Replace swaps the body only if the stored revision still equals revision.
	Replace(ctx context.Context, c Collection, key string, body map[string]any, revision int64) (*Document, error)
	Close(ctx context.Context) error
}

// Connector dials new sessions.
type Connector interface {
	Name() string
	Namespace() Namespace
	Connect(ctx context.Context) (Session, error)
}
