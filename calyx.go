// Package calyx holds the contracts shared by the layers of a calyx
// application: records, filters, actions, repositories and data sources.
//
// A calyx service is organized as routes -> actions -> repositories ->
// data sources, with DTOs carrying data between the layers. The packages
// under this module implement each layer; this package only defines the
// types they exchange.
package calyx

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// Record is the column set handed to a repository on writes. Keys are
// column names, values are the values to store.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Filter restricts the rows a bulk repository operation applies to.
//
// Eq entries become equality predicates. Search becomes a disjunction of
// case-insensitive substring matches over the repository's configured
// search fields. Where carries arbitrary squirrel predicates for anything
// the structured fields cannot express.
type Filter struct {
	Eq     map[string]any
	Search string
	Where  []sq.Sqlizer
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return len(f.Eq) == 0 && f.Search == "" && len(f.Where) == 0
}

// FindOptions represents options passed to all find methods with multiple results.
type FindOptions struct {
	Limit      int
	Offset     int
	SortBy     string
	Descending bool
}

// Action is a single unit of business logic. Route handlers never talk to
// repositories directly; they run actions.
type Action interface {
	Do(ctx context.Context) (any, error)
}

// ActionFunc adapts a plain function to the Action interface.
type ActionFunc func(ctx context.Context) (any, error)

func (f ActionFunc) Do(ctx context.Context) (any, error) { return f(ctx) }

// Repository prepares data on its way to and from a data source. Every
// operation returns DTO values, never raw rows.
type Repository interface {
	GetOne(ctx context.Context, id string) (any, error)
	GetMany(ctx context.Context, filter Filter, opts FindOptions) ([]any, error)
	CreateOne(ctx context.Context, record Record) (any, error)
	CreateMany(ctx context.Context, records []Record) ([]any, error)
	UpdateOne(ctx context.Context, id string, changes Record) (any, error)
	UpdateMany(ctx context.Context, filter Filter, changes Record) ([]any, error)
	DeleteOne(ctx context.Context, id string) (any, error)
	DeleteMany(ctx context.Context, filter Filter) ([]any, error)
}

// DataSource hands out live connections to some external source of data:
// a database, a remote API, a file system. Conn is the connection type the
// source yields, e.g. *sqlx.DB for the sqlite store.
type DataSource[Conn any] interface {
	Conn(ctx context.Context) (Conn, error)
	Close() error
}

// IDGenerator generates identifiers for newly created records.
type IDGenerator interface {
	ID() string
}

// NewIDGenerator returns the default, UUIDv4-based generator.
func NewIDGenerator() IDGenerator {
	return uuidGenerator{}
}

type uuidGenerator struct{}

func (uuidGenerator) ID() string { return uuid.NewString() }
