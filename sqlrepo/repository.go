// Package sqlrepo implements the generic relational-database repository.
// It turns the repository contract of the calyx root package into squirrel
// queries executed against an sqlite data source, so a service only has to
// declare its table and row type to get the full CRUD surface.
package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/calyxweb/calyx"
	ierrors "github.com/calyxweb/calyx/kit/errors"
	"github.com/calyxweb/calyx/sqlite"
)

// noLimit keeps sqlite happy when an OFFSET is requested without a LIMIT;
// sqlite refuses OFFSET unless a LIMIT clause is present.
const noLimit = uint64(math.MaxInt64)

// columnPattern matches a bare column identifier. SortBy values reach the
// repository straight from the sort query parameter and become part of the
// SQL text, so anything beyond a plain identifier must be rejected.
var columnPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Table describes the relational shape of an entity.
type Table struct {
	// Name is the table name.
	Name string
	// IDColumn is the primary key column. Defaults to "id".
	IDColumn string
	// SearchFields are the columns matched by the Search part of a filter.
	SearchFields []string
}

func (t Table) id() string {
	if t.IDColumn == "" {
		return "id"
	}
	return t.IDColumn
}

// Repository is a calyx.Repository over a single table. T is the row type,
// scanned with sqlx, so its fields carry db tags.
type Repository[T any] struct {
	store *sqlite.Store
	log   *zap.Logger
	table Table
	idGen calyx.IDGenerator
	toDTO func(T) any
}

var _ calyx.Repository = (*Repository[struct{}])(nil)

// Option configures a Repository.
type Option[T any] func(*Repository[T])

// WithGeneratedIDs makes the repository fill the id column of created
// records from gen when the caller did not provide one. Without this
// option id assignment is left to the database.
func WithGeneratedIDs[T any](gen calyx.IDGenerator) Option[T] {
	return func(r *Repository[T]) {
		r.idGen = gen
	}
}

// WithDTO sets the mapper applied to every row before it leaves the
// repository. Without it rows are returned as-is.
func WithDTO[T any](mapper func(T) any) Option[T] {
	return func(r *Repository[T]) {
		r.toDTO = mapper
	}
}

// New returns a Repository over table backed by store.
func New[T any](store *sqlite.Store, log *zap.Logger, table Table, opts ...Option[T]) *Repository[T] {
	r := &Repository[T]{
		store: store,
		log:   log,
		table: table,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// GetOne returns the record with the given id.
func (r *Repository[T]) GetOne(ctx context.Context, id string) (any, error) {
	query, args, err := sq.Select("*").
		From(r.table.Name).
		Where(sq.Eq{r.table.id(): id}).
		ToSql()
	if err != nil {
		return nil, r.internal("sqlrepo.GetOne", err)
	}

	var row T
	if err := r.store.DB.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.notFound(id)
		}
		return nil, r.internal("sqlrepo.GetOne", err)
	}

	return r.dto(row), nil
}

// GetMany returns the records matching filter, paginated and ordered
// according to opts.
func (r *Repository[T]) GetMany(ctx context.Context, filter calyx.Filter, opts calyx.FindOptions) ([]any, error) {
	q := sq.Select("*").From(r.table.Name)
	for _, w := range r.whereClauses(filter) {
		q = q.Where(w)
	}

	if opts.SortBy != "" {
		if !columnPattern.MatchString(opts.SortBy) {
			return nil, &ierrors.Error{
				Code: ierrors.EInvalid,
				Msg:  fmt.Sprintf("cannot sort by %q: not a column name", opts.SortBy),
			}
		}
		order := opts.SortBy
		if opts.Descending {
			order += " DESC"
		}
		q = q.OrderBy(order)
	}

	if opts.Limit > 0 {
		q = q.Limit(uint64(opts.Limit))
	} else if opts.Offset > 0 {
		q = q.Limit(noLimit)
	}
	if opts.Offset > 0 {
		q = q.Offset(uint64(opts.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, r.internal("sqlrepo.GetMany", err)
	}

	rows := []T{}
	if err := r.store.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.internal("sqlrepo.GetMany", err)
	}

	return r.dtos(rows), nil
}

// CreateOne inserts record and returns the stored row.
func (r *Repository[T]) CreateOne(ctx context.Context, record calyx.Record) (any, error) {
	if len(record) == 0 {
		return nil, &ierrors.Error{Code: ierrors.EEmptyValue, Msg: "cannot create an empty record"}
	}

	rec := record.Clone()
	if r.idGen != nil {
		if _, ok := rec[r.table.id()]; !ok {
			rec[r.table.id()] = r.idGen.ID()
		}
	}

	query, args, err := sq.Insert(r.table.Name).
		SetMap(rec).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return nil, r.internal("sqlrepo.CreateOne", err)
	}

	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()

	var row T
	if err := r.store.DB.GetContext(ctx, &row, query, args...); err != nil {
		return nil, r.internal("sqlrepo.CreateOne", err)
	}

	return r.dto(row), nil
}

// CreateMany inserts records in a single transaction and returns the
// stored rows.
func (r *Repository[T]) CreateMany(ctx context.Context, records []calyx.Record) ([]any, error) {
	// an empty list was provided for some reason, immediately return an
	// empty result set without doing the transaction
	if len(records) == 0 {
		return []any{}, nil
	}

	recs := make([]calyx.Record, 0, len(records))
	for _, record := range records {
		rec := record.Clone()
		if r.idGen != nil {
			if _, ok := rec[r.table.id()]; !ok {
				rec[r.table.id()] = r.idGen.ID()
			}
		}
		recs = append(recs, rec)
	}

	// every record must supply the same column set for a bulk insert
	cols := sortedColumns(recs[0])
	q := sq.Insert(r.table.Name).Columns(cols...).Suffix("RETURNING *")

	for _, rec := range recs {
		vals := make([]any, 0, len(cols))
		for _, c := range cols {
			v, ok := rec[c]
			if !ok {
				return nil, &ierrors.Error{
					Code: ierrors.EInvalid,
					Msg:  fmt.Sprintf("record is missing column %q present in other records", c),
				}
			}
			vals = append(vals, v)
		}
		q = q.Values(vals...)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, r.internal("sqlrepo.CreateMany", err)
	}

	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()

	tx, err := r.store.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, r.internal("sqlrepo.CreateMany", err)
	}

	rows := []T{}
	if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
		tx.Rollback()
		return nil, r.internal("sqlrepo.CreateMany", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, r.internal("sqlrepo.CreateMany", err)
	}

	return r.dtos(rows), nil
}

// UpdateOne applies changes to the record with the given id and returns
// the updated row.
func (r *Repository[T]) UpdateOne(ctx context.Context, id string, changes calyx.Record) (any, error) {
	if len(changes) == 0 {
		return nil, &ierrors.Error{Code: ierrors.EEmptyValue, Msg: "no changes provided"}
	}

	query, args, err := sq.Update(r.table.Name).
		SetMap(changes).
		Where(sq.Eq{r.table.id(): id}).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return nil, r.internal("sqlrepo.UpdateOne", err)
	}

	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()

	var row T
	if err := r.store.DB.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.notFound(id)
		}
		return nil, r.internal("sqlrepo.UpdateOne", err)
	}

	return r.dto(row), nil
}

// UpdateMany applies changes to every record matching filter and returns
// the updated rows.
func (r *Repository[T]) UpdateMany(ctx context.Context, filter calyx.Filter, changes calyx.Record) ([]any, error) {
	if len(changes) == 0 {
		return nil, &ierrors.Error{Code: ierrors.EEmptyValue, Msg: "no changes provided"}
	}

	q := sq.Update(r.table.Name).SetMap(changes).Suffix("RETURNING *")
	for _, w := range r.whereClauses(filter) {
		q = q.Where(w)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, r.internal("sqlrepo.UpdateMany", err)
	}

	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()

	rows := []T{}
	if err := r.store.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.internal("sqlrepo.UpdateMany", err)
	}

	return r.dtos(rows), nil
}

// DeleteOne removes the record with the given id and returns the removed
// row.
func (r *Repository[T]) DeleteOne(ctx context.Context, id string) (any, error) {
	query, args, err := sq.Delete(r.table.Name).
		Where(sq.Eq{r.table.id(): id}).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return nil, r.internal("sqlrepo.DeleteOne", err)
	}

	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()

	var row T
	if err := r.store.DB.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.notFound(id)
		}
		return nil, r.internal("sqlrepo.DeleteOne", err)
	}

	return r.dto(row), nil
}

// DeleteMany removes every record matching filter and returns the removed
// rows.
func (r *Repository[T]) DeleteMany(ctx context.Context, filter calyx.Filter) ([]any, error) {
	q := sq.Delete(r.table.Name).Suffix("RETURNING *")
	for _, w := range r.whereClauses(filter) {
		q = q.Where(w)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, r.internal("sqlrepo.DeleteMany", err)
	}

	r.store.Mu.Lock()
	defer r.store.Mu.Unlock()

	rows := []T{}
	if err := r.store.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.internal("sqlrepo.DeleteMany", err)
	}

	return r.dtos(rows), nil
}

// whereClauses converts a filter into squirrel predicates using the
// table's search fields.
func (r *Repository[T]) whereClauses(f calyx.Filter) []sq.Sqlizer {
	var out []sq.Sqlizer

	if len(f.Eq) > 0 {
		out = append(out, sq.Eq(f.Eq))
	}

	if f.Search != "" && len(r.table.SearchFields) > 0 {
		pattern := "%" + f.Search + "%"
		or := sq.Or{}
		for _, field := range r.table.SearchFields {
			or = append(or, sq.Like{field: pattern})
		}
		out = append(out, or)
	}

	out = append(out, f.Where...)
	return out
}

func (r *Repository[T]) dto(row T) any {
	if r.toDTO != nil {
		return r.toDTO(row)
	}
	return row
}

func (r *Repository[T]) dtos(rows []T) []any {
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.dto(row))
	}
	return out
}

func (r *Repository[T]) notFound(id string) error {
	return &ierrors.Error{
		Code: ierrors.ENotFound,
		Msg:  fmt.Sprintf("record %q not found in %s", id, r.table.Name),
	}
}

func (r *Repository[T]) internal(op string, err error) error {
	return &ierrors.Error{Code: ierrors.EInternal, Op: op, Err: err}
}

func sortedColumns(rec calyx.Record) []string {
	cols := make([]string, 0, len(rec))
	for c := range rec {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}
