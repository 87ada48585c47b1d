// Package actions holds the business-logic layer of a calyx service.
// Routes never reach a repository directly; they build an action and run
// it. The eight CRUD constructors cover the common case of an action that
// simply delegates to a repository; anything else implements calyx.Action
// itself.
package actions

import (
	"context"

	"github.com/calyxweb/calyx"
)

// Run executes a in ctx. It is the single point route handlers go through,
// which keeps the layering visible in one place.
func Run(ctx context.Context, a calyx.Action) (any, error) {
	return a.Do(ctx)
}

// CreateOne returns an action that creates record in repo.
func CreateOne(repo calyx.Repository, record calyx.Record) calyx.Action {
	return calyx.ActionFunc(func(ctx context.Context) (any, error) {
		return repo.CreateOne(ctx, record)
	})
}

// CreateMany returns an action that creates records in repo.
func CreateMany(repo calyx.Repository, records []calyx.Record) calyx.Action {
	return calyx.ActionFunc(func(ctx context.Context) (any, error) {
		return repo.CreateMany(ctx, records)
	})
}

// ReadOne returns an action that reads the record with the given id.
func ReadOne(repo calyx.Repository, id string) calyx.Action {
	return calyx.ActionFunc(func(ctx context.Context) (any, error) {
		return repo.GetOne(ctx, id)
	})
}

// ReadMany returns an action that reads the records matching filter.
func ReadMany(repo calyx.Repository, filter calyx.Filter, opts calyx.FindOptions) calyx.Action {
	return calyx.ActionFunc(func(ctx context.Context) (any, error) {
		return repo.GetMany(ctx, filter, opts)
	})
}

// UpdateOne returns an action that applies changes to the record with the
// given id.
func UpdateOne(repo calyx.Repository, id string, changes calyx.Record) calyx.Action {
	return calyx.ActionFunc(func(ctx context.Context) (any, error) {
		return repo.UpdateOne(ctx, id, changes)
	})
}

// UpdateMany returns an action that applies changes to the records
// matching filter.
func UpdateMany(repo calyx.Repository, filter calyx.Filter, changes calyx.Record) calyx.Action {
	return calyx.ActionFunc(func(ctx context.Context) (any, error) {
		return repo.UpdateMany(ctx, filter, changes)
	})
}

// DeleteOne returns an action that removes the record with the given id.
func DeleteOne(repo calyx.Repository, id string) calyx.Action {
	return calyx.ActionFunc(func(ctx context.Context) (any, error) {
		return repo.DeleteOne(ctx, id)
	})
}

// DeleteMany returns an action that removes the records matching filter.
func DeleteMany(repo calyx.Repository, filter calyx.Filter) calyx.Action {
	return calyx.ActionFunc(func(ctx context.Context) (any, error) {
		return repo.DeleteMany(ctx, filter)
	})
}
