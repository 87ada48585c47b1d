package routing

import (
	"fmt"
	"net/http"

	"github.com/calyxweb/calyx"
	"github.com/calyxweb/calyx/actions"
	"github.com/calyxweb/calyx/dtos"
	"github.com/calyxweb/calyx/kit/errors"
)

// CRUDConfig declares the CRUD surface of an entity. An operation whose
// action constructor is nil gets no route at all.
//
// BasePath hosts the single-item routes, BulkPath the multi-item ones.
// They are separate so that bulk mutation can live under a different
// (typically more privileged) prefix, e.g. /names and /admin/names.
type CRUDConfig struct {
	BasePath string
	BulkPath string

	// CreateDTO and UpdateDTO are prototypes for the request bodies of
	// creations (POST, PATCH) and full updates (PUT). A nil prototype
	// accepts any JSON object.
	CreateDTO func() dtos.Validator
	UpdateDTO func() dtos.Validator

	CreateOne  func(record calyx.Record) calyx.Action
	CreateMany func(records []calyx.Record) calyx.Action
	ReadOne    func(id string) calyx.Action
	ReadMany   func(filter calyx.Filter, opts calyx.FindOptions) calyx.Action
	UpdateOne  func(id string, changes calyx.Record) calyx.Action
	UpdateMany func(filter calyx.Filter, changes calyx.Record) calyx.Action
	DeleteOne  func(id string) calyx.Action
	DeleteMany func(filter calyx.Filter) calyx.Action
}

func (c CRUDConfig) hasBulkOps() bool {
	return c.CreateMany != nil || c.UpdateMany != nil || c.DeleteMany != nil
}

// CRUD is a RouteSet generated from a CRUDConfig. The generated routes
// are:
//
//	POST   {BasePath}/         create one
//	POST   {BulkPath}/         create many
//	GET    {BasePath}/{id}     read one
//	GET    {BasePath}/         read many (skip, limit, sort, desc, q)
//	PUT    {BasePath}/{id}     replace one
//	PATCH  {BasePath}/{id}     update one partially
//	PUT    {BulkPath}/         update many (q)
//	DELETE {BasePath}/{id}     delete one
//	DELETE {BulkPath}/         delete many (q)
type CRUD struct {
	Config CRUDConfig
}

// Routes registers the configured CRUD routes on rt.
func (c CRUD) Routes(rt *Router) error {
	cfg := c.Config

	if cfg.BasePath == "" {
		return &errors.Error{Code: errors.EInvalid, Msg: "crud route set requires a base path"}
	}
	if cfg.hasBulkOps() && cfg.BulkPath == "" {
		return &errors.Error{Code: errors.EInvalid, Msg: fmt.Sprintf("crud route set at %q has bulk operations but no bulk path", cfg.BasePath)}
	}

	if cfg.CreateOne != nil {
		rt.Post(cfg.BasePath+"/", c.createOne)
	}
	if cfg.CreateMany != nil {
		rt.Post(cfg.BulkPath+"/", c.createMany)
	}
	if cfg.ReadOne != nil {
		rt.Get(cfg.BasePath+"/{id}", c.readOne)
	}
	if cfg.ReadMany != nil {
		rt.Get(cfg.BasePath+"/", c.readMany)
	}
	if cfg.UpdateOne != nil {
		rt.Put(cfg.BasePath+"/{id}", c.replaceOne)
		rt.Patch(cfg.BasePath+"/{id}", c.patchOne)
	}
	if cfg.UpdateMany != nil {
		rt.Put(cfg.BulkPath+"/", c.updateMany)
	}
	if cfg.DeleteOne != nil {
		rt.Delete(cfg.BasePath+"/{id}", c.deleteOne)
	}
	if cfg.DeleteMany != nil {
		rt.Delete(cfg.BulkPath+"/", c.deleteMany)
	}

	return nil
}

func (c CRUD) createOne(r *http.Request) (any, error) {
	rec, err := dtos.DecodeRecord(r.Body, c.Config.CreateDTO)
	if err != nil {
		return nil, err
	}
	return actions.Run(r.Context(), c.Config.CreateOne(rec))
}

func (c CRUD) createMany(r *http.Request) (any, error) {
	recs, err := dtos.DecodeRecords(r.Body, c.Config.CreateDTO)
	if err != nil {
		return nil, err
	}
	return actions.Run(r.Context(), c.Config.CreateMany(recs))
}

func (c CRUD) readOne(r *http.Request) (any, error) {
	return actions.Run(r.Context(), c.Config.ReadOne(URLParam(r, "id")))
}

func (c CRUD) readMany(r *http.Request) (any, error) {
	opts, err := dtos.FindOptionsFromRequest(r)
	if err != nil {
		return nil, err
	}
	return actions.Run(r.Context(), c.Config.ReadMany(dtos.FilterFromRequest(r), opts))
}

func (c CRUD) replaceOne(r *http.Request) (any, error) {
	changes, err := dtos.DecodeRecord(r.Body, c.Config.UpdateDTO)
	if err != nil {
		return nil, err
	}
	return actions.Run(r.Context(), c.Config.UpdateOne(URLParam(r, "id"), changes))
}

func (c CRUD) patchOne(r *http.Request) (any, error) {
	changes, err := dtos.DecodeRecord(r.Body, c.Config.CreateDTO)
	if err != nil {
		return nil, err
	}
	return actions.Run(r.Context(), c.Config.UpdateOne(URLParam(r, "id"), changes))
}

func (c CRUD) updateMany(r *http.Request) (any, error) {
	changes, err := dtos.DecodeRecord(r.Body, c.Config.CreateDTO)
	if err != nil {
		return nil, err
	}
	return actions.Run(r.Context(), c.Config.UpdateMany(dtos.FilterFromRequest(r), changes))
}

func (c CRUD) deleteOne(r *http.Request) (any, error) {
	return actions.Run(r.Context(), c.Config.DeleteOne(URLParam(r, "id")))
}

func (c CRUD) deleteMany(r *http.Request) (any, error) {
	return actions.Run(r.Context(), c.Config.DeleteMany(dtos.FilterFromRequest(r)))
}

// EntityCRUD wires the common case: every operation enabled, delegating to
// repo through the stock CRUD actions.
func EntityCRUD(basePath, bulkPath string, repo calyx.Repository) CRUD {
	return CRUD{Config: CRUDConfig{
		BasePath: basePath,
		BulkPath: bulkPath,
		CreateOne: func(rec calyx.Record) calyx.Action {
			return actions.CreateOne(repo, rec)
		},
		CreateMany: func(recs []calyx.Record) calyx.Action {
			return actions.CreateMany(repo, recs)
		},
		ReadOne: func(id string) calyx.Action {
			return actions.ReadOne(repo, id)
		},
		ReadMany: func(f calyx.Filter, opts calyx.FindOptions) calyx.Action {
			return actions.ReadMany(repo, f, opts)
		},
		UpdateOne: func(id string, changes calyx.Record) calyx.Action {
			return actions.UpdateOne(repo, id, changes)
		},
		UpdateMany: func(f calyx.Filter, changes calyx.Record) calyx.Action {
			return actions.UpdateMany(repo, f, changes)
		},
		DeleteOne: func(id string) calyx.Action {
			return actions.DeleteOne(repo, id)
		},
		DeleteMany: func(f calyx.Filter) calyx.Action {
			return actions.DeleteMany(repo, f)
		},
	}}
}
