package sqlite

import (
	"context"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/calyxweb/calyx/kit/errors"
)

// Migrator applies numbered sql scripts to a Store. Scripts are named like
// "0002_create_names.sql"; the numeric prefix is the schema version the
// script brings the database to, tracked via the user_version pragma.
type Migrator struct {
	store *Store
	log   *zap.Logger
}

// NewMigrator returns a Migrator for store.
func NewMigrator(store *Store, log *zap.Logger) *Migrator {
	return &Migrator{
		store: store,
		log:   log,
	}
}

// Up applies every script in source whose version is greater than the
// database's current schema version, in ascending order.
func (m *Migrator) Up(ctx context.Context, source fs.FS) error {
	list, err := fs.ReadDir(source, ".")
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}

	// sort the list according to the version number to ensure the
	// migrations are applied in the correct order
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})

	current, err := m.store.userVersion()
	if err != nil {
		return err
	}

	final, err := scriptVersion(list[len(list)-1].Name())
	if err != nil {
		return err
	}

	// log this message only if there are migrations to run
	if final > current {
		m.log.Info("Bringing up metadata migrations", zap.Int("migration_count", final-current))
	}

	for _, f := range list {
		n := f.Name()
		v, err := scriptVersion(n)
		if err != nil {
			return err
		}

		// read the current version in the loop as well so that out-of-order
		// scripts cannot be applied after newer ones
		c, err := m.store.userVersion()
		if err != nil {
			return err
		}

		if v <= c {
			continue
		}

		m.log.Debug("Executing metadata migration", zap.String("migration_name", n))
		mBytes, err := fs.ReadFile(source, n)
		if err != nil {
			return err
		}

		if err := m.store.execTrans(ctx, string(mBytes)); err != nil {
			return &errors.Error{Code: errors.EInternal, Msg: "migration " + n + " failed", Err: err}
		}

		if err := m.store.setUserVersion(ctx, v); err != nil {
			return err
		}
	}

	return nil
}

// scriptVersion extracts the version number as an integer from a file
// named like "0002_migration_name.sql".
func scriptVersion(filename string) (int, error) {
	vString := strings.Split(filename, "_")[0]
	vInt, err := strconv.Atoi(vString)
	if err != nil {
		return 0, &errors.Error{Code: errors.EInvalid, Msg: "migration filenames must start with a version number", Err: err}
	}

	return vInt, nil
}
