package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/koustreak/schemasql/internal/catalog"
	"github.com/koustreak/schemasql/internal/database"
	"github.com/koustreak/schemasql/internal/database/mysql"
	"github.com/koustreak/schemasql/internal/database/postgres"
	"github.com/koustreak/schemasql/internal/database/sqlite"
	"github.com/koustreak/schemasql/internal/errs"
	"github.com/koustreak/schemasql/internal/filestore"
	"github.com/koustreak/schemasql/internal/filestore/minio"
	"github.com/koustreak/schemasql/internal/schema"
)

// openDatabase connects to the configured driver.
func openDatabase(ctx context.Context) (database.DB, error) {
	dbCfg := cfg.DatabaseConfig()
	switch dbCfg.Driver {
	case database.DriverSQLite:
		return sqlite.New(ctx, dbCfg)
	case database.DriverMySQL:
		return mysql.New(ctx, dbCfg)
	case database.DriverPostgres:
		return postgres.New(ctx, dbCfg)
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported driver %q", dbCfg.Driver)
	}
}

// newLoader returns a loader for dir, connecting to the object store when
// dir is an s3:// location.
func newLoader(ctx context.Context, dir string) (*schema.Loader, error) {
	opts := []schema.Option{
		schema.WithLogger(log),
		schema.WithHTTPClient(&http.Client{Timeout: cfg.Schemas.FetchTimeout}),
	}
	if strings.HasPrefix(dir, filestore.Scheme+"://") || cfg.ObjectStore.Enabled() {
		store, err := minio.New(ctx, &cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		log.InfoWith("object store connected", map[string]any{"store": cfg.ObjectStore.String()})
		opts = append(opts, schema.WithObjectStore(store))
	}
	return schema.NewLoader(dir, opts...), nil
}

// openCatalog connects to the database and returns a catalog over the
// configured schema directory. The caller closes the database.
func openCatalog(ctx context.Context) (*catalog.Catalog, database.DB, error) {
	loader, err := newLoader(ctx, cfg.Schemas.Dir)
	if err != nil {
		return nil, nil, err
	}
	db, err := openDatabase(ctx)
	if err != nil {
		return nil, nil, err
	}
	cat := catalog.New(db, loader,
		catalog.WithStrictReferences(cfg.Schemas.StrictRefs),
		catalog.WithLogger(log),
	)
	return cat, db, nil
}
