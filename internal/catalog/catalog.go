// Package catalog keeps one compiled table and one CRUD engine per table
// name. Tables are compiled on first use, or up front from a schema
// directory; the first compilation of a name wins for the catalog's
// lifetime.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/koustreak/schemasql/internal/compiler"
	"github.com/koustreak/schemasql/internal/crud"
	"github.com/koustreak/schemasql/internal/database"
	"github.com/koustreak/schemasql/internal/errs"
	"github.com/koustreak/schemasql/internal/logger"
	"github.com/koustreak/schemasql/internal/schema"
)

// Catalog is safe for concurrent use.
type Catalog struct {
	db        database.DB
	loader    *schema.Loader
	compiler  *compiler.Compiler
	validator crud.Validator
	log       *logger.Logger

	mu      sync.RWMutex
	engines map[string]*crud.Engine
	group   singleflight.Group
}

// Option configures a Catalog.
type Option func(*options)

type options struct {
	strictRefs bool
	validator  crud.Validator
	log        *logger.Logger
}

// WithStrictReferences makes unresolvable references fail compilation.
func WithStrictReferences(strict bool) Option {
	return func(o *options) { o.strictRefs = strict }
}

// WithValidator sets the validator shared by all engines.
func WithValidator(v crud.Validator) Option {
	return func(o *options) { o.validator = v }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// New returns an empty catalog compiling schemas from loader into db.
func New(db database.DB, loader *schema.Loader, opts ...Option) *Catalog {
	o := options{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.validator == nil {
		o.validator = crud.NewJSONSchemaValidator()
	}
	return &Catalog{
		db:     db,
		loader: loader,
		compiler: compiler.New(db, loader,
			compiler.WithStrictReferences(o.strictRefs),
			compiler.WithLogger(o.log),
		),
		validator: o.validator,
		log:       o.log,
		engines:   make(map[string]*crud.Engine),
	}
}

// Table returns the engine for name, compiling {dir}/{name}.json on first
// use. A schema that is not an object type has no table: the error is of
// kind errs.ErrKindNotFound.
func (c *Catalog) Table(ctx context.Context, name string) (*crud.Engine, error) {
	if e, ok := c.engine(name); ok {
		return e, nil
	}

	v, err, _ := c.group.Do("table:"+name, func() (any, error) {
		if e, ok := c.engine(name); ok {
			return e, nil
		}
		if _, ok := c.compiler.Definition(name); !ok {
			out, err := c.compiler.CompileFile(ctx, name)
			if err != nil {
				return nil, err
			}
			if out.Table == nil {
				return nil, errs.Newf(errs.ErrKindNotFound, "schema %q does not describe an object", name)
			}
		}
		return c.register(name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*crud.Engine), nil
}

// CompileFile compiles the schema at loc, a path or URL, and returns the
// compilation.
func (c *Catalog) CompileFile(ctx context.Context, loc string) (*compiler.Compilation, error) {
	doc, err := c.loader.LoadLocation(ctx, loc)
	if err != nil {
		return nil, err
	}
	v, err, _ := c.group.Do("compile:"+doc.Location, func() (any, error) {
		return c.compiler.Compile(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	return v.(*compiler.Compilation), nil
}

// CompileDir compiles every *.json document of the loader's directory in
// name order. A failing file is logged and skipped; the returned error
// combines every failure, and the compilations of the files that
// succeeded are returned regardless.
func (c *Catalog) CompileDir(ctx context.Context) ([]*compiler.Compilation, error) {
	locs, err := c.loader.List(ctx)
	if err != nil {
		return nil, err
	}

	var (
		results []*compiler.Compilation
		failed  error
	)
	for _, loc := range locs {
		out, err := c.CompileFile(ctx, loc)
		if err != nil {
			c.log.ErrorWith("schema compilation failed", err, map[string]any{"schema": loc})
			failed = multierr.Append(failed, fmt.Errorf("%s: %w", loc, err))
			continue
		}
		results = append(results, out)
	}
	c.log.InfoWith("schema directory compiled", map[string]any{
		"dir":      c.loader.Dir(),
		"schemas":  len(locs),
		"failures": len(multierr.Errors(failed)),
	})
	return results, failed
}

// List returns the names of the compiled tables, sorted.
func (c *Catalog) List() []string {
	defs := c.compiler.Definitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}

// Definition returns the compiled definition of name.
func (c *Catalog) Definition(name string) (*compiler.TableDefinition, bool) {
	return c.compiler.Definition(name)
}

// DB returns the database the catalog writes to.
func (c *Catalog) DB() database.DB { return c.db }

func (c *Catalog) engine(name string) (*crud.Engine, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.engines[name]
	return e, ok
}

// register builds the engine of an already compiled table.
func (c *Catalog) register(name string) (*crud.Engine, error) {
	def, ok := c.compiler.Definition(name)
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "table %q is not compiled", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.engines[name]; ok {
		return e, nil
	}
	e := crud.New(c.db, def,
		crud.WithValidator(c.validator),
		crud.WithLookup(c.lookup),
		crud.WithLogger(c.log),
	)
	c.engines[name] = e
	return e, nil
}

// lookup serves engines of referenced tables. They were compiled together
// with the table referencing them, so no schema is loaded here.
func (c *Catalog) lookup(name string) (*crud.Engine, error) {
	if e, ok := c.engine(name); ok {
		return e, nil
	}
	return c.register(name)
}
