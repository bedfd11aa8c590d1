// Package compiler turns object schemas into relational tables.
//
// Each object schema becomes one table named after its file. Every table
// carries an auto-incrementing integer id and a date column defaulting to
// the insertion time. A property whose $ref names another schema file does
// not become a column: the referenced schema is compiled into its own table
// and a junction table "{owner}_{target}" links the two.
package compiler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/schemasql/internal/database"
	"github.com/koustreak/schemasql/internal/errs"
	"github.com/koustreak/schemasql/internal/logger"
	"github.com/koustreak/schemasql/internal/schema"
)

// implicitProperties are merged under every schema's own properties.
var implicitProperties = schema.Object(
	schema.Member{Key: ColumnID, Value: schema.Object(schema.Member{Key: schema.KeyType, Value: schema.String("integer")})},
	schema.Member{Key: ColumnDate, Value: schema.Object(schema.Member{Key: schema.KeyType, Value: schema.String("date")})},
)

// Compiler compiles schema documents and remembers the tables it created.
// It is safe for concurrent use; compilations are serialised.
type Compiler struct {
	db      database.DB
	loader  *schema.Loader
	dialect database.Dialect
	strict  bool
	dryRun  bool
	log     *logger.Logger

	mu   sync.Mutex
	defs map[string]*TableDefinition
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithDialect sets the dialect used when no database is attached.
func WithDialect(d database.Dialect) Option {
	return func(c *Compiler) { c.dialect = d }
}

// WithStrictReferences makes an unresolvable $ref abort the compilation
// instead of skipping the property.
func WithStrictReferences(strict bool) Option {
	return func(c *Compiler) { c.strict = strict }
}

// WithDryRun renders statements without executing them or remembering tables.
func WithDryRun(dryRun bool) Option {
	return func(c *Compiler) { c.dryRun = dryRun }
}

// WithLogger sets the compiler's logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Compiler) { c.log = log }
}

// New returns a compiler executing DDL on db. db may be nil in dry-run mode.
func New(db database.DB, loader *schema.Loader, opts ...Option) *Compiler {
	c := &Compiler{
		db:     db,
		loader: loader,
		log:    logger.Nop(),
		defs:   make(map[string]*TableDefinition),
	}
	if db != nil {
		c.dialect = db.Dialect()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dialect returns the dialect DDL is rendered for.
func (c *Compiler) Dialect() database.Dialect { return c.dialect }

// Definition returns a table compiled earlier by this compiler.
func (c *Compiler) Definition(name string) (*TableDefinition, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	def, ok := c.defs[name]
	return def, ok
}

// Definitions returns every table compiled so far, sorted by name.
func (c *Compiler) Definitions() []*TableDefinition {
	c.mu.Lock()
	defer c.mu.Unlock()
	defs := make([]*TableDefinition, 0, len(c.defs))
	for _, def := range c.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Compile compiles doc and every schema it references.
//
// A document whose type is not "object" yields a Compilation with a nil
// Table and no statements. Tables compiled before, by this or an earlier
// call, are not created again but still get their relation tables.
//
// All statements run in one transaction. Nothing is remembered unless the
// transaction commits. MySQL commits DDL implicitly, so a failure there can
// leave the tables created before it.
func (c *Compiler) Compile(ctx context.Context, doc *schema.Document) (*Compilation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	run := &compilation{
		inProgress: make(map[string]bool),
		compiled:   make(map[string]*TableDefinition),
	}
	root, err := c.compile(ctx, doc, run)
	if err != nil {
		return nil, err
	}

	result := &Compilation{
		Table:      root,
		Tables:     run.order,
		Statements: run.statements,
		Skipped:    run.skipped,
	}
	if c.dryRun || len(run.statements) == 0 {
		return result, nil
	}

	if err := c.execute(ctx, run.statements); err != nil {
		return nil, err
	}
	for _, def := range run.order {
		if _, ok := c.defs[def.Name]; !ok {
			c.defs[def.Name] = def
		}
	}
	c.log.InfoWith("schema compiled", map[string]any{
		"schema":     doc.Name,
		"tables":     len(run.order),
		"statements": len(run.statements),
		"skipped":    len(run.skipped),
	})
	return result, nil
}

// CompileFile loads the named schema through the loader and compiles it.
func (c *Compiler) CompileFile(ctx context.Context, name string) (*Compilation, error) {
	doc, err := c.loader.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.Compile(ctx, doc)
}

// compilation is the state of one Compile call.
type compilation struct {
	inProgress map[string]bool
	compiled   map[string]*TableDefinition
	order      []*TableDefinition
	statements []string
	skipped    []SkippedReference
}

type pendingReference struct {
	property string
	ref      *schema.Reference
}

func (c *Compiler) compile(ctx context.Context, doc *schema.Document, run *compilation) (*TableDefinition, error) {
	if !doc.IsObject() {
		return nil, nil
	}
	if run.inProgress[doc.Name] {
		return nil, errs.Newf(errs.ErrKindCyclicReference, "schema %q references itself through %s", doc.Name, doc.Location)
	}
	if def, ok := run.compiled[doc.Name]; ok {
		return def, nil
	}
	if def, ok := c.defs[doc.Name]; ok {
		return def, nil
	}

	run.inProgress[doc.Name] = true
	defer delete(run.inProgress, doc.Name)

	def := &TableDefinition{
		Name:    doc.Name,
		Comment: comment(doc.Root.Title(), doc.Root.Description()),
	}
	required := map[string]bool{ColumnID: true, ColumnDate: true}
	for _, name := range doc.Root.RequiredNames() {
		required[name] = true
	}

	var properties schema.Value
	if own, ok := doc.Root.Get(schema.KeyProperties); ok && own.IsObject() {
		properties = schema.Merge(implicitProperties, own)
	} else {
		properties = implicitProperties
	}

	var refs []pendingReference
	for _, m := range properties.Members() {
		frag := m.Value
		if !frag.IsObject() || frag.Len() == 0 {
			continue
		}
		if m.Key != ColumnID && m.Key != ColumnDate {
			ref, err := c.loader.Resolve(ctx, frag, doc.Location)
			if err != nil {
				if c.strict {
					return nil, err
				}
				c.skip(run, def.Name, m.Key, frag.Ref(), err)
				continue
			}
			if ref != nil {
				refs = append(refs, pendingReference{property: m.Key, ref: ref})
				continue
			}
		}
		def.Columns = append(def.Columns, c.column(m.Key, frag, required))
	}

	for _, name := range doc.Root.RequiredNames() {
		if col := def.Column(name); col != nil && name != ColumnID && name != ColumnDate {
			def.Required = append(def.Required, name)
		}
	}
	def.Document = &schema.Document{
		Name:     doc.Name,
		Location: doc.Location,
		Root:     doc.Root.With(schema.KeyProperties, properties),
	}

	run.statements = append(run.statements, createTableStatements(def, c.dialect)...)

	for _, p := range refs {
		nested, err := c.compile(ctx, p.ref.Document(), run)
		if err != nil {
			return nil, err
		}
		if nested == nil {
			err := errs.Newf(errs.ErrKindReference, "$ref %q is not an object schema", p.ref.Location)
			if c.strict {
				return nil, err
			}
			c.skip(run, def.Name, p.property, p.ref.Location, err)
			continue
		}
		rel := newRelation(p.property, def.Name, nested.Name)
		if other, ok := def.relationNamed(rel.Name); ok {
			err := errs.Newf(errs.ErrKindReference, "%s.%s and %s.%s would share relation table %q",
				def.Name, other.Property, def.Name, p.property, rel.Name)
			if c.strict {
				return nil, err
			}
			c.skip(run, def.Name, p.property, p.ref.Location, err)
			continue
		}
		def.Relations = append(def.Relations, rel)
		run.statements = append(run.statements, relationStatements(rel, c.dialect)...)
	}

	run.compiled[def.Name] = def
	run.order = append(run.order, def)
	return def, nil
}

func (c *Compiler) column(name string, frag schema.Value, required map[string]bool) *ColumnDefinition {
	col := &ColumnDefinition{
		Name:     name,
		SQLType:  MapType(frag, c.dialect),
		Nullable: !(required[name] || frag.RequiredFlag() || frag.MinItems() > 0),
		Comment:  comment(frag.Title(), frag.Description()),
		Check:    EnumCheck(name, frag, c.dialect),
		Schema:   frag,
	}

	switch name {
	case ColumnID:
		col.SQLType = TypeInteger
		col.IsPrimaryKey = true
		col.Check = ""
	case ColumnDate:
		col.SQLType = TypeTimestamp
		col.Default = "CURRENT_TIMESTAMP"
		col.Check = ""
	default:
		if def, ok := frag.Default(); ok {
			col.Default = literal(def, c.dialect)
		}
	}
	return col
}

func (c *Compiler) skip(run *compilation, table, property, ref string, err error) {
	run.skipped = append(run.skipped, SkippedReference{Table: table, Property: property, Ref: ref, Err: err})
	c.log.WarnWith("skipping unresolved reference", err, map[string]any{
		"table":    table,
		"property": property,
		"ref":      ref,
	})
}

func (c *Compiler) execute(ctx context.Context, stmts []string) error {
	if c.db == nil {
		return errs.New(errs.ErrKindInvalidInput, "compiler has no database attached")
	}
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		start := time.Now()
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return withStatement(err, stmt)
		}
		c.log.Statement(stmt, time.Since(start))
	}
	return tx.Commit(ctx)
}

// withStatement makes sure err carries the statement that failed.
func withStatement(err error, stmt string) error {
	if errs.StatementOf(err) != "" {
		return err
	}
	return errs.Wrap(errs.KindOf(err), fmt.Sprintf("executing %s", firstLine(stmt)), err).WithStatement(stmt)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSuffix(line, " (")
}

// comment joins a title and a description as "title - description".
func comment(title, description string) string {
	switch {
	case title == "" && description == "":
		return ""
	case description == "":
		return title
	case title == "":
		return description
	default:
		return title + " - " + description
	}
}
