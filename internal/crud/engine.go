// Package crud reads and writes rows of compiled tables.
//
// Payloads are validated against the schema the table was compiled from
// before any statement runs. Properties that reference another schema are
// written to their own table and linked through the relation table; all
// other values are bound as parameters.
package crud

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/koustreak/schemasql/internal/compiler"
	"github.com/koustreak/schemasql/internal/database"
	"github.com/koustreak/schemasql/internal/errs"
	"github.com/koustreak/schemasql/internal/logger"
)

// Lookup returns the engine of another table; Create and Update use it to
// write referenced rows.
type Lookup func(table string) (*Engine, error)

// Engine performs CRUD on one compiled table.
type Engine struct {
	db        database.DB
	def       *compiler.TableDefinition
	validator Validator
	lookup    Lookup
	log       *logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithValidator replaces the default JSON Schema validator.
func WithValidator(v Validator) Option {
	return func(e *Engine) { e.validator = v }
}

// WithLookup sets how engines of referenced tables are found.
func WithLookup(l Lookup) Option {
	return func(e *Engine) { e.lookup = l }
}

// WithLogger sets the engine's logger.
func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New returns an engine for def on db.
func New(db database.DB, def *compiler.TableDefinition, opts ...Option) *Engine {
	e := &Engine{
		db:        db,
		def:       def,
		validator: NewJSONSchemaValidator(),
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.ForTable(def.Name)
	return e
}

// Table returns the definition the engine works on.
func (e *Engine) Table() *compiler.TableDefinition { return e.def }

// Payload is a validated write: bound column values plus the nested
// payloads of reference properties.
type Payload struct {
	Columns    database.Record
	References []ReferencePayload
}

// ReferencePayload holds the nested objects given for one reference property.
type ReferencePayload struct {
	Relation compiler.RelationTable
	Items    []map[string]any
}

// Validate checks data against the table's schema and splits it into
// column values and reference payloads. Array and object values of
// ordinary properties are stored as JSON text. Unknown keys are violations.
func (e *Engine) Validate(data map[string]any) (*Payload, error) {
	p := &Payload{Columns: make(database.Record)}
	scalars := make(map[string]any, len(data))
	var violations []Violation

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	refs := make(map[string]ReferencePayload)
	for _, key := range keys {
		val, err := normalize(data[key])
		if err != nil {
			violations = append(violations, Violation{Field: key, Message: "is not JSON data"})
			continue
		}

		if rel, ok := e.def.Relation(key); ok {
			items, ok := referenceItems(val)
			if !ok {
				violations = append(violations, Violation{Field: key, Message: "must be an object or an array of objects"})
				continue
			}
			refs[key] = ReferencePayload{Relation: rel, Items: items}
			continue
		}

		if e.def.Column(key) == nil {
			violations = append(violations, Violation{Field: key, Message: "is not a property of " + e.def.Name})
			continue
		}
		switch val.(type) {
		case map[string]any, []any:
			if val, err = encode(val); err != nil {
				violations = append(violations, Violation{Field: key, Message: err.Error()})
				continue
			}
		}
		scalars[key] = val
	}

	violations = append(violations, e.validator.Validate(e.def, scalars)...)
	if len(violations) > 0 {
		return nil, &ValidationError{Table: e.def.Name, Violations: violations}
	}

	for _, col := range e.def.Columns {
		val, ok := scalars[col.Name]
		if !ok {
			continue
		}
		bound, err := bindValue(col, val)
		if err != nil {
			return nil, &ValidationError{Table: e.def.Name, Violations: []Violation{{Field: col.Name, Message: err.Error()}}}
		}
		p.Columns[col.Name] = bound
	}
	for _, rel := range e.def.Relations {
		if ref, ok := refs[rel.Property]; ok {
			p.References = append(p.References, ref)
		}
	}
	return p, nil
}

// referenceItems accepts an object, an array of objects or null.
func referenceItems(v any) ([]map[string]any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case map[string]any:
		return []map[string]any{x}, true
	case []any:
		items := make([]map[string]any, 0, len(x))
		for _, item := range x {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			items = append(items, m)
		}
		return items, true
	default:
		return nil, false
	}
}

// Create inserts a row, writes and links its references, and returns the
// stored row.
func (e *Engine) Create(ctx context.Context, data map[string]any) (database.Record, error) {
	p, err := e.Validate(data)
	if err != nil {
		return nil, err
	}
	if err := e.checkReferences(ctx, p); err != nil {
		return nil, err
	}

	d := e.db.Dialect()
	ins := database.Insert(e.def.Name, d).Returning(compiler.ColumnID)
	for _, col := range e.def.Columns {
		if val, ok := p.Columns[col.Name]; ok {
			ins.Set(col.Name, val)
		}
	}
	q, args, err := ins.Build()
	if err != nil {
		return nil, err
	}
	id, err := e.db.Insert(ctx, q, args...)
	if err != nil {
		return nil, err
	}

	if err := e.writeReferences(ctx, id, p.References); err != nil {
		return nil, err
	}
	e.log.DebugWith("row created", map[string]any{"id": id})
	return e.Find(ctx, id)
}

// Update overwrites the given columns of row id, writes and links its
// references, and returns the stored row. An "id" in data must match id.
func (e *Engine) Update(ctx context.Context, id int64, data map[string]any) (database.Record, error) {
	p, err := e.Validate(data)
	if err != nil {
		return nil, err
	}
	if given, ok := p.Columns[compiler.ColumnID]; ok {
		if given != id {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "payload id %v does not match %d", given, id)
		}
		delete(p.Columns, compiler.ColumnID)
	}
	if err := e.checkReferences(ctx, p); err != nil {
		return nil, err
	}

	if _, err := e.Find(ctx, id); err != nil {
		return nil, err
	}

	if len(p.Columns) > 0 {
		upd := database.Update(e.def.Name, e.db.Dialect())
		for _, col := range e.def.Columns {
			if val, ok := p.Columns[col.Name]; ok {
				upd.Set(col.Name, val)
			}
		}
		q, args, err := upd.Where(compiler.ColumnID, "=", id).Build()
		if err != nil {
			return nil, err
		}
		if _, err := e.db.Exec(ctx, q, args...); err != nil {
			return nil, err
		}
	}

	if err := e.writeReferences(ctx, id, p.References); err != nil {
		return nil, err
	}
	e.log.DebugWith("row updated", map[string]any{"id": id})
	return e.Find(ctx, id)
}

// checkReferences validates every nested item of p, at any depth, and
// makes sure the rows named by nested ids exist. Create and Update call it
// before their first statement so a bad nested item writes nothing.
// Violations are reported against the owner as property[index].field.
func (e *Engine) checkReferences(ctx context.Context, p *Payload) error {
	var violations []Violation
	for _, ref := range p.References {
		if len(ref.Items) == 0 {
			continue
		}
		if e.lookup == nil {
			return errs.Newf(errs.ErrKindInvalidInput, "no engine available for referenced table %q", ref.Relation.Target)
		}
		nested, err := e.lookup(ref.Relation.Target)
		if err != nil {
			return err
		}

		for i, item := range ref.Items {
			err := nested.checkNested(ctx, item)
			var verr *ValidationError
			switch {
			case errors.As(err, &verr):
				prefix := fmt.Sprintf("%s[%d].", ref.Relation.Property, i)
				for _, v := range verr.Violations {
					violations = append(violations, Violation{Field: prefix + v.Field, Message: v.Message})
				}
			case err != nil:
				return err
			}
		}
	}
	if len(violations) > 0 {
		return &ValidationError{Table: e.def.Name, Violations: violations}
	}
	return nil
}

// checkNested is the dry run of writeNested.
func (e *Engine) checkNested(ctx context.Context, item map[string]any) error {
	if raw, ok := item[compiler.ColumnID]; ok && raw != nil {
		id, err := toInt64(raw)
		if err != nil {
			return &ValidationError{Table: e.def.Name, Violations: []Violation{{
				Field:   compiler.ColumnID,
				Message: fmt.Sprintf("%v is not an integer", raw),
			}}}
		}
		if _, err := e.Find(ctx, id); err != nil {
			return err
		}
		if len(item) == 1 {
			return nil
		}
	}

	p, err := e.Validate(item)
	if err != nil {
		return err
	}
	return e.checkReferences(ctx, p)
}

// writeReferences creates nested objects without an id, updates those with
// an id and other fields, and links each one to row id. The read of the
// nested id and the link are not isolated from concurrent writers.
func (e *Engine) writeReferences(ctx context.Context, id int64, refs []ReferencePayload) error {
	for _, ref := range refs {
		if len(ref.Items) == 0 {
			continue
		}
		nested, err := e.lookup(ref.Relation.Target)
		if err != nil {
			return err
		}

		for _, item := range ref.Items {
			targetID, err := nested.writeNested(ctx, item)
			if err != nil {
				return err
			}
			if err := e.Link(ctx, ref.Relation.Property, id, targetID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) writeNested(ctx context.Context, item map[string]any) (int64, error) {
	raw, ok := item[compiler.ColumnID]
	if !ok || raw == nil {
		row, err := e.Create(ctx, item)
		if err != nil {
			return 0, err
		}
		return toInt64(row[compiler.ColumnID])
	}

	id, err := toInt64(raw)
	if err != nil {
		return 0, err
	}
	if len(item) > 1 {
		if _, err := e.Update(ctx, id, item); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// Link records that row id references row targetID through property.
// Linking an existing pair is a no-op.
func (e *Engine) Link(ctx context.Context, property string, id, targetID int64) error {
	rel, ok := e.def.Relation(property)
	if !ok {
		return errs.Newf(errs.ErrKindInvalidInput, "%s has no reference property %q", e.def.Name, property)
	}
	q, args, err := database.Insert(rel.Name, e.db.Dialect()).
		Set(rel.OwnerColumn(), id).
		Set(rel.TargetColumn(), targetID).
		IgnoreConflicts().
		Build()
	if err != nil {
		return err
	}
	_, err = e.db.Exec(ctx, q, args...)
	return err
}

// Read returns the rows matching every filter entry, shaped by c.
// Filter keys and c.OrderBy must be columns.
func (e *Engine) Read(ctx context.Context, filter map[string]any, c Clauses) ([]database.Record, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if e.def.Column(c.orderBy()) == nil {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "cannot order %s by unknown column %q", e.def.Name, c.orderBy())
	}

	sel := database.Select(e.def.Name, e.db.Dialect())
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		col := e.def.Column(key)
		if col == nil {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "cannot filter %s by unknown column %q", e.def.Name, key)
		}
		val, err := normalize(filter[key])
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "filter value for "+key+" is not JSON data", err)
		}
		switch val.(type) {
		case map[string]any, []any:
			return nil, errs.Newf(errs.ErrKindInvalidInput, "filter value for %q must be a scalar", key)
		}
		bound, err := bindValue(col, val)
		if err != nil {
			return nil, err
		}
		if bound == nil {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "filter value for %q must not be null", key)
		}
		sel.Where(key, "=", bound)
	}

	q, args, err := sel.
		OrderBy(c.orderBy(), c.direction()).
		Limit(c.limit()).
		Offset(c.offset()).
		Build()
	if err != nil {
		return nil, err
	}
	return e.query(ctx, q, args)
}

// Find returns row id, or an error of kind errs.ErrKindNotFound.
func (e *Engine) Find(ctx context.Context, id int64) (database.Record, error) {
	q, args, err := database.Select(e.def.Name, e.db.Dialect()).
		Where(compiler.ColumnID, "=", id).
		Limit(1).
		Build()
	if err != nil {
		return nil, err
	}
	rows, err := e.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errs.Newf(errs.ErrKindNotFound, "%s %d not found", e.def.Name, id)
	}
	return rows[0], nil
}

// Delete removes row id and reports whether it existed. Relation rows go
// with it through their cascading foreign keys.
func (e *Engine) Delete(ctx context.Context, id int64) (bool, error) {
	q, args, err := database.Delete(e.def.Name, e.db.Dialect()).
		Where(compiler.ColumnID, "=", id).
		Build()
	if err != nil {
		return false, err
	}
	n, err := e.db.Exec(ctx, q, args...)
	if err != nil {
		return false, err
	}
	if n > 0 {
		e.log.DebugWith("row deleted", map[string]any{"id": id})
	}
	return n > 0, nil
}

// Related returns the rows linked to row id through a reference property,
// ordered by their id. The relation table is named after the owner and
// target tables, so a table has at most one reference property per target.
func (e *Engine) Related(ctx context.Context, id int64, property string) ([]database.Record, error) {
	rel, ok := e.def.Relation(property)
	if !ok {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "%s has no reference property %q", e.def.Name, property)
	}
	q, args, err := database.Select(rel.Target, e.db.Dialect()).
		Columns(rel.Target+".*").
		Join(rel.Name, rel.Name+"."+rel.TargetColumn(), rel.Target+"."+compiler.ColumnID).
		Where(rel.Name+"."+rel.OwnerColumn(), "=", id).
		OrderBy(rel.Target+"."+compiler.ColumnID, database.Asc).
		Build()
	if err != nil {
		return nil, err
	}

	var target *compiler.TableDefinition
	if e.lookup != nil {
		if nested, err := e.lookup(rel.Target); err == nil {
			target = nested.def
		}
	}
	rows, err := e.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	records, err := database.ScanRows(rows)
	if err != nil {
		return nil, err
	}
	if target != nil {
		decodeRecords(target, records)
	}
	return records, nil
}

func (e *Engine) query(ctx context.Context, q string, args []any) ([]database.Record, error) {
	rows, err := e.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	records, err := database.ScanRows(rows)
	if err != nil {
		return nil, err
	}
	decodeRecords(e.def, records)
	return records, nil
}

func decodeRecords(def *compiler.TableDefinition, records []database.Record) {
	for _, r := range records {
		for name, val := range r {
			if col := def.Column(name); col != nil {
				r[name] = readValue(col, val)
			}
		}
	}
}
