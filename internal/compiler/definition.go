package compiler

import (
	"github.com/koustreak/schemasql/internal/schema"
)

// Implicit columns present in every table.
const (
	ColumnID   = "id"
	ColumnDate = "date"
)

// ColumnDefinition is one column of a compiled table.
type ColumnDefinition struct {
	Name         string
	SQLType      string
	Nullable     bool
	IsPrimaryKey bool

	// Default is the SQL default expression: an escaped literal, or
	// CURRENT_TIMESTAMP for the date column. Empty means no default.
	Default string

	// Comment is the unescaped "title - description" text.
	Comment string

	// Check is a CHECK expression for enums on dialects without ENUM.
	Check string

	// Schema is the property fragment the column was built from.
	Schema schema.Value
}

// RelationTable is the junction table linking an owner row to the rows of a
// referenced table.
type RelationTable struct {
	// Property is the owner property whose $ref produced the relation.
	Property string
	Owner    string
	Target   string
	Name     string
}

// OwnerColumn is the junction column referencing the owner's id.
func (r RelationTable) OwnerColumn() string { return r.Owner + "_id" }

// TargetColumn is the junction column referencing the target's id.
func (r RelationTable) TargetColumn() string { return r.Target + "_id" }

func newRelation(property, owner, target string) RelationTable {
	return RelationTable{
		Property: property,
		Owner:    owner,
		Target:   target,
		Name:     owner + "_" + target,
	}
}

// TableDefinition is a compiled object schema.
type TableDefinition struct {
	Name      string
	Columns   []*ColumnDefinition
	Comment   string
	Relations []RelationTable

	// Required lists the property names that must be present in a payload,
	// id and date excluded.
	Required []string

	// Document is the schema the table was compiled from, after $ref merging.
	Document *schema.Document
}

// Column returns the named column, or nil.
func (t *TableDefinition) Column(name string) *ColumnDefinition {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ColumnNames returns the column names in definition order.
func (t *TableDefinition) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Relation returns the relation created for a reference property.
func (t *TableDefinition) Relation(property string) (RelationTable, bool) {
	for _, r := range t.Relations {
		if r.Property == property {
			return r, true
		}
	}
	return RelationTable{}, false
}

func (t *TableDefinition) relationNamed(name string) (RelationTable, bool) {
	for _, r := range t.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return RelationTable{}, false
}

// SkippedReference records a $ref property left out of a table because its
// target could not be loaded, is not an object schema, or targets a table
// another property of the same owner already links to.
type SkippedReference struct {
	Table    string
	Property string
	Ref      string
	Err      error
}

// Compilation is the outcome of compiling one root document.
type Compilation struct {
	// Table is the root table, nil when the document is not an object schema.
	Table *TableDefinition

	// Tables holds every table compiled by this call, referenced tables
	// before the tables referencing them. Tables already known to the
	// compiler are not repeated.
	Tables []*TableDefinition

	// Statements is the DDL in execution order.
	Statements []string

	Skipped []SkippedReference
}
