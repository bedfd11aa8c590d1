package database

import (
	"context"
	"fmt"
)

// ColumnInfo describes a single column of an existing table.
type ColumnInfo struct {
	Name      string
	DataType  string
	Nullable  bool
	Default   *string // nil if no default
	IsPrimary bool
	IsUnique  bool
}

// ForeignKey describes a column that references another table.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// TableInfo describes a table as the database sees it.
type TableInfo struct {
	Name        string
	Columns     []*ColumnInfo
	PrimaryKey  []string
	ForeignKeys []*ForeignKey
}

// Column returns the named column, or nil.
func (t *TableInfo) Column(name string) *ColumnInfo {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Introspector reads the structure of tables that already exist.
// Each driver implements the DB-specific queries; InspectTables is shared.
type Introspector interface {
	ListTables(ctx context.Context) ([]string, error)
	TableExists(ctx context.Context, table string) (bool, error)
	InspectTable(ctx context.Context, table string) (*TableInfo, error)
}

// InspectTables inspects every named table, or every table when names is empty.
// This is an expensive operation — callers should cache the result.
func InspectTables(ctx context.Context, i Introspector, names ...string) ([]*TableInfo, error) {
	if len(names) == 0 {
		var err error
		if names, err = i.ListTables(ctx); err != nil {
			return nil, err
		}
	}

	tables := make([]*TableInfo, 0, len(names))
	for _, name := range names {
		info, err := i.InspectTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("inspecting table %q: %w", name, err)
		}
		tables = append(tables, info)
	}
	return tables, nil
}
