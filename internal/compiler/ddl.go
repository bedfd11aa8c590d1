package compiler

import (
	"fmt"
	"strings"

	"github.com/koustreak/schemasql/internal/database"
)

// createTableStatements renders CREATE TABLE for t, followed by the
// COMMENT ON statements of dialects that attach comments separately.
func createTableStatements(t *TableDefinition, d database.Dialect) []string {
	lines := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		lines[i] = columnClause(c, d)
	}

	var sb strings.Builder
	sb.WriteString("CREATE TABLE IF NOT EXISTS ")
	sb.WriteString(d.QuoteIdent(t.Name))
	sb.WriteString(" (\n  ")
	sb.WriteString(strings.Join(lines, ",\n  "))
	sb.WriteString("\n)")
	if d.InlineComments() && t.Comment != "" {
		sb.WriteString(" COMMENT " + d.QuoteLiteral(t.Comment))
	}

	stmts := []string{sb.String()}
	if !d.CommentStatements() {
		return stmts
	}
	if t.Comment != "" {
		stmts = append(stmts, fmt.Sprintf("COMMENT ON TABLE %s IS %s",
			d.QuoteIdent(t.Name), d.QuoteLiteral(t.Comment)))
	}
	for _, c := range t.Columns {
		if c.Comment == "" {
			continue
		}
		stmts = append(stmts, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s",
			d.QuoteIdent(t.Name), d.QuoteIdent(c.Name), d.QuoteLiteral(c.Comment)))
	}
	return stmts
}

func columnClause(c *ColumnDefinition, d database.Dialect) string {
	parts := []string{d.QuoteIdent(c.Name), c.SQLType}
	if !c.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if c.IsPrimaryKey {
		parts = append(parts, "PRIMARY KEY", d.AutoIncrement(), "UNIQUE")
	}
	if c.Default != "" {
		parts = append(parts, "DEFAULT", defaultExpr(c, d))
	}
	if c.Check != "" {
		parts = append(parts, "CHECK ("+c.Check+")")
	}
	if d.InlineComments() && c.Comment != "" {
		parts = append(parts, "COMMENT", d.QuoteLiteral(c.Comment))
	}
	return strings.Join(parts, " ")
}

// defaultExpr wraps literal defaults of MySQL TEXT columns in parentheses;
// MySQL only accepts them there as expression defaults.
func defaultExpr(c *ColumnDefinition, d database.Dialect) string {
	if d == database.DialectMySQL && c.SQLType == TypeText && c.Default != "CURRENT_TIMESTAMP" {
		return "(" + c.Default + ")"
	}
	return c.Default
}

// relationStatements renders the junction table of r: two integer id
// columns, a composite primary key, an index on the owner column and
// cascading foreign keys to both tables.
func relationStatements(r RelationTable, d database.Dialect) []string {
	owner, target := d.QuoteIdent(r.OwnerColumn()), d.QuoteIdent(r.TargetColumn())
	lines := []string{
		owner + " INTEGER NOT NULL",
		target + " INTEGER NOT NULL",
		fmt.Sprintf("PRIMARY KEY (%s, %s)", owner, target),
	}
	if d.InlineIndex() {
		lines = append(lines, fmt.Sprintf("INDEX (%s)", owner))
	}
	lines = append(lines,
		fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE CASCADE",
			owner, d.QuoteIdent(r.Owner), d.QuoteIdent(ColumnID)),
		fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE CASCADE",
			target, d.QuoteIdent(r.Target), d.QuoteIdent(ColumnID)),
	)

	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		d.QuoteIdent(r.Name), strings.Join(lines, ",\n  "))}
	if !d.InlineIndex() {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			d.QuoteIdent(r.Name+"_"+r.OwnerColumn()+"_idx"), d.QuoteIdent(r.Name), owner))
	}
	return stmts
}
