package chain

import (
	"fmt"
	"strings"
)

// ColumnDef defines a single column for a table.
// This is the single source of truth for column definitions used by the
// table initializers in pkg/db/chain.
type ColumnDef struct {
	// Name is the column name in the table
	Name string

	// Type is the ClickHouse data type (e.g., "UInt64", "String", "DateTime64(6)")
	Type string

	// Codec is the optional compression codec (e.g., "ZSTD(1)", "DoubleDelta, LZ4")
	// Leave empty for no codec
	Codec string
}

// SQL returns the full column definition for CREATE TABLE statements.
// Example: "address String CODEC(ZSTD(1))"
func (c ColumnDef) SQL() string {
	if c.Codec != "" {
		return fmt.Sprintf("%s %s CODEC(%s)", c.Name, c.Type, c.Codec)
	}
	return fmt.Sprintf("%s %s", c.Name, c.Type)
}

// ColumnsToSchemaSQL renders a column list into the body of a CREATE TABLE
// statement.
func ColumnsToSchemaSQL(columns []ColumnDef) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, col.SQL())
	}
	return strings.Join(parts, ",\n\t\t\t")
}

// ColumnNames returns just the names, in declaration order. The insert
// helpers in pkg/db/chain spell their column lists out instead of calling it.
func ColumnNames(columns []ColumnDef) []string {
	names := make([]string, 0, len(columns))
	for _, col := range columns {
		names = append(names, col.Name)
	}
	return names
}
