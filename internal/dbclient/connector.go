// Package dbclient exposes external databases as read-only list stores:
// tables (or collections) are lists, columns (or document keys) are fields.
package dbclient

import (
	"context"
	"fmt"
	"strings"

	"listbind/internal/domain"
)

// SchemaInfo describes the lists an external database offers.
type SchemaInfo struct {
	Tables []TableInfo `json:"tables"`
}

// TableInfo describes a table/collection.
type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

// ColumnInfo describes a column/field.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Fields converts the columns to a list schema.
func (t TableInfo) Fields() []domain.Field {
	fields := make([]domain.Field, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = domain.Field{Name: c.Name, Type: FieldTypeFor(c.Type)}
	}
	return fields
}

// Source is an external database read as a domain.ListStore.
type Source interface {
	domain.ListStore

	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error

	// Introspect returns the tables and their columns.
	Introspect(ctx context.Context) (*SchemaInfo, error)

	// Close closes the connection.
	Close() error
}

// NewSource creates a Source for the given database connection.
// The password must be provided separately (from SecretStore).
func NewSource(conn *domain.DatabaseConnection, password string) (Source, error) {
	switch conn.Driver {
	case domain.DatabaseDriverSQLite:
		return newSQLiteSource(conn)
	case domain.DatabaseDriverMySQL:
		return newSQLSource("mysql", buildMySQLDSN(conn, password))
	case domain.DatabaseDriverPostgres:
		return newSQLSource("postgres", buildPostgresDSN(conn, password))
	case domain.DatabaseDriverMongoDB:
		return newMongoSource(conn, password)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", conn.Driver)
	}
}

// FieldTypeFor maps a native column type to a list field type.
func FieldTypeFor(colType string) domain.FieldType {
	t := strings.ToLower(strings.TrimSpace(colType))
	switch {
	case t == "bool" || t == "boolean" || t == "bit" || t == "bit(1)" || t == "tinyint(1)":
		return domain.FieldTypeBoolean
	case strings.Contains(t, "int"), strings.Contains(t, "real"), strings.Contains(t, "float"),
		strings.Contains(t, "double"), strings.Contains(t, "numeric"), strings.Contains(t, "decimal"):
		return domain.FieldTypeNumber
	case t == "array" || strings.HasSuffix(t, "[]"):
		return domain.FieldTypeMultiChoice
	default:
		return domain.FieldTypeText
	}
}

func findTable(schema *SchemaInfo, title string) (TableInfo, error) {
	for _, t := range schema.Tables {
		if t.Name == title {
			return t, nil
		}
	}
	return TableInfo{}, &domain.LookupError{Name: title, Err: domain.ErrListNotFound}
}

func listFromTable(t TableInfo) domain.List {
	return domain.List{ID: t.Name, Title: t.Name, Fields: t.Fields()}
}

// filterItems keeps the items whose field contains the text, case-insensitively.
func filterItems(items []domain.Item, field, contains string) []domain.Item {
	needle := strings.ToLower(contains)
	var out []domain.Item
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Value(field)), needle) {
			out = append(out, it)
		}
	}
	return out
}
