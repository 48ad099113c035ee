package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"listbind/internal/domain"
)

// sqlSource is the shared implementation for MySQL, Postgres, and SQLite.
type sqlSource struct {
	driverName string
	db         *sql.DB
}

// newSQLSource creates a generic SQL source.
func newSQLSource(driverName, dsn string) (*sqlSource, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &sqlSource{driverName: driverName, db: db}, nil
}

func (c *sqlSource) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.db.PingContext(ctx)
}

// quoteIdent quotes a table or column name for the driver.
func (c *sqlSource) quoteIdent(name string) string {
	if c.driverName == "mysql" {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ── Schema ─────────────────────────────────────────────────

func (c *sqlSource) Introspect(ctx context.Context) (*SchemaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	names, err := c.tableNames(ctx)
	if err != nil {
		return nil, err
	}
	schema := &SchemaInfo{}
	for _, tbl := range names {
		cols, err := c.columns(ctx, tbl)
		if err != nil {
			schema.Tables = append(schema.Tables, TableInfo{Name: tbl})
			continue
		}
		schema.Tables = append(schema.Tables, TableInfo{Name: tbl, Columns: cols})
	}
	return schema, nil
}

func (c *sqlSource) tableNames(ctx context.Context) ([]string, error) {
	var query string
	switch c.driverName {
	case "sqlite":
		query = `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	case "mysql":
		query = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() ORDER BY TABLE_NAME`
	default:
		query = `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() ORDER BY table_name`
	}
	return c.queryStrings(ctx, query)
}

// columns returns a table's columns in declaration order. A table that does
// not exist has no columns.
func (c *sqlSource) columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	switch c.driverName {
	case "sqlite":
		return c.sqliteColumns(ctx, table)
	case "mysql":
		return c.queryColumns(ctx,
			`SELECT COLUMN_NAME, COLUMN_TYPE FROM INFORMATION_SCHEMA.COLUMNS
			 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`, table)
	default:
		return c.queryColumns(ctx,
			`SELECT column_name, data_type FROM information_schema.columns
			 WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position`, table)
	}
}

func (c *sqlSource) sqliteColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info('%s')", strings.ReplaceAll(table, "'", "''")))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, ColumnInfo{Name: name, Type: colType})
	}
	return cols, rows.Err()
}

func (c *sqlSource) queryColumns(ctx context.Context, query, table string) ([]ColumnInfo, error) {
	rows, err := c.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var ci ColumnInfo
		if err := rows.Scan(&ci.Name, &ci.Type); err != nil {
			return nil, err
		}
		cols = append(cols, ci)
	}
	return cols, rows.Err()
}

// primaryKey returns the first primary key column of a table, "" when none.
func (c *sqlSource) primaryKey(ctx context.Context, table string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var pks []string
	switch c.driverName {
	case "sqlite":
		rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info('%s')", strings.ReplaceAll(table, "'", "''")))
		if err != nil {
			return ""
		}
		defer rows.Close()
		for rows.Next() {
			var cid int
			var name, colType string
			var notNull, pk int
			var dfltValue sql.NullString
			if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
				continue
			}
			if pk == 1 {
				return name
			}
		}
		return ""
	case "mysql":
		pks, _ = c.queryStrings(ctx,
			`SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
			 WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND CONSTRAINT_NAME = 'PRIMARY'
			 ORDER BY ORDINAL_POSITION`, table)
	default:
		pks, _ = c.queryStrings(ctx,
			`SELECT kcu.column_name FROM information_schema.table_constraints tc
			 JOIN information_schema.key_column_usage kcu
			   ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
			 WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = current_schema() AND tc.table_name = $1
			 ORDER BY kcu.ordinal_position`, table)
	}
	if len(pks) == 0 {
		return ""
	}
	return pks[0]
}

func (c *sqlSource) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *sqlSource) table(ctx context.Context, title string) (TableInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	cols, err := c.columns(ctx, title)
	if err != nil {
		return TableInfo{}, fmt.Errorf("columns of %s: %w", title, err)
	}
	if len(cols) == 0 {
		return TableInfo{}, &domain.LookupError{Name: title, Err: domain.ErrListNotFound}
	}
	return TableInfo{Name: title, Columns: cols}, nil
}

// ── domain.ListStore ───────────────────────────────────────

func (c *sqlSource) ListLists(ctx context.Context) ([]domain.List, error) {
	schema, err := c.Introspect(ctx)
	if err != nil {
		return nil, err
	}
	lists := make([]domain.List, 0, len(schema.Tables))
	for _, t := range schema.Tables {
		lists = append(lists, listFromTable(t))
	}
	return lists, nil
}

func (c *sqlSource) GetList(ctx context.Context, title string) (*domain.List, error) {
	t, err := c.table(ctx, title)
	if err != nil {
		return nil, err
	}
	l := listFromTable(t)
	return &l, nil
}

func (c *sqlSource) GetItems(ctx context.Context, listID, orderBy string) ([]domain.Item, error) {
	t, err := c.table(ctx, listID)
	if err != nil {
		return nil, err
	}
	pk := c.primaryKey(ctx, t.Name)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, "SELECT * FROM "+c.quoteIdent(t.Name))
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	fields := t.Fields()
	var items []domain.Item
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for j := range values {
			ptrs[j] = &values[j]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		it := domain.Item{ListID: t.Name, Fields: fields, Data: make(map[string]any, len(cols))}
		for j, col := range cols {
			it.Data[col] = formatValue(values[j])
		}
		it.ID = strconv.Itoa(len(items) + 1)
		if pk != "" && it.Data[pk] != nil {
			it.ID = cast.ToString(it.Data[pk])
		}
		if n, ok := it.SortKey(); ok {
			it.SortOrder = n
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}

	domain.SortItemsBy(items, orderBy)
	return items, nil
}

func (c *sqlSource) GetItemsFiltered(ctx context.Context, listID, field, contains string) ([]domain.Item, error) {
	items, err := c.GetItems(ctx, listID, "")
	if err != nil {
		return nil, err
	}
	return filterItems(items, field, contains), nil
}

// formatValue converts a database value to a JSON-friendly value.
func formatValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}

func (c *sqlSource) Close() error {
	return c.db.Close()
}
