package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"listbind/internal/domain"
)

// ListStore implements domain.ListStore using SQLite.
type ListStore struct {
	db *DB
}

// NewListStore creates a new ListStore.
func NewListStore(db *DB) *ListStore {
	return &ListStore{db: db}
}

var _ domain.ListStore = (*ListStore)(nil)

// ── List CRUD ──────────────────────────────────────────────

// CreateList inserts a list and its schema. An empty ID is assigned.
func (s *ListStore) CreateList(ctx context.Context, l *domain.List) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	now := time.Now()
	l.CreatedAt = now
	l.UpdatedAt = now

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO lists (id, title, source, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.Title, l.Source, l.CreatedAt, l.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert list %q: %w", l.Title, err)
	}
	if err := writeFields(ctx, tx, l.ID, l.Fields); err != nil {
		return err
	}
	return tx.Commit()
}

// EnsureList returns the list titled title, creating it when missing. The
// stored schema is replaced by fields when fields is non-empty.
func (s *ListStore) EnsureList(ctx context.Context, title string, fields []domain.Field) (*domain.List, error) {
	l, err := s.GetList(ctx, title)
	if errors.Is(err, domain.ErrListNotFound) {
		l = &domain.List{Title: title, Fields: fields}
		if err := s.CreateList(ctx, l); err != nil {
			return nil, err
		}
		return l, nil
	}
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return l, nil
	}

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM list_fields WHERE list_id = ?`, l.ID); err != nil {
		return nil, err
	}
	if err := writeFields(ctx, tx, l.ID, fields); err != nil {
		return nil, err
	}
	l.UpdatedAt = time.Now()
	if _, err := tx.ExecContext(ctx, `UPDATE lists SET updated_at = ? WHERE id = ?`, l.UpdatedAt, l.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	l.Fields = fields
	return l, nil
}

// SetSource records which import job last wrote the list.
func (s *ListStore) SetSource(ctx context.Context, listID, source string) error {
	_, err := s.db.conn.ExecContext(ctx,
		`UPDATE lists SET source = ?, updated_at = ? WHERE id = ?`, source, time.Now(), listID)
	return err
}

// GetList returns the list with exactly this title.
func (s *ListStore) GetList(ctx context.Context, title string) (*domain.List, error) {
	l := &domain.List{}
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, title, source, created_at, updated_at FROM lists WHERE title = ?`, title,
	).Scan(&l.ID, &l.Title, &l.Source, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &domain.LookupError{Name: title, Err: domain.ErrListNotFound}
	}
	if err != nil {
		return nil, err
	}
	if l.Fields, err = s.fields(ctx, l.ID); err != nil {
		return nil, err
	}
	return l, nil
}

// ListLists returns every list ordered by title.
func (s *ListStore) ListLists(ctx context.Context) ([]domain.List, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, title, source, created_at, updated_at FROM lists ORDER BY title`)
	if err != nil {
		return nil, err
	}
	var result []domain.List
	for rows.Next() {
		var l domain.List
		if err := rows.Scan(&l.ID, &l.Title, &l.Source, &l.CreatedAt, &l.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		result = append(result, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Fields are loaded after the cursor is closed: the pool holds one connection.
	for i := range result {
		if result[i].Fields, err = s.fields(ctx, result[i].ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// DeleteList removes a list with its schema and items.
func (s *ListStore) DeleteList(ctx context.Context, listID string) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, q := range []string{
		`DELETE FROM list_items WHERE list_id = ?`,
		`DELETE FROM list_fields WHERE list_id = ?`,
		`DELETE FROM lists WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, listID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Fingerprint summarises the list tables so another process can tell when
// lists were written: list count, latest list update and item count.
func (s *ListStore) Fingerprint(ctx context.Context) (string, error) {
	var lists, items int
	var updated string
	err := s.db.conn.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM lists),
		COALESCE((SELECT CAST(MAX(updated_at) AS TEXT) FROM lists), ''),
		(SELECT COUNT(*) FROM list_items)`,
	).Scan(&lists, &updated, &items)
	if err != nil {
		return "", fmt.Errorf("lists fingerprint: %w", err)
	}
	return fmt.Sprintf("%d:%s:%d", lists, updated, items), nil
}

func (s *ListStore) fields(ctx context.Context, listID string) ([]domain.Field, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT name, type FROM list_fields WHERE list_id = ? ORDER BY position`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []domain.Field
	for rows.Next() {
		var f domain.Field
		if err := rows.Scan(&f.Name, &f.Type); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func writeFields(ctx context.Context, tx *sql.Tx, listID string, fields []domain.Field) error {
	for i, f := range fields {
		typ := f.Type
		if typ == "" {
			typ = domain.FieldTypeText
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO list_fields (list_id, position, name, type) VALUES (?, ?, ?, ?)`,
			listID, i, f.Name, typ,
		); err != nil {
			return fmt.Errorf("insert field %q: %w", f.Name, err)
		}
	}
	return nil
}

// ── Item CRUD ──────────────────────────────────────────────

// CreateItem appends an item to its list. An empty ID is assigned.
func (s *ListStore) CreateItem(ctx context.Context, it *domain.Item) error {
	return insertItem(ctx, s.db.conn, it)
}

// ReplaceItems swaps the whole content of a list in one transaction.
func (s *ListStore) ReplaceItems(ctx context.Context, listID string, items []domain.Item) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM list_items WHERE list_id = ?`, listID); err != nil {
		return err
	}
	for i := range items {
		items[i].ListID = listID
		if err := insertItem(ctx, tx, &items[i]); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE lists SET updated_at = ? WHERE id = ?`, time.Now(), listID); err != nil {
		return err
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertItem(ctx context.Context, db execer, it *domain.Item) error {
	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	data, err := json.Marshal(it.Data)
	if err != nil {
		return fmt.Errorf("marshal item data: %w", err)
	}
	var sortOrder sql.NullInt64
	if n, ok := it.SortKey(); ok {
		sortOrder = sql.NullInt64{Int64: int64(n), Valid: true}
		it.SortOrder = n
	}
	now := time.Now()
	_, err = db.ExecContext(ctx,
		`INSERT INTO list_items (id, list_id, data_json, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		it.ID, it.ListID, string(data), sortOrder, now, now,
	)
	return err
}

// GetItems returns the items of a list. Sort Order is served by the index;
// any other field is sorted after loading. Empty orderBy keeps insertion order.
func (s *ListStore) GetItems(ctx context.Context, listID, orderBy string) ([]domain.Item, error) {
	order := "rowid"
	if orderBy == domain.FieldSortOrder {
		order = "sort_order IS NULL, sort_order, rowid"
	}
	items, err := s.queryItems(ctx, listID,
		`SELECT id, list_id, data_json, sort_order FROM list_items WHERE list_id = ? ORDER BY `+order,
		listID)
	if err != nil {
		return nil, err
	}
	if orderBy != "" && orderBy != domain.FieldSortOrder {
		domain.SortItemsBy(items, orderBy)
	}
	return items, nil
}

// GetItemsFiltered returns the items whose field value contains the given
// text, case-insensitively, in insertion order.
func (s *ListStore) GetItemsFiltered(ctx context.Context, listID, field, contains string) ([]domain.Item, error) {
	return s.queryItems(ctx, listID,
		`SELECT id, list_id, data_json, sort_order FROM list_items
		 WHERE list_id = ? AND instr(lower(COALESCE(json_extract(data_json, ?), '')), lower(?)) > 0
		 ORDER BY rowid`,
		listID, jsonPath(field), contains)
}

func (s *ListStore) queryItems(ctx context.Context, listID, query string, args ...any) ([]domain.Item, error) {
	fields, err := s.fields(ctx, listID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Item
	for rows.Next() {
		var (
			it        domain.Item
			dataJSON  string
			sortOrder sql.NullInt64
		)
		if err := rows.Scan(&it.ID, &it.ListID, &dataJSON, &sortOrder); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(dataJSON), &it.Data); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", it.ID, err)
		}
		it.Fields = fields
		if sortOrder.Valid {
			it.SortOrder = int(sortOrder.Int64)
		}
		result = append(result, it)
	}
	return result, rows.Err()
}

// jsonPath quotes a field name as a SQLite JSON path member.
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}
