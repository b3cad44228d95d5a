package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pbaille/letterdesk/internal/domain"
)

//go:embed schema.sql
var schema string

var (
	// ErrNotFound is returned when no record has the requested id
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned for records that fail validation
	ErrInvalid = errors.New("invalid")
)

// Store handles database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps :memory: databases and foreign key pragmas coherent
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func columns(sch domain.Schema) []string {
	cols := []string{"id"}
	cols = append(cols, sch.Scalars...)
	for _, rel := range sch.Relations {
		cols = append(cols, domain.RelationKey(rel.Name))
	}
	return cols
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sch domain.Schema, row scanner) (domain.Record, error) {
	rec := domain.NewRecord("")
	scalars := make([]string, len(sch.Scalars))
	relations := make([]sql.NullString, len(sch.Relations))

	dest := []any{&rec.ID}
	for i := range scalars {
		dest = append(dest, &scalars[i])
	}
	for i := range relations {
		dest = append(dest, &relations[i])
	}
	if err := row.Scan(dest...); err != nil {
		return domain.Record{}, err
	}

	for i, name := range sch.Scalars {
		rec.Attrs[name] = scalars[i]
	}
	for i, rel := range sch.Relations {
		if relations[i].Valid {
			rec.Relations[rel.Name] = relations[i].String
		}
	}
	return rec, nil
}

// List returns every record of a kind, oldest first
func (s *Store) List(ctx context.Context, kind domain.Kind) ([]domain.Record, error) {
	sch, err := domain.Lookup(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY created_at, id",
		strings.Join(columns(sch), ", "), sch.Table,
	))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	records := []domain.Record{}
	for rows.Next() {
		rec, err := scanRecord(sch, rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", sch.Singular, err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Get retrieves a record by ID
func (s *Store) Get(ctx context.Context, kind domain.Kind, id string) (domain.Record, error) {
	sch, err := domain.Lookup(kind)
	if err != nil {
		return domain.Record{}, err
	}

	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM %s WHERE id = ?",
		strings.Join(columns(sch), ", "), sch.Table,
	), id)

	rec, err := scanRecord(sch, row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, fmt.Errorf("get %s %s: %w", sch.Singular, id, ErrNotFound)
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("get %s: %w", sch.Singular, err)
	}
	return rec, nil
}

// Create inserts a new record and returns it with its assigned ID
func (s *Store) Create(ctx context.Context, kind domain.Kind, rec domain.Record) (domain.Record, error) {
	sch, err := domain.Lookup(kind)
	if err != nil {
		return domain.Record{}, err
	}

	for attr := range rec.Attrs {
		if !sch.HasScalar(attr) {
			return domain.Record{}, fmt.Errorf("%w: unknown attribute %q", ErrInvalid, attr)
		}
	}
	for _, attr := range sch.Required {
		if strings.TrimSpace(rec.Attr(attr)) == "" {
			return domain.Record{}, fmt.Errorf("%w: %s is required", ErrInvalid, attr)
		}
	}
	for name, target := range rec.Relations {
		rel, ok := sch.Relation(name)
		if !ok {
			return domain.Record{}, fmt.Errorf("%w: unknown relation %q", ErrInvalid, name)
		}
		if target == "" {
			continue
		}
		if err := s.checkTarget(ctx, rel, target); err != nil {
			return domain.Record{}, err
		}
	}

	created := domain.NewRecord(uuid.New().String())
	args := []any{created.ID}
	for _, attr := range sch.Scalars {
		v := strings.TrimSpace(rec.Attr(attr))
		created.Attrs[attr] = v
		args = append(args, v)
	}
	for _, rel := range sch.Relations {
		if v := rec.Relation(rel.Name); v != "" {
			created.Relations[rel.Name] = v
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	args = append(args, time.Now())

	cols := append(columns(sch), "created_at")
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		sch.Table, strings.Join(cols, ", "), placeholders(len(cols)),
	), args...)
	if err != nil {
		return domain.Record{}, fmt.Errorf("insert %s: %w", sch.Singular, err)
	}

	return created, nil
}

// SetAttribute updates one scalar attribute
func (s *Store) SetAttribute(ctx context.Context, kind domain.Kind, id, attr, value string) error {
	sch, err := domain.Lookup(kind)
	if err != nil {
		return err
	}
	if !sch.HasScalar(attr) {
		return fmt.Errorf("%w: unknown attribute %q", ErrInvalid, attr)
	}
	value = strings.TrimSpace(value)
	if sch.IsRequired(attr) && value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, attr)
	}

	return s.update(ctx, sch, id, attr, value)
}

// SetRelation points a relation at another record, or clears it when relID is empty
func (s *Store) SetRelation(ctx context.Context, kind domain.Kind, id, relation, relID string) error {
	sch, err := domain.Lookup(kind)
	if err != nil {
		return err
	}
	rel, ok := sch.Relation(relation)
	if !ok {
		return fmt.Errorf("%w: unknown relation %q", ErrInvalid, relation)
	}

	if relID == "" {
		return s.update(ctx, sch, id, domain.RelationKey(relation), nil)
	}
	if err := s.checkTarget(ctx, rel, relID); err != nil {
		return err
	}
	return s.update(ctx, sch, id, domain.RelationKey(relation), relID)
}

// Delete removes a record by ID
func (s *Store) Delete(ctx context.Context, kind domain.Kind, id string) error {
	sch, err := domain.Lookup(kind)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", sch.Table), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", sch.Singular, err)
	}
	return expectRow(res, sch, id)
}

func (s *Store) update(ctx context.Context, sch domain.Schema, id, column string, value any) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"UPDATE %s SET %s = ? WHERE id = ?", sch.Table, column,
	), value, id)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", sch.Singular, column, err)
	}
	return expectRow(res, sch, id)
}

func (s *Store) checkTarget(ctx context.Context, rel domain.Relation, id string) error {
	if _, err := s.Get(ctx, rel.Target, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: unknown %s %s", ErrInvalid, rel.Name, id)
		}
		return err
	}
	return nil
}

func expectRow(res sql.Result, sch domain.Schema, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", sch.Singular, id, ErrNotFound)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
