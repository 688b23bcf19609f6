package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/campusops/testbench/internal/domain"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// RequestRepository implements domain.RequestRepository using SQLite.
// The resource and cleanup payloads are stored as JSON columns so the
// ordered sequences round-trip exactly as written.
type RequestRepository struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*RequestRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Single writer: concurrent read-modify-write updates serialize here
	// instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns
// a ready repository. Use this when the *sql.DB has been pre-configured (e.g.,
// with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*RequestRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &RequestRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *RequestRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (r *RequestRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = time.RFC3339Nano

func (r *RequestRepository) Create(ctx context.Context, req domain.Request) error {
	resources, err := json.Marshal(req.CreatedResources)
	if err != nil {
		return fmt.Errorf("encoding created resources: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO requests (id, scenario, requester, environment, start_date, end_date,
		                       notes, status, created_at, created_resources, cleaned, cleaned_at, cleanup_results)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.Scenario, req.Requester, req.Environment, req.StartDate, req.EndDate,
		req.Notes, string(req.Status), req.CreatedAt.Format(timeFormat),
		string(resources), boolToInt(req.Cleaned), nullableTime(req.CleanedAt), nullableJSON(req.CleanupResults),
	)
	if err != nil {
		return fmt.Errorf("inserting request: %w", err)
	}
	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (domain.Request, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` FROM requests WHERE id = ?`, id)

	req, err := scanRequest(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Request{}, domain.ErrRequestNotFound
		}
		return domain.Request{}, fmt.Errorf("scanning request: %w", err)
	}
	return req, nil
}

func (r *RequestRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Request, error) {
	query := selectColumns + ` FROM requests`
	var args []any
	var where []string

	if filter.Status != nil {
		where = append(where, `status = ?`)
		args = append(args, string(*filter.Status))
	}
	if filter.Environment != "" {
		where = append(where, `environment = ?`)
		args = append(args, filter.Environment)
	}

	for i, cond := range where {
		if i == 0 {
			query += ` WHERE ` + cond
		} else {
			query += ` AND ` + cond
		}
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	var requests []domain.Request
	for rows.Next() {
		req, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning request row: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

func (r *RequestRepository) Update(ctx context.Context, req domain.Request) error {
	resources, err := json.Marshal(req.CreatedResources)
	if err != nil {
		return fmt.Errorf("encoding created resources: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE requests SET status = ?, created_resources = ?, cleaned = ?, cleaned_at = ?, cleanup_results = ?
		 WHERE id = ?`,
		string(req.Status), string(resources), boolToInt(req.Cleaned),
		nullableTime(req.CleanedAt), nullableJSON(req.CleanupResults), req.ID,
	)
	if err != nil {
		return fmt.Errorf("updating request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrRequestNotFound
	}

	return nil
}

const selectColumns = `SELECT id, scenario, requester, environment, start_date, end_date,
	notes, status, created_at, created_resources, cleaned, cleaned_at, cleanup_results`

// scanRequest decodes one row into a domain.Request. It accepts the Scan
// function of either *sql.Row or *sql.Rows.
func scanRequest(scan func(...any) error) (domain.Request, error) {
	var req domain.Request
	var status, createdAt, resources string
	var cleaned int
	var cleanedAt, cleanupResults sql.NullString

	err := scan(&req.ID, &req.Scenario, &req.Requester, &req.Environment,
		&req.StartDate, &req.EndDate, &req.Notes, &status, &createdAt,
		&resources, &cleaned, &cleanedAt, &cleanupResults)
	if err != nil {
		return domain.Request{}, err
	}

	req.Status = domain.Status(status)
	req.Cleaned = cleaned != 0
	req.CreatedAt, _ = time.Parse(timeFormat, createdAt)

	if err := json.Unmarshal([]byte(resources), &req.CreatedResources); err != nil {
		return domain.Request{}, fmt.Errorf("decoding created resources: %w", err)
	}

	if cleanedAt.Valid {
		t, err := time.Parse(timeFormat, cleanedAt.String)
		if err != nil {
			return domain.Request{}, fmt.Errorf("parsing cleaned_at: %w", err)
		}
		req.CleanedAt = &t
	}

	if cleanupResults.Valid {
		var cr domain.CleanupResult
		if err := json.Unmarshal([]byte(cleanupResults.String), &cr); err != nil {
			return domain.Request{}, fmt.Errorf("decoding cleanup results: %w", err)
		}
		req.CleanupResults = &cr
	}

	return req, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timeFormat)
}

func nullableJSON(v *domain.CleanupResult) any {
	if v == nil {
		return nil
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(buf)
}
