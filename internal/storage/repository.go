// Package storage provides the SQLite-backed transaction and checkpoint
// store. It implements both ledger ports (ledger.TransactionReader and
// ledger.CheckpointStore) plus the transaction CRUD the HTTP layer needs.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"sitebook/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Ping reports whether the database is reachable. Used by readiness
// checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateProject registers a project and returns it with its assigned ID.
func (r *SQLiteRepository) CreateProject(ctx context.Context, p core.Project) (core.Project, error) {
	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO projects (name) VALUES (?)`, p.Name)
	if err != nil {
		return core.Project{}, core.NewStoreError("create project", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Project{}, core.NewStoreError("create project", err)
	}
	p.ID = id

	slog.InfoContext(ctx, "Project created", "id", p.ID, "name", p.Name)
	return p, nil
}

// GetProject fetches one project by ID.
func (r *SQLiteRepository) GetProject(ctx context.Context, id int64) (core.Project, error) {
	var p core.Project
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name FROM projects WHERE id = ?`, id).Scan(&p.ID, &p.Name)
	if err == sql.ErrNoRows {
		return core.Project{}, core.ErrProjectNotFound
	}
	if err != nil {
		return core.Project{}, core.NewStoreError("get project", err)
	}
	return p, nil
}

// ListProjects returns all projects ordered by name.
func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]core.Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM projects ORDER BY name`)
	if err != nil {
		return nil, core.NewStoreError("list projects", err)
	}
	defer rows.Close()

	var projects []core.Project
	for rows.Next() {
		var p core.Project
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, core.NewStoreError("list projects", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStoreError("list projects", err)
	}
	return projects, nil
}

// StaleCheckpointDays returns the dates of stale checkpoints for a project,
// oldest first. The invalidation worker re-commits these.
func (r *SQLiteRepository) StaleCheckpointDays(ctx context.Context, projectID int64) ([]core.Day, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT summary_date FROM daily_summaries
		 WHERE project_id = ? AND stale = 1 ORDER BY summary_date`, projectID)
	if err != nil {
		return nil, core.NewStoreError("list stale checkpoints", err)
	}
	defer rows.Close()

	var days []core.Day
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, core.NewStoreError("list stale checkpoints", err)
		}
		d, err := core.ParseDay(s)
		if err != nil {
			return nil, fmt.Errorf("%w: bad summary_date %q", core.ErrDataIntegrity, s)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStoreError("list stale checkpoints", err)
	}
	return days, nil
}
