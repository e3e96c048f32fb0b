package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"routeopt/internal/model"
	"routeopt/internal/opt"
)

//go:embed schema.sql
var schema string

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &Postgres{db: db}, nil
}

// Migrate creates the schema if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

const optColumns = `id::text, status, request, solution, error, created_at, updated_at`

func (p *Postgres) CreateOptimization(ctx context.Context, req model.OptimizeRequest, status model.Status) (model.Optimization, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return model.Optimization{}, fmt.Errorf("new id: %w", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return model.Optimization{}, fmt.Errorf("marshal request: %w", err)
	}
	row := p.db.QueryRowContext(ctx,
		`INSERT INTO optimizations (id, status, request) VALUES ($1, $2, $3) RETURNING `+optColumns,
		id, string(status), body)
	return scanOptimization(row)
}

func (p *Postgres) GetOptimization(ctx context.Context, id string) (model.Optimization, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Optimization{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `SELECT `+optColumns+` FROM optimizations WHERE id=$1`, id)
	return scanOptimization(row)
}

func (p *Postgres) ListOptimizations(ctx context.Context, status model.Status, cursor string, limit int) ([]model.Optimization, string, error) {
	limit = clampLimit(limit)
	q := `SELECT ` + optColumns + ` FROM optimizations WHERE ($1 = '' OR status = $1) AND ($2 = '' OR id::text > $2) ORDER BY id LIMIT $3`
	rows, err := p.db.QueryContext(ctx, q, string(status), cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Optimization{}
	for rows.Next() {
		o, err := scanOptimization(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	var next string
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (p *Postgres) UpdateOptimization(ctx context.Context, id string, status model.Status, sol *opt.Solution, errMsg string) (model.Optimization, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Optimization{}, ErrNotFound
	}
	var solJSON []byte
	if sol != nil {
		b, err := json.Marshal(sol)
		if err != nil {
			return model.Optimization{}, fmt.Errorf("marshal solution: %w", err)
		}
		solJSON = b
	}
	row := p.db.QueryRowContext(ctx,
		`UPDATE optimizations SET status=$2, solution=COALESCE($3, solution), error=$4, updated_at=now() WHERE id=$1 RETURNING `+optColumns,
		id, string(status), nullJSON(solJSON), errMsg)
	return scanOptimization(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOptimization(s scanner) (model.Optimization, error) {
	var (
		o        model.Optimization
		status   string
		request  []byte
		solution []byte
	)
	err := s.Scan(&o.ID, &status, &request, &solution, &o.Error, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Optimization{}, ErrNotFound
	}
	if err != nil {
		return model.Optimization{}, err
	}
	o.Status = model.Status(status)
	if err := json.Unmarshal(request, &o.Request); err != nil {
		return model.Optimization{}, fmt.Errorf("decode request %s: %w", o.ID, err)
	}
	if len(solution) > 0 {
		o.Solution = &opt.Solution{}
		if err := json.Unmarshal(solution, o.Solution); err != nil {
			return model.Optimization{}, fmt.Errorf("decode solution %s: %w", o.ID, err)
		}
	}
	return o, nil
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ Store = (*Postgres)(nil)
