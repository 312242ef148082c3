package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for goose
	"github.com/pressly/goose/v3"

	"github.com/oralab/exo/pkg/core"
	"github.com/oralab/exo/pkg/core/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Postgres stores session records as JSONB rows.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, runs pending migrations and returns the store.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := migrate(dsn); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Save inserts the record, assigning an id when missing.
func (p *Postgres) Save(ctx context.Context, record types.SessionRecord) (string, error) {
	if record.SessionID == "" {
		record.SessionID = uuid.NewString()
	}
	scenario, err := json.Marshal(record.Scenario)
	if err != nil {
		return "", fmt.Errorf("encode scenario: %w", err)
	}
	summary, err := json.Marshal(record.Summary)
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO session_results (id, section_key, scenario, summary, created_at)
		 VALUES ($1, $2, $3, $4, now())`,
		record.SessionID, string(record.Scenario.SectionKey), scenario, summary)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return record.SessionID, nil
}

// Get returns one record by id.
func (p *Postgres) Get(ctx context.Context, id string) (*types.SessionRecord, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, scenario, summary, created_at FROM session_results WHERE id = $1`, id)
	var (
		record    types.SessionRecord
		scenario  []byte
		summary   []byte
		createdAt time.Time
	)
	if err := row.Scan(&record.SessionID, &scenario, &summary, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.NewNotFoundError("session " + id + " not found")
		}
		return nil, fmt.Errorf("query session: %w", err)
	}
	if err := json.Unmarshal(scenario, &record.Scenario); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := json.Unmarshal(summary, &record.Summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	record.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	return &record, nil
}

// History lists the most recent records, newest first.
func (p *Postgres) History(ctx context.Context, limit int) ([]types.SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, scenario, summary, created_at FROM session_results
		 ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []types.SessionRecord
	for rows.Next() {
		var (
			record    types.SessionRecord
			scenario  []byte
			summary   []byte
			createdAt time.Time
		)
		if err := rows.Scan(&record.SessionID, &scenario, &summary, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal(scenario, &record.Scenario); err != nil {
			return nil, fmt.Errorf("decode scenario: %w", err)
		}
		if err := json.Unmarshal(summary, &record.Summary); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		record.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		out = append(out, record)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (p *Postgres) Close() { p.pool.Close() }

var _ Store = (*Postgres)(nil)
var _ Store = (*Memory)(nil)
