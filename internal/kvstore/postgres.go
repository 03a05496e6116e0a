package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps client records in a shared database, scoped by client ID so several
// kiosks can share one server without seeing each other's queues.
type Postgres struct {
	pool     *pgxpool.Pool
	clientID string
}

// NewPostgres wraps an existing pool. Call InitSchema before first use.
func NewPostgres(pool *pgxpool.Pool, clientID string) *Postgres {
	return &Postgres{pool: pool, clientID: clientID}
}

// OpenPostgres connects to url and ensures the schema exists.
func OpenPostgres(ctx context.Context, url, clientID string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := NewPostgres(pool, clientID)
	if err := store.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// InitSchema creates the client_state table when missing.
func (p *Postgres) InitSchema(ctx context.Context) error {
	const stmt = `CREATE TABLE IF NOT EXISTS client_state (
		client_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (client_id, key)
	)`
	if _, err := p.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Get implements Store.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, `SELECT value FROM client_state WHERE client_id = $1 AND key = $2`, p.clientID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Put implements Store.
func (p *Postgres) Put(ctx context.Context, key string, value []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO client_state (client_id, key, value, updated_at) VALUES ($1, $2, $3, NOW())
         ON CONFLICT (client_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		p.clientID, key, value,
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
