package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/keybind-service/internal/storage"
	"go.uber.org/zap"
)

const schema = `
    CREATE TABLE IF NOT EXISTS documents (
        name       TEXT PRIMARY KEY,
        body       JSONB NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )
`

type DocumentStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewDocumentStore(db *pgxpool.Pool, logger *zap.Logger) *DocumentStore {
	return &DocumentStore{
		db:     db,
		logger: logger.Named("DocumentStore"),
	}
}

var _ storage.DocumentStore = (*DocumentStore)(nil)

// Migrate creates the documents table when it is missing.
func (r *DocumentStore) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			r.logger.Error("Failed to create documents table",
				zap.String("code", pgErr.Code),
				zap.String("message", pgErr.Message),
			)
		}
		return fmt.Errorf("database error on migrate: %w", err)
	}
	return nil
}

func (r *DocumentStore) Load(ctx context.Context, name string, dst any) (bool, error) {
	query := `SELECT body FROM documents WHERE name = $1`

	var body []byte
	err := r.db.QueryRow(ctx, query, name).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		r.logger.Error("Failed to load document", zap.String("document", name), zap.Error(err))
		return false, fmt.Errorf("database error on load document %s: %w", name, err)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return true, fmt.Errorf("failed to decode document %s: %w", name, err)
	}
	return true, nil
}

func (r *DocumentStore) Save(ctx context.Context, name string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", name, err)
	}

	query := `
        INSERT INTO documents (name, body, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (name) DO UPDATE SET
            body = EXCLUDED.body,
            updated_at = EXCLUDED.updated_at
    `
	if _, err := r.db.Exec(ctx, query, name, body); err != nil {
		r.logger.Error("Failed to save document", zap.String("document", name), zap.Error(err))
		return fmt.Errorf("database error on save document %s: %w", name, err)
	}
	return nil
}

func (r *DocumentStore) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
