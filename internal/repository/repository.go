// Package repository stores the users document in PostgreSQL. The whole
// collection is kept as a single JSONB row, so every save is one atomic
// upsert, the same unit of persistence as the file backend.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/atinyakov/go-user-registry/internal/storage"
)

// DocumentName is the key of the users document row.
const DocumentName = "users"

// InitDB opens the database and makes sure the documents table exists.
func InitDB(ctx context.Context, dsn string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	createTable := `
		CREATE TABLE IF NOT EXISTS user_documents (
		name TEXT PRIMARY KEY,
		body JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`

	if _, err := db.ExecContext(ctx, createTable); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Database connected and table ready.")
	return db, nil
}

type DocumentRepository struct {
	db     *sql.DB
	name   string
	logger *zap.Logger
}

func CreateDocumentRepository(db *sql.DB, logger *zap.Logger) *DocumentRepository {
	return &DocumentRepository{
		db:     db,
		name:   DocumentName,
		logger: logger,
	}
}

func (r *DocumentRepository) Load(ctx context.Context) (*storage.Document, error) {
	var body []byte

	err := r.db.QueryRowContext(ctx, "SELECT body FROM user_documents WHERE name = $1;", r.name).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNoDocument
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
			r.logger.Warn("user_documents table is missing", zap.String("code", pgErr.Code))
			return nil, storage.ErrNoDocument
		}

		return nil, fmt.Errorf("select users document: %w", err)
	}

	return storage.DecodeDocument(body)
}

func (r *DocumentRepository) Save(ctx context.Context, doc *storage.Document) error {
	body, err := storage.EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("encode users document: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_documents(name, body) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now();`,
		r.name, body,
	)
	if err != nil {
		r.logger.Error("unable to save users document", zap.Error(err))
		return fmt.Errorf("upsert users document: %w", err)
	}

	return nil
}

func (r *DocumentRepository) PingContext(c context.Context) error {
	return r.db.PingContext(c)
}
