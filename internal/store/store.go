package store

import (
	"context"
	"errors"
	"strings"

	"github.com/seanblong/filesearch/pkg/models"
)

// Error kinds returned (wrapped) by every backend. Callers test them with
// errors.Is.
var (
	ErrConnection   = errors.New("storage connection failed")
	ErrSchema       = errors.New("schema setup failed")
	ErrStorageWrite = errors.New("storage write failed")
	ErrStorageRead  = errors.New("storage read failed")
)

// FileStore defines the methods that every backend must implement.
type FileStore interface {
	Migrate(ctx context.Context) error
	InsertFiles(ctx context.Context, files []models.FileRecord) (int, error)
	MatchFiles(ctx context.Context, q string) ([]models.FileRecord, error)
	ReplaceResults(ctx context.Context, results []models.SearchResult) (int, error)
	ListResults(ctx context.Context) ([]models.SearchResult, error)
	DeleteFile(ctx context.Context, id int64) error
	CountFiles(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

const sqliteScheme = "sqlite://"

// Open connects to the database named by dsn. A "sqlite://<path>" DSN opens
// an embedded SQLite file; anything else is handed to pgx as a PostgreSQL
// connection string.
func Open(ctx context.Context, dsn string) (FileStore, error) {
	if path, ok := strings.CutPrefix(dsn, sqliteScheme); ok {
		return NewSQLite(ctx, path)
	}
	return NewPostgres(ctx, dsn)
}
