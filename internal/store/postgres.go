package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/filesearch/pkg/models"
)

// pgxIface is the subset of *pgxpool.Pool used by Postgres.
type pgxIface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Postgres is a FileStore backed by a pgx connection pool.
type Postgres struct {
	pool pgxIface
}

// NewPostgres creates a new Postgres store connected to the given database URL.
func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("%w: parse database url: %w", ErrConnection, err)
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	s := &Postgres{pool: p}
	if err := s.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return s, nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS all_files (
  id        BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
  file_name TEXT,
  full_path TEXT,
  file_type TEXT,
  file_size BIGINT,
  content   TEXT
);

CREATE TABLE IF NOT EXISTS search_results (
  id          BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
  file_id     BIGINT REFERENCES all_files (id) ON DELETE CASCADE,
  file_name   TEXT,
  full_path   TEXT,
  file_type   TEXT,
  file_size   BIGINT,
  occurrences INT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS search_results_file_id_idx
  ON search_results (file_id);
`

// Migrate creates the all_files and search_results tables if they are absent.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("%w: %w", ErrSchema, err)
	}
	return nil
}

const insertFileSQL = `
INSERT INTO all_files (file_name, full_path, file_type, file_size, content)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`

// InsertFiles inserts files in a single transaction and sets the ID of each
// element to the key assigned by the database.
func (s *Postgres) InsertFiles(ctx context.Context, files []models.FileRecord) (int, error) {
	if len(files) == 0 {
		return 0, nil
	}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		for i := range files {
			f := &files[i]
			if err := tx.QueryRow(ctx, insertFileSQL,
				f.FileName, f.FullPath, f.FileType, f.FileSize, textValue(f.Content),
			).Scan(&f.ID); err != nil {
				return fmt.Errorf("insert %s: %w", f.FullPath, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return len(files), nil
}

// textValue drops NUL bytes, which PostgreSQL text columns reject.
func textValue(s *string) *string {
	if s == nil || !strings.ContainsRune(*s, 0) {
		return s
	}
	v := strings.ReplaceAll(*s, "\x00", "")
	return &v
}

const matchFilesSQL = `
SELECT id, file_name, full_path, file_type, file_size, content
FROM all_files
WHERE file_name LIKE $1 ESCAPE '\'
   OR full_path LIKE $1 ESCAPE '\'
   OR file_type LIKE $1 ESCAPE '\'
   OR content   LIKE $1 ESCAPE '\'
ORDER BY id`

// MatchFiles returns every file whose name, path, type or content contains q.
func (s *Postgres) MatchFiles(ctx context.Context, q string) ([]models.FileRecord, error) {
	rows, err := s.pool.Query(ctx, matchFilesSQL, likePattern(q))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageRead, err)
	}
	defer rows.Close()

	var out []models.FileRecord
	for rows.Next() {
		var f models.FileRecord
		if err := rows.Scan(&f.ID, &f.FileName, &f.FullPath, &f.FileType, &f.FileSize, &f.Content); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageRead, err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageRead, err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns q into a LIKE pattern matching any string containing q.
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

const (
	deleteResultsSQL = `DELETE FROM search_results`
	resetResultsSQL  = `ALTER TABLE search_results ALTER COLUMN id RESTART WITH 1`
	insertResultSQL  = `
INSERT INTO search_results (file_id, file_name, full_path, file_type, file_size, occurrences)
VALUES ($1, $2, $3, $4, $5, $6)`
)

// ReplaceResults deletes all previous results, restarts the result ids at 1
// and inserts results, all in one transaction.
func (s *Postgres) ReplaceResults(ctx context.Context, results []models.SearchResult) (int, error) {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteResultsSQL); err != nil {
			return fmt.Errorf("delete results: %w", err)
		}
		if _, err := tx.Exec(ctx, resetResultsSQL); err != nil {
			return fmt.Errorf("reset result ids: %w", err)
		}
		for _, r := range results {
			if _, err := tx.Exec(ctx, insertResultSQL,
				r.FileID, r.FileName, r.FullPath, r.FileType, r.FileSize, r.Occurrences,
			); err != nil {
				return fmt.Errorf("insert result for file %d: %w", r.FileID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return len(results), nil
}

const listResultsSQL = `
SELECT id, file_id, file_name, full_path, file_type, file_size, occurrences
FROM search_results
ORDER BY id`

// ListResults returns the results of the most recent search.
func (s *Postgres) ListResults(ctx context.Context) ([]models.SearchResult, error) {
	rows, err := s.pool.Query(ctx, listResultsSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageRead, err)
	}
	defer rows.Close()

	var out []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.ID, &r.FileID, &r.FileName, &r.FullPath, &r.FileType, &r.FileSize, &r.Occurrences); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageRead, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageRead, err)
	}
	return out, nil
}

// DeleteFile removes one file record; its search results go with it.
func (s *Postgres) DeleteFile(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM all_files WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%w: delete file %d: %w", ErrStorageWrite, id, err)
	}
	return nil
}

// CountFiles returns the number of rows in all_files.
func (s *Postgres) CountFiles(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM all_files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorageRead, err)
	}
	return n, nil
}

// Ping checks the database connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *Postgres) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	return tx.Commit(ctx)
}
