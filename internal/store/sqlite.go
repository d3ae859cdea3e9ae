package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/seanblong/filesearch/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLite is a FileStore backed by an embedded SQLite database file.
type SQLite struct {
	db   *gorm.DB
	path string
}

// insertBatchSize keeps multi-row inserts below SQLite's bound-variable limit.
const insertBatchSize = 500

// NewSQLite opens (creating if needed) the SQLite database at path.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", ErrConnection)
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %w", ErrConnection, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	// SQLite only supports 1 writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return &SQLite{db: db, path: path}, nil
}

// sqliteDSN enables foreign key enforcement, which SQLite leaves off per
// connection unless asked.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)"
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS all_files (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		file_name TEXT,
		full_path TEXT,
		file_type TEXT,
		file_size INTEGER,
		content   TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS search_results (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id     INTEGER REFERENCES all_files (id) ON DELETE CASCADE,
		file_name   TEXT,
		full_path   TEXT,
		file_type   TEXT,
		file_size   INTEGER,
		occurrences INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS search_results_file_id_idx ON search_results (file_id)`,
}

// Migrate creates the tables and index if they do not exist.
func (s *SQLite) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	for _, stmt := range sqliteSchema {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("%w: %w", ErrSchema, err)
		}
	}
	return nil
}

// InsertFiles stores files in one transaction and fills in their IDs.
func (s *SQLite) InsertFiles(ctx context.Context, files []models.FileRecord) (int, error) {
	if len(files) == 0 {
		return 0, nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&files, insertBatchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return len(files), nil
}

// MatchFiles returns every file whose name, path, type or content contains q.
// It uses instr rather than LIKE because SQLite's LIKE ignores ASCII case.
func (s *SQLite) MatchFiles(ctx context.Context, q string) ([]models.FileRecord, error) {
	var out []models.FileRecord
	err := s.db.WithContext(ctx).
		Where("instr(file_name, ?) > 0 OR instr(full_path, ?) > 0 OR instr(file_type, ?) > 0 OR instr(content, ?) > 0", q, q, q, q).
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageRead, err)
	}
	return out, nil
}

// ReplaceResults deletes all previous results, restarts the result ids at 1
// and inserts results, all in one transaction.
func (s *SQLite) ReplaceResults(ctx context.Context, results []models.SearchResult) (int, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM search_results").Error; err != nil {
			return fmt.Errorf("delete results: %w", err)
		}
		if err := tx.Exec("DELETE FROM sqlite_sequence WHERE name = ?", models.SearchResult{}.TableName()).Error; err != nil {
			return fmt.Errorf("reset result ids: %w", err)
		}
		if len(results) == 0 {
			return nil
		}
		rows := make([]models.SearchResult, len(results))
		copy(rows, results)
		for i := range rows {
			rows[i].ID = 0
		}
		return tx.CreateInBatches(&rows, insertBatchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return len(results), nil
}

// ListResults returns the stored search results in id order.
func (s *SQLite) ListResults(ctx context.Context) ([]models.SearchResult, error) {
	var out []models.SearchResult
	if err := s.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageRead, err)
	}
	return out, nil
}

// DeleteFile removes one file row; its search results go with it.
func (s *SQLite) DeleteFile(ctx context.Context, id int64) error {
	if err := s.db.WithContext(ctx).Delete(&models.FileRecord{}, id).Error; err != nil {
		return fmt.Errorf("%w: delete file %d: %w", ErrStorageWrite, id, err)
	}
	return nil
}

// CountFiles returns the number of indexed file rows.
func (s *SQLite) CountFiles(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.FileRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorageRead, err)
	}
	return n, nil
}

// Ping checks that the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
