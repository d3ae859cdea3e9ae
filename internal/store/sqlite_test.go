package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/seanblong/filesearch/pkg/models"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "filesearch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedFiles(t *testing.T, s *SQLite) []models.FileRecord {
	t.Helper()
	files := []models.FileRecord{
		{FileName: "notes", FullPath: "/data/notes.txt", FileType: ".txt", FileSize: 17, Content: strPtr("hello world hello")},
		{FileName: "logo", FullPath: "/data/logo.png", FileType: ".png", FileSize: 2048},
		{FileName: "Readme", FullPath: "/data/docs/Readme.md", FileType: ".md", FileSize: 11, Content: strPtr("Hello 100% sure")},
	}
	n, err := s.InsertFiles(context.Background(), files)
	require.NoError(t, err)
	require.Equal(t, len(files), n)
	return files
}

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestSQLiteInsertFilesAssignsIDs(t *testing.T) {
	s := newTestSQLite(t)
	files := seedFiles(t, s)

	seen := map[int64]bool{}
	for _, f := range files {
		require.NotZero(t, f.ID)
		require.False(t, seen[f.ID], "duplicate id %d", f.ID)
		seen[f.ID] = true
	}

	n, err := s.CountFiles(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestSQLiteInsertFilesAccumulatesDuplicates(t *testing.T) {
	s := newTestSQLite(t)
	seedFiles(t, s)
	seedFiles(t, s)

	n, err := s.CountFiles(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(6), n)
}

func TestSQLiteMatchFiles(t *testing.T) {
	s := newTestSQLite(t)
	seedFiles(t, s)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"content match is case sensitive", "hello", []string{"notes"}},
		{"capitalised content", "Hello", []string{"Readme"}},
		{"name match", "logo", []string{"logo"}},
		{"type match", ".md", []string{"Readme"}},
		{"path match", "/docs/", []string{"Readme"}},
		{"percent is literal", "100%", []string{"Readme"}},
		{"underscore is literal", "l_go", nil},
		{"absent", "zebra", nil},
		{"common path prefix", "/data/", []string{"notes", "logo", "Readme"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.MatchFiles(ctx, tt.query)
			require.NoError(t, err)
			var names []string
			for _, f := range got {
				names = append(names, f.FileName)
			}
			require.Equal(t, tt.want, names)
		})
	}
}

func TestSQLiteMatchFilesKeepsNullContent(t *testing.T) {
	s := newTestSQLite(t)
	seedFiles(t, s)

	got, err := s.MatchFiles(context.Background(), "logo")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Nil(t, got[0].Content)
	require.Equal(t, int64(2048), got[0].FileSize)
}

func TestSQLiteReplaceResultsRestartsIDs(t *testing.T) {
	s := newTestSQLite(t)
	files := seedFiles(t, s)
	ctx := context.Background()

	results := []models.SearchResult{
		models.NewSearchResult(files[0], 2),
		models.NewSearchResult(files[2], 0),
	}

	for i := 0; i < 2; i++ {
		n, err := s.ReplaceResults(ctx, results)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		got, err := s.ListResults(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, int64(1), got[0].ID)
		require.Equal(t, int64(2), got[1].ID)
		require.Equal(t, files[0].ID, got[0].FileID)
		require.Equal(t, "notes", got[0].FileName)
		require.Equal(t, 2, got[0].Occurrences)
	}

	n, err := s.ReplaceResults(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, n)
	got, err := s.ListResults(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSQLiteReplaceResultsIsAllOrNothing(t *testing.T) {
	s := newTestSQLite(t)
	files := seedFiles(t, s)
	ctx := context.Background()

	_, err := s.ReplaceResults(ctx, []models.SearchResult{models.NewSearchResult(files[0], 2)})
	require.NoError(t, err)

	// The second row references a file that does not exist.
	_, err = s.ReplaceResults(ctx, []models.SearchResult{
		models.NewSearchResult(files[2], 1),
		{FileID: 9999, FileName: "ghost", FullPath: "/data/ghost.txt", FileType: ".txt"},
	})
	require.ErrorIs(t, err, ErrStorageWrite)

	got, err := s.ListResults(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(1), got[0].ID)
	require.Equal(t, files[0].ID, got[0].FileID)
	require.Equal(t, "notes", got[0].FileName)
	require.Equal(t, 2, got[0].Occurrences)

	// The failed attempt leaves the id sequence untouched as well.
	_, err = s.ReplaceResults(ctx, []models.SearchResult{models.NewSearchResult(files[2], 1)})
	require.NoError(t, err)
	got, err = s.ListResults(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(1), got[0].ID)
	require.Equal(t, files[2].ID, got[0].FileID)
}

func TestSQLiteReplaceResultsDoesNotModifyInput(t *testing.T) {
	s := newTestSQLite(t)
	files := seedFiles(t, s)

	results := []models.SearchResult{models.NewSearchResult(files[0], 2)}
	_, err := s.ReplaceResults(context.Background(), results)
	require.NoError(t, err)
	require.Zero(t, results[0].ID)
}

func TestSQLiteDeleteFileCascadesResults(t *testing.T) {
	s := newTestSQLite(t)
	files := seedFiles(t, s)
	ctx := context.Background()

	_, err := s.ReplaceResults(ctx, []models.SearchResult{
		models.NewSearchResult(files[0], 2),
		models.NewSearchResult(files[2], 1),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteFile(ctx, files[0].ID))

	got, err := s.ListResults(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, files[2].ID, got[0].FileID)

	n, err := s.CountFiles(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestOpenSQLiteScheme(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, sqliteScheme+filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	require.IsType(t, &SQLite{}, st)
	require.NoError(t, st.Ping(ctx))
}

func TestNewSQLiteRequiresPath(t *testing.T) {
	_, err := NewSQLite(context.Background(), "")
	require.ErrorIs(t, err, ErrConnection)
}

func TestSQLiteDSN(t *testing.T) {
	require.Equal(t, "a.db?_pragma=foreign_keys(1)", sqliteDSN("a.db"))
	require.Equal(t, "a.db?mode=rwc&_pragma=foreign_keys(1)", sqliteDSN("a.db?mode=rwc"))
}
