package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/filesearch/pkg/models"
)

// DefaultBatchSize is the number of inserted files between commits.
const DefaultBatchSize = 10000

// ErrFileRead marks a file whose content could not be sampled.
var ErrFileRead = errors.New("file read failed")

// FileInserter persists one batch of file records in a single transaction.
type FileInserter interface {
	InsertFiles(ctx context.Context, files []models.FileRecord) (int, error)
}

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for sampling files
type FileReader interface {
	// ReadHead returns at most n bytes from the start of the file.
	ReadHead(filename string, n int) ([]byte, error)
	Size(filename string) (int64, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadHead(filename string, n int) ([]byte, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	m, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return buf[:m], nil
}

func (d *DefaultFileReader) Size(filename string) (int64, error) {
	fi, err := os.Stat(filename)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Indexer writes one FileRecord per regular file under Root.
type Indexer struct {
	Store      FileInserter
	Root       string
	BatchSize  int
	Walker     FileSystemWalker
	FileReader FileReader
}

// New creates a new Indexer instance.
func New(s FileInserter, root string) *Indexer {
	return NewWithDependencies(s, root, &DefaultFileSystemWalker{}, &DefaultFileReader{})
}

// NewWithDependencies creates a new Indexer instance with custom dependencies for testing
func NewWithDependencies(s FileInserter, root string, walker FileSystemWalker, fileReader FileReader) *Indexer {
	return &Indexer{
		Store:      s,
		Root:       root,
		BatchSize:  DefaultBatchSize,
		Walker:     walker,
		FileReader: fileReader,
	}
}

// Run walks the tree and returns the number of files inserted. A storage
// error stops the walk; files already committed stay counted.
func (ix *Indexer) Run(ctx context.Context) (int, error) {
	root, err := filepath.Abs(ix.Root)
	if err != nil {
		return 0, fmt.Errorf("resolve root %s: %w", ix.Root, err)
	}
	batchSize := ix.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	log.Info().Str("root", root).Int("batch_size", batchSize).Msg("starting indexing")

	var (
		inserted int
		abortErr error
		batch    = make([]models.FileRecord, 0, min(batchSize, 1024))
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := ix.Store.InsertFiles(ctx, batch)
		inserted += n
		batch = batch[:0]
		if err != nil {
			return err
		}
		log.Debug().Int("inserted", inserted).Msg("batch committed")
		return nil
	}

	walkErr := ix.Walker.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			if !de.IsRegular() {
				log.Debug().Str("path", path).Msg("skipping non-regular file")
				return nil
			}
			if err := ctx.Err(); err != nil {
				abortErr = err
				return err
			}

			batch = append(batch, ix.record(path))
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					abortErr = err
					return err
				}
			}
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			if abortErr != nil {
				return godirwalk.Halt
			}
			log.Warn().Err(err).Str("path", path).Msg("skipping unreadable entry")
			return godirwalk.SkipNode
		},
	})
	if walkErr != nil {
		return inserted, fmt.Errorf("index %s: %w", root, walkErr)
	}

	if err := flush(); err != nil {
		return inserted, fmt.Errorf("index %s: %w", root, err)
	}

	log.Info().Str("root", root).Int("files", inserted).Msg("indexing complete")
	return inserted, nil
}

// record builds the row for one file. Stat and read failures are logged and
// leave the content null.
func (ix *Indexer) record(path string) models.FileRecord {
	name, ext := splitName(filepath.Base(path))
	rec := models.FileRecord{FileName: name, FullPath: path, FileType: ext}

	size, err := ix.FileReader.Size(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to stat file")
		return rec
	}
	rec.FileSize = size

	content, err := ix.sample(path, ext)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to read file content")
		return rec
	}
	rec.Content = content
	return rec
}

func (ix *Indexer) sample(path, ext string) (*string, error) {
	if isImage(ext) {
		return nil, nil
	}
	limit, maxChars := SampleBytes, 0
	if isHTML(ext) {
		limit, maxChars = htmlSampleBytes, HTMLMaxChars
	}

	b, err := ix.FileReader.ReadHead(path, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileRead, err)
	}
	s := decode(b)
	if maxChars > 0 {
		s = truncateChars(s, maxChars)
	}
	return &s, nil
}
