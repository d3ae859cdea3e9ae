package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/filesearch/internal/config"
	"github.com/seanblong/filesearch/internal/indexer"
	"github.com/seanblong/filesearch/internal/logging"
	"github.com/seanblong/filesearch/internal/search"
	"github.com/seanblong/filesearch/internal/store"
	"github.com/spf13/pflag"
)

const promptText = "Enter the search string: "

func main() {
	fs := pflag.NewFlagSet("filesearch", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	logger, closer, err := logging.New(os.Stdout, logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSize:    cfg.LogRotation.MaxSize,
		MaxBackups: cfg.LogRotation.MaxBackups,
		MaxAge:     cfg.LogRotation.MaxAge,
		Compress:   cfg.LogRotation.Compress,
	})
	if err != nil {
		stdlog.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, os.Stdin, os.Stdout)
	stop()
	_ = closer.Close()
	os.Exit(code)
}

// run indexes cfg.RootDir and runs one search, returning the process exit
// status. Indexing failures are logged and the search still runs.
func run(ctx context.Context, cfg config.Specification, in io.Reader, out io.Writer) int {
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		log.Error().Err(err).Msg("could not open database")
		return 1
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("closing database failed")
		}
	}()

	if err := st.Migrate(ctx); err != nil {
		log.Error().Err(err).Msg("could not create tables")
		return 1
	}

	status := 0

	ix := indexer.New(st, cfg.RootDir)
	ix.BatchSize = cfg.BatchSize
	if _, err := ix.Run(ctx); err != nil {
		log.Error().Err(err).Str("root", cfg.RootDir).Msg("indexing failed")
		status = 1
	}

	q := cfg.Query
	if q == "" {
		q, err = prompt(in, out, promptText)
		if err != nil {
			log.Error().Err(err).Msg("could not read search string")
			return 1
		}
	}

	if _, err := search.NewService(st).Query(ctx, q); err != nil {
		return 1
	}

	results, err := st.ListResults(ctx)
	if err != nil {
		log.Error().Err(err).Msg("could not list search results")
		return 1
	}
	for _, r := range results {
		log.Info().
			Int64("id", r.ID).
			Int64("file_id", r.FileID).
			Str("file_name", r.FileName).
			Str("full_path", r.FullPath).
			Str("file_type", r.FileType).
			Int64("file_size", r.FileSize).
			Int("occurrences", r.Occurrences).
			Msg("match")
	}
	return status
}

// prompt writes msg to out and reads one line from in, without its line
// terminator. Other whitespace is kept.
func prompt(in io.Reader, out io.Writer, msg string) (string, error) {
	if _, err := fmt.Fprint(out, msg); err != nil {
		return "", err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
