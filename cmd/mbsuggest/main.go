package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-runewidth"

	"mbsuggest/internal/config"
	"mbsuggest/internal/logger"
	"mbsuggest/internal/progress"
	"mbsuggest/internal/provider/musicbrainz"
	"mbsuggest/internal/suggest"
	"mbsuggest/internal/track"
	"mbsuggest/internal/tui"
	"mbsuggest/pkg/utils"
)

// listWidth is the line width used by --list output.
const listWidth = 120

func main() {
	opts, err := parseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
	cfg := opts.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(cfg.Verbose)
	defer log.Close()

	if !cfg.Verbose {
		logDir := config.GetDefaultLogPath()
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Failed to create log directory: %v\n", err)
		} else {
			logFile := filepath.Join(logDir, fmt.Sprintf("mbsuggest_%s.log", time.Now().Format("2006-01-02_15-04-05")))
			if err := log.SetFileLog(logFile); err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] Failed to setup file logging: %v\n", err)
			} else {
				log.Debug("Logging to file: %s", logFile)
			}
		}
	}

	if cfg.Verbose && opts.configPath != "" {
		log.Debug("Loaded configuration from: %s", opts.configPath)
	}

	if err := cfg.Validate(); err != nil {
		log.Error("Configuration error: %v", err)
		os.Exit(1)
	}

	if err := run(ctx, opts, log); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, log *logger.Logger) error {
	cfg := opts.cfg

	info, err := os.Stat(opts.trackPath)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", opts.trackPath, err)
	}
	if info.IsDir() || !utils.IsAudioFile(opts.trackPath) {
		return fmt.Errorf("not an audio file: %s", opts.trackPath)
	}

	client := musicbrainz.New(musicbrainz.Options{
		URL:       cfg.MusicBrainzURL,
		UserAgent: cfg.UserAgent,
		Limit:     cfg.SearchLimit,
		Timeout:   cfg.Timeout(),
	})

	host := suggest.HostFunc(func() (track.Track, error) {
		f, err := track.Open(opts.trackPath)
		if err != nil {
			return nil, err
		}
		return f, nil
	})

	session := suggest.New(client, host, log).NewSession()

	if opts.list || opts.pick > 0 {
		return runBatch(ctx, session, opts, log)
	}

	saved, err := tui.Run(ctx, session, filepath.Base(opts.trackPath), log)
	if err != nil {
		return err
	}
	if saved {
		log.Info("Tags written to %s", opts.trackPath)
	} else {
		log.Debug("Dialog closed without saving")
	}
	return nil
}

// runBatch fetches suggestions without the dialog, prints them and
// optionally saves one.
func runBatch(ctx context.Context, session *suggest.Session, opts options, log *logger.Logger) error {
	fetch, err := session.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start search: %w", err)
	}
	defer session.Close()

	log.Debug("Query: %s", fetch.Query)

	var ind *progress.Indicator
	if !opts.cfg.Verbose {
		ind = progress.New(os.Stderr, "Searching MusicBrainz...")
		ind.Start()
	}
	res := fetch.Run()
	if ind != nil {
		ind.Stop()
	}

	session.Deliver(res)
	snap := session.Snapshot()

	if snap.State == suggest.StateError {
		log.Debug("Search failed: %v", snap.Err)
		return errors.New(suggest.UserMessage(snap.Err))
	}

	if len(snap.Rows) == 0 {
		log.Info("No suggestions found for %q", snap.Query)
		return nil
	}

	printRows(os.Stdout, snap)

	if opts.pick == 0 {
		return nil
	}

	if err := session.Select(opts.pick - 1); err != nil {
		return fmt.Errorf("cannot pick suggestion %d of %d: %w", opts.pick, len(snap.Rows), err)
	}
	if err := session.Save(); err != nil {
		return fmt.Errorf("failed to save suggestion: %w", err)
	}

	log.Info("Tags written to %s", opts.trackPath)
	return nil
}

// printRows writes the suggestions as a numbered table sized to listWidth.
func printRows(w io.Writer, snap suggest.Snapshot) {
	const numWidth = 4
	widths := suggest.ColumnWidths(listWidth - numWidth - 2*len(suggest.Columns))

	cells := make([]string, len(suggest.Columns))
	for i, c := range suggest.Columns {
		cells[i] = fit(c.Title, widths[i])
	}
	fmt.Fprintf(w, "%s  %s\n", runewidth.FillRight("#", numWidth), strings.Join(cells, "  "))

	for n, row := range snap.Rows {
		for i, field := range row.Fields() {
			cells[i] = fit(field, widths[i])
		}
		num := runewidth.FillRight(fmt.Sprintf("%d", n+1), numWidth)
		fmt.Fprintf(w, "%s  %s\n", num, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func fit(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}
