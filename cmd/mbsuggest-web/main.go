package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mbsuggest/internal/config"
	"mbsuggest/internal/logger"
	"mbsuggest/internal/provider/musicbrainz"
	"mbsuggest/internal/web"
)

func main() {
	var (
		port       int
		configPath string
		library    string
		verbose    bool
	)

	flag.IntVar(&port, "port", 0, "HTTP server port (overrides listen_port)")
	flag.StringVar(&configPath, "config", "", "Config file path")
	flag.StringVar(&library, "library", "", "Music directory (overrides library_dir)")
	flag.BoolVar(&verbose, "verbose", false, "Log debug output to stdout")
	flag.Parse()

	// Load config, falling back to the search paths and defaults
	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if port != 0 {
		cfg.ListenPort = port
	}
	if library != "" {
		cfg.LibraryDir = config.ExpandHome(library)
	}
	if verbose {
		cfg.Verbose = true
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Setup logger with file logging
	l := logger.New(cfg.Verbose)
	logDir := config.GetDefaultLogPath()
	if err := os.MkdirAll(logDir, 0755); err == nil {
		logPath := filepath.Join(logDir, fmt.Sprintf("mbsuggest-web-%d.log", time.Now().Unix()))
		if err := l.SetFileLog(logPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to setup file logging: %v\n", err)
		}
	}
	defer l.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := musicbrainz.New(musicbrainz.Options{
		URL:       cfg.MusicBrainzURL,
		UserAgent: cfg.UserAgent,
		Limit:     cfg.SearchLimit,
		Timeout:   cfg.Timeout(),
	})

	// Create session manager and server
	sessions := web.NewSessionManager()
	sessions.StartCleanup(ctx)
	server := web.NewServer(ctx, sessions, client, cfg, l)

	// HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ListenPort),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		l.Info("Starting web server on port %d serving %s", cfg.ListenPort, cfg.LibraryDir)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Server error: %v", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()

	l.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Error("Server shutdown error: %v", err)
	}

	l.Info("Server stopped")
}
