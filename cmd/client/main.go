package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bp-tracker/internal/client"
	"bp-tracker/internal/client/cli"
	"bp-tracker/internal/client/session"
	"bp-tracker/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "bp-session.db"
	}
	return filepath.Join(home, ".bp-tracker", "session.db")
}

func run() error {
	dbPath := flag.String("db", defaultSessionPath(), "session database path")
	timeout := flag.Duration("timeout", 15*time.Second, "per-request timeout")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, err := session.OpenSQLite(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer sessions.Close()

	log := logging.NewText(os.Stderr, *logLevel)
	c := client.New(sessions, client.WithLogger(log), client.WithHTTPDoer(&http.Client{Timeout: *timeout}))

	app := &cli.App{
		Client: c,
		In:     bufio.NewReader(os.Stdin),
		Out:    os.Stdout,
		Err:    os.Stderr,
	}
	return app.Run(ctx, flag.Args())
}
