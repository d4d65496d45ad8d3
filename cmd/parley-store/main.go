// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// parley-store serves the holding store HTTP API backed by SQLite.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/parley-chat/parley/holdstore"
	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/logging"
	"github.com/parley-chat/parley/lib/version"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		host         string
		port         int
		databasePath string
		poolSize     int
		verbose      bool
		showVersion  bool
	)

	flagSet := pflag.NewFlagSet("parley-store", pflag.ContinueOnError)
	flagSet.StringVar(&host, "host", "127.0.0.1", "address to listen on")
	flagSet.IntVar(&port, "port", 8000, "HTTP port to listen on")
	flagSet.StringVar(&databasePath, "db", "parley.db", "SQLite database file")
	flagSet.IntVar(&poolSize, "pool-size", 0, "SQLite connection pool size (0 selects the default)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log every request")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("parley-store %s\n", version.Info())
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	logger := logging.New(verbose).With("command", "parley-store")

	store, err := holdstore.OpenSQLite(holdstore.SQLiteConfig{
		Path:     databasePath,
		PoolSize: poolSize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}
	server := &http.Server{
		Handler:           holdstore.NewHandler(store, clock.Real(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(listener) }()
	logger.Info("holding store started", "listen_addr", listener.Addr().String(), "db", databasePath)

	select {
	case err := <-serveErr:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `parley-store - holding store for undelivered messages

USAGE
    parley-store [flags]

ENDPOINTS
    POST /messages/                hold a message for its destination
    GET  /messages/{handle}        return and clear a handle's messages
    GET  /health                   liveness

FLAGS
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
