// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// parley-relay accepts chat clients over TCP, routes messages between
// online handles, and hands messages for absent handles to the holding
// store service.
package main

import (
	"context"
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
	"github.com/parley-chat/parley/lib/logging"
	"github.com/parley-chat/parley/lib/version"
	"github.com/parley-chat/parley/relay"
)

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
		apiBase      string
		storeTimeout time.Duration
		verbose      bool
		showVersion  bool
	)

	flagSet := pflag.NewFlagSet("parley-relay", pflag.ContinueOnError)
	flagSet.StringVar(&host, "host", "0.0.0.0", "address to listen on")
	flagSet.IntVar(&port, "port", 5000, "TCP port to listen on")
	flagSet.StringVar(&apiBase, "api-base", "http://127.0.0.1:8000", "holding store service URL")
	flagSet.DurationVar(&storeTimeout, "store-timeout", 5*time.Second, "timeout for each holding store request")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log per-connection and per-message events")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("parley-relay %s\n", version.Info())
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	logger := logging.New(verbose).With("command", "parley-relay")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &relay.Server{
		ListenAddr: net.JoinHostPort(host, strconv.Itoa(port)),
		Store:      holdstore.NewClient(apiBase, &http.Client{Timeout: storeTimeout}),
		Logger:     logger,
	}
	if err := server.Start(ctx); err != nil {
		return err
	}
	logger.Info("using holding store", "api_base", apiBase)

	<-ctx.Done()
	logger.Info("shutting down")
	server.Stop()
	return nil
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `parley-relay - presence-aware message relay

USAGE
    parley-relay [flags]

Clients connect over TCP, answer the "Enter your username:" prompt, and
then send lines of the form "DESTINATION: BODY". Messages for handles
that are not online are stored through the holding store service and
delivered on the destination's next login or "!check".

FLAGS
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
