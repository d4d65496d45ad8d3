// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// parley-bridge lets browsers join the relay over WebSocket. Each
// browser login opens a relay connection under the same handle.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/parley-chat/parley/bridge"
	"github.com/parley-chat/parley/lib/logging"
	"github.com/parley-chat/parley/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		host           string
		port           int
		relayHost      string
		relayPort      int
		allowedOrigins []string
		verbose        bool
		showVersion    bool
	)

	flagSet := pflag.NewFlagSet("parley-bridge", pflag.ContinueOnError)
	flagSet.StringVar(&host, "host", "0.0.0.0", "address to listen on")
	flagSet.IntVar(&port, "port", 5051, "HTTP port to listen on")
	flagSet.StringVar(&relayHost, "relay-host", "127.0.0.1", "relay host")
	flagSet.IntVar(&relayPort, "relay-port", 5000, "relay TCP port")
	flagSet.StringSliceVar(&allowedOrigins, "allowed-origin", nil, "accept WebSocket upgrades only from this Origin (repeatable; default any)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log per-connection events")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("parley-bridge %s\n", version.Info())
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	logger := logging.New(verbose).With("command", "parley-bridge")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := &bridge.Bridge{
		ListenAddr:     net.JoinHostPort(host, strconv.Itoa(port)),
		RelayAddr:      net.JoinHostPort(relayHost, strconv.Itoa(relayPort)),
		AllowedOrigins: allowedOrigins,
		Logger:         logger,
	}
	if err := b.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")
	b.Stop()
	return nil
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `parley-bridge - WebSocket bridge to the relay

USAGE
    parley-bridge [flags]

ENDPOINTS
    GET /ws             WebSocket; first frame {"type":"login","username":...}
    GET /ws/{username}  WebSocket logged in from the path
    GET /status         bridged and relay connections
    GET /health         liveness

FLAGS
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
