// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// parley-weather runs the temperature notification bot.
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

	"github.com/parley-chat/parley/bot"
	"github.com/parley-chat/parley/bot/weather"
	"github.com/parley-chat/parley/holdstore"
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
		host        string
		port        int
		apiBase     string
		handle      string
		interval    time.Duration
		verbose     bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("parley-weather", pflag.ContinueOnError)
	flagSet.StringVar(&host, "host", "127.0.0.1", "relay host")
	flagSet.IntVar(&port, "port", 5000, "relay TCP port")
	flagSet.StringVar(&apiBase, "api-base", "http://127.0.0.1:8000", "holding store service URL")
	flagSet.StringVar(&handle, "handle", weather.DefaultHandle, "handle to log in as")
	flagSet.DurationVar(&interval, "interval", weather.DefaultBroadcastInterval, "time between temperature updates to subscribers")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log every command and reply")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("parley-weather %s\n", version.Info())
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	if interval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}

	logger := logging.New(verbose).With("command", "parley-weather")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := bot.Dial(ctx, bot.Config{
		RelayAddr: net.JoinHostPort(host, strconv.Itoa(port)),
		Handle:    handle,
		Store:     holdstore.NewClient(apiBase, &http.Client{Timeout: 10 * time.Second}),
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	agent := weather.New(session, weather.Options{BroadcastInterval: interval})
	logger.Info("weather bot running", "handle", handle, "interval", interval)
	if err := agent.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `parley-weather - temperature notification bot

USAGE
    parley-weather [flags]

Send the bot one of these commands as a chat message:
    subscribe     receive periodic temperature updates
    unsubscribe   stop receiving updates
    range         get the last few readings
    reboot        restart the sensor

Replies are held in the holding store; fetch them with "!check".

FLAGS
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
