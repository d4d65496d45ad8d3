// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// parley-client is the interactive terminal chat client.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/parley-chat/parley/lib/chatui"
	"github.com/parley-chat/parley/lib/relayclient"
	"github.com/parley-chat/parley/lib/version"
	"github.com/parley-chat/parley/lib/wire"
)

const dialTimeout = 10 * time.Second

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
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("parley-client", pflag.ContinueOnError)
	flagSet.StringVar(&host, "host", "127.0.0.1", "relay host")
	flagSet.IntVar(&port, "port", 5000, "relay TCP port")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("parley-client %s\n", version.Info())
		return nil
	}
	if flagSet.NArg() != 1 {
		printUsage(flagSet)
		return fmt.Errorf("expected exactly one handle")
	}
	handle := flagSet.Arg(0)
	if err := wire.ValidateHandle(handle); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	conn, err := relayclient.Dial(ctx, net.JoinHostPort(host, strconv.Itoa(port)), handle)
	if err != nil {
		return err
	}
	defer conn.Close()

	model := chatui.NewModel(conn, handle, conn.Roster(), chatui.Listen(conn))
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `parley-client - terminal chat client

USAGE
    parley-client [flags] HANDLE

Type "user: message" to send, "!check" (or ctrl+r) to fetch held
messages, and "exit" (or ctrl+c) to leave.

FLAGS
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
