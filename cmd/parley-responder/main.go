// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// parley-responder runs the language-model chat bot.
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

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/option"
	"github.com/spf13/pflag"

	"github.com/parley-chat/parley/bot"
	"github.com/parley-chat/parley/bot/responder"
	"github.com/parley-chat/parley/holdstore"
	"github.com/parley-chat/parley/lib/llm"
	"github.com/parley-chat/parley/lib/logging"
	"github.com/parley-chat/parley/lib/version"
)

const providerRetries = 2

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		host              string
		port              int
		apiBase           string
		handle            string
		providerName      string
		model             string
		baseURL           string
		personalitiesPath string
		personality       string
		rateLimit         time.Duration
		maxTokens         int64
		verbose           bool
		showVersion       bool
	)

	flagSet := pflag.NewFlagSet("parley-responder", pflag.ContinueOnError)
	flagSet.StringVar(&host, "host", "127.0.0.1", "relay host")
	flagSet.IntVar(&port, "port", 5000, "relay TCP port")
	flagSet.StringVar(&apiBase, "api-base", "http://127.0.0.1:8000", "holding store service URL")
	flagSet.StringVar(&handle, "handle", responder.DefaultHandle, "handle to log in as")
	flagSet.StringVar(&providerName, "provider", "openai", "model provider: openai or anthropic")
	flagSet.StringVar(&model, "model", "", "model name (default depends on --provider)")
	flagSet.StringVar(&baseURL, "llm-base-url", "", "override the provider API URL (OpenAI-compatible servers)")
	flagSet.StringVar(&personalitiesPath, "personalities", "", "YAML personality table (default: built-in)")
	flagSet.StringVar(&personality, "personality", responder.DefaultPersonality, "starting personality")
	flagSet.DurationVar(&rateLimit, "rate-limit", responder.DefaultRateLimit, "minimum time between model calls")
	flagSet.Int64Var(&maxTokens, "max-tokens", llm.DefaultMaxTokens, "maximum tokens per reply")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log every message and model call")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("parley-responder %s\n", version.Info())
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	logger := logging.New(verbose).With("command", "parley-responder")

	provider, err := newProvider(providerName, baseURL)
	if err != nil {
		return err
	}

	personalities := responder.DefaultPersonalities()
	if personalitiesPath != "" {
		personalities, err = responder.LoadPersonalities(personalitiesPath)
		if err != nil {
			return err
		}
	}

	r, err := responder.New(provider, responder.Options{
		Model:         model,
		Personalities: personalities,
		Personality:   personality,
		RateLimit:     rateLimit,
		MaxTokens:     maxTokens,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

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

	if err := r.Run(ctx, session); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// newProvider builds the model provider. API keys come from the
// provider's usual environment variable.
func newProvider(name, baseURL string) (llm.Provider, error) {
	switch name {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" && baseURL == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		options := []openaioption.RequestOption{
			openaioption.WithAPIKey(key),
			openaioption.WithMaxRetries(providerRetries),
		}
		if baseURL != "" {
			options = append(options, openaioption.WithBaseURL(baseURL))
		}
		return llm.NewOpenAI(options...), nil

	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		options := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(key),
			anthropicoption.WithMaxRetries(providerRetries),
		}
		if baseURL != "" {
			options = append(options, anthropicoption.WithBaseURL(baseURL))
		}
		return llm.NewAnthropic(options...), nil
	}
	return nil, fmt.Errorf("unknown provider %q (want openai or anthropic)", name)
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `parley-responder - language-model chat bot

USAGE
    parley-responder [flags]

Messages sent to the bot are answered by the model in the active
personality. These messages are commands instead:
    help, info          describe the bot
    personality NAME    switch personality
    rotate              switch to the next personality

The API key is read from OPENAI_API_KEY or ANTHROPIC_API_KEY.

FLAGS
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
