// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/olegiv/moodify-go/internal/config"
	"github.com/olegiv/moodify-go/internal/logging"
	"github.com/olegiv/moodify-go/internal/tracker"
	"github.com/olegiv/moodify-go/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

const usage = `moodify-track - emit mood music analytics events from the command line

Usage: %s [options] <command> [arguments]

Commands:
  emit <eventType> [key=value ...]   Emit one event (values parse as JSON when possible)
  flush                              Deliver the retry queue in one batch
  retry                              Run a single retry pass over the queue
  watch                              Run the retry scheduler until interrupted
  dump-backup                        Print the backup store as JSON
  dump-queue                         Print the retry queue as JSON
  whoami                             Print the persisted user id

Options:
`

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")
	offline := flag.Bool("offline", false, "Treat the network as down; events go straight to the queue")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, usage, os.Args[0])
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MOODIFY_API_BASE        Ingestion API base URL (default: http://localhost:3001/api)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MOODIFY_BUFFER_DIR      Local buffer directory (default: ./data/tracker)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MOODIFY_RETRY_INTERVAL  Retry pass interval (default: 60s)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MOODIFY_HEALTH_URL      Connectivity probe URL (optional)\n")
	}
	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		info := version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}
		_, _ = fmt.Printf("moodify-track %s\n", info)
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Args(), *offline, os.Stdout); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, offline bool, out io.Writer) error {
	_ = godotenv.Load()

	cfg, err := config.LoadTracker()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.BufferDir, 0755); err != nil {
		return fmt.Errorf("creating buffer directory: %w", err)
	}
	kv, err := tracker.OpenKV(cfg.BufferDir)
	if err != nil {
		return err
	}

	transport := tracker.NewHTTPTransport(cfg.APIBase, cfg.HTTPTimeout, cfg.UserAgent)
	opts := tracker.Options{
		Transport:     transport,
		KV:            kv,
		CloseKV:       true,
		Logger:        logger,
		UserAgent:     cfg.UserAgent,
		RetryInterval: cfg.RetryInterval,
		RetryBackoff:  cfg.RetryBackoff,
	}
	if cfg.PageURL != "" {
		opts.PageURL = func() string { return cfg.PageURL }
	}
	if cfg.HealthURL != "" {
		opts.Probe = func(ctx context.Context) error { return transport.Probe(ctx, cfg.HealthURL) }
		opts.ProbeInterval = cfg.ProbeInterval
	}

	e, err := tracker.New(opts)
	if err != nil {
		_ = kv.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdErr := dispatch(ctx, e, args, offline, out)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return errors.Join(cmdErr, fmt.Errorf("shutting down tracker: %w", err))
	}
	return cmdErr
}

func dispatch(ctx context.Context, e *tracker.Emitter, args []string, offline bool, out io.Writer) error {
	if offline {
		e.SetOnline(ctx, false)
	}

	switch cmd := args[0]; cmd {
	case "emit":
		if len(args) < 2 {
			return errors.New("emit requires an event type")
		}
		data, err := parseData(args[2:])
		if err != nil {
			return err
		}
		res := e.Emit(ctx, args[1], data)
		_, _ = fmt.Fprintf(out, "event %s: delivered=%t queued=%t backed_up=%t\n",
			args[1], res.Delivered, res.Queued, res.BackedUp)
		return nil

	case "flush":
		return e.FlushQueue(ctx)

	case "retry":
		res, err := e.RetryOnce(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "attempted=%d delivered=%d failed=%d exhausted=%d\n",
			res.Attempted, res.Delivered, res.Failed, res.Exhausted)
		return nil

	case "watch":
		if err := e.Initialize(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return nil

	case "dump-backup":
		events, err := e.Buffer().Backup()
		if err != nil {
			return err
		}
		return writeJSON(out, events)

	case "dump-queue":
		queue, err := e.Buffer().Queue()
		if err != nil {
			return err
		}
		return writeJSON(out, queue)

	case "whoami":
		_, _ = fmt.Fprintln(out, e.UserID())
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// parseData turns key=value pairs into an event payload. Values that are
// valid JSON (numbers, booleans, objects) keep their type; anything else is
// a string.
func parseData(pairs []string) (map[string]any, error) {
	data := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid data argument %q, want key=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			data[key] = v
			continue
		}
		data[key] = raw
	}
	return data, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
