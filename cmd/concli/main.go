// Command concli is a small inspection utility for Concurrent domains:
// it fetches entities, messages, and timelines, and tails realtime events.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/concrnt/concrnt-go/auth"
	"github.com/concrnt/concrnt-go/client"
	"github.com/concrnt/concrnt-go/core"
	"github.com/concrnt/concrnt-go/internal/config"
	"github.com/concrnt/concrnt-go/internal/log"
	"github.com/concrnt/concrnt-go/socket"
	"github.com/concrnt/concrnt-go/store"
	storesqlite "github.com/concrnt/concrnt-go/store/sqlite"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "concli:", err)
		return 2
	}
	logger := log.New(cfg.LogLevel)

	provider, err := buildProvider(cfg)
	if err != nil {
		logger.Error("load key", "err", err)
		return 1
	}

	var kvs store.Store = store.NewMemoryStore()
	if cfg.CachePath != "" {
		sq, err := storesqlite.Open(cfg.CachePath)
		if err != nil {
			logger.Error("open cache", "path", cfg.CachePath, "err", err)
			return 1
		}
		defer func() { _ = sq.Close() }()
		kvs = sq
	}

	c := client.New(client.Config{
		Host:     cfg.Host,
		Provider: provider,
		Store:    kvs,
		Timeout:  cfg.Timeout,
		UseHTTP3: cfg.UseHTTP3,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.Command {
	case "entity":
		if len(cfg.Args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: concli entity <ccid>")
			return 2
		}
		entity, err := c.GetEntity(ctx, cfg.Args[0], nil)
		return printResult(logger, entity, err)
	case "message":
		if len(cfg.Args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: concli message <id>")
			return 2
		}
		msg, err := c.GetMessage(ctx, cfg.Args[0], "", nil)
		return printResult(logger, msg, err)
	case "timeline":
		if len(cfg.Args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: concli timeline <id>")
			return 2
		}
		host, err := c.ResolveTimelineHost(ctx, cfg.Args[0])
		if err != nil {
			logger.Error("resolve timeline host", "err", err)
			return 1
		}
		tl, err := c.GetTimeline(ctx, cfg.Args[0], host, nil)
		return printResult(logger, tl, err)
	case "listen":
		if len(cfg.Args) == 0 {
			fmt.Fprintln(os.Stderr, "usage: concli listen <timeline> [<timeline>...]")
			return 2
		}
		return runListen(ctx, cfg, c, provider, logger)
	default:
		fmt.Fprintf(os.Stderr, "concli: unknown command %q\n", cfg.Command)
		return 2
	}
}

func buildProvider(cfg config.Config) (auth.Provider, error) {
	if cfg.SubKey != "" {
		return auth.NewSubKeyProvider(cfg.SubKey)
	}
	if cfg.KeyFile != "" {
		pemText, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		return auth.NewMasterKeyProvider(string(pemText), cfg.Host)
	}
	return auth.NewGuestProvider(cfg.Host), nil
}

func runListen(ctx context.Context, cfg config.Config, c *client.Client, provider auth.Provider, logger *slog.Logger) int {
	s := socket.New(socket.Config{
		Host:     cfg.Host,
		Provider: provider,
		Cache:    c,
		Logger:   logger,
	})
	defer func() { _ = s.Close() }()

	s.Listen(cfg.Args, func(event core.TimelineEvent) {
		line, err := json.Marshal(event)
		if err != nil {
			return
		}
		fmt.Println(string(line))
	})
	if err := s.WaitOpen(ctx); err != nil {
		logger.Error("open realtime socket", "err", err)
		return 1
	}
	logger.Info("listening", "timelines", len(cfg.Args))
	<-ctx.Done()
	return 0
}

func printResult(logger *slog.Logger, v any, err error) int {
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			logger.Error("not found")
			return 1
		}
		logger.Error("request failed", "err", err)
		return 1
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Error("encode result", "err", err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}
