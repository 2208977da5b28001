// Command tracelens inspects ViewCapture traces stored in SQLite or PostgreSQL.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/ashita-ai/tracelens/internal/config"
	"github.com/ashita-ai/tracelens/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0(os.Args[1:], os.Stdout, os.Stderr))
}

func run0(args []string, stdout, stderr io.Writer) int {
	// Load .env file if present (non-fatal).
	_ = godotenv.Load()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{
		Level: level,
	})).With("session_id", uuid.NewString())
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, args, stdout, logger, level); err != nil {
		logger.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger, level *slog.LevelVar) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if l, err := config.ParseLogLevel(cfg.LogLevel); err == nil {
		level.Set(l)
	}

	otelShutdown, err := telemetry.Init(ctx, telemetry.Options{
		Endpoint:       cfg.OTELEndpoint,
		Insecure:       cfg.OTELInsecure,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	root := newRootCmd(&app{cfg: cfg, logger: logger, level: level, out: stdout})
	root.SetArgs(args)
	root.SetOut(stdout)
	return root.ExecuteContext(ctx)
}
