package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/themegraph/internal/app"
	"github.com/quantfold/themegraph/internal/platform/config"
)

func main() {
	mode := flag.String("mode", "daemon", "Service mode (daemon, cycle, decay, subgraph)")
	days := flag.Float64("days", 1, "Days of decay to apply (decay mode)")
	ticker := flag.String("ticker", "", "Center ticker (subgraph mode)")
	depth := flag.Int("depth", 2, "Traversal depth in hops (subgraph mode)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}

	if err := runMode(ctx, application, *mode, *days, *ticker, *depth); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Fatal().Err(err).Msg("application error")
	}
}

// newLogger writes human-readable logs locally and JSON elsewhere. Logs go
// to stderr so subgraph mode keeps stdout clean for its JSON output.
func newLogger(appEnv string) zerolog.Logger {
	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func runMode(ctx context.Context, application *app.App, mode string, days float64, ticker string, depth int) error {
	switch mode {
	case "daemon":
		return application.RunDaemon(ctx)
	case "cycle":
		return application.RunCycle(ctx)
	case "decay":
		return application.RunDecay(ctx, days)
	case "subgraph":
		return application.RunSubgraph(ctx, ticker, depth, os.Stdout)
	default:
		log.Fatalf("Usage: %s --mode=[daemon|cycle|decay|subgraph]", os.Args[0])

		return nil
	}
}
