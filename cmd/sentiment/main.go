package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spacesedan/tickerpulse/config"
	"github.com/spacesedan/tickerpulse/internal/apperrors"
	"github.com/spacesedan/tickerpulse/internal/logging"
	"github.com/spacesedan/tickerpulse/internal/models"
	"github.com/spacesedan/tickerpulse/internal/sentiment"
	_ "github.com/spacesedan/tickerpulse/internal/sentiment/onnx"
)

const usageMessage = "Please provide a stock symbol as an argument."

type cliArgs struct {
	symbol    string
	useSocial bool
	usage     bool
}

// parseArgs reads `sentiment <SYMBOL> [1]`. Only the literal "1" enables
// the social source; anything after it is ignored.
func parseArgs(args []string) cliArgs {
	if len(args) == 0 {
		return cliArgs{usage: true}
	}
	return cliArgs{
		symbol:    args[0],
		useSocial: len(args) > 1 && args[1] == "1",
	}
}

type verdictGetter interface {
	GetSentiment(ctx context.Context, symbol string, useSocial bool) (models.Verdict, error)
}

func execute(ctx context.Context, engine verdictGetter, args cliArgs, stdout io.Writer) int {
	verdict, err := engine.GetSentiment(ctx, args.symbol, args.useSocial)
	if err != nil {
		slog.Error("[Main] Failed to determine sentiment",
			slog.String("symbol", args.symbol),
			slog.String("kind", apperrors.Kind(err)),
			slog.String("error", err.Error()))
		return apperrors.ExitCode(err)
	}

	fmt.Fprintf(stdout, "The sentiment for %s is: %s\n", args.symbol, verdict)
	return apperrors.ExitOK
}

func run(args []string, stdout io.Writer) int {
	parsed := parseArgs(args)
	if parsed.usage {
		fmt.Fprintln(stdout, usageMessage)
		return apperrors.ExitOK
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)

	cfg, err := config.Load()
	if err != nil {
		logging.InitLogger(os.Getenv("LOG_LEVEL"))
		slog.Error("[Main] Invalid configuration", slog.String("error", err.Error()))
		return apperrors.ExitCode(err)
	}
	logging.InitLogger(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.App.RequestTimeout)
	defer cancel()

	engine, err := sentiment.Initialize(ctx, cfg)
	if err != nil {
		slog.Error("[Main] Failed to initialize engine", slog.String("error", err.Error()))
		return apperrors.ExitCode(err)
	}
	defer engine.Close()

	return execute(ctx, engine, parsed, stdout)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}
