package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	whisperwall "github.com/whisperwall/whisperwall"
	"github.com/whisperwall/whisperwall/chat"
)

func main() {
	ctx := context.Background()

	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		slog.WarnContext(ctx, "failed to load .env file", "error", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: whisperwall.GetLogLevelFromEnv(),
	})))

	// The transport adapter plugs in here; without one, outbound traffic
	// goes to the log.
	app, err := whisperwall.NewApp(ctx, chat.NewLoggingMessenger())
	if err != nil {
		slog.ErrorContext(ctx, "failed to create app", "error", err)
		os.Exit(1)
	}

	err = app.Run(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to run app", "error", err)
		os.Exit(1)
	}
}
