package whisperwall

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/nasermirzaei89/env"
	"github.com/whisperwall/whisperwall/authz"
	casbinprovider "github.com/whisperwall/whisperwall/authz/casbin"
	"github.com/whisperwall/whisperwall/bot"
	"github.com/whisperwall/whisperwall/chat"
	"github.com/whisperwall/whisperwall/confessions"
	"github.com/whisperwall/whisperwall/db/sqlite3"
	"github.com/whisperwall/whisperwall/dialog"
	"github.com/whisperwall/whisperwall/discuss"
	"github.com/whisperwall/whisperwall/gate"
	"github.com/whisperwall/whisperwall/moderation"
	"github.com/whisperwall/whisperwall/publish"
	"github.com/whisperwall/whisperwall/reactions"
	"github.com/whisperwall/whisperwall/server"
)

type App struct {
	handler *bot.Handler
	server  *server.Server
	db      *sql.DB
}

//go:embed policy.csv
var defaultAuthorizationPolicyContent string

// NewApp wires the engine. The messenger is the one dependency that cannot
// come from configuration: the transport adapter owns it.
func NewApp(ctx context.Context, messenger chat.Messenger) (*App, error) {
	db, err := sqlite3.NewDB(ctx, env.GetString("DB_DSN", "file:whisperwall.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	err = sqlite3.MigrateUp(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	confessionRepo := sqlite3.NewConfessionRepository(db)
	commentRepo := sqlite3.NewCommentRepository(db)
	reactionRepo := sqlite3.NewReactionRepository(db)
	auraRepo := sqlite3.NewAuraRepository(db)
	statusRepo := sqlite3.NewUserStatusRepository(db)

	authzSvc, err := newAuthorizationService(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization service: %w", err)
	}

	moderatorIDs, err := moderatorIDsFromEnv()
	if err != nil {
		return nil, err
	}

	registry := moderation.NewRegistry(authzSvc, moderatorIDs[0])

	err = authzSvc.AddToGroup(ctx, authz.UserSubject(registry.Primary()), moderation.RolePrimary)
	if err != nil {
		return nil, fmt.Errorf("failed to grant primary role: %w", err)
	}

	err = registry.Seed(ctx, moderatorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to seed moderator registry: %w", err)
	}

	channelID := env.GetInt64("CHANNEL_ID", 0)
	if channelID == 0 {
		return nil, fmt.Errorf("CHANNEL_ID must be set to the public channel's chat id")
	}

	publishSvc := publish.NewService(
		confessionRepo,
		messenger,
		channelID,
		env.GetString("DEEP_LINK_BASE", "https://t.me/whisperwall_bot?start="),
	)

	moderationSvc := moderation.NewService(
		registry, authzSvc, confessionRepo, commentRepo, auraRepo, statusRepo, publishSvc, messenger,
	)

	handler := bot.NewHandler(
		gate.NewGate(statusRepo),
		dialog.NewManager(env.GetDuration("DIALOG_TTL", dialog.DefaultTTL)),
		confessions.NewService(confessionRepo),
		discuss.NewService(commentRepo, confessionRepo, auraRepo, reactionRepo,
			env.GetInt("PAGE_SIZE", discuss.DefaultPageSize)),
		reactions.NewService(reactionRepo),
		moderationSvc,
		publishSvc,
		auraRepo,
		messenger,
	)

	app := &App{
		handler: handler,
		server: &server.Server{
			Host: env.GetString("HOST", ""),
			Port: env.GetString("PORT", server.DefaultPort),
		},
		db: db,
	}

	return app, nil
}

// Handler is the entry point the transport adapter feeds inbound events to.
func (app *App) Handler() *bot.Handler {
	return app.handler
}

func (app *App) Run(ctx context.Context) error {
	// Handle SIGINT (CTRL+C) gracefully.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	defer func() {
		if app.db != nil {
			err := app.db.Close()
			if err != nil {
				slog.ErrorContext(ctx, "failed to close database", "error", err)
			}
		}
	}()

	healthHandler := server.NewHealthHandler(func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		return app.db.PingContext(pingCtx)
	})

	err := app.server.Run(ctx, healthHandler)
	if err != nil {
		return fmt.Errorf("failed to run server: %w", err)
	}

	return nil
}

// moderatorIDsFromEnv reads the ordered moderator list; the first entry is
// the primary administrator.
func moderatorIDsFromEnv() ([]int64, error) {
	raw := env.GetStringSlice("ADMIN_IDS", []string{})
	if len(raw) == 0 {
		return nil, fmt.Errorf("ADMIN_IDS must list at least one user id, primary first")
	}

	ids := make([]int64, 0, len(raw))

	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_IDS entry %q is not a user id: %w", s, err)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func newAuthorizationService(db *sql.DB) (*authz.Service, error) {
	adapter, err := casbinprovider.NewSQLAdapter(db, "sqlite3", "casbin_rule")
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization adapter: %w", err)
	}

	provider, err := casbinprovider.NewProvider(adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization provider: %w", err)
	}

	policyContent, err := loadPolicyContent()
	if err != nil {
		return nil, fmt.Errorf("failed to load authorization policy content: %w", err)
	}

	err = provider.AddPolicyFromCSV(policyContent)
	if err != nil {
		return nil, fmt.Errorf("failed to add authorization policy from csv: %w", err)
	}

	return authz.NewService(provider)
}

func loadPolicyContent() (string, error) {
	policyFilePath := env.GetString("AUTHORIZATION_POLICY_FILE", "")

	if policyFilePath == "" {
		return defaultAuthorizationPolicyContent, nil
	}

	content, err := os.ReadFile(policyFilePath) // nolint:gosec
	if err != nil {
		return "", fmt.Errorf("failed to read policy file %q: %w", policyFilePath, err)
	}

	return string(content), nil
}

func GetLogLevelFromEnv() slog.Level {
	levelStr := env.GetString("LOG_LEVEL", "info")
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("unknown log level, defaulting to info", "level", levelStr)

		return slog.LevelInfo
	}
}
