// Command backend is the main entrypoint for the guild-tally bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Loads the counter snapshot and registers slash commands.
//   - Starts background jobs: gateway session, periodic sweep, and
//     snapshot persistence.
//   - Exposes a minimal HTTP server with /healthz, /status, /metrics, and
//     the Discord interactions webhook.
//
// Shutdown is graceful on SIGINT/SIGTERM: the snapshot is flushed before
// exit. A fatal fault still attempts a best-effort flush and exits 1.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/guild-tally/backend/commands"
	"github.com/onnwee/guild-tally/backend/config"
	"github.com/onnwee/guild-tally/backend/crypto"
	"github.com/onnwee/guild-tally/backend/discordapi"
	"github.com/onnwee/guild-tally/backend/gateway"
	"github.com/onnwee/guild-tally/backend/server"
	"github.com/onnwee/guild-tally/backend/store"
	"github.com/onnwee/guild-tally/backend/tally"
	"github.com/onnwee/guild-tally/backend/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load("backend/.env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateBotReady(); err != nil {
		slog.Error("bot credentials missing", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("guild-tally", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Interaction signature verification. Without the public key the webhook
	// rejects everything, so commands only work once it is configured.
	var verifier crypto.Verifier
	if cfg.PublicKey != "" {
		v, err := crypto.NewEd25519Verifier(cfg.PublicKey)
		if err != nil {
			slog.Error("invalid DISCORD_PUBLIC_KEY", slog.Any("err", err))
			os.Exit(1)
		}
		verifier = v
	} else {
		slog.Warn("DISCORD_PUBLIC_KEY not set - interaction webhook will reject all requests")
	}

	// Counter store, loaded from the snapshot before anything can mutate it.
	counters := store.Load(cfg.SnapshotPath)
	guilds, configs := counters.Counts()
	telemetry.SetStoreSize(guilds, configs)
	slog.Info("counter snapshot loaded",
		slog.String("path", cfg.SnapshotPath), slog.Int("guilds", guilds), slog.Int("counters", configs))

	// Discord surfaces: REST client and gateway session share one token.
	client := &discordapi.Client{Token: cfg.BotToken, AppID: cfg.AppID, BaseURL: cfg.APIBase}
	session := gateway.NewSession(cfg.BotToken)
	platform := &tally.DiscordPlatform{Client: client, Presences: session.Presences}
	labelFn := store.LabelFunc(platform.GuildLabel)
	svc := tally.NewService(counters, platform, cfg.SnapshotPath, labelFn)

	// Command schema registration is idempotent; failure here is retried on
	// the next restart and does not block reconciliation.
	regCtx, regCancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := client.RegisterCommands(regCtx); err != nil {
		slog.Warn("slash command registration failed", slog.Any("err", err))
	} else {
		slog.Info("slash commands registered", slog.Int("count", len(discordapi.Commands())))
	}
	regCancel()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	debouncer := tally.NewDebouncer(ctx, svc)
	session.OnGuildEvent = debouncer.Trigger

	go session.Run(ctx)
	go svc.StartSweepJob(ctx)
	go store.StartPersistJob(ctx, counters, cfg.SnapshotPath, labelFn)

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- server.Start(ctx, cfg.HTTPAddr, counters, commands.NewHandler(svc), verifier)
	}()

	flush := func() {
		if err := counters.Save(cfg.SnapshotPath, labelFn); err != nil {
			slog.Error("final snapshot flush failed", slog.Any("err", err))
		} else {
			slog.Info("snapshot flushed", slog.String("path", cfg.SnapshotPath))
		}
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		flush()
	case err := <-httpErr:
		if err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
			flush()
			os.Exit(1)
		}
		<-ctx.Done()
		slog.Info("shutting down")
		flush()
	}
}
