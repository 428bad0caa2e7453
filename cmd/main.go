package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/NgigiN/fintrack/internal/api"
	"github.com/NgigiN/fintrack/internal/budget"
	"github.com/NgigiN/fintrack/internal/config"
	"github.com/NgigiN/fintrack/internal/discord"
	"github.com/NgigiN/fintrack/internal/ledger"
	"github.com/NgigiN/fintrack/internal/logger"
	"github.com/NgigiN/fintrack/internal/ratelimit"
	"github.com/NgigiN/fintrack/internal/recurrence"
	"github.com/NgigiN/fintrack/internal/scheduler"
	"github.com/NgigiN/fintrack/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		log = logger.NewWithWriter(os.Stdout).Level(logger.ParseLevel(cfg.LogLevel))
	}
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("fintrack stopped with error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info().Str("driver", cfg.DBDriver).Msg("database ready")

	limiter, closeLimiter, err := newLimiter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	var notifier budget.Notifier
	var session *discordgo.Session
	if cfg.DiscordEnabled() {
		if session, err = discord.NewSession(cfg.DiscordBotToken); err != nil {
			return err
		}
		notifier = discord.NewNotifier(session, cfg.DiscordChannelId)
	}

	ledgerSvc := ledger.NewService(db, log)
	budgets := budget.NewService(db, notifier, log)
	engine := recurrence.NewEngine(db, limiter, log)

	jobs := scheduler.New(log,
		scheduler.Job{
			Name:     "recurring-scan",
			Interval: cfg.RecurringScanInterval,
			Run: func(ctx context.Context) error {
				_, err := engine.Scan(ctx)
				return err
			},
		},
		scheduler.Job{
			Name:     "budget-alerts",
			Interval: cfg.BudgetScanInterval,
			Run: func(ctx context.Context) error {
				_, err := budgets.ScanAlerts(ctx)
				return err
			},
		},
	)
	if err := jobs.Start(ctx); err != nil {
		return err
	}
	defer jobs.Stop()

	if session != nil {
		bot := discord.NewBot(session, cfg, ledgerSvc, budgets, log)
		if err := bot.Start(); err != nil {
			return err
		}
		defer bot.Stop()
	}

	if cfg.JobsToken == "" {
		log.Warn().Msg("JOBS_TOKEN not set, /jobs endpoints are disabled")
	}
	handler := api.NewHandler(db, ledgerSvc, budgets, engine, cfg.JobsToken, log)
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	return nil
}

// newLimiter shares the recurring rate limit through redis when REDIS_ADDR is set.
func newLimiter(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ratelimit.Limiter, func(), error) {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemory(cfg.RecurringRateBurst, cfg.RecurringRatePerHour), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("rate limits shared through redis")
	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	return ratelimit.NewRedis(client, cfg.RecurringRateBurst, time.Hour), closeFn, nil
}
