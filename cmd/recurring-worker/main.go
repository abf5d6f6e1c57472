package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/fkhayef/splitledger/internal/config"
	"github.com/fkhayef/splitledger/internal/database"
	"github.com/fkhayef/splitledger/internal/events"
	"github.com/fkhayef/splitledger/internal/expense"
	expensesplit "github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/group"
	"github.com/fkhayef/splitledger/internal/notification"
	"github.com/fkhayef/splitledger/internal/recurring"
	"github.com/fkhayef/splitledger/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}
	cfg := config.Load()

	fs := ff.NewFlagSet("recurring-worker")
	var (
		interval    = fs.DurationLong("interval", cfg.RecurringInterval, "How often to look for due recurring expenses")
		once        = fs.BoolLong("once", "Process due templates once and exit")
		databaseURL = fs.StringLong("database-url", cfg.DatabaseURL, "Postgres connection string")
		logLevel    = fs.StringLong("log-level", cfg.LogLevel, "debug, info, warn or error")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("SPLITLEDGER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logging.SetupWith(*logLevel, cfg.LogFormat)

	if *interval <= 0 {
		slog.Error("Interval must be positive", "interval", *interval)
		os.Exit(1)
	}

	db, err := database.NewPostgresConnection(*databaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	broker, brokerCloser, err := events.Open(cfg)
	if err != nil {
		slog.Error("Failed to open event publisher", "backend", cfg.EventsBackend, "error", err)
		os.Exit(1)
	}
	defer brokerCloser.Close()

	notificationService := notification.NewService(notification.NewRepository(db))
	publisher := events.Multi{notificationService, broker}

	groupService := group.NewService(group.NewRepository(db))
	expenseService := expense.NewService(
		expense.NewRepository(db),
		groupService,
		expensesplit.NewSplitStrategyFactory(cfg.SplitFallbackToEqual),
		publisher,
	)
	processor := recurring.NewProcessor(recurring.NewRepository(db), expenseService, publisher)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		if _, err := processor.ProcessDue(ctx, time.Now()); err != nil {
			slog.Error("Recurring run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("Recurring worker started", "interval", *interval)
	run(ctx, processor, *interval)
	slog.Info("Recurring worker stopped")
}

// run processes due templates immediately and then on every tick until ctx is done
func run(ctx context.Context, processor *recurring.Processor, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := processor.ProcessDue(ctx, time.Now()); err != nil {
			slog.Error("Recurring run failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
