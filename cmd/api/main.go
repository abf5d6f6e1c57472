package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/fkhayef/splitledger/docs"
	"github.com/fkhayef/splitledger/internal/auth"
	"github.com/fkhayef/splitledger/internal/balance"
	"github.com/fkhayef/splitledger/internal/config"
	"github.com/fkhayef/splitledger/internal/database"
	"github.com/fkhayef/splitledger/internal/events"
	"github.com/fkhayef/splitledger/internal/expense"
	expensesplit "github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/group"
	"github.com/fkhayef/splitledger/internal/metrics"
	"github.com/fkhayef/splitledger/internal/notification"
	"github.com/fkhayef/splitledger/internal/recurring"
	"github.com/fkhayef/splitledger/internal/storage/memory"
	"github.com/fkhayef/splitledger/internal/user"
	mw "github.com/fkhayef/splitledger/pkg/middleware"
	"github.com/fkhayef/splitledger/pkg/logging"
)

// stores groups the repositories of one data backend
type stores struct {
	users         user.Store
	groups        group.Store
	expenses      expense.Store
	balances      balance.Store
	recurring     recurring.Store
	notifications notification.Store
	close         func() error
}

func openStores(cfg *config.Config) (*stores, error) {
	if cfg.DataBackend == config.BackendMemory {
		slog.Warn("Using in-memory storage; data is lost on restart")
		m := memory.New()
		return &stores{
			users:         m.Users(),
			groups:        m.Groups(),
			expenses:      m.Expenses(),
			balances:      m.Balances(),
			recurring:     m.Recurring(),
			notifications: m.Notifications(),
			close:         func() error { return nil },
		}, nil
	}

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("Connected to database successfully")

	return &stores{
		users:         user.NewRepository(db),
		groups:        group.NewRepository(db),
		expenses:      expense.NewRepository(db),
		balances:      balance.NewRepository(db),
		recurring:     recurring.NewRepository(db),
		notifications: notification.NewRepository(db),
		close:         db.Close,
	}, nil
}

// @title                       Splitledger API
// @version                     1.0
// @description                 Shared expense ledger: groups, expenses, share allocation, balances and recurring expenses.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg := config.Load()
	logging.SetupWith(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	st, err := openStores(cfg)
	if err != nil {
		slog.Error("Failed to open storage", "backend", cfg.DataBackend, "error", err)
		os.Exit(1)
	}
	defer st.close()

	broker, brokerCloser, err := events.Open(cfg)
	if err != nil {
		slog.Error("Failed to open event publisher", "backend", cfg.EventsBackend, "error", err)
		os.Exit(1)
	}
	defer brokerCloser.Close()

	secret := cfg.JWTSecret
	if secret == "" {
		// header auth: tokens are still issued on registration but never checked
		secret = uuid.NewString()
	}
	tokens := auth.NewJWTManager(secret, cfg.JWTDuration)

	authenticate := mw.AuthMiddleware(tokens)
	if cfg.AuthMode == "header" {
		slog.Warn("Trusting X-Test-User-ID header for authentication")
		authenticate = mw.TestUserMiddleware
	}

	splitFactory := expensesplit.NewSplitStrategyFactory(cfg.SplitFallbackToEqual)

	// Notification feature consumes expense events in process
	notificationService := notification.NewService(st.notifications)
	notificationHandler := notification.NewHandler(notificationService)
	publisher := events.Multi{notificationService, broker}

	// User feature
	userService := user.NewService(st.users, tokens)
	userHandler := user.NewHandler(userService)

	// Group feature
	groupService := group.NewService(st.groups)
	groupHandler := group.NewHandler(groupService)

	// Expense feature
	expenseService := expense.NewService(st.expenses, groupService, splitFactory, publisher)
	expenseHandler := expense.NewHandler(expenseService)

	// Balance feature
	balanceService := balance.NewService(st.balances, groupService)
	balanceHandler := balance.NewHandler(balanceService)

	// Recurring feature
	processor := recurring.NewProcessor(st.recurring, expenseService, publisher)
	recurringService := recurring.NewService(st.recurring, groupService, expenseService, processor)
	recurringHandler := recurring.NewHandler(recurringService)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/users", userHandler.Routes(authenticate))

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Mount("/groups", groupHandler.Routes())
			r.Mount("/expenses", expenseHandler.Routes())
			r.Mount("/balances", balanceHandler.Routes())
			r.Mount("/recurring", recurringHandler.Routes())
			r.Mount("/notifications", notificationHandler.Routes())
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server starting", "port", cfg.Port, "backend", cfg.DataBackend, "auth", cfg.AuthMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
}
