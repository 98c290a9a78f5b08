package main

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/pr-poehali-dev/sidor-bank-casino/internal/app"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/app/handlers"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/config"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/identity"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/lib/logger"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/lib/logger/handlers/urllog"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/service"
	"github.com/pr-poehali-dev/sidor-bank-casino/internal/storage"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// загружаем объект приложения, конфигом и подключением к БД
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	// CORS: веб-клиент ходит с другого origin, preflight отвечаем здесь же
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", identity.HeaderUserID, "X-Auth-Token"},
		MaxAge:         86400,
	}))

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(application.DB)
	requestRepo := storage.NewRequestRepository(application.DB)
	historyRepo := storage.NewGameHistoryRepository(application.DB)

	startingBalance := decimal.NewFromFloat(cfg.Casino.StartingBalance)
	exchangeRate := decimal.NewFromFloat(cfg.Casino.ExchangeRate)
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	authService := service.NewAuthService(application.Logger, userRepo, startingBalance)
	walletService := service.NewWalletService(application.Logger, application.DB, userRepo, requestRepo, exchangeRate)
	gameService := service.NewGameService(application.Logger, application.DB, userRepo, historyRepo, rnd, cfg.Casino.DefaultMinesCount)
	staffService := service.NewStaffService(application.Logger, application.DB, userRepo, requestRepo)

	// эндпоинты аутентификации не требуют заголовка X-User-Id
	router.Post("/api/auth/register", handlers.RegisterHandler(application.Logger, authService))
	router.Post("/api/auth/login", handlers.LoginHandler(application.Logger, authService))

	router.Group(func(r chi.Router) {
		r.Use(identity.Middleware())
		// кошелек
		r.Get("/api/wallet", handlers.BalanceHandler(application.Logger, walletService))
		r.Post("/api/wallet/exchange", handlers.ExchangeHandler(application.Logger, walletService))
		r.Post("/api/wallet/requests", handlers.CreateRequestHandler(application.Logger, walletService))
		// игры
		r.Post("/api/games/roulette", handlers.RouletteHandler(application.Logger, gameService))
		r.Post("/api/games/mines", handlers.MinesHandler(application.Logger, gameService))
		r.Get("/api/games/history", handlers.HistoryHandler(application.Logger, gameService))
		// панель персонала
		r.Get("/api/staff/requests", handlers.PendingRequestsHandler(application.Logger, staffService))
		r.Post("/api/staff/requests/process", handlers.ProcessRequestHandler(application.Logger, staffService))
		r.Post("/api/staff/balance", handlers.ManageBalanceHandler(application.Logger, staffService))
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
