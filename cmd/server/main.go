package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-market-backend/internal/config"
	"github.com/ignatzorin/freelance-market-backend/internal/db"
	"github.com/ignatzorin/freelance-market-backend/internal/gateway"
	httpHandlers "github.com/ignatzorin/freelance-market-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/freelance-market-backend/internal/http/router"
	"github.com/ignatzorin/freelance-market-backend/internal/logger"
	"github.com/ignatzorin/freelance-market-backend/internal/repository"
	"github.com/ignatzorin/freelance-market-backend/internal/service"
	"github.com/ignatzorin/freelance-market-backend/internal/worker"
	"github.com/ignatzorin/freelance-market-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	catalogRepo := repository.NewCatalogRepository(dbConn)
	orderRepo := repository.NewOrderRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn)
	releaseJobRepo := repository.NewReleaseJobRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Платёжный шлюз.
	stripeGateway := gateway.NewStripeGateway(cfg.StripeSecretKey)

	// Вебсокеты.
	hub := ws.NewHub(ctx)
	go hub.Run()

	// Сервисы.
	notificationService := service.NewNotificationService(notificationRepo)
	hub.SetNotificationSaver(ws.NewNotificationServiceAdapter(notificationService))

	releaseScheduler := service.NewAutoReleaseScheduler(releaseJobRepo, paymentRepo, cfg.AutoReleaseDelay)
	orderService := service.NewOrderService(orderRepo, catalogRepo, releaseScheduler, hub)
	paymentService := service.NewPaymentService(paymentRepo, orderRepo, userRepo, stripeGateway, hub, service.PaymentServiceConfig{
		FeePercent:        cfg.PlatformFeePercent,
		Currency:          cfg.Currency,
		ConnectRefreshURL: cfg.ConnectRefreshURL,
		ConnectReturnURL:  cfg.ConnectReturnURL,
	})
	reconcileService := service.NewReconcileService(paymentRepo, orderRepo, userRepo, stripeGateway, hub)

	// Воркер авто-выплат.
	releaseWorker := worker.NewReleaseWorker(releaseJobRepo, paymentService, cfg.ReleaseSweepInterval)
	go releaseWorker.Run(ctx)

	// HTTP хэндлеры.
	orderHandler := httpHandlers.NewOrderHandler(orderService)
	paymentHandler := httpHandlers.NewPaymentHandler(paymentService, reconcileService, cfg.StripeWebhookSecret, cfg.StripeConnectWebhookSecret)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, orderHandler, paymentHandler, notificationHandler, wsHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
