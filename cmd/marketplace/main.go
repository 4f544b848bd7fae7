package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/marketplace/internal/app"
	"github.com/Freeeeeet/marketplace/internal/config"
	"github.com/Freeeeeet/marketplace/internal/controller/httpapi"
	"github.com/Freeeeeet/marketplace/internal/gateway/sslcommerz"
	"github.com/Freeeeeet/marketplace/internal/notifier"
	"github.com/Freeeeeet/marketplace/internal/repository"
	"github.com/Freeeeeet/marketplace/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Marketplace stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting marketplace",
		zap.String("environment", cfg.Environment),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Bool("sslcommerz_sandbox", cfg.SSLCommerzSandbox),
	)

	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath, logger)
	if err != nil {
		return err
	}
	if err := migrator.Run(ctx); err != nil {
		_ = migrator.Close()
		return err
	}
	_ = migrator.Close()

	// Репозитории
	users := repository.NewUserRepository(pool)
	payments := repository.NewPaymentRepository(pool)
	bookings := repository.NewBookingRepository(pool)
	starWishes := repository.NewStarWishRepository(pool)
	profiles := repository.NewExpertProfileRepository(pool)
	reviews := repository.NewReviewRepository(pool)

	// Каналы уведомлений
	sinks := []notifier.Sink{notifier.NewStoreSink(repository.NewNotificationRepository(pool))}

	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken)
		if err != nil {
			return err
		}
		sinks = append(sinks, notifier.NewTelegramSink(b, users, cfg.FrontendURL, logger))
	} else {
		logger.Info("TELEGRAM_TOKEN not set, Telegram notifications disabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := notifier.NewKafkaSink(notifier.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger), logger)
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}

	dispatcher := notifier.NewDispatcher(logger, 0, sinks...)
	defer dispatcher.Wait()

	baseURL := sslcommerz.SandboxBaseURL
	if !cfg.SSLCommerzSandbox {
		baseURL = sslcommerz.LiveBaseURL
	}
	gatewayClient := sslcommerz.NewClient(sslcommerz.Config{
		StoreID:         cfg.SSLCommerzStoreID,
		StorePassword:   cfg.SSLCommerzStorePassword,
		BaseURL:         baseURL,
		VerifySignature: cfg.SSLCommerzVerifySign,
	})

	// Сервисы
	bookingService := service.NewBookingService(bookings, dispatcher, logger)
	starWishService := service.NewStarWishService(starWishes, dispatcher, logger)
	paymentService := service.NewPaymentService(
		payments, bookings, starWishes,
		bookingService, starWishService,
		gatewayClient, dispatcher,
		cfg.PublicBaseURL, logger,
	)
	ratingService := service.NewRatingService(reviews, bookings, profiles, dispatcher, logger)

	reconciler, err := app.NewReconciler(paymentService, ratingService, app.ReconcilerConfig{
		CascadeInterval: cfg.CascadeSweepInterval,
		RatingInterval:  cfg.RatingSweepInterval,
		BatchSize:       cfg.SweepBatchSize,
	}, logger)
	if err != nil {
		return err
	}
	reconciler.Start()
	defer func() {
		if err := reconciler.Stop(); err != nil {
			logger.Error("Failed to stop reconciler", zap.Error(err))
		}
	}()

	api := httpapi.NewServer(paymentService, gatewayClient, pool, cfg.FrontendURL, logger)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}

	logger.Info("Marketplace stopped")
	return nil
}
