package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"storefront-backend/internal/client"
	"storefront-backend/internal/config"
	"storefront-backend/internal/event"
	"storefront-backend/internal/notification"
	"storefront-backend/internal/repository"
	"storefront-backend/internal/server"
	"storefront-backend/internal/service"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	db := client.InitDBClient(cfg.DatabaseURL)
	vippsClient := client.NewVippsClient(&cfg.Vipps)
	providers := client.NewProviderRegistry(vippsClient)

	eventStore := event.NewStore(db)
	publisher := event.NewPublisher(eventStore)

	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	orderService := service.NewOrderService(db, orderRepo, publisher)
	paymentService := service.NewPaymentService(db, providers, orderRepo, paymentRepo, publisher)

	worker := notification.NewWorker(notification.NewLogNotifier(), 128)

	service.RegisterEventHandlers(publisher, orderService, orderRepo, paymentRepo, providers, db, worker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx)
	go vippsClient.RunTokenRefresher(ctx, cfg.Vipps.TokenRefreshInterval)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(orderService, paymentService, cfg.AdminJWTSecret)

	log.Println("Starting HTTP server on", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Println("Signal received, starting graceful shutdown...")
	cancel()

	_, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(); err != nil {
		log.Fatal("HTTP server shutdown error")
	}
}
