package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"verbapost/internal/client"
	"verbapost/internal/config"
	"verbapost/internal/logger"
	"verbapost/internal/repository"
	"verbapost/internal/server"
	"verbapost/internal/service"
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

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	db, err := client.InitSqliteClient(cfg.DatabasePath)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}

	checkoutClient := client.NewCheckoutClient(&cfg.Checkout)
	mailClient := client.NewMailClient(&cfg.Mail)
	civicClient := client.NewCivicClient(&cfg.Civic)
	speechClient := client.NewSpeechClient(&cfg.Speech)
	renderClient := client.NewRenderClient(&cfg.Render)

	draftRepo := repository.NewDraftRepository(db)
	fulfillmentRepo := repository.NewFulfillmentRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)

	dispatcher := service.NewDispatcher(
		renderClient, mailClient, civicClient,
		fulfillmentRepo, receiptRepo,
		log,
	)
	orderService := service.NewOrderService(
		draftRepo,
		checkoutClient, speechClient,
		dispatcher,
		cfg.BaseURL,
		cfg.Recording.MaxBytes,
		log,
	)
	fulfillmentService := service.NewFulfillmentService(fulfillmentRepo)

	srv := server.NewServer(orderService, fulfillmentService, cfg.AdminToken, log)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", zap.String("addr", serverAddr))
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info("signal received, starting graceful shutdown")

	if err := srv.Shutdown(); err != nil {
		log.Fatal("HTTP server shutdown error", zap.Error(err))
	}
}
