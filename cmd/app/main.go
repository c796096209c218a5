package main

import (
	"FaceVerification/internal/config"
	"FaceVerification/pkg/log"
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		panic(err)
	}
	logger := log.NewLogger()

	engineConfig, err := config.NewEngineConfig()
	if err != nil {
		logger.Fatalf("Invalid engine configuration: %v", err)
	}

	fiberApp := config.NewFiber(logger, engineConfig.RequestTimeout)
	validator := config.NewValidator()

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithEngineConfig(engineConfig),
		config.WithStore(),
		config.WithCache(),
		config.WithExtractor(),
		config.WithAuditQueue(),
		config.WithMetrics(),
		config.WithMiddleware(),
		config.WithS3Client(),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	if err := server.RegisterHandler(); err != nil {
		logger.Fatal(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), engineConfig.RequestTimeout+5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown finished with errors: %v", err)
		return
	}
	logger.Info("Server stopped")
}
