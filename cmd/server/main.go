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

	"promptcal.io/prompt-calibrate/internal/api"
	"promptcal.io/prompt-calibrate/internal/auth"
	"promptcal.io/prompt-calibrate/internal/config"
	"promptcal.io/prompt-calibrate/internal/core"
	"promptcal.io/prompt-calibrate/internal/llm"
	"promptcal.io/prompt-calibrate/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Initialize auth
	tokenService, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTAlgorithm)
	if err != nil {
		log.Fatalf("Failed to initialize token service: %v", err)
	}

	// Initialize LLM gateways
	ollamaClient := llm.NewOllamaClient(cfg.OllamaHost)
	azureClient := llm.NewAzureOpenAIClient(cfg.AzureAPIKey, cfg.AzureEndpoint, cfg.AzureAPIVersion, cfg.Deployment)

	// Initialize services
	calibrator := core.NewCalibrator(azureClient)
	chatService := core.NewChatService(dbStore, ollamaClient, calibrator)
	userService := core.NewUserService(dbStore, tokenService)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(userService, chatService)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // local model generation can take a while
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
