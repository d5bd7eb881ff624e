// storectl flips the store's open/closed flag from the command line:
//
//	storectl open
//	storectl closed
//	storectl status
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/lulicookies/storefront-api/internal/config"
	"github.com/lulicookies/storefront-api/internal/infra/observability"
	"github.com/lulicookies/storefront-api/internal/infra/resilience"
	"github.com/lulicookies/storefront-api/internal/infra/supabase"
	"github.com/lulicookies/storefront-api/internal/service"

	"go.uber.org/zap"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: storectl open|closed|status")
		os.Exit(2)
	}
	command := os.Args[1]

	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	cb := resilience.NewCircuitBreaker("supabase")
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	supabaseClient := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		logger,
	)
	settingsSvc := service.NewSettingsService(supabaseClient, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch command {
	case "open", "closed":
		settings, err := settingsSvc.SetOpen(ctx, command == "open")
		if err != nil {
			logger.Fatal("failed to update store flag", zap.Error(err))
		}
		fmt.Printf("loja %s\n", label(settings.IsOpen))
	case "status":
		settings, err := settingsSvc.Get(ctx)
		if err != nil {
			logger.Fatal("failed to read store flag", zap.Error(err))
		}
		fmt.Printf("loja %s (desde %s)\n", label(settings.IsOpen), settings.UpdatedAt.Format(time.RFC3339))
	default:
		fmt.Fprintln(os.Stderr, "usage: storectl open|closed|status")
		os.Exit(2)
	}
}

func label(isOpen bool) string {
	if isOpen {
		return "aberta"
	}
	return "fechada"
}
