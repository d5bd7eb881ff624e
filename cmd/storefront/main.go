package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lulicookies/storefront-api/internal/config"
	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/handler"
	"github.com/lulicookies/storefront-api/internal/infra/cache"
	"github.com/lulicookies/storefront-api/internal/infra/client"
	"github.com/lulicookies/storefront-api/internal/infra/observability"
	"github.com/lulicookies/storefront-api/internal/infra/resilience"
	"github.com/lulicookies/storefront-api/internal/infra/supabase"
	"github.com/lulicookies/storefront-api/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("catalog_cache_ttl", cfg.CatalogCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Int("reward_target", cfg.RewardTarget),
		zap.Float64("shipping_min_fee", cfg.ShippingMinFee),
		zap.Duration("settings_poll_period", cfg.SettingsPollPeriod),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "storefront-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	menuCache := cache.New[*domain.Menu](cfg.CatalogCacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	supabaseCB := resilience.NewCircuitBreaker("supabase")
	shippingCB := resilience.NewCircuitBreaker("shipping")
	paymentsCB := resilience.NewCircuitBreaker("mercadopago")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	supabaseClient := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		supabaseCB,
		resilienceCfg,
		logger,
	)
	viaCEP := client.NewViaCEPClient(httpClient, cfg.ViaCEPURL, shippingCB, resilienceCfg)
	geocoder := client.NewGeocoderClient(httpClient, cfg.GeocodingAPIURL, cfg.GeocodingAPIKey, shippingCB, resilienceCfg)
	mercadoPago := client.NewMercadoPagoClient(httpClient, cfg.MercadoPagoURL, cfg.MercadoPagoToken, cfg.StorefrontBaseURL, paymentsCB, resilienceCfg, logger)

	// --- Services ---
	catalogSvc := service.NewCatalogService(supabaseClient, menuCache, logger, metrics)
	settingsSvc := service.NewSettingsService(supabaseClient, logger)
	checkoutSvc := service.NewCheckoutService(supabaseClient, supabaseClient, supabaseClient, supabaseClient, cfg, logger, metrics)
	orderSvc := service.NewOrderService(supabaseClient)
	fidelitySvc := service.NewFidelityService(supabaseClient, cfg)
	profileSvc := service.NewProfileService(supabaseClient, logger)
	authSvc := service.NewAuthService(supabaseClient, supabaseClient, logger)
	shippingSvc := service.NewShippingService(viaCEP, geocoder, cfg)
	paymentSvc := service.NewPaymentService(mercadoPago, supabaseClient, logger, metrics)

	// --- Settings watcher ---
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go settingsSvc.Watch(watchCtx, cfg.SettingsPollPeriod)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Catalog:   catalogSvc,
		Checkout:  checkoutSvc,
		Orders:    orderSvc,
		Fidelity:  fidelitySvc,
		Profile:   profileSvc,
		Auth:      authSvc,
		Shipping:  shippingSvc,
		Settings:  settingsSvc,
		Payments:  paymentSvc,
		Health:    supabaseClient,
		Metrics:   metrics,
		Logger:    logger,
		JWTSecret: cfg.SupabaseJWTSecret,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
