package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CatalogCacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseJWTSecret  string

	// Fidelity
	RewardTarget int

	// Shipping
	ShippingMinFee    float64
	ShippingRatePerKM float64
	StoreOriginLat    float64
	StoreOriginLng    float64

	// Checkout
	AddressSaveTimeout time.Duration

	// External services
	ViaCEPURL          string
	GeocodingAPIURL    string
	GeocodingAPIKey    string
	MercadoPagoURL     string
	MercadoPagoToken   string
	StorefrontBaseURL  string
	SettingsPollPeriod time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CatalogCacheTTL: getEnvDuration("CATALOG_CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),

		RewardTarget: getEnvInt("FIDELITY_REWARD_TARGET", 5),

		ShippingMinFee:    getEnvFloat("SHIPPING_MIN_FEE", 5),
		ShippingRatePerKM: getEnvFloat("SHIPPING_RATE_PER_KM", 2.0),
		// Store origin: Recife, PE
		StoreOriginLat: getEnvFloat("STORE_ORIGIN_LAT", -8.033464),
		StoreOriginLng: getEnvFloat("STORE_ORIGIN_LNG", -34.909015),

		AddressSaveTimeout: getEnvDuration("ADDRESS_SAVE_TIMEOUT", 5*time.Second),

		ViaCEPURL:          getEnv("VIACEP_URL", "https://viacep.com.br"),
		GeocodingAPIURL:    getEnv("GEOCODING_API_URL", "https://maps.googleapis.com/maps/api/geocode"),
		GeocodingAPIKey:    getEnv("GEOCODING_API_KEY", ""),
		MercadoPagoURL:     getEnv("MERCADO_PAGO_URL", "https://api.mercadopago.com"),
		MercadoPagoToken:   getEnv("MERCADO_PAGO_ACCESS_TOKEN", ""),
		StorefrontBaseURL:  getEnv("STOREFRONT_BASE_URL", "http://localhost:3000"),
		SettingsPollPeriod: getEnvDuration("SETTINGS_POLL_PERIOD", 15*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
