package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// ShippingArea holds the per-delivery-area fee tier. Amounts are minor units.
type ShippingArea struct {
	FreeShippingThreshold int64 `json:"freeShippingThreshold"`
	StandardFee           int64 `json:"standardFee"`
	DistanceSurcharge     int64 `json:"distanceSurcharge"`
}

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv string
	Port   string

	RedisURL string

	// UpstreamBaseURL is the default base for the collaborator APIs. The
	// per-API values fall back to it when unset.
	UpstreamBaseURL    string
	SlotAPIBaseURL     string
	RestrictionBaseURL string
	InventoryBaseURL   string
	PromoBaseURL       string
	UpstreamTimeout    time.Duration
	UpstreamRetries    int

	ReferenceTimezone string
	SlotHorizonDays   int

	SessionTTL         time.Duration
	SnapshotCacheTTL   time.Duration
	TaxRateBPS         int
	CurrencyCode       string
	DefaultArea        string
	ShippingAreas      map[string]ShippingArea
	ShippingFallback   ShippingArea
	TipMax             int64
	RateLimit          string
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	upstream := strings.TrimSpace(k.String("UPSTREAM_BASE_URL"))
	cfg := &Config{
		AppEnv: valueOrDefault(k.String("APP_ENV"), "development"),
		Port:   valueOrDefault(k.String("PORT"), "8080"),

		RedisURL: k.String("REDIS_URL"),

		UpstreamBaseURL:    upstream,
		SlotAPIBaseURL:     valueOrDefault(k.String("SLOT_API_BASE_URL"), upstream),
		RestrictionBaseURL: valueOrDefault(k.String("RESTRICTION_API_BASE_URL"), upstream),
		InventoryBaseURL:   valueOrDefault(k.String("INVENTORY_API_BASE_URL"), upstream),
		PromoBaseURL:       valueOrDefault(k.String("PROMO_API_BASE_URL"), upstream),
		UpstreamTimeout:    parseDuration(k.String("UPSTREAM_TIMEOUT"), "3s"),
		UpstreamRetries:    parseInt(k.String("UPSTREAM_RETRIES"), 2),

		ReferenceTimezone: valueOrDefault(k.String("REFERENCE_TIMEZONE"), "Asia/Jakarta"),
		SlotHorizonDays:   parseInt(k.String("SLOT_HORIZON_DAYS"), 3),

		SessionTTL:       parseDuration(k.String("SESSION_TTL"), "168h"),
		SnapshotCacheTTL: parseDuration(k.String("SNAPSHOT_CACHE_TTL"), "5s"),
		TaxRateBPS:       parseInt(k.String("PRICING_TAX_RATE_BPS"), 0),
		CurrencyCode:     valueOrDefault(k.String("CURRENCY_CODE"), "IDR"),
		DefaultArea:      valueOrDefault(k.String("SHIPPING_DEFAULT_AREA"), "default"),
		ShippingAreas:    parseAreas(k.String("SHIPPING_AREAS")),
		ShippingFallback: ShippingArea{
			FreeShippingThreshold: parseMoney(k.String("SHIPPING_FREE_THRESHOLD"), 99900),
			StandardFee:           parseMoney(k.String("SHIPPING_STANDARD_FEE"), 2900),
			DistanceSurcharge:     0,
		},
		TipMax:             parseMoney(k.String("PRICING_TIP_MAX"), 0),
		RateLimit:          valueOrDefault(k.String("RATE_LIMIT"), "120-M"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
	}

	if cfg.SlotHorizonDays <= 0 {
		cfg.SlotHorizonDays = 3
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.UpstreamBaseURL == "" && (cfg.SlotAPIBaseURL == "" || cfg.RestrictionBaseURL == "" || cfg.InventoryBaseURL == "" || cfg.PromoBaseURL == "") {
		return nil, errors.New("UPSTREAM_BASE_URL or all per-API base URLs are required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// AreaConfig resolves the shipping tier for the named delivery area. Unknown
// areas receive the fallback tier with a zero surcharge rather than an error.
func (c *Config) AreaConfig(area string) (ShippingArea, bool) {
	if cfg, ok := c.ShippingAreas[strings.TrimSpace(area)]; ok {
		return cfg, true
	}
	return c.ShippingFallback, false
}

func parseAreas(value string) map[string]ShippingArea {
	areas := map[string]ShippingArea{}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return areas
	}
	if err := json.Unmarshal([]byte(trimmed), &areas); err != nil {
		return map[string]ShippingArea{}
	}
	for name, area := range areas {
		if area.DistanceSurcharge < 0 {
			area.DistanceSurcharge = 0
			areas[name] = area
		}
	}
	return areas
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseMoney(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests overrides environment variables for the duration of a Load call.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
