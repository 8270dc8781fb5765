// Package config loads process configuration from the environment. A .env
// file in the working directory is read first when present; real environment
// variables always win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/blogspy/backend/internal/providers"
)

// Storage and cache backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Port        string `validate:"required,numeric"`
	DatabaseURL string `validate:"required_if=StoreBackend postgres,required_if=CacheBackend postgres"`
	// StoreBackend holds users, credits and tracked items.
	StoreBackend string        `validate:"oneof=memory postgres"`
	CacheBackend string        `validate:"oneof=memory redis postgres"`
	RedisURL     string        `validate:"required_if=CacheBackend redis"`
	CacheTTL     time.Duration `validate:"gt=0"`

	ProviderMode    string        `validate:"oneof=fixture live"`
	ProviderTimeout time.Duration `validate:"gt=0"`
	ProviderRate    float64       `validate:"gt=0"`
	Search          providers.Endpoint
	OpenAI          providers.Endpoint
	Perplexity      providers.Endpoint
	Gemini          providers.Endpoint
	Anthropic       providers.Endpoint

	ScanCreditCost int `validate:"gte=1"`
	// DailyScanLimit caps net scans per user per UTC day; 0 disables it.
	DailyScanLimit      int `validate:"gte=0"`
	SignupBonus         int `validate:"gte=0"`
	AllowDirectPurchase bool
	PromoCodes          map[string]int `validate:"dive,keys,required,endkeys,gt=0"`

	JWTSecret string        `validate:"required,min=16"`
	TokenTTL  time.Duration `validate:"gt=0"`

	RescanInterval time.Duration `validate:"gte=1m"`
	CORSOrigins    []string      `validate:"dive,url"`
}

// Providers returns the adapter configuration.
func (c *Config) Providers() providers.Config {
	return providers.Config{
		Mode:          c.ProviderMode,
		Timeout:       c.ProviderTimeout,
		RatePerSecond: c.ProviderRate,
		Search:        c.Search,
		OpenAI:        c.OpenAI,
		Perplexity:    c.Perplexity,
		Gemini:        c.Gemini,
		Anthropic:     c.Anthropic,
	}
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}
	cfg := &Config{
		Port:         p.str("PORT", "8080"),
		DatabaseURL:  p.str("DATABASE_URL", ""),
		StoreBackend: p.str("STORE_BACKEND", BackendMemory),
		CacheBackend: p.str("CACHE_BACKEND", BackendMemory),
		RedisURL:     p.str("REDIS_URL", ""),
		CacheTTL:     p.duration("CACHE_TTL", time.Hour),

		ProviderMode:    p.str("PROVIDER_MODE", providers.ModeFixture),
		ProviderTimeout: p.duration("PROVIDER_TIMEOUT", 25*time.Second),
		ProviderRate:    p.number("PROVIDER_RATE", 5),
		Search:          p.endpoint("SEARCH"),
		OpenAI:          p.endpoint("OPENAI"),
		Perplexity:      p.endpoint("PERPLEXITY"),
		Gemini:          p.endpoint("GEMINI"),
		Anthropic:       p.endpoint("ANTHROPIC"),

		ScanCreditCost:      p.integer("SCAN_CREDIT_COST", 1),
		DailyScanLimit:      p.integer("DAILY_SCAN_LIMIT", 0),
		SignupBonus:         p.integer("SIGNUP_BONUS", 3),
		AllowDirectPurchase: p.boolean("ALLOW_DIRECT_PURCHASE", false),
		PromoCodes:          p.promos("PROMO_CODES"),

		JWTSecret: p.str("JWT_SECRET", ""),
		TokenTTL:  p.duration("TOKEN_TTL", 24*time.Hour),

		RescanInterval: p.duration("RESCAN_INTERVAL", time.Hour),
		CORSOrigins:    p.list("CORS_ORIGINS", []string{"http://localhost:3000"}),
	}
	if len(p.errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(p.errs...))
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	// The postgres cache lives on the tracked_items rows.
	if cfg.CacheBackend == BackendPostgres && cfg.StoreBackend != BackendPostgres {
		return nil, fmt.Errorf("%w: CACHE_BACKEND=postgres requires STORE_BACKEND=postgres", ErrInvalid)
	}
	return cfg, nil
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) number(key string, def float64) float64 {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) boolean(key string, def bool) bool {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) list(key string, def []string) []string {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// endpoint reads <PREFIX>_API_KEY, <PREFIX>_BASE_URL and <PREFIX>_MODEL.
func (p *parser) endpoint(prefix string) providers.Endpoint {
	return providers.Endpoint{
		APIKey:  p.str(prefix+"_API_KEY", ""),
		BaseURL: p.str(prefix+"_BASE_URL", ""),
		Model:   p.str(prefix+"_MODEL", ""),
	}
}

// promos parses "CODE:credits,CODE2:credits". Codes are upper-cased.
func (p *parser) promos(key string) map[string]int {
	out := map[string]int{}
	for _, pair := range p.list(key, nil) {
		code, n, ok := strings.Cut(pair, ":")
		code = strings.ToUpper(strings.TrimSpace(code))
		credits, err := strconv.Atoi(strings.TrimSpace(n))
		if !ok || code == "" || err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: bad entry %q", key, pair))
			continue
		}
		out[code] = credits
	}
	return out
}
