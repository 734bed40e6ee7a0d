package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBolt     = "bolt"
	StoreFirebase = "firebase"
)

type Config struct {
	APIBaseURL string
	APITimeout time.Duration

	Port    string
	DataDir string

	LogLevel  string
	LogFormat string

	StoreBackend        string
	FirebaseKeyPath     string
	FirebaseDatabaseURL string

	WAPhoneNumberID string
	WAAccessToken   string
	WAVerifyToken   string

	TelegramBotToken string
}

// WhatsAppEnabled reports whether both Cloud API credentials are set.
func (c *Config) WhatsAppEnabled() bool {
	return c.WAPhoneNumberID != "" && c.WAAccessToken != ""
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != ""
}

func Load() (*Config, error) {
	// .env is optional; in production the variables are already set
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:          strings.TrimRight(os.Getenv("API_BASE_URL"), "/"),
		Port:                envOr("PORT", "8080"),
		DataDir:             envOr("DATA_DIR", "."),
		LogLevel:            envOr("LOG_LEVEL", "info"),
		LogFormat:           envOr("LOG_FORMAT", "json"),
		StoreBackend:        envOr("STORE_BACKEND", StoreBolt),
		FirebaseKeyPath:     os.Getenv("FIREBASE_SERVICE_ACCOUNT_KEY_PATH"),
		FirebaseDatabaseURL: os.Getenv("FIREBASE_DATABASE_URL"),
		WAPhoneNumberID:     os.Getenv("WA_PHONE_NUMBER_ID"),
		WAAccessToken:       os.Getenv("WA_ACCESS_TOKEN"),
		WAVerifyToken:       os.Getenv("WA_VERIFY_TOKEN"),
		TelegramBotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	timeout, err := time.ParseDuration(envOr("API_TIMEOUT", "15s"))
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("invalid API_TIMEOUT %q", os.Getenv("API_TIMEOUT"))
	}
	cfg.APITimeout = timeout

	if cfg.WAVerifyToken == "" {
		token, err := randomHex(16)
		if err != nil {
			return nil, fmt.Errorf("generating verify token: %w", err)
		}
		cfg.WAVerifyToken = token
	}

	required := []struct {
		name, val string
	}{
		{"API_BASE_URL", cfg.APIBaseURL},
	}
	switch cfg.StoreBackend {
	case StoreBolt:
	case StoreFirebase:
		required = append(required,
			struct{ name, val string }{"FIREBASE_SERVICE_ACCOUNT_KEY_PATH", cfg.FirebaseKeyPath},
			struct{ name, val string }{"FIREBASE_DATABASE_URL", cfg.FirebaseDatabaseURL},
		)
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (want %s or %s)", cfg.StoreBackend, StoreBolt, StoreFirebase)
	}
	for _, req := range required {
		if req.val == "" {
			return nil, fmt.Errorf("required env var %s is not set", req.name)
		}
	}

	if u, err := url.Parse(cfg.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("API_BASE_URL %q must be an http(s) URL", cfg.APIBaseURL)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
