package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath         string
	RawMailDir     string
	InvoiceDir     string
	OutputDir      string
	ListingProfile string
	LogLevel       string

	// CostGroupKey selects the column rows are grouped by for cost
	// allocation: "sku" (manifest SKU) or "asin" (accounting identifier).
	CostGroupKey      string
	ProgressLinkEvery int
	ProgressRowEvery  int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:         getEnv("DB_PATH", filepath.Join(cwd, "data", "lotlister.db")),
		RawMailDir:     getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		InvoiceDir:     getEnv("INVOICE_DIR", filepath.Join(cwd, "data", "invoices")),
		OutputDir:      getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		ListingProfile: getEnv("LISTING_PROFILE", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		CostGroupKey:      strings.ToLower(getEnv("COST_GROUP_KEY", "sku")),
		ProgressLinkEvery: getEnvInt("PROGRESS_LINK_EVERY", 20),
		ProgressRowEvery:  getEnvInt("PROGRESS_ROW_EVERY", 50),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 60),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
	}

	if cfg.CostGroupKey != "sku" && cfg.CostGroupKey != "asin" {
		return Config{}, fmt.Errorf("COST_GROUP_KEY must be sku or asin, got %q", cfg.CostGroupKey)
	}
	if cfg.ProgressLinkEvery <= 0 {
		cfg.ProgressLinkEvery = 20
	}
	if cfg.ProgressRowEvery <= 0 {
		cfg.ProgressRowEvery = 50
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
