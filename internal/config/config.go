package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	OutputDir string
	LogFile   string

	PlatformBaseURL   string
	PublishingID      string
	ProductKey        string
	LicenseTerms      string
	PlatformRateRPS   int
	PlatformTimeoutMs int
	IngestURL         string
	IngestTimeoutMs   int
	TokenTTLSec       int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string
	GmailUser         string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string

	SweepMaxDays         int
	CheckpointPerAccount bool
	LinkCountryCode      string

	DaemonIntervalSec int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "capture.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		LogFile:   getEnv("LOG_FILE", ""),

		PlatformBaseURL:   getEnv("PLATFORM_BASE_URL", "https://account.mytiki.com/api/latest"),
		PublishingID:      getEnv("PUBLISHING_ID", ""),
		ProductKey:        getEnv("PRODUCT_KEY", ""),
		LicenseTerms:      getEnv("LICENSE_TERMS", "purchase history licensed for analytics"),
		PlatformRateRPS:   getEnvInt("PLATFORM_RATE_LIMIT_RPS", 5),
		PlatformTimeoutMs: getEnvInt("PLATFORM_TIMEOUT_MS", 30000),
		IngestURL:         getEnv("INGEST_URL", "https://ingest.mytiki.com/api/latest/receipt"),
		IngestTimeoutMs:   getEnvInt("INGEST_TIMEOUT_MS", 30000),
		TokenTTLSec:       getEnvInt("TOKEN_TTL_SEC", 600),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),
		GmailUser:         getEnv("GMAIL_USER", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),

		SweepMaxDays:         getEnvInt("SWEEP_MAX_DAYS", 15),
		CheckpointPerAccount: getEnvBool("CHECKPOINT_PER_ACCOUNT", false),
		LinkCountryCode:      getEnv("LINK_COUNTRY_CODE", "US"),

		DaemonIntervalSec: getEnvInt("DAEMON_INTERVAL_SEC", 3600),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
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
