package config

import (
	"os"
	"strconv"
	"strings"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	StoreDriver                  string
	DatabaseURL                  string
	JWTSecret                    string
	JWTIssuer                    string
	AccessTTLSeconds             int64
	RefreshTTLSeconds            int64
	Port                         string
	BackendURL                   string
	CorsOrigins                  []string
	LogDir                       string
	LogRetentionDays             int
	SMTPHost                     string
	SMTPPort                     int
	SMTPUser                     string
	SMTPPass                     string
	SMTPFrom                     string
	PostSurveyRequiresCompletion bool
	PublicRateLimitRPS           float64
	PublicRateLimitBurst         int
	MetricsDiskPath              string
	MetricsSampleSeconds         int
}

func Load() Config {
	driver := strings.ToLower(envOr("STORE_DRIVER", StoreDriverPostgres))
	databaseURL := envOr("DATABASE_URL", "")
	if driver == StoreDriverPostgres {
		databaseURL = mustEnv("DATABASE_URL")
	}
	port := envOr("PORT", "8080")
	return Config{
		StoreDriver:                  driver,
		DatabaseURL:                  databaseURL,
		JWTSecret:                    mustEnv("JWT_SECRET"),
		JWTIssuer:                    envOr("JWT_ISSUER", "riskscreen"),
		AccessTTLSeconds:             int64(envOrInt("ACCESS_TTL_SECONDS", 14400)),
		RefreshTTLSeconds:            int64(envOrInt("REFRESH_TTL_SECONDS", 1209600)),
		Port:                         port,
		BackendURL:                   strings.TrimRight(envOr("BACKEND_URL", "http://localhost:"+port), "/"),
		CorsOrigins:                  parseCSV(envOr("CORS_ORIGINS", "")),
		LogDir:                       envOr("LOG_DIR", "storage/logs"),
		LogRetentionDays:             envOrInt("LOG_RETENTION_DAYS", 7),
		SMTPHost:                     envOr("SMTP_HOST", ""),
		SMTPPort:                     envOrInt("SMTP_PORT", 587),
		SMTPUser:                     envOr("SMTP_USER", ""),
		SMTPPass:                     envOr("SMTP_PASS", ""),
		SMTPFrom:                     envOr("SMTP_FROM", "no-reply@riskscreen.local"),
		PostSurveyRequiresCompletion: envOrBool("POST_SURVEY_REQUIRES_COMPLETION", false),
		PublicRateLimitRPS:           envOrFloat("PUBLIC_RATE_LIMIT_RPS", 1),
		PublicRateLimitBurst:         envOrInt("PUBLIC_RATE_LIMIT_BURST", 10),
		MetricsDiskPath:              envOr("METRICS_DISK_PATH", "."),
		MetricsSampleSeconds:         envOrInt("METRICS_SAMPLE_INTERVAL", 30),
	}
}

func mustEnv(key string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		panic("missing env var: " + key)
	}
	return value
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}
