package config

import (
	"os"
	"strings"
)

// Settings collects the process configuration read from the environment.
type Settings struct {
	Port               string
	Env                string
	APISecret          string
	AuditSink          string // log | db | pubsub
	AuditTopic         string
	AuditBufferSize    int
	AuditWorkers       int
	ImageBucket        string
	ReconcileCron      string
	Timezone           string
	CorsAllowedOrigins []string
	RateLimitWindowSec int
	RateLimitMax       int
}

func LoadSettings() Settings {
	s := Settings{
		Port:               envString("API_PORT", "8080"),
		Env:                envString("GO_ENV", "development"),
		APISecret:          os.Getenv("API_SECRET"),
		AuditSink:          strings.ToLower(envString("AUDIT_SINK", "log")),
		AuditTopic:         os.Getenv("AUDIT_TOPIC"),
		AuditBufferSize:    intFromEnv("AUDIT_BUFFER_SIZE", 1024),
		AuditWorkers:       intFromEnv("AUDIT_WORKERS", 2),
		ImageBucket:        os.Getenv("GCS_BUCKET"),
		ReconcileCron:      envString("RECONCILE_CRON", "30 2 * * *"),
		Timezone:           envString("SHOP_TIMEZONE", "Asia/Kolkata"),
		RateLimitWindowSec: intFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMax:       intFromEnv("RATE_LIMIT_MAX_REQUESTS", 300),
	}
	// Cloud Run injects PORT.
	if p := os.Getenv("PORT"); p != "" {
		s.Port = p
	}
	for _, o := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			s.CorsAllowedOrigins = append(s.CorsAllowedOrigins, o)
		}
	}
	return s
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
