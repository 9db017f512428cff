package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	APIKey      string
	Negotiation NegotiationConfig
	FMCSA       FMCSAConfig
	Transcript  TranscriptConfig
}

type NegotiationConfig struct {
	MaxRounds  int
	Margin     string
	SessionTTL time.Duration
}

type FMCSAConfig struct {
	BaseURL string
	WebKey  string
}

type TranscriptConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8080", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	cfg := &Config{
		Port:        *port,
		Env:         env,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		APIKey:      strings.TrimSpace(os.Getenv("API_KEY")),
		Negotiation: loadNegotiationConfig(),
		FMCSA: FMCSAConfig{
			BaseURL: strings.TrimSpace(os.Getenv("FMCSA_BASE_URL")),
			WebKey:  strings.TrimSpace(os.Getenv("FMCSA_WEBKEY")),
		},
		Transcript: loadTranscriptConfig(env),
	}
	if strings.EqualFold(env, "local") {
		applyLocalDefaults(cfg)
	}
	return cfg, nil
}

func loadNegotiationConfig() NegotiationConfig {
	cfg := NegotiationConfig{
		MaxRounds:  3,
		Margin:     "0.85",
		SessionTTL: 24 * time.Hour,
	}
	if raw := strings.TrimSpace(os.Getenv("NEGOTIATION_MAX_ROUNDS")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			cfg.MaxRounds = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("NEGOTIATION_MARGIN")); raw != "" {
		cfg.Margin = raw
	}
	if raw := strings.TrimSpace(os.Getenv("NEGOTIATION_SESSION_TTL")); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil && v > 0 {
			cfg.SessionTTL = v
		}
	}
	return cfg
}

func loadTranscriptConfig(env string) TranscriptConfig {
	endpoint := resolveTranscriptEndpoint(env)
	return TranscriptConfig{
		Enabled:   strings.EqualFold(strings.TrimSpace(env), "local") || endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("TRANSCRIPT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("TRANSCRIPT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("TRANSCRIPT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("TRANSCRIPT_S3_BUCKET")), "carrierdesk-transcripts"),
		UseSSL:    resolveTranscriptUseSSL(env),
	}
}

func resolveTranscriptEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("TRANSCRIPT_MINIO_ENDPOINT")), "minio:9000")
	}
	return strings.TrimSpace(os.Getenv("TRANSCRIPT_S3_ENDPOINT"))
}

func resolveTranscriptUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("TRANSCRIPT_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

// CanUseS3 reports whether the transcript config is complete enough to talk
// to object storage.
func (t TranscriptConfig) CanUseS3() bool {
	return t.Endpoint != "" && t.AccessKey != "" && t.SecretKey != "" && t.Bucket != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
