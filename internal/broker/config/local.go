package config

import (
	"os"
	"strings"
)

// applyLocalDefaults fills in the docker-compose credentials a developer
// laptop expects when the corresponding env vars are unset.
func applyLocalDefaults(cfg *Config) {
	cfg.Transcript.Enabled = true
	cfg.Transcript.Endpoint = firstNonEmpty(strings.TrimSpace(os.Getenv("TRANSCRIPT_MINIO_ENDPOINT")), "minio:9000")
	cfg.Transcript.AccessKey = firstNonEmpty(cfg.Transcript.AccessKey, "carrierdesk")
	cfg.Transcript.SecretKey = firstNonEmpty(cfg.Transcript.SecretKey, "carrierdesk123")
	cfg.Transcript.UseSSL = false
}
