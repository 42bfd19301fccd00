package config

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	// Filesystem storage
	StorageRoot string
	CreateRoot  bool // mkdir the root if it is missing

	// Share links
	LinkBaseURL    string        // prefix for issued content URLs, e.g. https://blob.example.com
	LinkExpireTime time.Duration // default validity window for issued links
	GCInterval     time.Duration // expired-link sweep interval

	// Per-bucket signing secrets, bucketID -> key
	BucketKeys map[string]string

	// Management API auth
	AuthHMACSecret string
	AdminUser      string
	AdminPassHash  string // bcrypt

	CORSOrigins []string
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr: addr,

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		StorageRoot: envOr("STORAGE_ROOT", "./data/blobs"),
		CreateRoot:  envBool("STORAGE_CREATE_ROOT", true),

		LinkBaseURL:    strings.TrimSuffix(envOr("LINK_BASE_URL", "http://localhost:8080"), "/"),
		LinkExpireTime: envDurOr("LINK_EXPIRE_TIME", 24*time.Hour),
		GCInterval:     envDurOr("GC_INTERVAL", time.Hour),

		BucketKeys: kvOr("BUCKET_KEYS"),

		AuthHMACSecret: envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		AdminUser:      envOr("ADMIN_USER", "admin"),
		AdminPassHash:  envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000"),
	}
}

// BucketKey returns the signing secret for a bucket, or "" if none is configured.
func (c Config) BucketKey(bucketID string) string {
	return c.BucketKeys[bucketID]
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envDurOr(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// kvOr parses "bucket1=key1,bucket2=key2" style env values.
func kvOr(k string) map[string]string {
	v := os.Getenv(k)
	if v == "" {
		return nil
	}
	out := map[string]string{}
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, key, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		out[name] = key
	}
	return out
}
