package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces the environment variables read by parseEnv,
// e.g. GOPHPRESS_MASTER_KEY or GOPHPRESS_DATABASE_DSN.
const EnvPrefix = "GOPHPRESS_"

// parseEnv overlays GOPHPRESS_* environment variables. Secrets such as the
// master key and JWT secret are expected to arrive this way in production.
func parseEnv(config *Config) {
	k := koanf.New(".")
	provider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(provider, nil); err != nil {
		panic(fmt.Errorf("load environment: %w", err))
	}

	strs := map[string]*string{
		"http_addr":        &config.EndpointAddrHTTP,
		"database_dsn":     &config.DatabaseDSN,
		"secret_key":       &config.SecretKey,
		"master_key":       &config.MasterKey,
		"log_level":        &config.LogLevel,
		"s3_root_user":     &config.S3RootUser,
		"s3_root_password": &config.S3RootPassword,
		"s3_bucket":        &config.S3Bucket,
		"s3_region":        &config.S3Region,
		"s3_base_endpoint": &config.S3BaseEndpoint,
	}
	for key, dst := range strs {
		if k.Exists(key) {
			*dst = k.String(key)
		}
	}

	durations := map[string]*time.Duration{
		"access_token_validity_duration":  &config.AccessTokenValidityDuration,
		"refresh_token_validity_duration": &config.RefreshTokenValidityDuration,
		"rate_limit_window":               &config.RateLimitWindow,
	}
	for key, dst := range durations {
		if !k.Exists(key) {
			continue
		}
		d, err := time.ParseDuration(k.String(key))
		if err != nil {
			panic(fmt.Errorf("%s%s: %w", EnvPrefix, strings.ToUpper(key), err))
		}
		*dst = d
	}

	if k.Exists("bcrypt_cost") {
		config.BcryptCost = k.Int("bcrypt_cost")
	}
	if k.Exists("rate_limit_requests") {
		config.RateLimitRequests = k.Int("rate_limit_requests")
	}
	if k.Exists("cors_allowed_origins") {
		config.CORSAllowedOrigins = splitList(k.String("cors_allowed_origins"))
	}
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
