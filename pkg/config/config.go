// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Identity provider (Keycloak-compatible) base URL, e.g. http://idp:8080.
	// Realm endpoints are derived from it and from token issuers.
	IdPServer  string
	IdPTimeout time.Duration

	// Out-of-band required-role declarations per route (YAML file).
	RoutePolicyFile string

	// Positive introspection results are memoized in redis for this long.
	IntrospectionTTL time.Duration

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:              env("REALMGATE_ENV", "dev"),
		HTTPAddr:         env("REALMGATE_HTTP_ADDR", ":8080"),
		IdPServer:        env("IDP_SERVER", "http://localhost:8180"),
		IdPTimeout:       envDur("IDP_TIMEOUT_SEC", 10) * time.Second,
		RoutePolicyFile:  env("ROUTE_POLICY_FILE", ""),
		IntrospectionTTL: envDur("INTROSPECTION_CACHE_TTL_SEC", 30) * time.Second,
		RedisURL:         env("REDIS_URL", ""),
		DatabaseURL:      env("DATABASE_URL", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — using in-memory tenant registry for dev")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
