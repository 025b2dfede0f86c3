package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

var (
	ErrMissingJWTSecret = errors.New("config: JWT_SECRET must be set")
	ErrUnknownStore     = errors.New("config: unknown STORE_DRIVER")
)

type Config struct {
	Env  string
	Port int

	StoreDriver string
	MongoURI    string
	MongoDB     string
	DBURL       string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	JWTTTL    time.Duration

	WorkerHealthPort int

	OTLPEndpoint   string
	AllowedOrigins []string
	MaxBodyBytes   int64
}

func Load() Config {
	// a missing .env is fine, real deployments inject the environment directly
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "dev")

	mongoDB := getEnv("MONGO_DB", "travelhub")
	if env == "test" {
		mongoDB = getEnv("MONGO_TEST_DB", "travelhub_test")
	}

	return Config{
		Env:              env,
		Port:             getEnvInt("PORT", 3900),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", StoreMongo)),
		MongoURI:         getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:          mongoDB,
		DBURL:            buildDBURL(),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTTTL:           getEnvDuration("JWT_TTL", 24*time.Hour),
		WorkerHealthPort: getEnvInt("WORKER_HEALTH_PORT", 8081),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		AllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		MaxBodyBytes:     int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
	}
}

// Validate reports configuration the process cannot serve with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}

	switch c.StoreDriver {
	case StoreMongo, StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStore, c.StoreDriver)
	}

	return nil
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "travelhub")
	pass := getEnv("DB_PASSWORD", "travelhub")
	name := getEnv("DB_NAME", "travelhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// WithTimeout bounds one persistence call made on behalf of parent.
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)

		if err != nil {
			return fallback
		}

		return d
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
