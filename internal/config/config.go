package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Address string
	Port    int
	GinMode string

	TLSCertFile string
	TLSKeyFile  string

	AuthCode     string
	AuthCodeHash string

	TokenSecret string
	// TokenSecretGenerated is set when no TOKEN_SECRET was configured and a
	// random one was drawn; tokens then stop verifying after a restart.
	TokenSecretGenerated bool
	TokenExpiry          time.Duration

	DatabaseDriver string
	DatabasePath   string
	DatabaseDSN    string
	StateFile      string

	Users          []string
	LoginRateLimit int
	StaticDir      string
	LogLevel       string
}

// ListenAddr is host:port for net/http.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// LoadConfig reads the process environment after merging any .env files.
// Variables already set in the environment win over .env values.
func LoadConfig(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Address:        "0.0.0.0",
		Port:           3000,
		GinMode:        "release",
		TokenExpiry:    24 * time.Hour,
		DatabaseDriver: "sqlite",
		DatabasePath:   "./data/health.db",
		LoginRateLimit: 10,
		LogLevel:       "info",
	}

	if raw := env.Getenv("ADDRESS"); raw != "" {
		cfg.Address = raw
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.AuthCode = env.Getenv("AUTH_CODE")
	cfg.AuthCodeHash = strings.TrimSpace(env.Getenv("AUTH_CODE_HASH"))
	if cfg.AuthCode == "" && cfg.AuthCodeHash == "" {
		return Config{}, fmt.Errorf("AUTH_CODE or AUTH_CODE_HASH is required")
	}

	cfg.TokenSecret = env.Getenv("TOKEN_SECRET")
	if cfg.TokenSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return Config{}, fmt.Errorf("generate token secret: %w", err)
		}
		cfg.TokenSecret = secret
		cfg.TokenSecretGenerated = true
	}

	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	if raw := strings.ToLower(strings.TrimSpace(env.Getenv("DATABASE_DRIVER"))); raw != "" {
		switch raw {
		case "sqlite", "postgres", "memory":
			cfg.DatabaseDriver = raw
		default:
			return Config{}, fmt.Errorf("invalid DATABASE_DRIVER %q", raw)
		}
	}
	if raw := env.Getenv("DATABASE_PATH"); raw != "" {
		cfg.DatabasePath = raw
	}
	cfg.DatabaseDSN = env.Getenv("DATABASE_DSN")
	if cfg.DatabaseDriver == "postgres" && cfg.DatabaseDSN == "" {
		return Config{}, fmt.Errorf("DATABASE_DSN is required for the postgres driver")
	}
	cfg.StateFile = env.Getenv("STATE_FILE")

	if raw := env.Getenv("USERS"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Users = append(cfg.Users, name)
			}
		}
	}

	if raw := env.Getenv("LOGIN_RATE_LIMIT"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid LOGIN_RATE_LIMIT")
		}
		cfg.LoginRateLimit = n
	}

	cfg.StaticDir = env.Getenv("STATIC_DIR")

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return Config{}, fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}

	return cfg, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
