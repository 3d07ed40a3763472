package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	CredentialBackendFile     = "file"
	CredentialBackendPostgres = "postgres"

	RenderEngineFPDF   = "fpdf"
	RenderEngineChrome = "chrome"
)

type Config struct {
	Addr    string `yaml:"addr"`
	DataDir string `yaml:"data_dir"`
	Debug   bool   `yaml:"debug"`

	// Bootstrap admin identity and the secrets both encryption keys derive from.
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`
	MasterKey     string `yaml:"master_key"`

	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	CookieSecure  bool          `yaml:"cookie_secure"`
	RedisURL      string        `yaml:"redis_url"`

	CredentialBackend string `yaml:"credential_backend"`
	DatabaseURL       string `yaml:"database_url"`

	RenderEngine string `yaml:"render_engine"`
	History      bool   `yaml:"history"`

	MinIO MinIOConfig `yaml:"minio"`
}

// MinIOConfig enables the artifact mirror when Endpoint is set.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

func (c Config) IdeasDir() string {
	return filepath.Join(c.DataDir, "ideas")
}

func (c Config) UsersFile() string {
	return filepath.Join(c.DataDir, "users", "users.enc")
}

func Default() Config {
	return Config{
		Addr:              ":8787",
		DataDir:           "./data",
		SessionTTL:        7 * 24 * time.Hour,
		CredentialBackend: CredentialBackendFile,
		RenderEngine:      RenderEngineFPDF,
		History:           true,
		MinIO: MinIOConfig{
			Bucket: "ideajournal-artifacts",
		},
	}
}

// Load builds the configuration from defaults, then the optional YAML file at
// path, then the environment. Callers apply flag overrides afterwards and
// call Validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Addr = getenv("API_ADDR", cfg.Addr)
	cfg.DataDir = getenv("IDEAJOURNAL_DATA_DIR", cfg.DataDir)
	cfg.Debug = getenvBool("IDEAJOURNAL_DEBUG", cfg.Debug)
	cfg.AdminUsername = getenv("IDEAJOURNAL_ADMIN_USERNAME", cfg.AdminUsername)
	cfg.AdminPassword = getenv("IDEAJOURNAL_ADMIN_PASSWORD", cfg.AdminPassword)
	cfg.MasterKey = getenv("IDEAJOURNAL_MASTER_KEY", cfg.MasterKey)
	cfg.SessionSecret = getenv("IDEAJOURNAL_SESSION_SECRET", cfg.SessionSecret)
	cfg.SessionTTL = time.Duration(getenvInt("IDEAJOURNAL_SESSION_TTL_SECONDS", int(cfg.SessionTTL/time.Second))) * time.Second
	cfg.CookieSecure = getenvBool("IDEAJOURNAL_COOKIE_SECURE", cfg.CookieSecure)
	cfg.RedisURL = getenv("REDIS_URL", cfg.RedisURL)
	cfg.CredentialBackend = getenv("IDEAJOURNAL_CREDENTIAL_BACKEND", cfg.CredentialBackend)
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RenderEngine = getenv("IDEAJOURNAL_RENDER_ENGINE", cfg.RenderEngine)
	cfg.History = getenvBool("IDEAJOURNAL_HISTORY", cfg.History)
	cfg.MinIO.Endpoint = getenv("MINIO_ENDPOINT", cfg.MinIO.Endpoint)
	cfg.MinIO.AccessKey = getenv("MINIO_ACCESS_KEY", cfg.MinIO.AccessKey)
	cfg.MinIO.SecretKey = getenv("MINIO_SECRET_KEY", cfg.MinIO.SecretKey)
	cfg.MinIO.Bucket = getenv("MINIO_BUCKET", cfg.MinIO.Bucket)
	cfg.MinIO.UseSSL = getenvBool("MINIO_USE_SSL", cfg.MinIO.UseSSL)

	return cfg, nil
}

// Validate reports every missing or unusable setting at once.
func (c Config) Validate() error {
	var errs []error

	var missing []string
	if c.AdminUsername == "" {
		missing = append(missing, "IDEAJOURNAL_ADMIN_USERNAME")
	}
	if c.AdminPassword == "" {
		missing = append(missing, "IDEAJOURNAL_ADMIN_PASSWORD")
	}
	if c.MasterKey == "" {
		missing = append(missing, "IDEAJOURNAL_MASTER_KEY")
	}
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required settings: %s", strings.Join(missing, ", ")))
	}

	switch c.CredentialBackend {
	case CredentialBackendFile:
	case CredentialBackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("credential backend postgres requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown credential backend %q", c.CredentialBackend))
	}

	switch c.RenderEngine {
	case RenderEngineFPDF, RenderEngineChrome:
	default:
		errs = append(errs, fmt.Errorf("unknown render engine %q", c.RenderEngine))
	}

	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}

	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
