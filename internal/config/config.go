package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr         string
		MaxUploadMB  int64  `mapstructure:"max_upload_mb"`
		TemplatesDir string `mapstructure:"templates_dir"`
		StaticDir    string `mapstructure:"static_dir"`
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret       string `mapstructure:"jwt_secret"`
		TokenTTLMinutes int    `mapstructure:"token_ttl_minutes"`
	}
	Storage struct {
		Backend   string
		UploadDir string `mapstructure:"upload_dir"`
		OutputDir string `mapstructure:"output_dir"`
		Bucket    string
		KeyPrefix string `mapstructure:"key_prefix"`
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Enhance struct {
		StrictFilters bool  `mapstructure:"strict_filters"`
		MaxPixels     int64 `mapstructure:"max_pixels"`
	}
	Log struct {
		Level string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("ENHANCER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8000")
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("server.templates_dir", "templates")
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("database.path", "data/enhancer.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl_minutes", 30)
	v.SetDefault("storage.backend", StorageBackendLocal)
	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.output_dir", "outputs")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.key_prefix", "enhancer")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("enhance.strict_filters", false)
	v.SetDefault("enhance.max_pixels", 40_000_000)
	v.SetDefault("log.level", "info")
}

// Validate reports configuration the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth jwt secret is required"))
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		errs = append(errs, errors.New("auth token ttl must be positive"))
	}
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("server max upload size must be positive"))
	}
	if c.Enhance.MaxPixels <= 0 {
		errs = append(errs, errors.New("enhance max pixels must be positive"))
	}
	switch c.Storage.Backend {
	case StorageBackendLocal:
	case StorageBackendS3:
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			errs = append(errs, errors.New("storage bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	return errors.Join(errs...)
}

// TokenTTL returns the configured bearer token lifetime.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// MaxUploadBytes returns the multipart upload cap in bytes.
func (c Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
