package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"imagevault/pkg/logger"
	"imagevault/pkg/utils"
)

const (
	EnvLocal      = "local"
	EnvProduction = "production"

	DefaultPresignTTL = time.Hour
)

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. An empty path looks for
// ./config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("IMAGEVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Variable names used by existing deployments
	v.BindEnv("app.environment", "IMAGEVAULT_APP_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("aws.region", "IMAGEVAULT_AWS_REGION", "AWS_REGION")
	v.BindEnv("aws.access_key_id", "IMAGEVAULT_AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	v.BindEnv("aws.secret_access_key", "IMAGEVAULT_AWS_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")
	v.BindEnv("aws.localstack_endpoint", "IMAGEVAULT_AWS_LOCALSTACK_ENDPOINT", "LOCALSTACK_ENDPOINT")
	v.BindEnv("storage.bucket", "IMAGEVAULT_STORAGE_BUCKET", "S3_BUCKET_NAME")
	v.BindEnv("metadata.table", "IMAGEVAULT_METADATA_TABLE", "DYNAMODB_TABLE_NAME")
	v.BindEnv("security.api_token", "IMAGEVAULT_SECURITY_API_TOKEN", "API_TOKEN")
	v.BindEnv("log.level", "IMAGEVAULT_LOG_LEVEL", "LOG_LEVEL")
	v.BindEnv("server.port", "IMAGEVAULT_SERVER_PORT", "APP_PORT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
			logger.LogInfo("Config file not found. Using Environment Variables and Defaults.")
		default:
			logger.LogWarn("Config file found but unreadable: %v", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "Image Service Application")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", EnvLocal)
	v.SetDefault("app.start_message", true)

	// Server
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")

	v.SetDefault("log.level", "info")

	// AWS
	v.SetDefault("aws.region", "us-east-1")

	// Object store
	v.SetDefault("storage.backend", "s3")
	v.SetDefault("storage.bucket", "image-storage-bucket")
	v.SetDefault("storage.presign_ttl", "1h")

	// Metadata store
	v.SetDefault("metadata.backend", "dynamodb")
	v.SetDefault("metadata.table", "ImageMetadata")
	v.SetDefault("metadata.sqlite.path", "./data/imagevault.db")
	v.SetDefault("metadata.sqlite.owner_index", true)
	v.SetDefault("metadata.sqlite.maintenance_interval", "30m")

	// Upload constraints
	v.SetDefault("upload.max_files", 10)
	v.SetDefault("upload.max_file_size", "10MB")
	v.SetDefault("upload.allowed_extensions", []string{"jpg", "jpeg", "png", "gif", "webp"})

	// Presigned URL cache
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_capacity", 16) // 16 MB
	v.SetDefault("cache.ttl", "10m")

	// Security & Limits
	v.SetDefault("security.secret_name", "image_service_api_token")
	v.SetDefault("security.use_secrets_manager", true)
	v.SetDefault("security.cors_origins", []string{"*"})
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests", 20)
	v.SetDefault("security.rate_limit.window", "1s")
	v.SetDefault("security.rate_limit.burst", 50)
}

func (c *Config) Validate() error {
	if _, err := utils.ParseSize(c.Upload.MaxFileSize); err != nil {
		return fmt.Errorf("invalid upload.max_file_size: %v", err)
	}

	if c.Upload.MaxFiles < 1 || c.Upload.MaxFiles > 100 {
		return fmt.Errorf("upload.max_files must be between 1 and 100, got %d", c.Upload.MaxFiles)
	}

	presignTTL, err := time.ParseDuration(c.Storage.PresignTTL)
	if err != nil || presignTTL <= 0 {
		return fmt.Errorf("invalid storage.presign_ttl format '%s'", c.Storage.PresignTTL)
	}

	if c.Cache.Enabled {
		cacheTTL, err := time.ParseDuration(c.Cache.TTL)
		if err != nil {
			return fmt.Errorf("invalid cache.ttl format '%s': %v", c.Cache.TTL, err)
		}
		if cacheTTL >= presignTTL {
			return fmt.Errorf("cache.ttl (%s) must be shorter than storage.presign_ttl (%s)", cacheTTL, presignTTL)
		}
	}

	if _, err := time.ParseDuration(c.Security.RateLimit.Window); err != nil {
		return fmt.Errorf("invalid rate_limit.window format '%s': %v", c.Security.RateLimit.Window, err)
	}

	switch c.Storage.Backend {
	case "s3", "memory":
	default:
		return fmt.Errorf("unknown storage.backend '%s' (want s3 or memory)", c.Storage.Backend)
	}

	switch c.Metadata.Backend {
	case "dynamodb", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown metadata.backend '%s' (want dynamodb, sqlite or memory)", c.Metadata.Backend)
	}

	if c.Storage.Backend == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required for the s3 backend")
	}
	if c.Metadata.Backend == "dynamodb" && c.Metadata.Table == "" {
		return fmt.Errorf("metadata.table is required for the dynamodb backend")
	}

	if c.App.Environment == EnvProduction && c.Security.APIToken == "" && !c.Security.UseSecretsManager {
		return fmt.Errorf("production requires security.api_token or security.use_secrets_manager")
	}

	if c.Security.APIToken == "" && !c.Security.UseSecretsManager {
		logger.LogWarn("Security Alert: No API token source configured. Authenticated routes will reject every request.")
	}

	return nil
}

// MaxFileSizeBytes returns upload.max_file_size in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return utils.SizeToBytes(c.Upload.MaxFileSize, 10<<20)
}

// PresignTTL returns storage.presign_ttl, defaulting to one hour.
func (c *Config) PresignTTL() time.Duration {
	d, err := time.ParseDuration(c.Storage.PresignTTL)
	if err != nil || d <= 0 {
		return DefaultPresignTTL
	}
	return d
}

// IsLocalstack reports whether AWS clients should target LocalStack.
func (c *Config) IsLocalstack() bool {
	return c.EndpointURL() != ""
}

// EndpointURL resolves the custom AWS endpoint. Empty means the real AWS endpoints.
func (c *Config) EndpointURL() string {
	if c.App.Environment != EnvLocal {
		return ""
	}
	if c.AWS.LocalstackEndpoint != "" {
		return c.AWS.LocalstackEndpoint
	}
	if host := os.Getenv("LOCALSTACK_HOSTNAME"); host != "" {
		return fmt.Sprintf("http://%s:4566", host)
	}
	if strings.EqualFold(os.Getenv("USE_HOST_DOCKER_INTERNAL"), "true") {
		return "http://host.docker.internal:4566"
	}
	return ""
}
