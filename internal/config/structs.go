package config

type Config struct {
	// App: Global application metadata
	App AppConfig `mapstructure:"app"`

	// Server: Network configuration
	Server ServerConfig `mapstructure:"server"`

	// Log: Console log verbosity
	Log LogConfig `mapstructure:"log"`

	// AWS: Region, credentials and LocalStack endpoint shared by every AWS client
	AWS AWSConfig `mapstructure:"aws"`

	// Storage: Object store holding the image bytes
	Storage StorageConfig `mapstructure:"storage"`

	// Metadata: Document store holding one record per image
	Metadata MetadataConfig `mapstructure:"metadata"`

	// Upload: Batch and per-file constraints
	Upload UploadConfig `mapstructure:"upload"`

	// Cache: In-memory cache for presigned URLs
	Cache CacheConfig `mapstructure:"cache"`

	// Security: API token sources, CORS whitelist, and rate limiting
	Security SecurityConfig `mapstructure:"security"`
}

type AppConfig struct {
	// Name: Service name reported by the info and health routes
	Name string `mapstructure:"name"`

	// Version: Application semantic version (e.g., "1.0.0")
	Version string `mapstructure:"version"`

	// Environment: local, staging, production. "local" enables LocalStack endpoint resolution.
	Environment string `mapstructure:"environment"`

	// StartMessage: Print the startup banner
	StartMessage bool `mapstructure:"start_message"`
}

type ServerConfig struct {
	// Port: The TCP port the HTTP server will bind to (default: 8000)
	Port int `mapstructure:"port"`

	// ReadTimeout / WriteTimeout: e.g. "30s"
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
}

type AWSConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	// LocalstackEndpoint: e.g. "http://localhost:4566". Only honored when app.environment is "local".
	LocalstackEndpoint string `mapstructure:"localstack_endpoint"`
}

type StorageConfig struct {
	// Backend: "s3" or "memory"
	Backend string `mapstructure:"backend"`

	// Bucket: S3 bucket name
	Bucket string `mapstructure:"bucket"`

	// PresignTTL: Lifetime of generated download URLs (e.g., "1h")
	PresignTTL string `mapstructure:"presign_ttl"`

	// PublicHost: Replaces the docker-internal host in presigned URLs so browsers can reach LocalStack
	PublicHost string `mapstructure:"public_host"`
}

type MetadataConfig struct {
	// Backend: "dynamodb", "sqlite" or "memory"
	Backend string `mapstructure:"backend"`

	// Table: DynamoDB table name
	Table string `mapstructure:"table"`

	// SQLite: Local database settings, used when Backend is "sqlite"
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type SQLiteConfig struct {
	// Path: Physical location of the SQLite database file (e.g., ./data/imagevault.db)
	Path string `mapstructure:"path"`

	// OwnerIndex: Create the owner index during migration so listing by owner uses it
	OwnerIndex bool `mapstructure:"owner_index"`

	// MaintenanceInterval: Frequency of WAL checkpoint / VACUUM checks (e.g., "30m")
	MaintenanceInterval string `mapstructure:"maintenance_interval"`
}

type UploadConfig struct {
	// MaxFiles: Maximum number of files accepted in one batch
	MaxFiles int `mapstructure:"max_files"`

	// MaxFileSize: Maximum payload size per file (e.g., "10MB")
	MaxFileSize string `mapstructure:"max_file_size"`

	// AllowedExtensions: Lowercase extensions without dot. Empty disables the check.
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

type CacheConfig struct {
	// Enabled: Toggles the presigned URL cache
	Enabled bool `mapstructure:"enabled"`

	// MaxCapacity: Maximum RAM allocated for cache in MB
	MaxCapacity int `mapstructure:"max_capacity"`

	// TTL: Expiration of cached URLs. Must be shorter than storage.presign_ttl.
	TTL string `mapstructure:"ttl"`
}

type SecurityConfig struct {
	// SecretName: Secrets Manager secret holding the system API token
	SecretName string `mapstructure:"secret_name"`

	// UseSecretsManager: Fetch the API token from Secrets Manager before falling back to APIToken
	UseSecretsManager bool `mapstructure:"use_secrets_manager"`

	// APIToken: Static fallback token
	APIToken string `mapstructure:"api_token"`

	// CorsOrigins: List of allowed domains for browser-based cross-origin requests
	CorsOrigins []string `mapstructure:"cors_origins"`

	// RateLimit: Token-bucket limits per client IP
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	// Enabled: Global toggle for the rate limiting middleware
	Enabled bool `mapstructure:"enabled"`

	// Requests: Number of allowed requests per time window
	Requests int `mapstructure:"requests"`

	// Window: The timeframe for the request limit (e.g., "1s", "1m")
	Window string `mapstructure:"window"`

	// Burst: Temporary allowed spike capacity above the steady-rate limit
	Burst int `mapstructure:"burst"`
}
