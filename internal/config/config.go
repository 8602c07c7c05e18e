package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envPort                  = "PORT"
	envServerReadTimeout     = "SERVER_READ_TIMEOUT"
	envServerWriteTimeout    = "SERVER_WRITE_TIMEOUT"
	envServerShutdownTimeout = "SERVER_SHUTDOWN_TIMEOUT"
	envStoreBackend          = "STORE_BACKEND"
	envDBHost                = "DB_HOST"
	envDBPort                = "DB_PORT"
	envDBName                = "DB_NAME"
	envDBUser                = "DB_USER"
	envDBPassword            = "DB_PASSWORD"
	envDBSSLMode             = "DB_SSL_MODE"
	envDBMaxConns            = "DB_MAX_CONNS"
	envDBMinConns            = "DB_MIN_CONNS"
	envAWSRegion             = "REGION"
	envAWSAccessKeyID        = "AWS_ACCESS_KEY_ID"
	envAWSSecretAccessKey    = "AWS_SECRET_ACCESS_KEY"
	envBucketName            = "BUCKET_NAME"
	envS3Endpoint            = "S3_ENDPOINT"
	envPresignedURLExpiry    = "PRESIGNED_URL_EXPIRY"
	envHeadObjectTimeout     = "HEAD_OBJECT_TIMEOUT"
	envJWTSecret             = "JWT_SECRET"
	envJWTExpiry             = "JWT_EXPIRY_MINUTES"
	envShareCodeTTL          = "SHARE_CODE_TTL"
	envShareCodeLength       = "SHARE_CODE_LENGTH"
	envTrashRetention        = "TRASH_RETENTION"
	envMaxTreeDepth          = "MAX_TREE_DEPTH"
	envDefaultQuotaBytes     = "DEFAULT_QUOTA_BYTES"
	envDefaultPlanID         = "DEFAULT_PLAN_ID"
	envWorkerInterval        = "WORKER_INTERVAL"
	envWorkerBatchSize       = "WORKER_BATCH_SIZE"
	envRedisURL              = "REDIS_URL"
	envLogLevel              = "LOG_LEVEL"
	envRateLimitRPS          = "RATE_LIMIT_RPS"
	envRateLimitBurst        = "RATE_LIMIT_BURST"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

const (
	defaultServerPort          = "8080"
	defaultServerReadTimeout   = 10 * time.Second
	defaultServerWriteTimeout  = 10 * time.Second
	defaultServerShutdown      = 10 * time.Second
	defaultStoreBackend        = BackendPostgres
	defaultDBHost              = "localhost"
	defaultDBPort              = 5432
	defaultDBName              = "driveservice"
	defaultDBUser              = "driveservice_app"
	defaultDBSSLMode           = "disable"
	defaultDBMaxConns          = 25
	defaultDBMinConns          = 5
	defaultJWTExpiry           = 60 * time.Minute
	defaultPresignedURLExpiry  = 15 * time.Minute
	defaultHeadObjectTimeout   = 5 * time.Second
	defaultShareCodeTTL        = 7 * 24 * time.Hour
	defaultShareCodeLength     = 16
	defaultTrashRetention      = 30 * 24 * time.Hour
	defaultMaxTreeDepth        = 64
	defaultQuotaBytes          = int64(5 * 1024 * 1024 * 1024)
	defaultPlanID              = "free"
	defaultWorkerInterval      = 5 * time.Minute
	defaultWorkerBatchSize     = 100
	defaultLogLevel            = "info"
	defaultRateLimitRPS        = 100
	defaultRateLimitBurst      = 200
	minJWTSecretLength         = 32
	minUniqueCharsInSecret     = 16
	minRepeatedCharThreshold   = 4
	maxRepeatedChars           = 2
	minShareCodeLength         = 12
	errPortRequiredFmt         = "PORT must be set"
	errUnknownBackendFmt       = "STORE_BACKEND must be %q or %q, got %q"
	errJWTSecretMinLengthFmt   = "JWT_SECRET must be at least %d characters"
	errJWTSecretLowEntropyFmt  = "JWT_SECRET has insufficient entropy (appears non-random). Use a cryptographically secure random string."
	errShareCodeLengthFmt      = "SHARE_CODE_LENGTH must be at least %d"
	errPositiveDurationFmt     = "%s must be positive"
	errPositiveIntFmt          = "%s must be positive"
	errInvalidConfigurationFmt = "invalid configuration: %w"
	errRequiredEnvNotSetFmt    = "required environment variable %s is not set"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	AWS      AWSConfig
	JWT      JWTConfig
	Drive    DriveConfig
	Worker   WorkerConfig
	Redis    RedisConfig
	Log      LogConfig
	Limits   RateLimitConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Backend  string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int
	MinConns int
}

type AWSConfig struct {
	Region             string
	AccessKeyID        string
	SecretAccessKey    string
	BucketName         string
	Endpoint           string
	PresignedURLExpiry time.Duration
	HeadObjectTimeout  time.Duration
}

type JWTConfig struct {
	Secret         string
	ExpiryDuration time.Duration
}

// DriveConfig holds the tree, sharing and quota knobs.
type DriveConfig struct {
	ShareCodeTTL      time.Duration
	ShareCodeLength   int
	TrashRetention    time.Duration
	MaxTreeDepth      int
	DefaultQuotaBytes int64
	DefaultPlanID     string
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
}

type RedisConfig struct {
	URL string
}

type LogConfig struct {
	Level string
}

type RateLimitConfig struct {
	RPS   int
	Burst int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv(envPort, defaultServerPort),
			ReadTimeout:     getDurationEnv(envServerReadTimeout, defaultServerReadTimeout),
			WriteTimeout:    getDurationEnv(envServerWriteTimeout, defaultServerWriteTimeout),
			ShutdownTimeout: getDurationEnv(envServerShutdownTimeout, defaultServerShutdown),
		},
		Database: DatabaseConfig{
			Backend:  strings.ToLower(getEnv(envStoreBackend, defaultStoreBackend)),
			Host:     getEnv(envDBHost, defaultDBHost),
			Port:     getIntEnv(envDBPort, defaultDBPort),
			Database: getEnv(envDBName, defaultDBName),
			User:     getEnv(envDBUser, defaultDBUser),
			Password: os.Getenv(envDBPassword),
			SSLMode:  getEnv(envDBSSLMode, defaultDBSSLMode),
			MaxConns: getIntEnv(envDBMaxConns, defaultDBMaxConns),
			MinConns: getIntEnv(envDBMinConns, defaultDBMinConns),
		},
		AWS: AWSConfig{
			Region:             os.Getenv(envAWSRegion),
			AccessKeyID:        os.Getenv(envAWSAccessKeyID),
			SecretAccessKey:    os.Getenv(envAWSSecretAccessKey),
			BucketName:         os.Getenv(envBucketName),
			Endpoint:           os.Getenv(envS3Endpoint),
			PresignedURLExpiry: getDurationEnv(envPresignedURLExpiry, defaultPresignedURLExpiry),
			HeadObjectTimeout:  getDurationEnv(envHeadObjectTimeout, defaultHeadObjectTimeout),
		},
		JWT: JWTConfig{
			Secret:         os.Getenv(envJWTSecret),
			ExpiryDuration: getDurationEnv(envJWTExpiry, defaultJWTExpiry),
		},
		Drive: DriveConfig{
			ShareCodeTTL:      getDurationEnv(envShareCodeTTL, defaultShareCodeTTL),
			ShareCodeLength:   getIntEnv(envShareCodeLength, defaultShareCodeLength),
			TrashRetention:    getDurationEnv(envTrashRetention, defaultTrashRetention),
			MaxTreeDepth:      getIntEnv(envMaxTreeDepth, defaultMaxTreeDepth),
			DefaultQuotaBytes: getInt64Env(envDefaultQuotaBytes, defaultQuotaBytes),
			DefaultPlanID:     getEnv(envDefaultPlanID, defaultPlanID),
		},
		Worker: WorkerConfig{
			Interval:  getDurationEnv(envWorkerInterval, defaultWorkerInterval),
			BatchSize: getIntEnv(envWorkerBatchSize, defaultWorkerBatchSize),
		},
		Redis: RedisConfig{
			URL: os.Getenv(envRedisURL),
		},
		Log: LogConfig{
			Level: getEnv(envLogLevel, defaultLogLevel),
		},
		Limits: RateLimitConfig{
			RPS:   getIntEnv(envRateLimitRPS, defaultRateLimitRPS),
			Burst: getIntEnv(envRateLimitBurst, defaultRateLimitBurst),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf(errInvalidConfigurationFmt, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New(errPortRequiredFmt)
	}

	switch c.Database.Backend {
	case BackendPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf(errRequiredEnvNotSetFmt, envDBPassword)
		}
	case BackendMemory:
	default:
		return fmt.Errorf(errUnknownBackendFmt, BackendPostgres, BackendMemory, c.Database.Backend)
	}

	required := map[string]string{
		envAWSRegion:          c.AWS.Region,
		envAWSAccessKeyID:     c.AWS.AccessKeyID,
		envAWSSecretAccessKey: c.AWS.SecretAccessKey,
		envBucketName:         c.AWS.BucketName,
		envJWTSecret:          c.JWT.Secret,
	}
	for _, key := range []string{envAWSRegion, envAWSAccessKeyID, envAWSSecretAccessKey, envBucketName, envJWTSecret} {
		if required[key] == "" {
			return fmt.Errorf(errRequiredEnvNotSetFmt, key)
		}
	}

	if len(c.JWT.Secret) < minJWTSecretLength {
		return fmt.Errorf(errJWTSecretMinLengthFmt, minJWTSecretLength)
	}

	if !hasMinimumEntropy(c.JWT.Secret) {
		return fmt.Errorf(errJWTSecretLowEntropyFmt)
	}

	if c.Drive.ShareCodeLength < minShareCodeLength {
		return fmt.Errorf(errShareCodeLengthFmt, minShareCodeLength)
	}

	durations := []struct {
		key   string
		value time.Duration
	}{
		{envShareCodeTTL, c.Drive.ShareCodeTTL},
		{envTrashRetention, c.Drive.TrashRetention},
		{envHeadObjectTimeout, c.AWS.HeadObjectTimeout},
		{envPresignedURLExpiry, c.AWS.PresignedURLExpiry},
		{envWorkerInterval, c.Worker.Interval},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf(errPositiveDurationFmt, d.key)
		}
	}

	ints := []struct {
		key   string
		value int64
	}{
		{envMaxTreeDepth, int64(c.Drive.MaxTreeDepth)},
		{envDefaultQuotaBytes, c.Drive.DefaultQuotaBytes},
		{envWorkerBatchSize, int64(c.Worker.BatchSize)},
		{envRateLimitRPS, int64(c.Limits.RPS)},
		{envRateLimitBurst, int64(c.Limits.Burst)},
	}
	for _, i := range ints {
		if i.value <= 0 {
			return fmt.Errorf(errPositiveIntFmt, i.key)
		}
	}

	return nil
}

func hasMinimumEntropy(secret string) bool {
	if len(secret) < minJWTSecretLength {
		return false
	}

	charCounts := make(map[rune]int)
	for _, char := range secret {
		charCounts[char]++
	}

	uniqueChars := len(charCounts)
	if uniqueChars < minUniqueCharsInSecret {
		return false
	}

	repeatedChars := 0
	for _, count := range charCounts {
		if count > len(secret)/minRepeatedCharThreshold {
			repeatedChars++
		}
	}

	return repeatedChars <= maxRepeatedChars
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations, a plain number of minutes, or whole days as "7d".
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if days, ok := strings.CutSuffix(value, "d"); ok {
			if n, err := strconv.Atoi(days); err == nil {
				return time.Duration(n) * 24 * time.Hour
			}
		}
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}
