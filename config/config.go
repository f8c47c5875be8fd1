package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONTRACTSCORE_CONFIG is not set.
const DefaultPath = "config.yaml"

// DefaultMaxFileSize is 50 MiB.
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Auth       AuthConfig       `yaml:"auth"`
	Users      []User           `yaml:"users"`
	Upload     UploadConfig     `yaml:"upload"`
	Storage    StorageConfig    `yaml:"storage"`
	Database   DatabaseConfig   `yaml:"database"`
	Registry   RegistryConfig   `yaml:"registry"`
	Events     EventsConfig     `yaml:"events"`
	Extractor  ExtractorConfig  `yaml:"extractor"`
	Processing ProcessingConfig `yaml:"processing"`
	Inbox      InboxConfig      `yaml:"inbox"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type UploadConfig struct {
	MaxFileSize int64 `yaml:"max_file_size"`
}

type StorageConfig struct {
	Driver   string      `yaml:"driver"` // local, minio
	LocalDir string      `yaml:"local_dir"`
	Minio    MinioConfig `yaml:"minio"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type DatabaseConfig struct {
	Driver        string `yaml:"driver"` // memory, sqlite, postgres, mongo
	DSN           string `yaml:"dsn"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

type RegistryConfig struct {
	Driver        string        `yaml:"driver"` // memory, redis
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	LockTTL       time.Duration `yaml:"lock_ttl"`
}

type EventsConfig struct {
	Driver  string   `yaml:"driver"` // none, log, kafka
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type ExtractorConfig struct {
	Driver string       `yaml:"driver"` // local, remote
	Remote RemoteConfig `yaml:"remote"`
}

// RemoteConfig points at an HTTP document-to-text API.
type RemoteConfig struct {
	APIURL       string        `yaml:"api_url"`
	APIToken     string        `yaml:"api_token"`
	ModelVersion string        `yaml:"model_version"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

type ProcessingConfig struct {
	Workers   int           `yaml:"workers"`
	QueueSize int           `yaml:"queue_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

type InboxConfig struct {
	Dir      string        `yaml:"dir"`
	Debounce time.Duration `yaml:"debounce"`
}

var GlobalConfig *Config

// Path returns the config file location from the environment, falling back
// to DefaultPath.
func Path() string {
	if p := strings.TrimSpace(os.Getenv("CONTRACTSCORE_CONFIG")); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads an optional .env file, the YAML config at path, environment
// overrides and defaults, in that order, then validates the result. A missing
// YAML file is not an error; the service can run on env and defaults alone.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	applyEnv(&cfg)
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Upload.MaxFileSize == 0 {
		c.Upload.MaxFileSize = DefaultMaxFileSize
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "local"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "uploads"
	}
	if c.Storage.Minio.ExpireDays == 0 {
		c.Storage.Minio.ExpireDays = 7
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Database.MongoDatabase == "" {
		c.Database.MongoDatabase = "contracts"
	}
	if c.Registry.Driver == "" {
		c.Registry.Driver = "memory"
	}
	if c.Registry.LockTTL == 0 {
		c.Registry.LockTTL = 15 * time.Minute
	}
	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "contract-events"
	}
	if c.Extractor.Driver == "" {
		c.Extractor.Driver = "local"
	}
	if c.Extractor.Remote.ModelVersion == "" {
		c.Extractor.Remote.ModelVersion = "vlm"
	}
	if c.Extractor.Remote.PollInterval == 0 {
		c.Extractor.Remote.PollInterval = 5 * time.Second
	}
	if c.Extractor.Remote.MaxAttempts == 0 {
		c.Extractor.Remote.MaxAttempts = 60
	}
	if c.Processing.Workers == 0 {
		c.Processing.Workers = 4
	}
	if c.Processing.QueueSize == 0 {
		c.Processing.QueueSize = 256
	}
	if c.Inbox.Debounce == 0 {
		c.Inbox.Debounce = 500 * time.Millisecond
	}
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Upload.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("upload.max_file_size must be positive"))
	}
	if !oneOf(c.Storage.Driver, "local", "minio") {
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.Storage.Driver == "minio" && (c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "") {
		errs = append(errs, fmt.Errorf("storage.minio requires endpoint and bucket"))
	}
	if !oneOf(c.Database.Driver, "memory", "sqlite", "postgres", "mongo") {
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	if (c.Database.Driver == "sqlite" || c.Database.Driver == "postgres") && c.Database.DSN == "" {
		errs = append(errs, fmt.Errorf("database.dsn is required for %s", c.Database.Driver))
	}
	if c.Database.Driver == "mongo" && c.Database.MongoURI == "" {
		errs = append(errs, fmt.Errorf("database.mongo_uri is required for mongo"))
	}
	if !oneOf(c.Registry.Driver, "memory", "redis") {
		errs = append(errs, fmt.Errorf("unknown registry.driver %q", c.Registry.Driver))
	}
	if c.Registry.Driver == "redis" && c.Registry.RedisAddr == "" {
		errs = append(errs, fmt.Errorf("registry.redis_addr is required for redis"))
	}
	if !oneOf(c.Events.Driver, "none", "log", "kafka") {
		errs = append(errs, fmt.Errorf("unknown events.driver %q", c.Events.Driver))
	}
	if c.Events.Driver == "kafka" && len(c.Events.Brokers) == 0 {
		errs = append(errs, fmt.Errorf("events.brokers is required for kafka"))
	}
	if !oneOf(c.Extractor.Driver, "local", "remote") {
		errs = append(errs, fmt.Errorf("unknown extractor.driver %q", c.Extractor.Driver))
	}
	if c.Extractor.Driver == "remote" && c.Extractor.Remote.APIURL == "" {
		errs = append(errs, fmt.Errorf("extractor.remote.api_url is required for remote"))
	}
	if c.Processing.Workers < 0 || c.Processing.QueueSize < 0 || c.Processing.Timeout < 0 {
		errs = append(errs, fmt.Errorf("processing values must not be negative"))
	}
	return errors.Join(errs...)
}

// applyEnv overrides file values with CONTRACTSCORE_* variables.
func applyEnv(c *Config) {
	setInt(&c.Server.Port, "CONTRACTSCORE_PORT")
	setString(&c.Log.Level, "CONTRACTSCORE_LOG_LEVEL")
	setString(&c.Log.Format, "CONTRACTSCORE_LOG_FORMAT")
	setString(&c.Auth.JWTSecret, "CONTRACTSCORE_JWT_SECRET")
	setInt64(&c.Upload.MaxFileSize, "CONTRACTSCORE_MAX_FILE_SIZE")

	setString(&c.Storage.Driver, "CONTRACTSCORE_STORAGE_DRIVER")
	setString(&c.Storage.LocalDir, "CONTRACTSCORE_STORAGE_DIR")
	setString(&c.Storage.Minio.Endpoint, "CONTRACTSCORE_MINIO_ENDPOINT")
	setString(&c.Storage.Minio.AccessKey, "CONTRACTSCORE_MINIO_ACCESS_KEY")
	setString(&c.Storage.Minio.SecretKey, "CONTRACTSCORE_MINIO_SECRET_KEY")
	setString(&c.Storage.Minio.Bucket, "CONTRACTSCORE_MINIO_BUCKET")

	setString(&c.Database.Driver, "CONTRACTSCORE_DB_DRIVER")
	setString(&c.Database.DSN, "CONTRACTSCORE_DB_DSN")
	setString(&c.Database.MongoURI, "CONTRACTSCORE_MONGO_URI")
	setString(&c.Database.MongoDatabase, "CONTRACTSCORE_MONGO_DATABASE")

	setString(&c.Registry.Driver, "CONTRACTSCORE_REGISTRY_DRIVER")
	setString(&c.Registry.RedisAddr, "CONTRACTSCORE_REDIS_ADDR")
	setString(&c.Registry.RedisPassword, "CONTRACTSCORE_REDIS_PASSWORD")

	setString(&c.Events.Driver, "CONTRACTSCORE_EVENTS_DRIVER")
	if v := strings.TrimSpace(os.Getenv("CONTRACTSCORE_KAFKA_BROKERS")); v != "" {
		c.Events.Brokers = strings.Split(v, ",")
	}
	setString(&c.Events.Topic, "CONTRACTSCORE_KAFKA_TOPIC")

	setString(&c.Extractor.Driver, "CONTRACTSCORE_EXTRACTOR_DRIVER")
	setString(&c.Extractor.Remote.APIURL, "CONTRACTSCORE_EXTRACTOR_API_URL")
	setString(&c.Extractor.Remote.APIToken, "CONTRACTSCORE_EXTRACTOR_API_TOKEN")

	setInt(&c.Processing.Workers, "CONTRACTSCORE_WORKERS")
	setDuration(&c.Processing.Timeout, "CONTRACTSCORE_PROCESSING_TIMEOUT")
	setString(&c.Inbox.Dir, "CONTRACTSCORE_INBOX_DIR")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		*dst = v
	}
}

func setInt64(dst *int64, key string) {
	if v, err := strconv.ParseInt(strings.TrimSpace(os.Getenv(key)), 10, 64); err == nil {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key))); err == nil {
		*dst = v
	}
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
