package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	App       AppConfig
	Storage   StorageConfig
	DB        DBConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Shortener ShortenerConfig
}

type AppConfig struct {
	Port           string
	BaseURL        string
	LogLevel       string
	TrustedProxies []string
	// AdminAPIKey включает DELETE /api/links/:id; пустой ключ отключает маршрут
	AdminAPIKey string
}

type StorageConfig struct {
	Driver string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// DSN строка подключения в формате URL (её понимают и pgx, и migrate).
// Логин и пароль экранируются
func (c DBConfig) DSN(scheme string) string {
	dsn := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return dsn.String()
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
	CacheTTL time.Duration
}

func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Enabled возвращает false, если Redis не настроен (тогда кэш живёт в памяти процесса)
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type ShortenerConfig struct {
	CodeLength            int
	MaxAllocationAttempts int
}

func setDefaults() {
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("BASE_URL", "")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("TRUSTED_PROXIES", "")
	viper.SetDefault("ADMIN_API_KEY", "")
	viper.SetDefault("STORAGE_DRIVER", DriverSQLite)
	viper.SetDefault("SQLITE_PATH", "instance/url_shortener.sqlite")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_CONNS", 25)
	viper.SetDefault("DB_MIN_CONNS", 5)
	viper.SetDefault("REDIS_HOST", "")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_POOL_SIZE", 100)
	viper.SetDefault("CACHE_TTL", "24h")
	viper.SetDefault("CODE_LENGTH", 6)
	viper.SetDefault("MAX_ALLOCATION_ATTEMPTS", 10)
}

func Load() (*Config, error) {
	setDefaults()
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// .env необязателен, переменные окружения имеют приоритет
	if err := viper.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	cfg.App.Port = viper.GetString("APP_PORT")
	cfg.App.BaseURL = normalizeBaseURL(viper.GetString("BASE_URL"))
	cfg.App.LogLevel = viper.GetString("LOG_LEVEL")
	cfg.App.TrustedProxies = parseList(viper.GetString("TRUSTED_PROXIES"))
	cfg.App.AdminAPIKey = viper.GetString("ADMIN_API_KEY")

	cfg.Storage.Driver = strings.ToLower(viper.GetString("STORAGE_DRIVER"))
	cfg.SQLite.Path = viper.GetString("SQLITE_PATH")

	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.DB.SSLMode = viper.GetString("DB_SSLMODE")
	cfg.DB.MaxConns = viper.GetInt32("DB_MAX_CONNS")
	cfg.DB.MinConns = viper.GetInt32("DB_MIN_CONNS")

	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")
	cfg.Redis.Password = viper.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = viper.GetInt("REDIS_DB")
	cfg.Redis.PoolSize = viper.GetInt("REDIS_POOL_SIZE")
	cfg.Redis.CacheTTL = viper.GetDuration("CACHE_TTL")

	cfg.Shortener.CodeLength = viper.GetInt("CODE_LENGTH")
	cfg.Shortener.MaxAllocationAttempts = viper.GetInt("MAX_ALLOCATION_ATTEMPTS")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Shortener.CodeLength < 4 {
		return fmt.Errorf("CODE_LENGTH must be at least 4, got %d", c.Shortener.CodeLength)
	}
	if c.Shortener.MaxAllocationAttempts < 1 {
		return fmt.Errorf("MAX_ALLOCATION_ATTEMPTS must be positive, got %d", c.Shortener.MaxAllocationAttempts)
	}
	if c.DB.MaxConns < 1 || c.DB.MinConns < 0 || c.DB.MinConns > c.DB.MaxConns {
		return fmt.Errorf("invalid DB pool size: min %d, max %d", c.DB.MinConns, c.DB.MaxConns)
	}
	if c.Redis.PoolSize < 1 {
		return fmt.Errorf("REDIS_POOL_SIZE must be positive, got %d", c.Redis.PoolSize)
	}
	if c.Redis.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.Redis.CacheTTL)
	}
	return nil
}

// normalizeBaseURL гарантирует завершающий слэш, чтобы к базе можно было дописать идентификатор
func normalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasSuffix(raw, "/") {
		return raw
	}
	return raw + "/"
}

// parseList разбирает список через запятую: "10.0.0.1,10.0.0.2"
func parseList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
