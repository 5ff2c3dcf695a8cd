// Package config provides configuration for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Store drivers
const (
	StoreDriverMySQL = "mysql"
	StoreDriverFile  = "file"
)

// Session store kinds. The file store keeps persistent sessions across restarts; memory does not.
const (
	SessionStoreFile   = "file"
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config holds all configuration for the application
type Config struct {
	Database    DatabaseConfig
	Redis       RedisConfig
	Server      ServerConfig
	Logging     LoggingConfig
	CORS        CORSConfig
	Session     SessionConfig
	Admin       AdminConfig
	StoreDriver string
	UsersFile   string
	BcryptCost  int
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	Timeout  time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port           int
	LoginRateLimit int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// SessionConfig holds session signing, storage and cookie settings
type SessionConfig struct {
	Secret        string
	Store         string
	File          string
	PersistentTTL time.Duration
	EphemeralTTL  time.Duration
	CookieName    string
	CookieSecure  bool
}

// AdminConfig holds the credentials of the bootstrap admin account
type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg, err := LoadStore()
	if err != nil {
		return nil, err
	}

	// Server configuration
	serverPort, err := strconv.Atoi(getEnv("SERVER_PORT", "5000"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	cfg.Server.Port = serverPort

	loginRateLimit, err := strconv.Atoi(getEnv("LOGIN_RATE_LIMIT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_RATE_LIMIT: %w", err)
	}
	cfg.Server.LoginRateLimit = loginRateLimit

	// CORS configuration
	corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if corsOrigins == "" {
		// Default to allow all origins if not specified (for development)
		cfg.CORS.AllowedOrigins = []string{"*"}
	} else {
		origins := strings.Split(corsOrigins, ",")
		cfg.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, origin)
			}
		}
		if len(cfg.CORS.AllowedOrigins) == 0 {
			cfg.CORS.AllowedOrigins = []string{"*"}
		}
	}

	if err := loadSession(cfg); err != nil {
		return nil, err
	}

	// Redis configuration (only used by the redis session store)
	cfg.Redis.Host = getEnv("REDIS_HOST", "localhost")
	redisPort, err := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	cfg.Redis.Port = redisPort
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD") // optional
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.Redis.DB = redisDB

	// Bootstrap admin
	cfg.Admin.Name = getEnv("ADMIN_NAME", "Admin")
	cfg.Admin.Email = getEnv("ADMIN_EMAIL", "admin@gmail.com")
	cfg.Admin.Password = getEnv("ADMIN_PASSWORD", "admin")

	return cfg, nil
}

// LoadStore reads only the settings needed to open the credential store.
// Offline tools use it so they do not require server secrets.
func LoadStore() (*Config, error) {
	// Try to load .env file (optional)
	godotenv.Load()

	cfg := &Config{}

	// Store driver selects between MySQL and the JSON file store
	cfg.StoreDriver = getEnv("STORE_DRIVER", StoreDriverMySQL)
	switch cfg.StoreDriver {
	case StoreDriverMySQL:
		if err := loadDatabase(cfg); err != nil {
			return nil, err
		}
	case StoreDriverFile:
		cfg.UsersFile = getEnv("USERS_FILE", "demo_users.json")
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
	}

	// Logging configuration
	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")

	bcryptCost, err := strconv.Atoi(getEnv("BCRYPT_COST", strconv.Itoa(bcrypt.DefaultCost)))
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %d is out of range", bcryptCost)
	}
	cfg.BcryptCost = bcryptCost

	return cfg, nil
}

func loadDatabase(cfg *Config) error {
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	cfg.Database.Host = dbHost

	dbPortStr := os.Getenv("DB_PORT")
	if dbPortStr == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.Port = dbPort

	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		return fmt.Errorf("DB_USER is required")
	}
	cfg.Database.User = dbUser

	// Local MySQL installations commonly run root without a password
	cfg.Database.Password = os.Getenv("DB_PASSWORD")

	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	cfg.Database.DBName = dbName

	timeout, err := time.ParseDuration(getEnv("DB_TIMEOUT", "5s"))
	if err != nil {
		return fmt.Errorf("invalid DB_TIMEOUT: %w", err)
	}
	cfg.Database.Timeout = timeout

	return nil
}

func loadSession(cfg *Config) error {
	// The secret must stay the same across restarts, otherwise every issued cookie becomes invalid
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	cfg.Session.Secret = secret

	cfg.Session.Store = getEnv("SESSION_STORE", SessionStoreFile)
	switch cfg.Session.Store {
	case SessionStoreFile, SessionStoreMemory, SessionStoreRedis:
	default:
		return fmt.Errorf("invalid SESSION_STORE: %q", cfg.Session.Store)
	}
	cfg.Session.File = getEnv("SESSIONS_FILE", "sessions.json")

	// Persistent sessions slide forward on activity (default: 30 days)
	persistentTTL, err := time.ParseDuration(getEnv("SESSION_PERSISTENT_TTL", "720h"))
	if err != nil {
		return fmt.Errorf("invalid SESSION_PERSISTENT_TTL: %w", err)
	}
	cfg.Session.PersistentTTL = persistentTTL

	// Ephemeral sessions have a fixed server-side lifetime (default: 2 hours)
	ephemeralTTL, err := time.ParseDuration(getEnv("SESSION_EPHEMERAL_TTL", "2h"))
	if err != nil {
		return fmt.Errorf("invalid SESSION_EPHEMERAL_TTL: %w", err)
	}
	cfg.Session.EphemeralTTL = ephemeralTTL

	cfg.Session.CookieName = getEnv("SESSION_COOKIE_NAME", "se_prediction_session")

	secure, err := strconv.ParseBool(getEnv("SESSION_COOKIE_SECURE", "false"))
	if err != nil {
		return fmt.Errorf("invalid SESSION_COOKIE_SECURE: %w", err)
	}
	cfg.Session.CookieSecure = secure

	return nil
}

// getEnv returns the variable value or the fallback when it is unset or empty
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// DSN returns the database connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&clientFoundRows=true&timeout=%s&readTimeout=%s&writeTimeout=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		c.Database.Timeout,
		c.Database.Timeout,
		c.Database.Timeout,
	)
}

// RedisAddr returns the host:port address of the Redis server
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
