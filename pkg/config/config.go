package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Env             string
	ShutdownTimeout time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
	// File enables a daily rotated log file next to stdout when set.
	File   string
	MaxAge time.Duration
}

// RedisConfig holds the token blacklist backend configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MailConfig holds outbound SMTP configuration
type MailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// MediaConfig holds uploaded file storage configuration
type MediaConfig struct {
	Root          string
	MaxUploadSize string
}

// SchedulerConfig holds periodic job configuration
type SchedulerConfig struct {
	BirthdaySpec string
	Timezone     string
}

// PasswordConfig holds password validation thresholds
type PasswordConfig struct {
	MinLength  int
	MinEntropy float64
}

// Config holds all configuration
type Config struct {
	ServiceName string
	DB          DBConfig
	Server      ServerConfig
	JWT         JWTConfig
	Log         LogConfig
	Redis       RedisConfig
	Mail        MailConfig
	Media       MediaConfig
	Scheduler   SchedulerConfig
	Password    PasswordConfig
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not returning error as .env file is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	mailUser := getEnv("EMAIL_HOST_USER", "")

	config := &Config{
		ServiceName: serviceName,
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "geoprofile"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("APP_ENV", "development"),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		JWT: JWTConfig{
			SigningKey: getEnv("JWT_SIGNING_KEY", "defaultsecretkey"),
			AccessTTL:  getEnvAsDuration("JWT_ACCESS_TTL", 5*time.Minute),
			RefreshTTL: getEnvAsDuration("JWT_REFRESH_TTL", 24*time.Hour),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			File:   getEnv("LOG_FILE", ""),
			MaxAge: getEnvAsDuration("LOG_MAX_AGE", 7*24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Mail: MailConfig{
			Host:     getEnv("EMAIL_HOST", "localhost"),
			Port:     getEnv("EMAIL_PORT", "25"),
			Username: mailUser,
			Password: getEnv("EMAIL_HOST_PASSWORD", ""),
			From:     getEnv("MAIL_FROM", mailUser),
		},
		Media: MediaConfig{
			Root:          getEnv("MEDIA_ROOT", "media"),
			MaxUploadSize: getEnv("MEDIA_MAX_UPLOAD_SIZE", "10M"),
		},
		Scheduler: SchedulerConfig{
			BirthdaySpec: getEnv("BIRTHDAY_CRON", "0 8 * * *"),
			Timezone:     getEnv("SCHEDULER_TZ", "UTC"),
		},
		Password: PasswordConfig{
			MinLength:  getEnvAsInt("PASSWORD_MIN_LENGTH", 8),
			MinEntropy: getEnvAsFloat("PASSWORD_MIN_ENTROPY", 60),
		},
	}

	return config, nil
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_user", c.DB.User),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
		zap.Bool("redis_enabled", c.Redis.Addr != ""),
		zap.String("media_root", c.Media.Root),
		zap.String("birthday_cron", c.Scheduler.BirthdaySpec),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as log levels
func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
