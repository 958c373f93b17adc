package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Qdrant   QdrantConfig
	Gemini   GeminiConfig
	Storage  StorageConfig
	Broker   BrokerConfig
	FaceSwap FaceSwapConfig
	LinkedIn LinkedInConfig
	Captcha  CaptchaConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

type GeminiConfig struct {
	APIKey     string
	Model      string
	EmbedModel string
	ImageModel string
	// RequestsPerSecond paces outbound model calls; 0 disables pacing.
	RequestsPerSecond float64
}

type StorageConfig struct {
	AccountID    string
	AccessKey    string
	SecretKey    string
	Bucket       string
	SignedURLTTL time.Duration
	MaxFileSize  int64
}

type BrokerConfig struct {
	URL      string
	Exchange string
}

type FaceSwapConfig struct {
	URL          string
	APIKey       string
	PollInterval time.Duration
	MaxRetries   int
}

type LinkedInConfig struct {
	Email          string
	Password       string
	BrowserTimeout time.Duration
	ChromePath     string
}

type CaptchaConfig struct {
	Secret   string
	MinScore float64
}

func Load() *Config {
	// A missing .env is fine; the process environment is used as-is.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "cv_copilot"),
		},
		Qdrant: QdrantConfig{
			URL:        getEnv("QDRANT_URL", ""),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "cv_copilot_guidance"),
		},
		Gemini: GeminiConfig{
			APIKey:            getEnv("GEMINI_API_KEY", ""),
			Model:             getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			EmbedModel:        getEnv("GEMINI_EMBED_MODEL", "text-embedding-004"),
			ImageModel:        getEnv("GEMINI_IMAGE_MODEL", "imagen-3.0-generate-002"),
			RequestsPerSecond: getEnvAsFloat("GEMINI_RPS", 2),
		},
		Storage: StorageConfig{
			AccountID:    getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:    getEnv("R2_ACCESS_KEY", ""),
			SecretKey:    getEnv("R2_SECRET_KEY", ""),
			Bucket:       getEnv("R2_BUCKET", "cv-copilot"),
			SignedURLTTL: getEnvAsDuration("SIGNED_URL_TTL", "1h"),
			MaxFileSize:  getEnvAsInt64("MAX_FILE_SIZE", 1<<20),
		},
		Broker: BrokerConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("PROGRESS_EXCHANGE", "pipeline_progress"),
		},
		FaceSwap: FaceSwapConfig{
			URL:          getEnv("FACESWAP_URL", "https://api.piapi.ai/api/v1"),
			APIKey:       getEnv("FACESWAP_API_KEY", ""),
			PollInterval: getEnvAsDuration("FACESWAP_POLL_INTERVAL", "2s"),
			MaxRetries:   getEnvAsInt("FACESWAP_MAX_RETRIES", 10),
		},
		LinkedIn: LinkedInConfig{
			Email:          getEnv("LINKEDIN_EMAIL", ""),
			Password:       getEnv("LINKEDIN_PASSWORD", ""),
			BrowserTimeout: getEnvAsDuration("BROWSER_TIMEOUT", "10s"),
			ChromePath:     getEnv("CHROME_PATH", ""),
		},
		Captcha: CaptchaConfig{
			Secret:   getEnv("RECAPTCHA_SECRET", ""),
			MinScore: getEnvAsFloat("RECAPTCHA_MIN_SCORE", 0.5),
		},
	}
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
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

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
