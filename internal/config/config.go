package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database. Empty DatabaseURL runs against the in-memory store.
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Gemini AI
	GeminiAPIKey          string
	GeminiAnalysisModel   string
	GeminiGenerationModel string
	GeminiConcurrentReqs  int

	// Quiz generation
	QuizBatchSize int
	WorkerCount   int

	// Uploads
	MaxUploadMB int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		Env:                   getEnvOrDefault("ENV", "development"),
		DatabaseURL:           getEnvOrDefault("DATABASE_URL", ""),
		RedisURL:              mustGetEnv("REDIS_URL"),
		JWTSecret:             mustGetEnv("JWT_SECRET"),
		GeminiAPIKey:          mustGetEnv("GEMINI_API_KEY"),
		GeminiAnalysisModel:   getEnvOrDefault("GEMINI_ANALYSIS_MODEL", "gemini-2.5-pro"),
		GeminiGenerationModel: getEnvOrDefault("GEMINI_GENERATION_MODEL", "gemini-2.5-flash"),
		GeminiConcurrentReqs:  getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		QuizBatchSize:         getEnvAsIntOrDefault("QUIZ_BATCH_SIZE", 5),
		WorkerCount:           getEnvAsIntOrDefault("WORKER_COUNT", 3),
		MaxUploadMB:           getEnvAsIntOrDefault("MAX_UPLOAD_MB", 10),
		FrontendURL:           getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// MaxUploadBytes is the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// UsesMemoryStore reports whether no database is configured.
func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == ""
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}
