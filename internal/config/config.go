package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Refine   RefineConfig
	Session  SessionConfig
}

type AppConfig struct {
	Environment   string
	LogFilePath   string
	NatsURL       string
	RedisURL      string
	SnapshotTopic string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	GoogleGemini string
	Jina         string
	OpenAI       string
	Anthropic    string
	HuggingFace  string
}

type AIConfig struct {
	EmbeddingProvider string // "gemini", "ollama", "jina" or "openai"
	EmbeddingModel    string
	OllamaBaseURL     string
	LLMProvider       string // "ollama", "openai", "anthropic" or "huggingface"
	LLMModel          string
	LLMLoggingEnabled bool
}

type RefineConfig struct {
	MaxLoops            int
	SimilarityThreshold float64
	Temperature         float64
}

type SessionConfig struct {
	TTLMinutes           int
	SweepIntervalMinutes int
	MaxSessions          int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Environment:   getEnv("GO_ENV", "development"),
			LogFilePath:   getEnv("LOG_FILE_PATH", "logs/refinery.log"),
			NatsURL:       getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			SnapshotTopic: getEnv("SESSION_SNAPSHOT_TOPIC_NAME", "SESSION_SNAPSHOTS"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			Jina:         getEnv("JINA_API_KEY", ""),
			OpenAI:       getEnv("OPENAI_API_KEY", ""),
			Anthropic:    getEnv("ANTHROPIC_API_KEY", ""),
			HuggingFace:  getEnv("HUGGINGFACE_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			EmbeddingModel:    getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			LLMLoggingEnabled: getEnvAsBool("LLM_LOGGING_ENABLED", false),
		},
		Refine: RefineConfig{
			MaxLoops:            getEnvAsInt("REFINE_MAX_LOOPS", 3),
			SimilarityThreshold: getEnvAsFloat("REFINE_SIMILARITY_THRESHOLD", 0.98),
			Temperature:         getEnvAsFloat("REFINE_TEMPERATURE", 0.7),
		},
		Session: SessionConfig{
			TTLMinutes:           getEnvAsInt("SESSION_TTL_MINUTES", 30),
			SweepIntervalMinutes: getEnvAsInt("SESSION_SWEEP_INTERVAL_MINUTES", 10),
			MaxSessions:          getEnvAsInt("SESSION_MAX_SESSIONS", 100),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
