package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	OpenAI     OpenAIConfig
	Evaluation EvaluationConfig
	Storage    StorageConfig
	Database   DatabaseConfig
	History    HistoryConfig
	Worker     WorkerConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	StaticDir    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout of zero leaves the transport default in place.
	Timeout      time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type EvaluationConfig struct {
	ReferencePath    string
	ParallelUploads  bool
	CleanupOnFailure bool
	ValidatePDF      bool
}

type StorageConfig struct {
	UploadPath  string
	MaxFileSize int64
	KeepUploads bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type HistoryConfig struct {
	Store string
}

type WorkerConfig struct {
	Concurrency int
}

const (
	HistoryStoreMemory   = "memory"
	HistoryStorePostgres = "postgres"
)

const (
	// MaxUploadSize caps MAX_FILE_SIZE so the server body limit stays in int range.
	MaxUploadSize int64 = 1 << 30

	// Room for the multipart framing around the file part.
	multipartOverhead int64 = 1 << 20
)

const DefaultReferencePath = "Recommendations_of_the_Taskforce_on_Nature-related_Financial_Disclosures_September_2023.pdf"

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using default values.")
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "3000"),
			Env:          getEnv("ENV", "development"),
			StaticDir:    getEnv("STATIC_DIR", "./public"),
			ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", "30s"),
			WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", "0s"),
		},
		OpenAI: OpenAIConfig{
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			BaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
			Model:        getEnv("OPENAI_MODEL", "gpt-4"),
			Timeout:      getEnvAsDuration("PROVIDER_TIMEOUT", "0s"),
			PollInterval: getEnvAsDuration("RUN_POLL_INTERVAL", "1s"),
			PollTimeout:  getEnvAsDuration("RUN_POLL_TIMEOUT", "5m"),
		},
		Evaluation: EvaluationConfig{
			ReferencePath:    getEnv("REFERENCE_PDF_PATH", DefaultReferencePath),
			ParallelUploads:  getEnvAsBool("PARALLEL_UPLOADS", false),
			CleanupOnFailure: getEnvAsBool("CLEANUP_ON_FAILURE", false),
			ValidatePDF:      getEnvAsBool("VALIDATE_PDF", false),
		},
		Storage: StorageConfig{
			UploadPath:  getEnv("UPLOAD_PATH", "./uploads"),
			MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 33554432),
			KeepUploads: getEnvAsBool("KEEP_UPLOADS", true),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "report_evaluator"),
		},
		History: HistoryConfig{
			Store: strings.ToLower(getEnv("HISTORY_STORE", HistoryStoreMemory)),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 2),
		},
	}
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(c.Evaluation.ReferencePath) == "" {
		return fmt.Errorf("REFERENCE_PDF_PATH is required")
	}
	switch c.History.Store {
	case HistoryStoreMemory, HistoryStorePostgres:
	default:
		return fmt.Errorf("unsupported HISTORY_STORE: %s", c.History.Store)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if c.Storage.MaxFileSize <= 0 || c.Storage.MaxFileSize > MaxUploadSize {
		log.Printf("⚠️  MAX_FILE_SIZE %d out of range, using %d\n", c.Storage.MaxFileSize, MaxUploadSize)
		c.Storage.MaxFileSize = MaxUploadSize
	}
	return nil
}

// BodyLimit is the request body limit for the HTTP server: the upload cap
// plus multipart framing.
func (c *Config) BodyLimit() int {
	size := c.Storage.MaxFileSize
	if size <= 0 || size > MaxUploadSize {
		size = MaxUploadSize
	}
	return int(size + multipartOverhead)
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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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
