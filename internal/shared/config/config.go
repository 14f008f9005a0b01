package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"skill-recommender/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port             string `validate:"required"`
	Env              string `validate:"oneof=dev local staging production"`
	DatabaseURL      string `validate:"required_if=Env production"`
	CORSAllowOrigin  []string
	LogLevel         string `validate:"oneof=debug info warn error"`
	ObjectStoreType  string `validate:"oneof=local s3"`
	LocalStoreDir    string `validate:"required_if=ObjectStoreType local"`
	AWSRegion        string
	S3Bucket         string `validate:"required_if=ObjectStoreType s3"`
	S3Prefix         string
	SSEKMSKeyID      string
	ReferenceCSVPath string `validate:"required"`
	ModelName        string `validate:"required,excludesall=/\\"`
	DefaultRoleTitle string `validate:"required"`
	PredictTopN      int    `validate:"gte=1,lte=100"`
	RetrainMode      string `validate:"oneof=inline sqs"`
	SQSQueueURL      string `validate:"required_if=RetrainMode sqs"`
	RedisURL         string
	RetrainLockTTL   time.Duration `validate:"gt=0"`
	ArtifactPoll     time.Duration `validate:"gt=0"`
	FeedbackRate     float64       `validate:"gt=0"`
	FeedbackBurst    int           `validate:"gte=1"`
	ArtifactKeep     int           `validate:"gte=0"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience. Variables
	// already set in the environment win.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		telemetry.Error("config.database_url_missing", nil)
	}

	return Config{
		Port:             getEnv("PORT", "8080"),
		Env:              env,
		DatabaseURL:      dbURL,
		CORSAllowOrigin:  splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		ObjectStoreType:  normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:    getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:        getEnv("AWS_REGION", ""),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		S3Prefix:         getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:      getEnv("SSE_KMS_KEY_ID", ""),
		ReferenceCSVPath: getEnv("REFERENCE_CSV_PATH", "./data/occupation_skill_matrix.csv"),
		ModelName:        getEnv("MODEL_NAME", "esco_skill_recommender"),
		DefaultRoleTitle: getEnv("DEFAULT_ROLE_TITLE", "Support Specialist"),
		PredictTopN:      getInt("PREDICT_TOP_N", 10),
		RetrainMode:      strings.ToLower(getEnv("RETRAIN_MODE", "inline")),
		SQSQueueURL:      getEnv("RA_SQS_QUEUE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		RetrainLockTTL:   getDuration("RETRAIN_LOCK_TTL", 30*time.Minute),
		ArtifactPoll:     getDuration("ARTIFACT_POLL_INTERVAL", 30*time.Second),
		FeedbackRate:     getFloat("FEEDBACK_RATE", 2),
		FeedbackBurst:    getInt("FEEDBACK_BURST", 10),
		ArtifactKeep:     getInt("ARTIFACT_KEEP", 5),
	}
}

// Validate checks field constraints and reports every violation at once.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			telemetry.Warn("config.env_file_invalid", map[string]any{"path": path, "error": err})
		}
	}
}

func getEnv(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("config.invalid_int", map[string]any{"key": key, "error": err})
		return def
	}
	return val
}

func getFloat(key string, def float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		telemetry.Warn("config.invalid_float", map[string]any{"key": key, "error": err})
		return def
	}
	return val
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		telemetry.Warn("config.invalid_duration", map[string]any{"key": key, "error": err})
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
