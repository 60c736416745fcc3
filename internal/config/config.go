package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the service reads at startup.
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Knowledge KnowledgeConfig
	Assistant AssistantConfig
	Session   SessionConfig
	Notifier  NotifierConfig
	Log       LogConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	knowledge, err := loadKnowledgeConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	notifier, err := loadNotifierConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		AI:        ai,
		Knowledge: knowledge,
		Assistant: AssistantConfig{ResponsesFile: strings.TrimSpace(os.Getenv("ASSISTANT_RESPONSES_FILE"))},
		Session:   session,
		Notifier:  notifier,
		Log:       logCfg,
	}, nil
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig resolves the listen address and CORS origins.
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	origins := splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))

	if strings.Contains(port, ":") {
		// PORT may already be ":8080" or "127.0.0.1:8080".
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// AIConfig configures the optional Ark chat model.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Timeout     time.Duration
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds an Ark chat model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY + Model or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}
	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDurationEnv("GENERATION_TIMEOUT", 30*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Timeout:     timeout,
	}, nil
}

// KnowledgeConfig controls corpus chunking and retrieval.
type KnowledgeConfig struct {
	Path      string
	ChunkSize int
	Overlap   int
	TopK      int
}

func loadKnowledgeConfig() (KnowledgeConfig, error) {
	chunkSize, err := parseIntEnv("CHUNK_SIZE", 1000)
	if err != nil {
		return KnowledgeConfig{}, err
	}
	if chunkSize < 1 {
		return KnowledgeConfig{}, fmt.Errorf("invalid CHUNK_SIZE value %d: must be positive", chunkSize)
	}

	overlap, err := parseIntEnv("CHUNK_OVERLAP", 200)
	if err != nil {
		return KnowledgeConfig{}, err
	}
	if overlap < 0 {
		return KnowledgeConfig{}, fmt.Errorf("invalid CHUNK_OVERLAP value %d: must not be negative", overlap)
	}

	topK, err := parseIntEnv("RETRIEVAL_TOP_K", 3)
	if err != nil {
		return KnowledgeConfig{}, err
	}
	if topK < 1 {
		topK = 1
	}

	return KnowledgeConfig{
		Path:      strings.TrimSpace(os.Getenv("KNOWLEDGE_PATH")),
		ChunkSize: chunkSize,
		Overlap:   overlap,
		TopK:      topK,
	}, nil
}

// AssistantConfig points at an optional canned-response override file.
type AssistantConfig struct {
	ResponsesFile string
}

// SessionConfig controls session lifetime and the booking form delay.
type SessionConfig struct {
	BookingOpenDelay time.Duration
	TTL              time.Duration
	CleanupInterval  time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	delay, err := parseDurationEnv("BOOKING_OPEN_DELAY", time.Second)
	if err != nil {
		return SessionConfig{}, err
	}

	ttl, err := parseDurationEnv("SESSION_TTL", 30*time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}

	cleanup, err := parseDurationEnv("SESSION_CLEANUP_INTERVAL", 5*time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}

	return SessionConfig{BookingOpenDelay: delay, TTL: ttl, CleanupInterval: cleanup}, nil
}

// Notifier kinds.
const (
	NotifierLog  = "log"
	NotifierSMTP = "smtp"
	NotifierAMQP = "amqp"
)

// NotifierConfig selects where booking requests are delivered.
type NotifierConfig struct {
	Kind string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	NotifyTo     string

	AMQPURL   string
	AMQPQueue string
}

func loadNotifierConfig() (NotifierConfig, error) {
	kind := strings.ToLower(getEnvOrDefault("NOTIFIER", NotifierLog))

	port, err := parseIntEnv("SMTP_PORT", 587)
	if err != nil {
		return NotifierConfig{}, err
	}

	cfg := NotifierConfig{
		Kind:         kind,
		SMTPHost:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
		SMTPPort:     port,
		SMTPUsername: strings.TrimSpace(os.Getenv("SMTP_USERNAME")),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     strings.TrimSpace(os.Getenv("SMTP_FROM")),
		NotifyTo:     strings.TrimSpace(os.Getenv("BOOKING_NOTIFY_TO")),
		AMQPURL:      strings.TrimSpace(os.Getenv("AMQP_URL")),
		AMQPQueue:    getEnvOrDefault("AMQP_QUEUE", "booking.requests"),
	}

	switch kind {
	case NotifierLog:
	case NotifierSMTP:
		if cfg.SMTPHost == "" || cfg.SMTPFrom == "" || cfg.NotifyTo == "" {
			return NotifierConfig{}, fmt.Errorf("NOTIFIER=smtp requires SMTP_HOST, SMTP_FROM and BOOKING_NOTIFY_TO")
		}
	case NotifierAMQP:
		if cfg.AMQPURL == "" {
			return NotifierConfig{}, fmt.Errorf("NOTIFIER=amqp requires AMQP_URL")
		}
	default:
		return NotifierConfig{}, fmt.Errorf("invalid NOTIFIER value %q: want log, smtp or amqp", kind)
	}
	return cfg, nil
}

// LogConfig controls log level, encoding and the optional rotated file.
type LogConfig struct {
	Level  string
	Format string
	File   string
}

func loadLogConfig() (LogConfig, error) {
	format := strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json"))
	if format != "json" && format != "console" {
		return LogConfig{}, fmt.Errorf("invalid LOG_FORMAT value %q: want json or console", format)
	}
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format: format,
		File:   strings.TrimSpace(os.Getenv("LOG_FILE")),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
