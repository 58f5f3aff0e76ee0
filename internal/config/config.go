package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries the environment-driven settings shared by all services.
// Each service reads the subset it needs.
type Config struct {
	Env string

	// RabbitMQ
	RabbitURL      string
	TelegramQueue  string
	GatewayQueue   string
	QuarterQueue   string
	DurableQueues  bool
	Prefetch       int
	ConsumeTag     string
	ShutdownWait   time.Duration
	PublishTimeout time.Duration

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Object bucket (MinIO / S3)
	S3Endpoint     string
	S3Region       string
	S3AccessKeyID  string
	S3SecretKey    string
	S3UsePathStyle bool
	S3Secure       bool
	Bucket         string
	PresignTTL     time.Duration

	// Chat platform
	ChatAPIID    string
	ChatAPIHash  string
	ChatBotToken string
	AdminUserID  int64

	// Rate limiting
	RateLimitWindow time.Duration
	RateLimitMax    int

	// Access grants
	GraceTTL time.Duration

	// Local staging
	DownloadsDir string

	// Health / metrics
	HealthAddr string
}

func Load(service string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Env = getEnvFirst([]string{"APP_ENV", "ENV"}, "dev")

	cfg.RabbitURL = strings.TrimSpace(os.Getenv("RABBIT_URL"))
	if cfg.RabbitURL == "" {
		user := getEnv("RABBITMQ_USER", "guest")
		pass := getEnv("RABBITMQ_PASS", "guest")
		host := getEnv("RABBITMQ_HOST", "localhost")
		port := getEnv("RABBITMQ_PORT", "5672")
		vhost := getEnv("RABBITMQ_VHOST", "/")
		if !strings.HasPrefix(vhost, "/") {
			vhost = "/" + vhost
		}
		cfg.RabbitURL = fmt.Sprintf("amqp://%s:%s@%s:%s%s", user, pass, host, port, vhost)
	}

	cfg.TelegramQueue = getEnv("TELEGRAM_EVENTS_QUEUE", "telegram_events")
	cfg.GatewayQueue = getEnv("GATEWAY_EVENTS_QUEUE", "gateway_events")
	cfg.QuarterQueue = getEnv("QUARTERMASTER_EVENTS_QUEUE", "quartermaster_events")
	cfg.DurableQueues = getBool("RABBIT_DURABLE_QUEUES", false)
	cfg.Prefetch = getInt("RABBIT_PREFETCH", 1)
	cfg.ConsumeTag = getEnv("RABBIT_CONSUMER_TAG", service)
	cfg.ShutdownWait = getDuration("SHUTDOWN_WAIT", 10*time.Second)
	cfg.PublishTimeout = getDuration("PUBLISH_TIMEOUT", 5*time.Second)

	cfg.RedisAddr = getEnv("REDIS_ADDR", getEnv("REDIS_HOST", "localhost")+":"+getEnv("REDIS_PORT", "6379"))
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getInt("REDIS_DB", 0)

	cfg.S3Endpoint = getEnv("BUCKET_ENDPOINT", "http://localhost:9000")
	cfg.S3Region = getEnv("BUCKET_REGION", "us-east-1")
	cfg.S3AccessKeyID = getEnv("BUCKET_ACCESS_KEY", "")
	cfg.S3SecretKey = getEnv("BUCKET_SECRET_KEY", "")
	cfg.S3UsePathStyle = getBool("BUCKET_PATH_STYLE", true)
	cfg.S3Secure = getBool("BUCKET_SECURE", false)
	cfg.Bucket = getEnv("BUCKET_NAME", "media-staging")
	cfg.PresignTTL = getDuration("BUCKET_PRESIGN_TTL", 5*time.Minute)

	cfg.ChatAPIID = getEnv("TELEGRAM_API_ID", "")
	cfg.ChatAPIHash = getEnv("TELEGRAM_API_HASH", "")
	cfg.ChatBotToken = getEnv("TELEGRAM_BOT_TOKEN", "")

	adminRaw := strings.TrimSpace(os.Getenv("TELEGRAM_ADMIN_USER_ID"))
	if adminRaw != "" {
		id, err := strconv.ParseInt(adminRaw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad TELEGRAM_ADMIN_USER_ID %q: %w", adminRaw, err)
		}
		cfg.AdminUserID = id
	}

	cfg.RateLimitWindow = getDuration("RATE_LIMIT_WINDOW", 60*time.Second)
	cfg.RateLimitMax = getInt("RATE_LIMIT_MAX", 5)
	cfg.GraceTTL = getDuration("GRACE_TTL", 604800*time.Second)

	cfg.DownloadsDir = getEnv("DOWNLOADS_DIR", "downloads")
	cfg.HealthAddr = getEnv("HEALTH_ADDR", ":8091")

	if strings.Contains(cfg.RedisAddr, " ") {
		return nil, fmt.Errorf("bad REDIS_ADDR (contains spaces): %q", cfg.RedisAddr)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvFirst(keys []string, def string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return def
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
