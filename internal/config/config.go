package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppPort  string
	LogLevel string

	PostgresDSN string
	RedisAddr   string

	CronSpec     string
	CycleTimeout time.Duration

	// SourcesFile 为空时使用内置的默认内容配置
	SourcesFile string

	FetchTimeout  time.Duration
	FetchRetries  int
	SourceWorkers int
	URLWorkers    int

	KafkaBroker string
	KafkaTopic  string

	APIRateLimit float64
	APIRateBurst int
	UpdateToken  string
}

// Load 从环境变量读取进程级配置；POSTGRES_DSN / REDIS_ADDR / KAFKA_BROKER 为空时对应组件关闭
func Load() *Config {
	cfg := &Config{
		AppPort:       getEnv("APP_PORT", "9000"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		CronSpec:      getEnv("CRON_SPEC", "0 * * * *"),
		CycleTimeout:  getDuration("CYCLE_TIMEOUT", 10*time.Minute),
		SourcesFile:   os.Getenv("SOURCES_FILE"),
		FetchTimeout:  getDuration("FETCH_TIMEOUT", 10*time.Second),
		FetchRetries:  getInt("FETCH_RETRIES", 0),
		SourceWorkers: getInt("SOURCE_WORKERS", 2),
		URLWorkers:    getInt("URL_WORKERS", 1),
		KafkaBroker:   os.Getenv("KAFKA_BROKER"),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "content-updates"),
		APIRateLimit:  getFloat("API_RATE_LIMIT", 5),
		APIRateBurst:  getInt("API_RATE_BURST", 20),
		UpdateToken:   os.Getenv("UPDATE_TOKEN"),
	}

	slog.Info("config loaded", "port", cfg.AppPort, "cron", cfg.CronSpec,
		"postgres", cfg.PostgresDSN != "", "redis", cfg.RedisAddr != "", "kafka", cfg.KafkaBroker != "")
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return def
	}
	return v
}

// getDuration 支持 "30s" / "5m" 这类写法，纯数字按秒处理
func getDuration(key string, def time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
