package membership

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// пустой MongoURI - Directory в памяти (режим разработки)
	MongoURI         string
	MongoDatabase    string
	DirectoryTimeout time.Duration

	// пустой CacheURL - локальный кэш в памяти
	CacheURL      string
	CacheUser     string
	CachePassword string
	CachePrefix   string

	Timezone    string
	StaffPass   string
	PurchaseURL string

	RabbitURL      string
	RabbitPort     string
	RabbitUser     string
	RabbitPassword string

	KafkaURL   string
	KafkaPort  string
	KafkaTopic string

	OtelEndpoint string
}

// Загрузка из окружения. Файл .env (если есть) не перекрывает уже заданные переменные.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:           os.Getenv("MEMBERSHIP_PORT"),
		MongoURI:       os.Getenv("MEMBERSHIP_MONGO"),
		MongoDatabase:  getenv("MEMBERSHIP_MONGO_DB", "warakado"),
		CacheURL:       os.Getenv("MEMBERSHIP_CACHE_URL"),
		CacheUser:      os.Getenv("MEMBERSHIP_CACHE_USER"),
		CachePassword:  os.Getenv("MEMBERSHIP_CACHE_PWD"),
		CachePrefix:    getenv("MEMBERSHIP_CACHE_PREFIX", "warakado"),
		Timezone:       getenv("MEMBERSHIP_TIMEZONE", "Asia/Tokyo"),
		StaffPass:      os.Getenv("MEMBERSHIP_STAFF_PASS"),
		PurchaseURL:    os.Getenv("MEMBERSHIP_PURCHASE_URL"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		RabbitPort:     getenv("RABBIT_PORT", "5672"),
		RabbitUser:     os.Getenv("RABBIT_USER"),
		RabbitPassword: os.Getenv("RABBIT_PASSWORD"),
		KafkaURL:       os.Getenv("KAFKA_AUDIT_URL"),
		KafkaPort:      getenv("KAFKA_AUDIT_PORT", "9092"),
		KafkaTopic:     getenv("KAFKA_AUDIT_TOPIC", "membership_audit"),
		OtelEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	if cfg.Port == "" {
		return nil, fmt.Errorf("env MEMBERSHIP_PORT is not set")
	}

	cfg.DirectoryTimeout = 5 * time.Second
	if v := os.Getenv("MEMBERSHIP_DIRECTORY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("env MEMBERSHIP_DIRECTORY_TIMEOUT is not a duration: %q", v)
		}
		cfg.DirectoryTimeout = d
	}

	if cfg.RabbitURL != "" && (cfg.RabbitUser == "" || cfg.RabbitPassword == "") {
		return nil, fmt.Errorf("env RABBIT_USER and RABBIT_PASSWORD must be set with RABBIT_URL")
	}
	return cfg, nil
}

func getenv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
