package config

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

type Postgres struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
}

func (p Postgres) DSN() string {
	return "host=" + p.Host + " port=" + p.Port + " user=" + p.User +
		" password=" + p.Password + " dbname=" + p.Name + " sslmode=disable"
}

type Config struct {
	Port      string
	AuditPort string

	BackendURL     string
	AuditURL       string
	PublicURL      string
	Currency       string
	AllowedOrigins []string
	SecureCookies  bool

	PollInterval   time.Duration
	PollAttempts   int
	RedirectDelay  time.Duration
	SessionMaxIdle time.Duration

	RedisAddr      string
	SubmitGuardTTL time.Duration

	KafkaBroker         string
	CheckoutEventsTopic string
	AuditGroupID        string

	DB Postgres
}

// LoadEnv reads a .env file into the environment when one exists.
func LoadEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: could not load .env file: %v", err)
	}
}

// Load builds the configuration from the environment. Unset keys fall back
// to local development defaults.
func Load() Config {
	cfg := Config{
		Port:      getEnv("PORT", "8080"),
		AuditPort: getEnv("AUDIT_PORT", "8090"),

		BackendURL:     getEnv("BACKEND_URL", "http://localhost:8000"),
		AuditURL:       os.Getenv("AUDIT_URL"),
		PublicURL:      getEnv("PUBLIC_URL", "http://localhost:3000"),
		Currency:       getEnv("CURRENCY", "KES"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		SecureCookies:  getBool("SECURE_COOKIES", false),

		PollInterval:   getDuration("PAYMENT_POLL_INTERVAL", 3*time.Second),
		PollAttempts:   getInt("PAYMENT_POLL_ATTEMPTS", 10),
		RedirectDelay:  getDuration("PAYMENT_REDIRECT_DELAY", 2*time.Second),
		SessionMaxIdle: getDuration("SESSION_MAX_IDLE", 30*time.Minute),

		SubmitGuardTTL: getDuration("SUBMIT_GUARD_TTL", 2*time.Minute),

		KafkaBroker:         os.Getenv("KAFKA_BROKER"),
		CheckoutEventsTopic: getEnv("CHECKOUT_EVENTS_TOPIC", "checkout-events"),
		AuditGroupID:        getEnv("AUDIT_GROUP_ID", "audit-svc"),

		DB: Postgres{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "storefront"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
		},
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisAddr = host + ":" + getEnv("REDIS_PORT", "6379")
	}
	return cfg
}

func MustInitPostgres(p Postgres) *sql.DB {
	db, err := sql.Open("postgres", p.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err = db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	return db
}

func MustInitRedis(addr string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	return client
}

func NewKafkaReader(broker, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   topic,
		GroupID: groupID,
	})
}

func NewKafkaWriter(broker, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
