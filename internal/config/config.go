package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration, loaded from environment variables.
type Config struct {
	Addr string

	// Database settings. Driver is either "sqlite3" or "postgres".
	DBDriver string
	DBSource string

	// Secret used for session cookies and confirmation tokens.
	SecretKey string

	// SMTP settings for confirmation emails. An empty host
	// makes the sender print emails to stdout instead.
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	MailSender   string

	ChatsPerPage    int
	UsersPerPage    int
	MessagesPerPage int

	// Messages longer than this are truncated on append.
	MaxMessageLength int

	// Confirmation tokens expire after this duration.
	TokenTTL time.Duration
}

// Load loads configuration from environment variables,
// falling back to development defaults.
func Load() Config {
	return Config{
		Addr:             getEnv("ADDR", ":8080"),
		DBDriver:         getEnv("DB_DRIVER", "sqlite3"),
		DBSource:         getEnv("DB_SOURCE", "simple_messenger.db"),
		SecretKey:        getEnv("SECRET_KEY", "change_debug_secret_key!"),
		SMTPHost:         os.Getenv("MAIL_SERVER"),
		SMTPPort:         getEnv("MAIL_PORT", "587"),
		SMTPUsername:     os.Getenv("MAIL_USERNAME"),
		SMTPPassword:     os.Getenv("MAIL_PASSWORD"),
		MailSender:       getEnv("MAIL_SENDER", "Admin <admin@simple-messenger.local>"),
		ChatsPerPage:     getEnvInt("CHATS_PER_PAGE", 10),
		UsersPerPage:     getEnvInt("USERS_PER_PAGE", 10),
		MessagesPerPage:  getEnvInt("MESSAGES_PER_PAGE", 20),
		MaxMessageLength: getEnvInt("MAX_MESSAGE_LENGTH", 1000),
		TokenTTL:         time.Duration(getEnvInt("TOKEN_TTL_SECONDS", 3600)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
