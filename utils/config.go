package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all configuration for the application
type Config struct {
	App    AppConfig
	Reddit RedditConfig
	Gemini GeminiConfig
	Email  EmailConfig
	Server ServerConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name    string
	Version string
}

// RedditConfig holds Reddit API configuration
type RedditConfig struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	Subreddits   []string
}

// GeminiConfig holds the AI service configuration
type GeminiConfig struct {
	APIKey string
	Model  string
}

// EmailConfig holds SMTP settings for newsletter dispatch
type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	Username   string
	Password   string
	FromEmail  string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port                 int
	MaxRequestsPerMinute int
}

// LoadConfig loads configuration from a .env file plus the environment.
// Missing upstream credentials degrade the corresponding functionality rather
// than failing startup, so only structural problems are errors here.
func LoadConfig(envPath string, log *logrus.Logger) (*Config, error) {
	if envPath == "" {
		envPath = ".env"
	}

	// a missing .env file is fine when the environment is already populated
	if err := godotenv.Load(envPath); err != nil {
		log.WithField("file", envPath).Debug("No .env file loaded, using environment only")
	}

	config := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "TopicScout"),
			Version: getEnv("APP_VERSION", "2.0"),
		},
		Reddit: RedditConfig{
			ClientID:     getEnv("REDDIT_CLIENT_ID", ""),
			ClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
			UserAgent:    getEnv("REDDIT_USER_AGENT", "topicscout/2.0"),
			Subreddits:   parseSubreddits(getEnv("REDDIT_SUBREDDITS", "")),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		Email: EmailConfig{
			SMTPServer: getEnv("SMTP_SERVER", ""),
			SMTPPort:   getEnvAsInt("SMTP_PORT", 587),
			Username:   getEnv("SMTP_USERNAME", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			FromEmail:  getEnv("SMTP_FROM_EMAIL", ""),
		},
		Server: ServerConfig{
			Port:                 getEnvAsInt("SERVER_PORT", 8080),
			MaxRequestsPerMinute: getEnvAsInt("SERVER_MAX_REQUESTS_PER_MINUTE", 60),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	if config.Reddit.ClientID == "" || config.Reddit.ClientSecret == "" {
		log.Warn("Reddit credentials missing, authenticated search disabled (public fallback only)")
	}
	if config.Gemini.APIKey == "" {
		log.Warn("GEMINI_API_KEY missing, analysis requests will report a configuration error")
	}
	if config.Email.SMTPServer == "" || config.Email.Username == "" {
		log.Warn("SMTP settings missing, email dispatch disabled")
	}

	log.WithField("file", envPath).Info("Config loaded successfully")
	return config, nil
}

// parseSubreddits parses a comma-separated list of subreddits
func parseSubreddits(subredditsStr string) []string {
	parts := strings.Split(subredditsStr, ",")

	subreddits := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			subreddits = append(subreddits, trimmed)
		}
	}

	return subreddits
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be a valid port number")
	}
	if config.Server.MaxRequestsPerMinute < 1 {
		return fmt.Errorf("SERVER_MAX_REQUESTS_PER_MINUTE must be positive")
	}

	// User-Agent required per Reddit API documentation; it has strict requirements
	if config.Reddit.UserAgent == "" {
		return fmt.Errorf("REDDIT_USER_AGENT must not be empty")
	}

	return nil
}
