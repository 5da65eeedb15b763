package config

import (
	"os"
	"strconv"
	"strings"
)

// StagingConfig holds local staging settings for incoming submissions.
type StagingConfig struct {
	RootDir           string
	AllowedExtensions []string
}

// SharePointConfig holds settings for the remote document store and the
// certificate client-credential exchange used to authenticate against it.
type SharePointConfig struct {
	SiteURL        string
	TargetFolder   string
	ClientID       string
	Tenant         string
	Authority      string
	Scope          string
	CertPath       string
	KeyPath        string
	RetryCount     int
	RetryDelaySec  int
	HTTPTimeoutSec int
}

// SMTPConfig holds outgoing mail settings and notification addresses.
type SMTPConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	SenderName      string
	SenderEmail     string
	SupportEmails   []string
	OperationsEmail string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost    string
	Port       string
	APIKey     string
	Staging    StagingConfig
	SharePoint SharePointConfig
	SMTP       SMTPConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"), // default only for non-sensitive value
		APIKey:  getEnv("API_KEY", ""),
		Staging: StagingConfig{
			RootDir:           getEnv("UPLOAD_DIRECTORY", "uploaded_files"),
			AllowedExtensions: getEnvList("ALLOWED_EXTENSIONS", ".pdf,.docx,.xlsx,.jpg,.jpeg,.png,.gif"),
		},
		SharePoint: SharePointConfig{
			SiteURL:        getEnv("SITE_URL", ""),
			TargetFolder:   getEnv("TARGET_FOLDER_RELATIVE_URL", ""),
			ClientID:       getEnv("CLIENT_ID", ""),
			Tenant:         getEnv("TENANT", ""),
			Authority:      getEnv("AUTHORITY", ""),
			Scope:          getEnv("SCOPE", ""),
			CertPath:       getEnv("CERT_PATH", ""),
			KeyPath:        getEnv("KEY_PATH", ""),
			RetryCount:     getEnvInt("RETRY_COUNT", 3),
			RetryDelaySec:  getEnvInt("RETRY_DELAY", 5),
			HTTPTimeoutSec: getEnvInt("HTTP_TIMEOUT_SEC", 60),
		},
		SMTP: SMTPConfig{
			Host:            getEnv("SMTP_HOST", ""),
			Port:            getEnvInt("SMTP_PORT", 587),
			User:            getEnv("SMTP_USER", ""),
			Password:        getEnv("SMTP_PASSWORD", ""),
			SenderName:      getEnv("SMTP_SENDER_NAME", ""),
			SenderEmail:     getEnv("SMTP_SENDER_EMAIL", ""),
			SupportEmails:   getEnvList("SUPPORT_EMAILS", ""),
			OperationsEmail: getEnv("OPERATIONS_EMAIL", ""),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvList splits a comma-separated value, trimming whitespace and
// lowercasing entries. Empty entries are dropped.
func getEnvList(key, def string) []string {
	raw := getEnv(key, def)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
