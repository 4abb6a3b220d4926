package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	WhatsApp  WhatsAppConfig  `mapstructure:"whatsapp" validate:"required"`
	AI        AIConfig        `mapstructure:"ai" validate:"required"`
	OCR       OCRConfig       `mapstructure:"ocr"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Storage   StorageConfig   `mapstructure:"storage" validate:"required"`
	Task      TaskConfig      `mapstructure:"task" validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port        int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel    string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	Environment string `mapstructure:"environment" validate:"required,oneof=development test production"`
	// FrontendURL is the only origin allowed by CORS.
	FrontendURL string `mapstructure:"frontend_url" validate:"omitempty,url"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetime        time.Duration `mapstructure:"token_lifetime" validate:"required,gt=0"`
	RefreshTokenLifetime time.Duration `mapstructure:"refresh_token_lifetime" validate:"required,gt=0"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
}

// WhatsAppConfig holds the Cloud API credentials and webhook secrets.
type WhatsAppConfig struct {
	VerifyToken       string `mapstructure:"verify_token" validate:"required"`
	AccessToken       string `mapstructure:"access_token"`
	PhoneNumberID     string `mapstructure:"phone_number_id"`
	BusinessAccountID string `mapstructure:"business_account_id"`
	// AppSecret enables X-Hub-Signature-256 verification when set.
	AppSecret  string `mapstructure:"app_secret"`
	APIURL     string `mapstructure:"api_url" validate:"required,url"`
	APIVersion string `mapstructure:"api_version" validate:"required"`
}

// AIConfig selects the completion provider and its model parameters.
type AIConfig struct {
	Provider        string  `mapstructure:"provider" validate:"required,oneof=openai gemini"`
	OpenAIAPIKey    string  `mapstructure:"openai_api_key" validate:"required_if=Provider openai"`
	OpenAIBaseURL   string  `mapstructure:"openai_base_url" validate:"omitempty,url"`
	OpenAIModel     string  `mapstructure:"openai_model" validate:"required"`
	VisionModel     string  `mapstructure:"vision_model" validate:"required"`
	GeminiAPIKey    string  `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`
	GeminiModel     string  `mapstructure:"gemini_model" validate:"required"`
	// AnthropicAPIKey is accepted for existing deployments but not used.
	AnthropicAPIKey string  `mapstructure:"anthropic_api_key"`
	Temperature     float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens       int     `mapstructure:"max_tokens" validate:"gt=0"`
	VisionMaxTokens int     `mapstructure:"vision_max_tokens" validate:"gt=0"`
}

// OCRConfig configures the OCR.space client.
type OCRConfig struct {
	APIKey   string `mapstructure:"api_key"`
	APIURL   string `mapstructure:"api_url" validate:"omitempty,url"`
	Language string `mapstructure:"language"`
}

// GitHubConfig holds the token and account used for repository builds.
type GitHubConfig struct {
	Token    string `mapstructure:"token"`
	Username string `mapstructure:"username"`
	// APIURL overrides api.github.com, mostly for GitHub Enterprise.
	APIURL string `mapstructure:"api_url" validate:"omitempty,url"`
}

// StorageConfig configures where downloaded media is written.
type StorageConfig struct {
	LocalPath     string `mapstructure:"local_path" validate:"required"`
	ThumbnailSize int    `mapstructure:"thumbnail_size" validate:"gt=0"`
}

// TaskConfig contains settings for the background task runner.
type TaskConfig struct {
	QueueSize                     int `mapstructure:"queue_size" validate:"gt=0"`
	MediaWorkers                  int `mapstructure:"media_workers" validate:"gt=0"`
	GitHubWorkers                 int `mapstructure:"github_workers" validate:"gt=0"`
	AIWorkers                     int `mapstructure:"ai_workers" validate:"gt=0"`
	StuckTaskAgeMinutes           int `mapstructure:"stuck_task_age_minutes" validate:"gt=0"`
	StuckTaskCheckIntervalMinutes int `mapstructure:"stuck_task_check_interval_minutes" validate:"gt=0"`
}

// RateLimitConfig defines request budgets per route group.
type RateLimitConfig struct {
	APIRequests     int           `mapstructure:"api_requests" validate:"gt=0"`
	APIWindow       time.Duration `mapstructure:"api_window" validate:"gt=0"`
	AuthRequests    int           `mapstructure:"auth_requests" validate:"gt=0"`
	AuthWindow      time.Duration `mapstructure:"auth_window" validate:"gt=0"`
	WebhookRequests int           `mapstructure:"webhook_requests" validate:"gt=0"`
	WebhookWindow   time.Duration `mapstructure:"webhook_window" validate:"gt=0"`
}
