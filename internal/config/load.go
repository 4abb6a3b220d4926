package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every nested key when read from the environment,
// e.g. WAA_SERVER_PORT for server.port.
const EnvPrefix = "WAA"

// legacyEnv maps configuration keys to the unprefixed environment variable
// names used by existing deployments.
var legacyEnv = map[string]string{
	"server.port":                  "PORT",
	"server.frontend_url":          "FRONTEND_URL",
	"database.url":                 "DATABASE_URL",
	"auth.jwt_secret":              "JWT_SECRET",
	"auth.token_lifetime":          "JWT_EXPIRES_IN",
	"whatsapp.verify_token":        "VERIFY_TOKEN",
	"whatsapp.access_token":        "WHATSAPP_TOKEN",
	"whatsapp.phone_number_id":     "WHATSAPP_PHONE_NUMBER_ID",
	"whatsapp.business_account_id": "WHATSAPP_BUSINESS_ACCOUNT_ID",
	"whatsapp.app_secret":          "WHATSAPP_APP_SECRET",
	"ai.openai_api_key":            "OPENAI_API_KEY",
	"ai.gemini_api_key":            "GEMINI_API_KEY",
	"ai.anthropic_api_key":         "ANTHROPIC_API_KEY",
	"ocr.api_key":                  "OCR_API_KEY",
	"github.token":                 "GITHUB_TOKEN",
	"github.username":              "GITHUB_USERNAME",
	"storage.local_path":           "STORAGE_LOCAL_PATH",
}

// Load configuration from defaults, an optional config.yaml, a .env file and
// environment variables, in increasing order of precedence.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		// The prefixed name wins when both are set.
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		dayDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs struct validation over a loaded configuration.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.frontend_url", "http://localhost:3001")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("auth.token_lifetime", "7d")
	v.SetDefault("auth.refresh_token_lifetime", "30d")
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("whatsapp.api_url", "https://graph.facebook.com")
	v.SetDefault("whatsapp.api_version", "v18.0")

	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.openai_model", "gpt-4-turbo-preview")
	v.SetDefault("ai.vision_model", "gpt-4-vision-preview")
	v.SetDefault("ai.gemini_model", "gemini-2.0-flash")
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.max_tokens", 2000)
	v.SetDefault("ai.vision_max_tokens", 1000)

	v.SetDefault("ocr.api_url", "https://api.ocr.space/parse/image")
	v.SetDefault("ocr.language", "eng")

	v.SetDefault("storage.local_path", "./uploads")
	v.SetDefault("storage.thumbnail_size", 300)

	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.media_workers", 2)
	v.SetDefault("task.github_workers", 1)
	v.SetDefault("task.ai_workers", 2)
	v.SetDefault("task.stuck_task_age_minutes", 30)
	v.SetDefault("task.stuck_task_check_interval_minutes", 5)

	v.SetDefault("rate_limit.api_requests", 100)
	v.SetDefault("rate_limit.api_window", "15m")
	v.SetDefault("rate_limit.auth_requests", 5)
	v.SetDefault("rate_limit.auth_window", "15m")
	v.SetDefault("rate_limit.webhook_requests", 60)
	v.SetDefault("rate_limit.webhook_window", "1m")

	// Keys without defaults still need registering so AutomaticEnv can see
	// them during Unmarshal.
	for _, key := range []string{
		"database.url",
		"auth.jwt_secret",
		"whatsapp.verify_token",
		"whatsapp.access_token",
		"whatsapp.phone_number_id",
		"whatsapp.business_account_id",
		"whatsapp.app_secret",
		"ai.openai_api_key",
		"ai.openai_base_url",
		"ai.gemini_api_key",
		"ocr.api_key",
		"github.token",
		"github.username",
		"github.api_url",
	} {
		v.SetDefault(key, "")
	}
}

// dayDurationHook accepts "7d" style values for time.Duration fields, which
// time.ParseDuration rejects.
func dayDurationHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != durationType {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		if !strings.HasSuffix(s, "d") {
			return data, nil
		}
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return nil, fmt.Errorf("invalid day duration %q: %w", s, err)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
}
