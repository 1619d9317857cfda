package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds server and terminal client settings.
type Config struct {
	Unsplash UnsplashConfig
	Storage  StorageConfig
	Auth     AuthConfig
	OpenAI   OpenAIConfig
}

// UnsplashConfig points at the photo search API.
type UnsplashConfig struct {
	APIURL    string `mapstructure:"api_url"`
	AccessKey string `mapstructure:"access_key"`
}

// StorageConfig selects the export gallery backend.
type StorageConfig struct {
	Type   string
	Path   string
	DSN    string
	Bucket string
}

// AuthConfig holds the JWT secret and login provider credentials.
type AuthConfig struct {
	JWTSecret          string `mapstructure:"jwt_secret"`
	GitHubClientID     string `mapstructure:"github_client_id"`
	GitHubClientSecret string `mapstructure:"github_client_secret"`
	GitHubRedirectURL  string `mapstructure:"github_redirect_url"`
	OIDCIssuerURL      string `mapstructure:"oidc_issuer_url"`
	OIDCClientID       string `mapstructure:"oidc_client_id"`
	OIDCClientSecret   string `mapstructure:"oidc_client_secret"`
	OIDCRedirectURL    string `mapstructure:"oidc_redirect_url"`
}

// OpenAIConfig points at an OpenAI-compatible chat completion API.
type OpenAIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string
}

// envBindings maps config keys onto the environment variables that
// override them.
var envBindings = map[string]string{
	"unsplash.api_url":          "UNSPLASH_API_URL",
	"unsplash.access_key":       "UNSPLASH_ACCESS_KEY",
	"storage.type":              "STORAGE_TYPE",
	"storage.path":              "LOCAL_STORAGE_PATH",
	"storage.dsn":               "DATA_SOURCE_NAME",
	"storage.bucket":            "S3_BUCKET_NAME",
	"auth.jwt_secret":           "JWT_SECRET",
	"auth.github_client_id":     "GITHUB_CLIENT_ID",
	"auth.github_client_secret": "GITHUB_CLIENT_SECRET",
	"auth.github_redirect_url":  "GITHUB_REDIRECT_URL",
	"auth.oidc_issuer_url":      "OIDC_ISSUER_URL",
	"auth.oidc_client_id":       "OIDC_CLIENT_ID",
	"auth.oidc_client_secret":   "OIDC_CLIENT_SECRET",
	"auth.oidc_redirect_url":    "OIDC_REDIRECT_URL",
	"openai.base_url":           "OPENAI_BASE_URL",
	"openai.api_key":            "OPENAI_API_KEY",
	"openai.model":              "OPENAI_MODEL",
}

// Load reads configuration from defaults, an optional TOML file named by
// CAPTION_CONFIG, and the environment, in increasing precedence.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("unsplash.api_url", "https://api.unsplash.com/search/photos")
	v.SetDefault("unsplash.access_key", "")
	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.dsn", "caption-studio.db")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.github_client_id", "")
	v.SetDefault("auth.github_client_secret", "")
	v.SetDefault("auth.github_redirect_url", "")
	v.SetDefault("auth.oidc_issuer_url", "")
	v.SetDefault("auth.oidc_client_id", "")
	v.SetDefault("auth.oidc_client_secret", "")
	v.SetDefault("auth.oidc_redirect_url", "")
	v.SetDefault("openai.base_url", "https://api.openai.com")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")

	v.SetConfigType("toml")
	if cfgPath := os.Getenv("CAPTION_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
