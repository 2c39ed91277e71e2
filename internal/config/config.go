package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	R2        R2Config
	Fal       FalConfig
	Replicate ReplicateConfig
	Rembg     RembgConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	RenderPerHour int
	UploadPerHour int
	SignPerMin    int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type FalConfig struct {
	APIKey       string
	BaseURL      string
	KontextModel string
	FillModel    string
}

type ReplicateConfig struct {
	APIToken string
	BaseURL  string
	// Img2ImgVersion is the model version hash used for the secondary
	// image-to-image fallback.
	Img2ImgVersion string
}

type RembgConfig struct {
	APIKey  string
	BaseURL string
	Timeout int // seconds
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("FAL_KEY")
	readSecret("REPLICATE_API_TOKEN")
	readSecret("REMBG_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("fal.api_key", "FAL_KEY")
	_ = viper.BindEnv("fal.base_url", "FAL_BASE_URL")
	_ = viper.BindEnv("fal.kontext_model", "FAL_KONTEXT_MODEL")
	_ = viper.BindEnv("fal.fill_model", "FAL_FILL_MODEL")
	_ = viper.BindEnv("replicate.api_token", "REPLICATE_API_TOKEN")
	_ = viper.BindEnv("replicate.base_url", "REPLICATE_BASE_URL")
	_ = viper.BindEnv("replicate.img2img_version", "REPLICATE_IMG2IMG_VERSION")
	_ = viper.BindEnv("rembg.api_key", "REMBG_API_KEY")
	_ = viper.BindEnv("rembg.base_url", "REMBG_BASE_URL")
	_ = viper.BindEnv("rembg.timeout", "REMBG_TIMEOUT")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.render_per_hour", 10)
	viper.SetDefault("ratelimit.upload_per_hour", 50)
	viper.SetDefault("ratelimit.sign_per_min", 60)

	// FAL defaults
	viper.SetDefault("fal.base_url", "https://fal.run")
	viper.SetDefault("fal.kontext_model", "fal-ai/flux-pro/kontext")
	viper.SetDefault("fal.fill_model", "fal-ai/flux-pro/v1/fill")

	// Replicate defaults
	viper.SetDefault("replicate.base_url", "https://api.replicate.com/v1")
	viper.SetDefault("replicate.img2img_version", "30c1d0b916a6f8efce20493f5d61ee27491ab2a60437c13c588468b9810ec23f")

	// REMBG defaults
	viper.SetDefault("rembg.base_url", "https://api.rembg.io/v1.0")
	viper.SetDefault("rembg.timeout", 60)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			RenderPerHour: viper.GetInt("ratelimit.render_per_hour"),
			UploadPerHour: viper.GetInt("ratelimit.upload_per_hour"),
			SignPerMin:    viper.GetInt("ratelimit.sign_per_min"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Fal: FalConfig{
			APIKey:       viper.GetString("fal.api_key"),
			BaseURL:      viper.GetString("fal.base_url"),
			KontextModel: viper.GetString("fal.kontext_model"),
			FillModel:    viper.GetString("fal.fill_model"),
		},
		Replicate: ReplicateConfig{
			APIToken:       viper.GetString("replicate.api_token"),
			BaseURL:        viper.GetString("replicate.base_url"),
			Img2ImgVersion: viper.GetString("replicate.img2img_version"),
		},
		Rembg: RembgConfig{
			APIKey:  viper.GetString("rembg.api_key"),
			BaseURL: viper.GetString("rembg.base_url"),
			Timeout: viper.GetInt("rembg.timeout"),
		},
	}

	return cfg, nil
}
