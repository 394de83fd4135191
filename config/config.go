package config

import (
	"log"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shiraai/pkg/configs"
	"github.com/spf13/viper"
)

// Application config structure
type AppConfig struct {
	Name          string `mapstructure:"service_name" validate:"required"`
	Version       string `mapstructure:"version" validate:"required"`
	Env           string `mapstructure:"env" validate:"required"`
	Secret        string `mapstructure:"secret" validate:"required"`
	ServiceApiKey string `mapstructure:"service_api_key"`
	Host          string `mapstructure:"host" validate:"required"`
	Port          int    `mapstructure:"port" validate:"required"`
	LogLevel      string `mapstructure:"log_level" validate:"required"`
	LogPath       string `mapstructure:"log_path"`

	PostgresConfig   configs.PostgresConfig   `mapstructure:"postgres" validate:"required"`
	RedisConfig      configs.RedisConfig      `mapstructure:"redis" validate:"required"`
	AssetStoreConfig configs.AssetStoreConfig `mapstructure:"asset_store" validate:"required"`
	RecordingConfig  configs.RecordingConfig  `mapstructure:"recording" validate:"required"`

	// comma separated, "*" allows every origin
	CorsAllowedOrigins string `mapstructure:"cors_allowed_origins"`
}

func (cfg *AppConfig) AllowedOrigins() []string {
	if strings.TrimSpace(cfg.CorsAllowedOrigins) == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(cfg.CorsAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !os.IsNotExist(err) {
			return nil, err
		}
		log.Printf("Reading from env variables.")
	}
	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// keeping watch on https://github.com/spf13/viper/issues/188
	v.SetDefault("SERVICE_NAME", "conversation-api")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("ENV", "development")
	v.SetDefault("SECRET", "")
	v.SetDefault("SERVICE_API_KEY", "")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 9090)
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_PATH", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("POSTGRES__DRIVER", "postgres")
	v.SetDefault("POSTGRES__HOST", "localhost")
	v.SetDefault("POSTGRES__PORT", 5432)
	v.SetDefault("POSTGRES__DB_NAME", "shira")
	v.SetDefault("POSTGRES__AUTH__USER", "<>")
	v.SetDefault("POSTGRES__AUTH__PASSWORD", "<>")
	v.SetDefault("POSTGRES__MAX_OPEN_CONNECTION", 10)
	v.SetDefault("POSTGRES__MAX_IDEAL_CONNECTION", 10)
	v.SetDefault("POSTGRES__SSL_MODE", "disable")

	v.SetDefault("REDIS__HOST", "localhost")
	v.SetDefault("REDIS__PORT", 6379)
	v.SetDefault("REDIS__DB", 0)
	v.SetDefault("REDIS__PASSWORD", "")
	v.SetDefault("REDIS__CACHE_TTL_SECONDS", 300)

	v.SetDefault("ASSET_STORE__STORAGE_TYPE", "local")
	v.SetDefault("ASSET_STORE__STORAGE_PATH_PREFIX", "audio-recordings")
	v.SetDefault("ASSET_STORE__ENDPOINT", "")
	v.SetDefault("ASSET_STORE__AUTH__REGION", "us-east-1")
	v.SetDefault("ASSET_STORE__AUTH__ACCESS_KEY_ID", "")
	v.SetDefault("ASSET_STORE__AUTH__SECRET_ACCESS_KEY", "")

	v.SetDefault("RECORDING__CHUNK_DURATION_MS", 2000)
	v.SetDefault("RECORDING__TEMP_DIR", os.TempDir())
	v.SetDefault("RECORDING__DEFAULT_SAMPLE_RATE", 16000)
	v.SetDefault("RECORDING__MAX_UPLOAD_ATTEMPTS", 0)
	v.SetDefault("RECORDING__RETRY_BACKOFF_MS", 0)
	v.SetDefault("RECORDING__REMOVE_LOCAL_AFTER_UPLOAD", true)
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the app config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}
