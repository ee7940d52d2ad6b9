package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Bot      BotConfig
	Worker   WorkerConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	ShutdownPeriod time.Duration `mapstructure:"shutdownPeriod"`
	AllowedOrigins []string      `mapstructure:"allowedOrigins"`
}

const (
	StorageDriverFile     = "file"
	StorageDriverRedis    = "redis"
	StorageDriverPostgres = "postgres"
)

type StorageConfig struct {
	Driver    string `mapstructure:"driver"`
	Dir       string `mapstructure:"dir"`
	KeyPrefix string `mapstructure:"keyPrefix"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BotConfig holds the role and trust settings supplied by the chat platform
// deployment, plus key and HWID generation parameters.
type BotConfig struct {
	BuyerRoleID        string        `mapstructure:"buyerRoleId"`
	AdminRoleID        string        `mapstructure:"adminRoleId"`
	TrustedConfirmerID string        `mapstructure:"trustedConfirmerId"`
	ConfirmationSecret string        `mapstructure:"confirmationSecret"`
	BootstrapKeys      int           `mapstructure:"bootstrapKeys"`
	KeyLength          int           `mapstructure:"keyLength"`
	HWIDSuffixLength   int           `mapstructure:"hwidSuffixLength"`
	ResetCooldown      time.Duration `mapstructure:"resetCooldown"`
	UniqueCodes        bool          `mapstructure:"uniqueCodes"`
}

type WorkerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Concurrency     int           `mapstructure:"concurrency"`
	StatsInterval   string        `mapstructure:"statsInterval"`
	ResultRetention time.Duration `mapstructure:"resultRetention"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func LoadConfig(configPath string) (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables and config file")
	}

	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("Warning: could not read config file: %s. Error: %v\n", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.shutdownPeriod", 15*time.Second)
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})

	v.SetDefault("storage.driver", StorageDriverFile)
	v.SetDefault("storage.dir", "./data")
	v.SetDefault("storage.keyPrefix", "keybind:")

	v.SetDefault("database.url", "")
	v.SetDefault("database.maxOpenConns", 10)
	v.SetDefault("database.maxIdleConns", 2)
	v.SetDefault("database.connMaxLifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("bot.buyerRoleId", "")
	v.SetDefault("bot.adminRoleId", "")
	v.SetDefault("bot.trustedConfirmerId", "")
	v.SetDefault("bot.confirmationSecret", "")
	v.SetDefault("bot.bootstrapKeys", 10)
	v.SetDefault("bot.keyLength", 11)
	v.SetDefault("bot.hwidSuffixLength", 8)
	v.SetDefault("bot.resetCooldown", 24*time.Hour)
	v.SetDefault("bot.uniqueCodes", false)

	v.SetDefault("worker.enabled", false)
	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("worker.statsInterval", "@every 1m")
	v.SetDefault("worker.resultRetention", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}
