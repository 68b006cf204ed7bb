package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config is shared by the admissions API and the console gateway; each binary
// reads the sections it needs.
type Config struct {
	Port      string        `env:"PORT,      default=8080"`
	Env       string        `env:"ENV,       default=development"`
	JWTSecret string        `env:"JWT_SECRET"`
	LogLevel  string        `env:"LOG_LEVEL, default=info"`
	TokenTTL  time.Duration `env:"TOKEN_TTL, default=8h"`
	Workers   int           `env:"AUDIT_WORKERS, default=4"`

	// AdminUsername and AdminPassword seed the first admin account when it
	// does not exist. Leave empty to skip.
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	Mongo   MongoConfig
	Redis   RedisConfig
	Console ConsoleConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=admissions"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// ConsoleConfig configures the dashboard gateway.
type ConsoleConfig struct {
	Port               string        `env:"CONSOLE_PORT,                default=8081"`
	APIBaseURL         string        `env:"CONSOLE_API_URL,             default=http://localhost:8080"`
	RequestTimeout     time.Duration `env:"CONSOLE_API_TIMEOUT,         default=5s"`
	RevalidateInterval time.Duration `env:"CONSOLE_REVALIDATE_INTERVAL, default=10s"`
	CredentialTTL      time.Duration `env:"CONSOLE_CREDENTIAL_TTL,      default=720h"`
	SessionTTL         time.Duration `env:"CONSOLE_SESSION_TTL,         default=12h"`
	SecureCookies      bool          `env:"CONSOLE_SECURE_COOKIES,      default=false"`
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Sprintf("config: failed to read .env: %v", err))
	}

	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
