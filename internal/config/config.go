package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name      string `envconfig:"APP_NAME" default:"Expenso"`
		Port      int    `envconfig:"PORT" default:"8080"`
		UserID    string `envconfig:"USER_ID" default:"local"`
		JWTSecret string `envconfig:"JWT_SECRET"`

		// Origins allowed by CORS and the event stream websocket.
		AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
	}

	Storage struct {
		// Driver is one of memory, sqlite or postgres.
		Driver string `envconfig:"STORAGE_DRIVER" default:"sqlite"`
		Path   string `envconfig:"STORAGE_PATH" default:"expenso.db"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"expenso"`
	}

	Sync struct {
		Interval        time.Duration `envconfig:"SYNC_INTERVAL" default:"2m"`
		EnqueueDebounce time.Duration `envconfig:"SYNC_ENQUEUE_DEBOUNCE" default:"1s"`
		ConnectDebounce time.Duration `envconfig:"SYNC_CONNECT_DEBOUNCE" default:"2s"`
		RetryBase       time.Duration `envconfig:"SYNC_RETRY_BASE" default:"5s"`
		MaxRetries      int           `envconfig:"SYNC_MAX_RETRIES" default:"3"`
		QueueDelay      time.Duration `envconfig:"SYNC_QUEUE_DELAY" default:"1s"`
		PendingDelay    time.Duration `envconfig:"SYNC_PENDING_DELAY" default:"500ms"`
		Retention       time.Duration `envconfig:"SYNC_RETENTION" default:"168h"`
	}

	Connectivity struct {
		ProbeURL     string        `envconfig:"CONNECTIVITY_PROBE_URL" default:"https://sheets.googleapis.com/$discovery/rest?version=v4"`
		PollInterval time.Duration `envconfig:"CONNECTIVITY_POLL_INTERVAL" default:"15s"`
		Timeout      time.Duration `envconfig:"CONNECTIVITY_TIMEOUT" default:"5s"`
	}

	Remote struct {
		BaseURL string        `envconfig:"REMOTE_BASE_URL" default:"https://sheets.googleapis.com/v4"`
		Token   string        `envconfig:"REMOTE_TOKEN"`
		Timeout time.Duration `envconfig:"REMOTE_TIMEOUT" default:"30s"`
	}

	Log struct {
		Level      string `envconfig:"LOG_LEVEL" default:"info"`
		Format     string `envconfig:"LOG_FORMAT" default:"text"`
		File       string `envconfig:"LOG_FILE"`
		MaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"10"`
		MaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	switch cfg.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Sync.MaxRetries < 1 {
		return nil, fmt.Errorf("SYNC_MAX_RETRIES must be at least 1, got %d", cfg.Sync.MaxRetries)
	}

	return &cfg, nil
}
