package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Download DownloadConfig `mapstructure:"download"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig contains the local API server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// RemoteConfig identifies the media server and the account to sync
type RemoteConfig struct {
	ServerURL string        `mapstructure:"server_url"`
	Username  string        `mapstructure:"username"`
	AuthToken string        `mapstructure:"auth_token"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Identity derives the cache scoping key from the remote account
func (r RemoteConfig) Identity() Identity {
	return Identity{Username: r.Username, ServerURL: r.ServerURL}
}

// CacheConfig contains local cache database configuration
type CacheConfig struct {
	DatabasePath string `mapstructure:"database_path"`
	PageLimit    int    `mapstructure:"page_limit"`
}

// DownloadConfig contains transfer pipeline configuration
type DownloadConfig struct {
	MediaDir     string        `mapstructure:"media_dir"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	MinFreeBytes uint64        `mapstructure:"min_free_bytes"`
	SweepOnStart bool          `mapstructure:"sweep_on_start"`
}

// QueueConfig contains queue processor configuration
type QueueConfig struct {
	DatabasePath  string        `mapstructure:"database_path"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 4533,
		},
		Remote: RemoteConfig{
			ServerURL: "http://localhost:8080",
			Timeout:   30 * time.Second,
		},
		Cache: CacheConfig{
			DatabasePath: "$HOME/.subsync/cache.db",
			PageLimit:    50,
		},
		Download: DownloadConfig{
			MediaDir:     "$HOME/.subsync/media",
			MaxAttempts:  3,
			RetryDelay:   10 * time.Second,
			MinFreeBytes: 256 << 20,
			SweepOnStart: true,
		},
		Queue: QueueConfig{
			DatabasePath:  "$HOME/.subsync/queue.db",
			CheckInterval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
