package config

import "time"

// Backend names accepted in todo.backend.
const (
	BackendLocal    = "local"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Todo     TodoConfig     `mapstructure:"todo"`
	Backup   BackupConfig   `mapstructure:"backup"`
	S3       S3Config       `mapstructure:"s3"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
}

// LogConfig controls the slog handler and optional rotating log file.
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"required,oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

// TodoConfig contains the task list and sync settings.
type TodoConfig struct {
	Backend       string        `mapstructure:"backend" validate:"required,oneof=local s3 postgres"`
	Path          string        `mapstructure:"path"`
	DonePath      string        `mapstructure:"done_path"`
	EOL           string        `mapstructure:"eol" validate:"required,oneof=lf crlf"`
	SaveDelay     time.Duration `mapstructure:"save_delay" validate:"gte=0"`
	KeepSelection bool          `mapstructure:"keep_selection"`
	KeepPriority  bool          `mapstructure:"keep_priority"`
	AppendAtEnd   bool          `mapstructure:"append_at_end"`
	AddCreateDate bool          `mapstructure:"add_create_date"`
	Sorts         []string      `mapstructure:"sorts"`
	CaseSensitive bool          `mapstructure:"case_sensitive"`
	CachePath     string        `mapstructure:"cache_path"`
}

// LineEnding returns the terminator written by saves and appends.
func (c TodoConfig) LineEnding() string {
	if c.EOL == "crlf" {
		return "\r\n"
	}
	return "\n"
}

// BackupConfig controls the local backup history.
type BackupConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Path      string        `mapstructure:"path"`
	Retention time.Duration `mapstructure:"retention" validate:"gte=0"`
}

// S3Config contains the object storage backend settings.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	Prefix          string `mapstructure:"prefix"`
}

// DatabaseConfig contains the postgres backend settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// ServerConfig contains the HTTP API settings.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"required,gt=0,lt=65536"`

	// Token, when set, is required as a bearer token on every API request.
	Token string `mapstructure:"token"`
}
