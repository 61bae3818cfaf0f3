package config

import (
	"time"

	"github.com/phrazzld/taskflow-api/internal/domain/assignment"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server        ServerConfig        `mapstructure:"server" validate:"required"`
	Database      DatabaseConfig      `mapstructure:"database" validate:"required"`
	Auth          AuthConfig          `mapstructure:"auth" validate:"required"`
	Assignment    AssignmentConfig    `mapstructure:"assignment" validate:"required"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
}

// AuthConfig contains the settings used to validate bearer tokens.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
	// TokenLifetime is the validity of tokens minted by the token generator.
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"gt=0"`
}

// AssignmentConfig contains the tunables of the assignment engine.
type AssignmentConfig struct {
	// MaxActiveTasks is the ceiling of simultaneously Assigned/Accepted tasks per worker.
	MaxActiveTasks int `mapstructure:"max_active_tasks" validate:"gte=1"`
	// MinRejectionReasonLength is the shortest accepted delegation rejection reason.
	MinRejectionReasonLength int `mapstructure:"min_rejection_reason_length" validate:"gte=1"`
	// OperationTimeout bounds every engine operation. Zero disables the bound.
	OperationTimeout time.Duration `mapstructure:"operation_timeout" validate:"gte=0"`
}

// NotificationsConfig controls the push notification sink.
type NotificationsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	RedisAddr     string `mapstructure:"redis_addr" validate:"required_if=Enabled true"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"gte=0"`
	ChannelPrefix string `mapstructure:"channel_prefix" validate:"required"`
	QueueSize     int    `mapstructure:"queue_size" validate:"gte=1"`
	WorkerCount   int    `mapstructure:"worker_count" validate:"gte=1"`
}

// Params converts the assignment settings into the parameters consumed by
// the assignment algorithm.
func (c AssignmentConfig) Params() *assignment.Params {
	return assignment.NewParams(assignment.ParamsConfig{
		MaxActiveTasks:           c.MaxActiveTasks,
		MinRejectionReasonLength: c.MinRejectionReasonLength,
	})
}
