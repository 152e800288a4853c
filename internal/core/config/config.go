package config

import (
	"fmt"
	"time"

	redisclient "github.com/stakeops/orchestrator/internal/infra/redis"
	"github.com/stakeops/orchestrator/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server       ServerConfig       `yaml:"server"`
	Chain        ChainConfig        `yaml:"chain"`
	Redis        redisclient.Config `yaml:"redis"`
	Logging      LoggingConfig      `yaml:"logging"`
	Database     postgres.Config    `yaml:"database"`
	Executor     ExecutorConfig     `yaml:"executor"`
	Runner       RunnerConfig       `yaml:"runner"`
	Dispatcher   DispatcherConfig   `yaml:"dispatcher"`
	ProviderPoll Duration           `yaml:"provider_poll_interval"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ChainConfig holds settings for the blockchain RPC endpoint.
type ChainConfig struct {
	Name     string   `yaml:"name"`
	Endpoint string   `yaml:"endpoint"`
	Timeout  Duration `yaml:"timeout"`

	// GRPCEndpoint optionally points at the node's gRPC port. Used for
	// connection-level health probes.
	GRPCEndpoint string `yaml:"grpc_endpoint"`
}

// ExecutorConfig holds executor timing and retry settings. Zero values fall
// back to the executor's own defaults.
type ExecutorConfig struct {
	PollInterval      Duration `yaml:"poll_interval"`
	ConfirmTimeout    Duration `yaml:"confirm_timeout"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	StepTimeout       Duration `yaml:"step_timeout"`
	RetryDelay        Duration `yaml:"retry_delay"`
	SubmitAttempts    int      `yaml:"submit_attempts"`
	VerifyAttempts    int      `yaml:"verify_attempts"`
	CascadeOnFailure  *bool    `yaml:"cascade_on_failure"`
}

// RunnerConfig holds scheduling settings.
type RunnerConfig struct {
	Workers    int      `yaml:"workers"`
	MaxRetries int      `yaml:"max_retries"`
	LeaseTTL   Duration `yaml:"lease_ttl"`
}

// DispatcherConfig holds dispatcher settings.
type DispatcherConfig struct {
	Interval Duration `yaml:"interval"`
}
