package config

import "fmt"

// Config is the sidecar's complete runtime configuration. A Config value is
// always validated and immutable once published; see Snapshot for how
// readers observe it and Reload for how it changes at runtime.
type Config struct {
	Enabled     bool              `yaml:"enabled" json:"enabled"`
	Workers     int               `yaml:"workers" json:"workers"`
	Queue       QueueConfig       `yaml:"queue" json:"queue"`
	Sampling    SamplingConfig    `yaml:"sampling" json:"sampling"`
	Resources   ResourcesConfig   `yaml:"resources" json:"resources"`
	Persistence PersistenceConfig `yaml:"persistence" json:"persistence"`
	HTTP        HTTPConfig        `yaml:"http" json:"http"`
	Health      HealthConfig      `yaml:"health" json:"health"`
	Shutdown    ShutdownConfig    `yaml:"shutdown" json:"shutdown"`
}

// QueueConfig governs the bounded ingestion queue.
type QueueConfig struct {
	MaxSize    int  `yaml:"max_size" json:"max_size"`
	DropOnFull bool `yaml:"drop_on_full" json:"drop_on_full"`
}

// SamplingConfig holds per-category keep probabilities.
type SamplingConfig struct {
	Rates SamplingRates `yaml:"rates" json:"rates"`
}

// SamplingRates is the per-category sampling rate table, each in [0,1].
type SamplingRates struct {
	Events    float64 `yaml:"events" json:"events"`
	Logs      float64 `yaml:"logs" json:"logs"`
	Profiling float64 `yaml:"profiling" json:"profiling"`
	Metrics   float64 `yaml:"metrics" json:"metrics"`
}

// ResourcesConfig governs the resource governor's sampling and budgets.
type ResourcesConfig struct {
	MaxCPUPercent    float64 `yaml:"max_cpu_percent" json:"max_cpu_percent"`
	MaxMemoryMB      int     `yaml:"max_memory_mb" json:"max_memory_mb"`
	SampleIntervalMs int     `yaml:"sample_interval_ms" json:"sample_interval_ms"`
	BreachWindows    int     `yaml:"breach_windows" json:"breach_windows"`
}

// PersistenceConfig governs batching policy and the optional Kafka mirror.
// DatabaseURL is intentionally absent here: the connection string is a
// startup secret loaded once from DATABASE_URL, not a hot-reloadable field.
type PersistenceConfig struct {
	BatchSize      int      `yaml:"batch_size" json:"batch_size"`
	BatchLingerMs  int      `yaml:"batch_linger_ms" json:"batch_linger_ms"`
	WriteTimeoutMs int      `yaml:"write_timeout_ms" json:"write_timeout_ms"`
	KeepRaw        bool     `yaml:"keep_raw" json:"keep_raw"`
	KafkaBrokers   []string `yaml:"kafka_brokers" json:"kafka_brokers"`
	KafkaTopic     string   `yaml:"kafka_topic" json:"kafka_topic"`
}

// HTTPConfig governs the control-plane HTTP listener.
type HTTPConfig struct {
	Host             string `yaml:"host" json:"host"`
	Port             int    `yaml:"port" json:"port"`
	RequestTimeoutMs int    `yaml:"request_timeout_ms" json:"request_timeout_ms"`
}

// HealthConfig governs /health's down-classification grace period.
type HealthConfig struct {
	PersistenceGraceMs int `yaml:"persistence_grace_ms" json:"persistence_grace_ms"`
}

// ShutdownConfig governs graceful-shutdown draining.
type ShutdownConfig struct {
	DrainTimeoutMs int `yaml:"drain_timeout_ms" json:"drain_timeout_ms"`
}

// bootstrapDocument is the shape of the optional .sidecar.yaml file, which
// nests the schema under a top-level "sidecar" key.
type bootstrapDocument struct {
	Sidecar Config `yaml:"sidecar"`
}

// Default returns the configuration defaults documented in the external
// interface schema: the process a fresh sidecar boots with when no
// environment variables or bootstrap file override them.
func Default() Config {
	return Config{
		Enabled: true,
		Workers: 2,
		Queue: QueueConfig{
			MaxSize:    5000,
			DropOnFull: true,
		},
		Sampling: SamplingConfig{
			Rates: SamplingRates{
				Events:    0.1,
				Logs:      0.05,
				Profiling: 0.01,
				Metrics:   1.0,
			},
		},
		Resources: ResourcesConfig{
			MaxCPUPercent:    5.0,
			MaxMemoryMB:      100,
			SampleIntervalMs: 1000,
			BreachWindows:    3,
		},
		Persistence: PersistenceConfig{
			BatchSize:      64,
			BatchLingerMs:  50,
			WriteTimeoutMs: 2000,
			KeepRaw:        false,
			KafkaTopic:     "sidecar.events",
		},
		HTTP: HTTPConfig{
			Host:             "0.0.0.0",
			Port:             8765,
			RequestTimeoutMs: 2000,
		},
		Health: HealthConfig{
			PersistenceGraceMs: 30000,
		},
		Shutdown: ShutdownConfig{
			DrainTimeoutMs: 5000,
		},
	}
}

// Validate checks every field against the invariants in the configuration
// schema. A Config is only ever published after it passes Validate.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.Queue.MaxSize <= 0 {
		return fmt.Errorf("queue.max_size must be > 0, got %d", c.Queue.MaxSize)
	}
	if !c.Queue.DropOnFull {
		return fmt.Errorf("queue.drop_on_full=false is reserved; tail-drop is the only supported policy")
	}
	for name, rate := range map[string]float64{
		"sampling.rates.events":    c.Sampling.Rates.Events,
		"sampling.rates.logs":      c.Sampling.Rates.Logs,
		"sampling.rates.profiling": c.Sampling.Rates.Profiling,
		"sampling.rates.metrics":   c.Sampling.Rates.Metrics,
	} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%s must be in [0,1], got %f", name, rate)
		}
	}
	if c.Resources.MaxCPUPercent <= 0 {
		return fmt.Errorf("resources.max_cpu_percent must be > 0, got %f", c.Resources.MaxCPUPercent)
	}
	if c.Resources.MaxMemoryMB <= 0 {
		return fmt.Errorf("resources.max_memory_mb must be > 0, got %d", c.Resources.MaxMemoryMB)
	}
	if c.Resources.SampleIntervalMs <= 0 {
		return fmt.Errorf("resources.sample_interval_ms must be > 0, got %d", c.Resources.SampleIntervalMs)
	}
	if c.Resources.BreachWindows <= 0 {
		return fmt.Errorf("resources.breach_windows must be > 0, got %d", c.Resources.BreachWindows)
	}
	if c.Persistence.BatchSize <= 0 {
		return fmt.Errorf("persistence.batch_size must be > 0, got %d", c.Persistence.BatchSize)
	}
	if c.Persistence.BatchLingerMs <= 0 {
		return fmt.Errorf("persistence.batch_linger_ms must be > 0, got %d", c.Persistence.BatchLingerMs)
	}
	if c.Persistence.WriteTimeoutMs <= 0 {
		return fmt.Errorf("persistence.write_timeout_ms must be > 0, got %d", c.Persistence.WriteTimeoutMs)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be in (0,65535], got %d", c.HTTP.Port)
	}
	if c.HTTP.RequestTimeoutMs <= 0 {
		return fmt.Errorf("http.request_timeout_ms must be > 0, got %d", c.HTTP.RequestTimeoutMs)
	}
	if c.Health.PersistenceGraceMs <= 0 {
		return fmt.Errorf("health.persistence_grace_ms must be > 0, got %d", c.Health.PersistenceGraceMs)
	}
	if c.Shutdown.DrainTimeoutMs <= 0 {
		return fmt.Errorf("shutdown.drain_timeout_ms must be > 0, got %d", c.Shutdown.DrainTimeoutMs)
	}

	return nil
}
