package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Snapshot publishes an immutable Config behind a single atomic pointer.
// Readers call Load to take a consistent copy of the current configuration;
// the only writer is Reload, serialized behind its own mutex.
type Snapshot struct {
	ptr atomic.Pointer[Config]
}

// NewSnapshot constructs a Snapshot already holding the given Config.
func NewSnapshot(initial Config) *Snapshot {
	s := &Snapshot{}
	s.store(initial)
	return s
}

// Load returns the currently published configuration. The returned value is
// a copy; mutating it has no effect on the published snapshot.
func (s *Snapshot) Load() Config {
	return *s.ptr.Load()
}

func (s *Snapshot) store(cfg Config) {
	s.ptr.Store(&cfg)
}

// Load builds the initial Config: defaults, overlaid with an optional
// bootstrap YAML file (SIDECAR_CONFIG_FILE, default ".sidecar.yaml", loaded
// only if present), overlaid with environment variables, then validated.
// This is a one-shot startup step, not the multi-source discovery/CLI-flag
// layering a full config-file tool would offer.
func Load() (Config, error) {
	cfg := Default()

	bootstrapPath := GetEnvStr("SIDECAR_CONFIG_FILE", ".sidecar.yaml")
	if bootstrapPath != "" {
		if loaded, err := loadBootstrapFile(bootstrapPath, cfg); err == nil {
			cfg = loaded
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: loading bootstrap file %s: %w", bootstrapPath, err)
		}
	}

	cfg = applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func loadBootstrapFile(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	doc := bootstrapDocument{Sidecar: base}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("parsing yaml: %w", err)
	}

	return doc.Sidecar, nil
}

func applyEnvOverrides(cfg Config) Config {
	cfg.Enabled = GetEnvBool("SIDECAR_ENABLED", cfg.Enabled)
	cfg.Workers = GetEnvInt("SIDECAR_WORKERS", cfg.Workers)

	cfg.Queue.MaxSize = GetEnvInt("SIDECAR_QUEUE_MAX_SIZE", cfg.Queue.MaxSize)
	cfg.Queue.DropOnFull = GetEnvBool("SIDECAR_QUEUE_DROP_ON_FULL", cfg.Queue.DropOnFull)

	cfg.Sampling.Rates.Events = getEnvFloat("SIDECAR_SAMPLING_RATE_EVENTS", cfg.Sampling.Rates.Events)
	cfg.Sampling.Rates.Logs = getEnvFloat("SIDECAR_SAMPLING_RATE_LOGS", cfg.Sampling.Rates.Logs)
	cfg.Sampling.Rates.Profiling = getEnvFloat("SIDECAR_SAMPLING_RATE_PROFILING", cfg.Sampling.Rates.Profiling)
	cfg.Sampling.Rates.Metrics = getEnvFloat("SIDECAR_SAMPLING_RATE_METRICS", cfg.Sampling.Rates.Metrics)

	cfg.Resources.MaxCPUPercent = getEnvFloat("SIDECAR_RESOURCES_MAX_CPU_PERCENT", cfg.Resources.MaxCPUPercent)
	cfg.Resources.MaxMemoryMB = GetEnvInt("SIDECAR_RESOURCES_MAX_MEMORY_MB", cfg.Resources.MaxMemoryMB)
	cfg.Resources.SampleIntervalMs = GetEnvInt("SIDECAR_RESOURCES_SAMPLE_INTERVAL_MS", cfg.Resources.SampleIntervalMs)
	cfg.Resources.BreachWindows = GetEnvInt("SIDECAR_RESOURCES_BREACH_WINDOWS", cfg.Resources.BreachWindows)

	cfg.Persistence.BatchSize = GetEnvInt("SIDECAR_PERSISTENCE_BATCH_SIZE", cfg.Persistence.BatchSize)
	cfg.Persistence.BatchLingerMs = GetEnvInt("SIDECAR_PERSISTENCE_BATCH_LINGER_MS", cfg.Persistence.BatchLingerMs)
	cfg.Persistence.WriteTimeoutMs = GetEnvInt("SIDECAR_PERSISTENCE_WRITE_TIMEOUT_MS", cfg.Persistence.WriteTimeoutMs)
	cfg.Persistence.KeepRaw = GetEnvBool("SIDECAR_PERSISTENCE_KEEP_RAW", cfg.Persistence.KeepRaw)
	cfg.Persistence.KafkaTopic = GetEnvStr("SIDECAR_PERSISTENCE_KAFKA_TOPIC", cfg.Persistence.KafkaTopic)
	if brokers := GetEnvStr("SIDECAR_PERSISTENCE_KAFKA_BROKERS", ""); brokers != "" {
		cfg.Persistence.KafkaBrokers = ParseCommaSeparatedList(brokers)
	}

	cfg.HTTP.Host = GetEnvStr("SIDECAR_HTTP_HOST", cfg.HTTP.Host)
	cfg.HTTP.Port = GetEnvInt("SIDECAR_HTTP_PORT", cfg.HTTP.Port)
	cfg.HTTP.RequestTimeoutMs = GetEnvInt("SIDECAR_HTTP_REQUEST_TIMEOUT_MS", cfg.HTTP.RequestTimeoutMs)

	cfg.Health.PersistenceGraceMs = GetEnvInt("SIDECAR_HEALTH_PERSISTENCE_GRACE_MS", cfg.Health.PersistenceGraceMs)

	cfg.Shutdown.DrainTimeoutMs = GetEnvInt("SIDECAR_SHUTDOWN_DRAIN_TIMEOUT_MS", cfg.Shutdown.DrainTimeoutMs)

	return cfg
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := GetEnvStr(key, "")
	if value == "" {
		return defaultValue
	}

	var parsed float64
	if _, err := fmt.Sscanf(value, "%g", &parsed); err != nil {
		return defaultValue
	}

	return parsed
}
