package config

import (
	"encoding/json"
	"fmt"
	"sync"

	"dario.cat/mergo"
)

// restartRequiredFields are the dot-paths that cannot be hot-swapped: they
// are consulted once, at construction time, by the queue and HTTP listener.
var restartRequiredFields = map[string]bool{
	"queue.max_size": true,
	"workers":        true,
	"http.port":      true,
}

// Reloader serializes config-reload writes against a Snapshot. Only one
// reload may be in flight at a time; readers of the Snapshot are never
// blocked by a reload in progress.
type Reloader struct {
	mu       sync.Mutex
	snapshot *Snapshot
}

// NewReloader constructs a Reloader bound to the given Snapshot.
func NewReloader(snapshot *Snapshot) *Reloader {
	return &Reloader{snapshot: snapshot}
}

// Reload decodes a partial configuration payload, deep-merges it onto the
// currently published Config, validates the result, and — only if
// validation succeeds — publishes it. It returns the set of dot-path fields
// that changed value and the subset of those that require a process restart
// to take effect. An unchanged payload is a no-op that returns an empty
// updatedFields.
func (r *Reloader) Reload(partial []byte) (updatedFields []string, restartRequired []string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.snapshot.Load()

	currentMap, err := toMap(current)
	if err != nil {
		return nil, nil, fmt.Errorf("config: encoding current config: %w", err)
	}

	var partialMap map[string]interface{}
	if err := json.Unmarshal(partial, &partialMap); err != nil {
		return nil, nil, fmt.Errorf("config: decoding reload payload: %w", err)
	}

	if err := mergo.Merge(&currentMap, partialMap, mergo.WithOverride); err != nil {
		return nil, nil, fmt.Errorf("config: merging reload payload: %w", err)
	}

	merged, err := fromMap(currentMap)
	if err != nil {
		return nil, nil, fmt.Errorf("config: decoding merged config: %w", err)
	}

	if err := merged.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	updatedFields = diffFields(current, merged)
	for _, field := range updatedFields {
		if restartRequiredFields[field] {
			restartRequired = append(restartRequired, field)
		}
	}

	r.snapshot.store(merged)

	return updatedFields, restartRequired, nil
}

func toMap(cfg Config) (map[string]interface{}, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}

	return m, nil
}

func fromMap(m map[string]interface{}) (Config, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// diffFields compares two Configs field-by-field and returns the dot-path of
// every field whose value differs, in the same spelling reload responses use
// ("sampling.rates.events", "queue.max_size", ...).
func diffFields(before, after Config) []string {
	var changed []string

	cmp := func(path string, a, b interface{}) {
		if fmt.Sprintf("%v", a) != fmt.Sprintf("%v", b) {
			changed = append(changed, path)
		}
	}

	cmp("enabled", before.Enabled, after.Enabled)
	cmp("workers", before.Workers, after.Workers)

	cmp("queue.max_size", before.Queue.MaxSize, after.Queue.MaxSize)
	cmp("queue.drop_on_full", before.Queue.DropOnFull, after.Queue.DropOnFull)

	cmp("sampling.rates.events", before.Sampling.Rates.Events, after.Sampling.Rates.Events)
	cmp("sampling.rates.logs", before.Sampling.Rates.Logs, after.Sampling.Rates.Logs)
	cmp("sampling.rates.profiling", before.Sampling.Rates.Profiling, after.Sampling.Rates.Profiling)
	cmp("sampling.rates.metrics", before.Sampling.Rates.Metrics, after.Sampling.Rates.Metrics)

	cmp("resources.max_cpu_percent", before.Resources.MaxCPUPercent, after.Resources.MaxCPUPercent)
	cmp("resources.max_memory_mb", before.Resources.MaxMemoryMB, after.Resources.MaxMemoryMB)
	cmp("resources.sample_interval_ms", before.Resources.SampleIntervalMs, after.Resources.SampleIntervalMs)
	cmp("resources.breach_windows", before.Resources.BreachWindows, after.Resources.BreachWindows)

	cmp("persistence.batch_size", before.Persistence.BatchSize, after.Persistence.BatchSize)
	cmp("persistence.batch_linger_ms", before.Persistence.BatchLingerMs, after.Persistence.BatchLingerMs)
	cmp("persistence.write_timeout_ms", before.Persistence.WriteTimeoutMs, after.Persistence.WriteTimeoutMs)
	cmp("persistence.keep_raw", before.Persistence.KeepRaw, after.Persistence.KeepRaw)
	cmp("persistence.kafka_topic", before.Persistence.KafkaTopic, after.Persistence.KafkaTopic)
	cmp("persistence.kafka_brokers", before.Persistence.KafkaBrokers, after.Persistence.KafkaBrokers)

	cmp("http.host", before.HTTP.Host, after.HTTP.Host)
	cmp("http.port", before.HTTP.Port, after.HTTP.Port)
	cmp("http.request_timeout_ms", before.HTTP.RequestTimeoutMs, after.HTTP.RequestTimeoutMs)

	cmp("health.persistence_grace_ms", before.Health.PersistenceGraceMs, after.Health.PersistenceGraceMs)

	cmp("shutdown.drain_timeout_ms", before.Shutdown.DrainTimeoutMs, after.Shutdown.DrainTimeoutMs)

	return changed
}
