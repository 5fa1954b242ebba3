// Package sampler decides, per category, whether an observation should be
// kept or dropped before it ever reaches the queue.
package sampler

import (
	"math/rand/v2"

	"github.com/sidecar-io/sidecar/internal/config"
)

// Category is one of the independently-sampled observation categories.
type Category string

const (
	CategoryEvents    Category = "events"
	CategoryLogs      Category = "logs"
	CategoryProfiling Category = "profiling"
	CategoryMetrics   Category = "metrics"
)

// Sampler applies per-category Bernoulli trials using rates read from the
// current config snapshot. Randomness here is not security-sensitive — it
// only decides which observations are kept — so math/rand/v2 is used
// directly rather than crypto/rand, matching the distinction the teacher
// itself draws between secret generation (crypto/rand) and everything else.
type Sampler struct {
	snapshot *config.Snapshot
}

// New constructs a Sampler reading rates from the given config snapshot.
func New(snapshot *config.Snapshot) *Sampler {
	return &Sampler{snapshot: snapshot}
}

// ShouldSample reports whether an observation in the given category should
// be kept. Rate 1.0 and 0.0 are fast paths that never consult the PRNG;
// sampling is independent of queue depth.
func (s *Sampler) ShouldSample(category Category) bool {
	rate := s.rateFor(category)

	switch {
	case rate >= 1.0:
		return true
	case rate <= 0.0:
		return false
	default:
		return rand.Float64() < rate
	}
}

func (s *Sampler) rateFor(category Category) float64 {
	rates := s.snapshot.Load().Sampling.Rates

	switch category {
	case CategoryEvents:
		return rates.Events
	case CategoryLogs:
		return rates.Logs
	case CategoryProfiling:
		return rates.Profiling
	case CategoryMetrics:
		return rates.Metrics
	default:
		return 1.0
	}
}
