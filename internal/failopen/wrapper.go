// Package failopen provides the single higher-order construct every
// observation-side function in the ingestion pipeline is wrapped in: it
// catches every failure — returned error or panic — logs a structured
// sidecar_error, increments the operation-tagged error counter, and never
// lets the failure reach the caller.
package failopen

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
)

// Guard wraps components that report operation-tagged errors through a
// prometheus.CounterVec, matching the "errors_total{operation=...}" metric
// every other component in the pipeline shares.
type Guard struct {
	logger *slog.Logger
	errors *prometheus.CounterVec
}

// New constructs a Guard bound to the structured logger and errors_total
// counter every guarded call reports through.
func New(logger *slog.Logger, errors *prometheus.CounterVec) *Guard {
	return &Guard{logger: logger, errors: errors}
}

// Run executes fn under the fail-open contract: any error it returns, or
// any panic it raises, is caught, logged as a structured sidecar_error with
// operation/error_type/error_message fields, and counted — Run itself never
// returns an error or propagates a panic to the caller.
func (g *Guard) Run(operation string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			g.report(operation, "panic", fmt.Sprintf("%v", r), debug.Stack())
		}
	}()

	if err := fn(); err != nil {
		g.report(operation, errorType(err), err.Error(), nil)
	}
}

func (g *Guard) report(operation, errType, message string, stack []byte) {
	if g.errors != nil {
		g.errors.WithLabelValues(operation).Inc()
	}

	if g.logger == nil {
		return
	}

	attrs := []any{
		slog.String("sidecar_event", "sidecar_error"),
		slog.String("operation", operation),
		slog.String("error_type", errType),
		slog.String("error_message", message),
	}
	if stack != nil {
		attrs = append(attrs, slog.String("stack_trace", string(stack)))
	}

	g.logger.Error("observation failed, continuing fail-open", attrs...)
}

func errorType(err error) string {
	return fmt.Sprintf("%T", err)
}

// Value runs fn under the same fail-open contract as Run, but for
// operations that produce a result. On success it returns fn's value; on
// error or panic it reports exactly as Run does and returns the zero value
// of T.
func Value[T any](g *Guard, operation string, fn func() (T, error)) T {
	var result T

	g.Run(operation, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		result = v
		return nil
	})

	return result
}
