package chronodm

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors fed by Middleware.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Snapshots  *prometheus.CounterVec
}

// NewMetrics creates the chronodm collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronodm",
			Name:      "operations_total",
			Help:      "Operations by type, model, and outcome.",
		}, []string{"op", "model", "status"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chronodm",
			Name:      "operation_duration_seconds",
			Help:      "Operation latency by type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		Snapshots: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronodm",
			Name:      "snapshot_writes_total",
			Help:      "Successful snapshot writes by owner kind.",
		}, []string{"kind"}),
	}
}

// Middleware returns a MiddlewareFunc that records every operation.
func (m *Metrics) Middleware() MiddlewareFunc {
	return func(ctx context.Context, op *OpInfo, next func(context.Context) error) error {
		start := time.Now()
		err := next(ctx)

		m.Duration.WithLabelValues(string(op.Operation)).Observe(time.Since(start).Seconds())
		m.Operations.WithLabelValues(string(op.Operation), op.ModelName, statusOf(err)).Inc()
		if err == nil && op.Operation == OpSaveSnapshot {
			m.Snapshots.WithLabelValues(string(op.Owner.Kind)).Inc()
		}
		return err
	}
}

func statusOf(err error) string {
	var verrs ValidationErrors
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrVersionNotFound):
		return "not_found"
	case errors.As(err, &verrs):
		return "invalid"
	default:
		return "error"
	}
}
