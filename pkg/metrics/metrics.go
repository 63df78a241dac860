package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yurykabanov/segrecovery/pkg/recovery"
)

const (
	resultSucceeded = "succeeded"
	resultFailed    = "failed"
)

// Recorder counts finished recovery commands. Each recorder owns its registry.
type Recorder struct {
	registry *prometheus.Registry

	recoveries *prometheus.CounterVec
	failures   *prometheus.CounterVec
	finished   *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		recoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "segrecovery_recoveries_total",
				Help: "Total number of finished segment recoveries by tool and result",
			},
			[]string{"tool", "result"},
		),

		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "segrecovery_recovery_failures_total",
				Help: "Total number of failed segment recoveries by error type",
			},
			[]string{"error_type"},
		),

		finished: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "segrecovery_segment_recovered",
				Help: "Whether the last recovery of a segment succeeded (1) or failed (0)",
			},
			[]string{"era", "dbid"},
		),
	}

	r.registry.MustRegister(r.recoveries, r.failures, r.finished)

	return r
}

func (r *Recorder) Record(ctx context.Context, era string, cmd recovery.Command) error {
	outcome := cmd.Outcome()
	dbid := strconv.Itoa(cmd.Descriptor().TargetDbid)

	if outcome.Succeeded() {
		r.recoveries.WithLabelValues(cmd.Tool(), resultSucceeded).Inc()
		r.finished.WithLabelValues(era, dbid).Set(1)
		return nil
	}

	errorType := recovery.ErrorTypeDefault
	if f, err := outcome.Failure(); err == nil {
		errorType = f.ErrorType
	}

	r.recoveries.WithLabelValues(cmd.Tool(), resultFailed).Inc()
	r.failures.WithLabelValues(string(errorType)).Inc()
	r.finished.WithLabelValues(era, dbid).Set(0)

	return nil
}

// Handler serves the recorder's metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
