// Package metrics exposes training progress as Prometheus metrics.
//
// Metrics live on their own registry, so several trainers (or tests) can
// coexist in one process.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Phases label loss and accuracy gauges.
const (
	PhaseTrain      = "train"
	PhaseValidation = "validation"
)

// Metrics holds the training collectors.
//
// Metrics:
//   - han_loss{phase} - Latest epoch loss
//   - han_accuracy{phase} - Latest epoch accuracy
//   - han_batch_loss - Loss of the latest training batch
//   - han_steps_total - Optimizer steps taken
//   - han_epochs_total - Epochs completed
//   - han_batch_duration_seconds - Histogram of training step times
type Metrics struct {
	registry *prometheus.Registry

	Loss          *prometheus.GaugeVec
	Accuracy      *prometheus.GaugeVec
	BatchLoss     prometheus.Gauge
	StepsTotal    prometheus.Counter
	EpochsTotal   prometheus.Counter
	BatchDuration prometheus.Histogram
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Loss: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "han_loss",
				Help: "Binary cross-entropy of the latest epoch",
			},
			[]string{"phase"},
		),
		Accuracy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "han_accuracy",
				Help: "Accuracy of the latest epoch",
			},
			[]string{"phase"},
		),
		BatchLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "han_batch_loss",
			Help: "Loss of the latest training batch",
		}),
		StepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "han_steps_total",
			Help: "Total number of optimizer steps",
		}),
		EpochsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "han_epochs_total",
			Help: "Total number of completed epochs",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "han_batch_duration_seconds",
			Help:    "Duration of a training step in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
	}
	m.registry.MustRegister(m.Loss, m.Accuracy, m.BatchLoss, m.StepsTotal, m.EpochsTotal, m.BatchDuration)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveBatch records one optimizer step.
func (m *Metrics) ObserveBatch(d time.Duration, loss float64) {
	m.StepsTotal.Inc()
	m.BatchLoss.Set(loss)
	m.BatchDuration.Observe(d.Seconds())
}

// ObserveEpoch records epoch-level results for phase.
func (m *Metrics) ObserveEpoch(phase string, loss, accuracy float64) {
	if phase == PhaseTrain {
		m.EpochsTotal.Inc()
	}
	m.Loss.WithLabelValues(phase).Set(loss)
	m.Accuracy.WithLabelValues(phase).Set(accuracy)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics: failed to listen on %s: %w", addr, err)
	}
	return m.serve(ctx, ln, logger)
}

func (m *Metrics) serve(ctx context.Context, ln net.Listener, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}()

	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}
