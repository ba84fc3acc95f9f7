package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts what the bot does. Labels are kept to closed sets: notice
// kinds and command names.
type Metrics struct {
	NoticesSent    *prometheus.CounterVec
	NoticeFailures *prometheus.CounterVec
	Commands       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NoticesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modlog",
			Name:      "notices_sent_total",
			Help:      "Notices delivered to log channels.",
		}, []string{"kind"}),
		NoticeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modlog",
			Name:      "notice_failures_total",
			Help:      "Notices that could not be delivered.",
		}, []string{"kind"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modlog",
			Name:      "commands_total",
			Help:      "Moderator commands handled, by outcome.",
		}, []string{"command", "outcome"}),
	}
	reg.MustRegister(m.Collectors()...)
	return m
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.NoticesSent,
		m.NoticeFailures,
		m.Commands,
	}
}

// Notice records one send attempt.
func (m *Metrics) Notice(kind string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.NoticeFailures.WithLabelValues(kind).Inc()
		return
	}
	m.NoticesSent.WithLabelValues(kind).Inc()
}

// Command records one command outcome: ok, denied, skipped or error.
func (m *Metrics) Command(name, outcome string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(name, outcome).Inc()
}

// Serve exposes gatherer on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shut down metrics server", "error", err)
		}
	}()

	slog.Info("serving metrics", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
