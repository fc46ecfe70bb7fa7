// Package metrics exposes bot activity as prometheus series. Counters are
// fed from the event bus; gauges read live state on scrape.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chirpbot/internal/action"
	"chirpbot/internal/eventbus"
	"chirpbot/internal/schedule"
)

const namespace = "chirpbot"

// Gauges are read on every scrape. Nil funcs are not registered.
type Gauges struct {
	QuotaRemaining func() float64
	Following      func() float64
	Cricket        func() float64
}

type Metrics struct {
	reg *prometheus.Registry

	actions        *prometheus.CounterVec
	actionErrors   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	follows        prometheus.Counter
	unfollows      prometheus.Counter
	panics         *prometheus.CounterVec
	modeChanges    prometheus.Counter
	quotaResets    prometheus.Counter
}

func New(g Gauges) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Executed actions by kind and outcome.",
		}, []string{"action", "status"}),
		actionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_errors_total",
			Help:      "Failed actions by error kind.",
		}, []string{"action", "kind"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Action duration seconds.",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 180, 600},
		}, []string{"action"}),
		follows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "follows_total",
			Help:      "Accounts followed.",
		}),
		unfollows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unfollows_total",
			Help:      "Accounts unfollowed by the sweep.",
		}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_panics_total",
			Help:      "Recovered panics in scheduled jobs.",
		}, []string{"job"}),
		modeChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mode_changes_total",
			Help:      "Content mode switches.",
		}),
		quotaResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_resets_total",
			Help:      "Explicit daily quota resets.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.actions, m.actionErrors, m.actionDuration,
		m.follows, m.unfollows, m.panics, m.modeChanges, m.quotaResets,
	)
	gauge := func(name, help string, fn func() float64) {
		if fn == nil {
			return
		}
		m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, fn))
	}
	gauge("quota_remaining", "Follows left today.", g.QuotaRemaining)
	gauge("following", "Accounts currently followed.", g.Following)
	gauge("cricket_mode", "1 when cricket mode is on.", g.Cricket)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Observe records one bus event.
func (m *Metrics) Observe(ev eventbus.Event) {
	switch ev.Type {
	case eventbus.TypeModeChanged:
		m.modeChanges.Inc()
		return
	case eventbus.TypeQuotaReset:
		m.quotaResets.Inc()
		return
	case eventbus.TypeJobPanicked:
		job := "unknown"
		if pe, ok := ev.Data.(*schedule.PanicError); ok {
			job = pe.Job
		}
		m.panics.WithLabelValues(job).Inc()
		return
	}
	r, ok := ev.Data.(action.Result)
	if !ok || r.Action == "" {
		return
	}
	m.actions.WithLabelValues(r.Action, string(r.Status)).Inc()
	if r.Status == action.StatusFailure {
		m.actionErrors.WithLabelValues(r.Action, string(r.Kind)).Inc()
	}
	if r.Took > 0 {
		m.actionDuration.WithLabelValues(r.Action).Observe(r.Took.Seconds())
	}
	switch ev.Type {
	case eventbus.TypeFollowBatch:
		m.follows.Add(float64(r.Count))
	case eventbus.TypeSweepDone:
		m.unfollows.Add(float64(r.Count))
	}
}

// Run observes bus events until ctx ends.
func (m *Metrics) Run(ctx context.Context, bus eventbus.Bus) error {
	ch, unsubscribe := bus.Subscribe(128)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			m.Observe(ev)
		}
	}
}
