// Package metrics exports run outcomes and the daily market state to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"BreadthSentinel/internal/model"
)

// Recorder holds the collectors on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	skips       *prometheus.CounterVec
	alerts      prometheus.Counter
	duration    prometheus.Histogram
	processed   prometheus.Gauge
	exposure    prometheus.Gauge
	score       prometheus.Gauge
	signal      *prometheus.GaugeVec
	breadth     *prometheus.GaugeVec
	lastSuccess prometheus.Gauge
}

// New creates a Recorder with Go and process collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "breadth",
			Name:      "runs_total",
			Help:      "Classification runs by outcome",
		}, []string{"status"}),
		skips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "breadth",
			Name:      "skips_total",
			Help:      "Symbols, sectors and detectors skipped, by step and reason",
		}, []string{"step", "reason"}),
		alerts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "breadth",
			Name:      "alerts_emitted_total",
			Help:      "Alert records emitted",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "breadth",
			Name:      "run_duration_seconds",
			Help:      "Duration of a full run including data loading",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		processed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "breadth",
			Name:      "symbols_processed",
			Help:      "Symbols processed by the last run",
		}),
		exposure: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "breadth",
			Name:      "exposure_pct",
			Help:      "Recommended exposure of the last market state",
		}),
		score: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "breadth",
			Name:      "weighted_score",
			Help:      "Weighted breadth score of the last market state",
		}),
		signal: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "breadth",
			Name:      "action_signal",
			Help:      "1 for the current action signal, 0 for the others",
		}, []string{"signal"}),
		breadth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "breadth",
			Name:      "pct_above_ma",
			Help:      "Percentage of eligible symbols above their moving average",
		}, []string{"period"}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "breadth",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run without a fatal error",
		}),
	}
}

// ObserveRun records a finished run. state may be nil when the market step did not run.
func (r *Recorder) ObserveRun(rep model.RunReport, state *model.MarketState) {
	status := "ok"
	if rep.Fatal {
		status = "fatal"
	}
	r.runs.WithLabelValues(status).Inc()
	r.duration.Observe(rep.Duration.Seconds())
	for _, s := range rep.Skips {
		r.skips.WithLabelValues(s.Step, s.Reason).Inc()
	}
	if rep.Fatal {
		return
	}
	r.alerts.Add(float64(rep.AlertsEmitted))
	r.processed.Set(float64(rep.SymbolsProcessed))
	r.lastSuccess.SetToCurrentTime()

	if state == nil {
		return
	}
	r.exposure.Set(float64(state.ExposurePct))
	r.score.Set(state.WeightedScore)
	for _, s := range model.AllActionSignals {
		v := 0.0
		if s == state.Signal {
			v = 1
		}
		r.signal.WithLabelValues(string(s)).Set(v)
	}
	r.breadth.WithLabelValues("20").Set(state.Breadth.PctAboveMA20)
	r.breadth.WithLabelValues("50").Set(state.Breadth.PctAboveMA50)
	r.breadth.WithLabelValues("100").Set(state.Breadth.PctAboveMA100)
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
