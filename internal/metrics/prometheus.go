package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromRecorder implements Recorder backed by Prometheus counters/gauges.
type PromRecorder struct {
	registry         *prometheus.Registry
	handler          http.Handler
	hashRate         prometheus.Gauge
	hashesTotal      prometheus.Gauge
	templateHeight   prometheus.Gauge
	templateRefresh  prometheus.Counter
	templateFailures prometheus.Counter
	blocksFound      prometheus.Counter
	lastBlockHeight  prometheus.Gauge
	blocksSubmitted  *prometheus.CounterVec
}

// NewPromRecorder creates a Prometheus-backed Recorder and exposes a handler for metrics scraping.
// Namespace is prefixed on all metrics; if empty, "miner" is used.
func NewPromRecorder(namespace string) (*PromRecorder, error) {
	if namespace == "" {
		namespace = "miner"
	}
	reg := prometheus.NewRegistry()

	hashRate := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "hash_rate", Help: "Average hashes per second since mining started."})
	hashesTotal := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "hashes", Help: "Header hashes computed since mining started."})
	templateHeight := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "template_height", Help: "Height of the installed block template."})
	templateRefresh := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "template_refreshes_total", Help: "Successful template refreshes."})
	templateFailures := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "template_refresh_failures_total", Help: "Failed template refreshes."})
	blocksFound := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "blocks_found_total", Help: "Blocks found (candidate)."})
	lastBlockHeight := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "last_block_height", Help: "Height of the last found block."})
	blocksSubmitted := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "block_submissions_total", Help: "Block submissions by result."}, []string{"status"})

	collectors := []prometheus.Collector{hashRate, hashesTotal, templateHeight, templateRefresh, templateFailures, blocksFound, lastBlockHeight, blocksSubmitted}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &PromRecorder{
		registry:         reg,
		handler:          promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		hashRate:         hashRate,
		hashesTotal:      hashesTotal,
		templateHeight:   templateHeight,
		templateRefresh:  templateRefresh,
		templateFailures: templateFailures,
		blocksFound:      blocksFound,
		lastBlockHeight:  lastBlockHeight,
		blocksSubmitted:  blocksSubmitted,
	}, nil
}

// Handler exposes the HTTP handler for scraping.
func (p *PromRecorder) Handler() http.Handler {
	return p.handler
}

func (p *PromRecorder) HashRate(rate float64, total uint64) {
	p.hashRate.Set(rate)
	p.hashesTotal.Set(float64(total))
}
func (p *PromRecorder) TemplateRefreshed(height int64) {
	p.templateRefresh.Inc()
	p.templateHeight.Set(float64(height))
}
func (p *PromRecorder) TemplateRefreshFailed() { p.templateFailures.Inc() }
func (p *PromRecorder) BlockFound(height int64) {
	p.blocksFound.Inc()
	p.lastBlockHeight.Set(float64(height))
}
func (p *PromRecorder) BlockSubmitted(status string) {
	p.blocksSubmitted.WithLabelValues(status).Inc()
}
