package metrics

// Recorder defines the metrics hooks for the miner. The default implementation is a no-op
// so that library code and tests never need a backend.
type Recorder interface {
	HashRate(rate float64, total uint64)
	TemplateRefreshed(height int64)
	TemplateRefreshFailed()
	BlockFound(height int64)
	BlockSubmitted(status string)
}

// NoopRecorder implements Recorder without emitting metrics.
type NoopRecorder struct{}

func (NoopRecorder) HashRate(rate float64, total uint64) {}
func (NoopRecorder) TemplateRefreshed(height int64)      {}
func (NoopRecorder) TemplateRefreshFailed()              {}
func (NoopRecorder) BlockFound(height int64)             {}
func (NoopRecorder) BlockSubmitted(status string)        {}

// Default is the process-wide metrics sink; the daemon swaps in Prometheus at startup.
var Default Recorder = NoopRecorder{}
