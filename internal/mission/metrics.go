package mission

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Metrics tracks outbound call latency per collaborator service.
type Metrics struct {
	mu     sync.Mutex
	hists  map[string]*hdrhistogram.Histogram
	calls  map[string]int64
	errors map[string]int64
}

// ServiceMetrics is the exported latency summary for one service.
type ServiceMetrics struct {
	Calls  int64   `json:"calls"`
	Errors int64   `json:"errors"`
	P50MS  float64 `json:"p50_ms"`
	P95MS  float64 `json:"p95_ms"`
	P99MS  float64 `json:"p99_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// NewMetrics creates an empty metrics registry.
func NewMetrics() *Metrics {
	return &Metrics{
		hists:  make(map[string]*hdrhistogram.Histogram),
		calls:  make(map[string]int64),
		errors: make(map[string]int64),
	}
}

// Observe records one outbound call. Latency is tracked in microseconds
// with a ceiling of ten minutes.
func (m *Metrics) Observe(service string, duration time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hist, ok := m.hists[service]
	if !ok {
		hist = hdrhistogram.New(1, 10*time.Minute.Microseconds(), 3)
		m.hists[service] = hist
	}
	_ = hist.RecordValue(duration.Microseconds())
	m.calls[service]++
	if failed {
		m.errors[service]++
	}
}

// Summary returns the per-service latency summary.
func (m *Metrics) Summary() map[string]ServiceMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]ServiceMetrics, len(m.hists))
	for service, hist := range m.hists {
		out[service] = ServiceMetrics{
			Calls:  m.calls[service],
			Errors: m.errors[service],
			P50MS:  float64(hist.ValueAtQuantile(50)) / 1000,
			P95MS:  float64(hist.ValueAtQuantile(95)) / 1000,
			P99MS:  float64(hist.ValueAtQuantile(99)) / 1000,
			MaxMS:  float64(hist.Max()) / 1000,
		}
	}
	return out
}
