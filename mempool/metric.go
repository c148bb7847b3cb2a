package mempool

import (
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/rcrowley/go-metrics"
)

// poolMetric tracks pool occupancy for the RPC read surface and the
// rcrowley/go-metrics registry (wraps metrics.Gauge and satisfies
// libs/metric.MetricItem through JSONString).
type poolMetric struct {
	mtx   sync.RWMutex
	size  metrics.Gauge
	bytes metrics.Gauge
	Size  int   `json:"size"`
	Bytes int64 `json:"bytes"`
}

func newPoolMetric(registry metrics.Registry) *poolMetric {
	return &poolMetric{
		size:  metrics.GetOrRegisterGauge("mempool.size", registry),
		bytes: metrics.GetOrRegisterGauge("mempool.bytes", registry),
	}
}

func (pm *poolMetric) JSONString() string {
	pm.mtx.RLock()
	defer pm.mtx.RUnlock()
	s, _ := jsoniter.MarshalToString(pm)
	return s
}

func (pm *poolMetric) MarkSize(size int) {
	pm.mtx.Lock()
	defer pm.mtx.Unlock()
	pm.Size = size
	pm.size.Update(int64(size))
}

func (pm *poolMetric) MarkBytes(bytes int64) {
	pm.mtx.Lock()
	defer pm.mtx.Unlock()
	pm.Bytes = bytes
	pm.bytes.Update(bytes)
}
