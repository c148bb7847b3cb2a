package consensus

import (
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// engineMetric is the read-only snapshot of engine progress exposed to an
// RPC metrics endpoint, serialized through the same jsoniter-backed
// JSONString() convention every metric in this tree follows.
type engineMetric struct {
	mtx sync.RWMutex

	Slot         uint64    `json:"slot"`
	Round        uint64    `json:"round"`
	Phase        string    `json:"phase"`
	IsProposer   bool      `json:"is_proposer"`
	LastCommitAt time.Time `json:"last_commit_at"`
}

func newEngineMetric() *engineMetric {
	return &engineMetric{}
}

func (m *engineMetric) JSONString() string {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	s, _ := jsoniter.MarshalToString(m)
	return s
}

func (m *engineMetric) MarkRound(slot, round uint64, phase Phase, isProposer bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.Slot, m.Round, m.Phase, m.IsProposer = slot, round, phase.String(), isProposer
}

func (m *engineMetric) MarkCommit(at time.Time) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.LastCommitAt = at
}
