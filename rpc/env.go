package rpc

import (
	"chainforge/consensus"
	"chainforge/gossip"
	"chainforge/libs/metric"
	"chainforge/mempool"
	"chainforge/store"

	jsoniter "github.com/json-iterator/go"
)

var (
	env  *Environment
	json = jsoniter.ConfigCompatibleWithStandardLibrary
)

// SetEnvironment installs e as the environment every RPC handler in this
// package reads from.
func SetEnvironment(e *Environment) {
	env = e
}

// Environment bundles the read-only handles RPC handlers need: the
// durable store for block/account queries, the pool for submitting and
// inspecting transactions, the engine for round-state introspection, and
// the metric set for the /metrics endpoint.
type Environment struct {
	Store     store.Store
	Pool      mempool.Pool
	Consensus *consensus.ConsensusState
	Transport gossip.Transport

	MetricSet *metric.MetricSet
}
