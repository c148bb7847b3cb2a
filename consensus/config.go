package consensus

import "time"

// Config holds the tunable consensus parameters: block_time-derived phase
// timeouts, gas/fee block parameters, and whether an empty block is
// proposed when the pool has nothing to include.
type Config struct {
	ProposeTimeout   time.Duration
	PrevoteTimeout   time.Duration
	PrecommitTimeout time.Duration

	// AllowEmptyBlocks being true (the default) means the proposer still
	// produces and signs a block for a slot with no pool candidates,
	// keeping one block per slot; false skips proposing when there is
	// nothing to include.
	AllowEmptyBlocks bool

	GasLimit uint64
	BaseFee  uint64
}

// DefaultConfig returns reasonable phase timeouts for a small validator
// set on a local network.
func DefaultConfig() Config {
	return Config{
		ProposeTimeout:   3 * time.Second,
		PrevoteTimeout:   1 * time.Second,
		PrecommitTimeout: 1 * time.Second,
		AllowEmptyBlocks: true,
		GasLimit:         30_000_000,
		BaseFee:          1,
	}
}

// maxRoundDoublings caps the exponential round-timeout backoff so a
// long-stalled slot does not overflow into a multi-hour timeout.
const maxRoundDoublings = 6

// roundTimeout doubles base once per round, capped at maxRoundDoublings,
// restoring liveness after a stall without an unbounded wait.
func roundTimeout(base time.Duration, round uint64) time.Duration {
	if round > maxRoundDoublings {
		round = maxRoundDoublings
	}
	return base << round
}
