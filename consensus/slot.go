package consensus

import (
	"time"

	"github.com/tendermint/tendermint/libs/log"
)

// SlotClock is a wall-clock source. ConsensusState does not take one: it
// reads time.Now directly for deadlines and the commit metric. Slot numbers
// advance only on commit (state.go's commit calls enterNewSlot), never on a
// fixed ticker: validators cannot assume they share a synchronized slot
// boundary, so there is no "advance to the next logical slot" timer driving
// independently of the phase state machine.
type SlotClock interface {
	Now() time.Time
	SetLogger(logger log.Logger)
}

type systemClock struct {
	logger log.Logger
}

// NewSystemClock returns a SlotClock backed by the operating system clock.
func NewSystemClock() SlotClock {
	return &systemClock{logger: log.NewNopLogger()}
}

func (c *systemClock) Now() time.Time { return time.Now() }

func (c *systemClock) SetLogger(logger log.Logger) { c.logger = logger }
