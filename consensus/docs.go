// Package consensus implements the slot-driven, three-phase BFT voting
// protocol: a deterministically-selected proposer builds a
// block, validators prevote and precommit on it, and a block finalizes the
// moment its precommits witness ⅔-stake quorum.
//
//	            +-----------------------------------------------+
//	            v                                                |(timeout, round++)
//	      +-----------+        +-----------+       +-----------+ |
//	 +--->|  Propose  +------->|  Prevote  +------>| Precommit +-+
//	 |    +-----------+        +-----------+       +-----+-----+
//	 |                                                    |(quorum precommits)
//	 |                                                    v
//	 |                                              +-----------+
//	 +----------------------------------------------+   Commit  |
//	     (advance to next slot, round 0)             +-----------+
//
// ConsensusState (state.go) owns this state machine behind a single
// long-running receive loop; gossip.Transport supplies the one-way
// broadcast/inbound capability, mempool.Pool supplies candidates, and
// state.BlockExecutor and store.Store are the execution and persistence
// collaborators injected at construction time as narrow interfaces rather
// than resolved through runtime dispatch.
package consensus
