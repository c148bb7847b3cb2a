package types

import (
	"time"

	"chainforge/crypto"
	chaintypes "chainforge/types"
)

// Phase enumerates the four phases of one round: a block is proposed, then
// prevoted, then precommitted, then committed.
type Phase uint8

const (
	PhasePropose Phase = iota + 1
	PhasePrevote
	PhasePrecommit
	PhaseCommit
)

func (p Phase) String() string {
	switch p {
	case PhasePropose:
		return "propose"
	case PhasePrevote:
		return "prevote"
	case PhasePrecommit:
		return "precommit"
	case PhaseCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// RoundState is the engine's explicit (slot, round, phase, deadline) record,
// read and mutated only from ConsensusState's single receive loop.
type RoundState struct {
	Slot  uint64
	Round uint64
	Phase Phase

	Deadline time.Time

	Validators *chaintypes.ValidatorSet

	Proposal *chaintypes.Block

	// LockedBlockHash is the block this validator precommitted in an
	// earlier round of the same slot, if any -- carried across round
	// advances within the slot.
	LockedBlockHash crypto.Hash

	LastCommitHash crypto.Hash
}
