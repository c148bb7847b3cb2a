package types

import (
	"errors"
	"math/big"

	"chainforge/crypto"
	chaintypes "chainforge/types"
)

var (
	// ErrDuplicateVote is returned for a repeat vote identical to one
	// already recorded; it is silently ignorable by callers.
	ErrDuplicateVote = errors.New("consensus: duplicate vote")
	// ErrNotValidator is returned for a vote from a non-member of the
	// active validator set.
	ErrNotValidator = errors.New("consensus: voter is not a member of the active validator set")
	// ErrWrongView is returned for a vote whose (kind, slot, round) does
	// not match this VoteSet.
	ErrWrongView = errors.New("consensus: vote does not match this (kind, slot, round)")
)

// Equivocation records two distinct signed votes by the same validator for
// the same (slot, round, phase) -- slashable evidence.
type Equivocation struct {
	Validator crypto.Address
	Slot      uint64
	Round     uint64
	Kind      chaintypes.VoteKind
	VoteA     chaintypes.Vote
	VoteB     chaintypes.Vote
}

// VoteSet accumulates votes of one kind for one (slot, round), tallying
// stake per candidate block hash to answer the ⅔-quorum question. Tracks
// real per-validator stake rather than an aggregate signature, so
// equivocation can be detected and attributed to a specific validator.
type VoteSet struct {
	vals  *chaintypes.ValidatorSet
	slot  uint64
	round uint64
	kind  chaintypes.VoteKind

	byVoter map[crypto.Address]chaintypes.Vote
	stake   map[crypto.Hash]*big.Int
}

func NewVoteSet(vals *chaintypes.ValidatorSet, slot, round uint64, kind chaintypes.VoteKind) *VoteSet {
	return &VoteSet{
		vals:    vals,
		slot:    slot,
		round:   round,
		kind:    kind,
		byVoter: make(map[crypto.Address]chaintypes.Vote),
		stake:   make(map[crypto.Hash]*big.Int),
	}
}

// AddVote validates and records vote. It returns (true, nil, nil) if newly
// recorded, (false, nil, ErrDuplicateVote) for an exact duplicate, (false,
// eq, nil) when the voter has equivocated, or (false, nil, err) for any
// other rejected vote.
func (vs *VoteSet) AddVote(vote chaintypes.Vote) (added bool, equivocation *Equivocation, err error) {
	if vote.Kind != vs.kind || vote.Slot != vs.slot || vote.Round != vs.round {
		return false, nil, ErrWrongView
	}
	_, val := vs.vals.GetByAddress(vote.VoterAddress)
	if val == nil {
		return false, nil, ErrNotValidator
	}
	if err := vote.Verify(val.PubKey); err != nil {
		return false, nil, err
	}

	if existing, ok := vs.byVoter[vote.VoterAddress]; ok {
		if existing.BlockHash == vote.BlockHash {
			return false, nil, ErrDuplicateVote
		}
		return false, &Equivocation{
			Validator: vote.VoterAddress,
			Slot:      vs.slot,
			Round:     vs.round,
			Kind:      vs.kind,
			VoteA:     existing,
			VoteB:     vote,
		}, nil
	}

	vs.byVoter[vote.VoterAddress] = vote
	if vs.stake[vote.BlockHash] == nil {
		vs.stake[vote.BlockHash] = big.NewInt(0)
	}
	vs.stake[vote.BlockHash].Add(vs.stake[vote.BlockHash], val.Stake)
	return true, nil, nil
}

// HasQuorum reports whether blockHash has collected ≥⅔ of total stake.
func (vs *VoteSet) HasQuorum(blockHash crypto.Hash) bool {
	stake, ok := vs.stake[blockHash]
	if !ok {
		return false
	}
	return vs.vals.HasQuorum(stake)
}

// QuorumBlockHash returns the first block hash (non-nil) that has reached
// quorum, if any.
func (vs *VoteSet) QuorumBlockHash() (crypto.Hash, bool) {
	for hash := range vs.stake {
		if hash.IsZero() {
			continue
		}
		if vs.HasQuorum(hash) {
			return hash, true
		}
	}
	return crypto.Hash{}, false
}

// VotesFor returns every recorded vote for blockHash, in no particular
// order -- used to build a FinalityCertificate on Precommit quorum.
func (vs *VoteSet) VotesFor(blockHash crypto.Hash) []chaintypes.Vote {
	var out []chaintypes.Vote
	for _, v := range vs.byVoter {
		if v.BlockHash == blockHash {
			out = append(out, v)
		}
	}
	return out
}

func (vs *VoteSet) Size() int { return len(vs.byVoter) }

// RoundVotes holds the Prevote and Precommit VoteSets for one (slot,
// round).
type RoundVotes struct {
	Prevotes   *VoteSet
	Precommits *VoteSet
}

func NewRoundVotes(vals *chaintypes.ValidatorSet, slot, round uint64) *RoundVotes {
	return &RoundVotes{
		Prevotes:   NewVoteSet(vals, slot, round, chaintypes.PrevoteKind),
		Precommits: NewVoteSet(vals, slot, round, chaintypes.PrecommitKind),
	}
}

// SlotVotes indexes RoundVotes by round for a single slot, pruned wholesale
// once the slot commits.
type SlotVotes struct {
	vals      *chaintypes.ValidatorSet
	slot      uint64
	byRound   map[uint64]*RoundVotes
}

func NewSlotVotes(vals *chaintypes.ValidatorSet, slot uint64) *SlotVotes {
	return &SlotVotes{vals: vals, slot: slot, byRound: make(map[uint64]*RoundVotes)}
}

func (sv *SlotVotes) ForRound(round uint64) *RoundVotes {
	rv, ok := sv.byRound[round]
	if !ok {
		rv = NewRoundVotes(sv.vals, sv.slot, round)
		sv.byRound[round] = rv
	}
	return rv
}
