package types

import (
	"errors"

	"chainforge/crypto"
)

// VoteKind distinguishes a prevote from a precommit.
type VoteKind uint8

const (
	PrevoteKind VoteKind = iota + 1
	PrecommitKind
)

func (k VoteKind) String() string {
	switch k {
	case PrevoteKind:
		return "prevote"
	case PrecommitKind:
		return "precommit"
	default:
		return "unknown"
	}
}

// Vote is a single validator's signed position on a candidate block at a
// given slot/round. A validator casts at most one vote of each
// kind per (slot, round).
type Vote struct {
	Kind          VoteKind         `json:"kind"`
	Slot          uint64           `json:"slot"`
	Round         uint64           `json:"round"`
	BlockHash     crypto.Hash      `json:"block_hash"`
	VoterAddress  crypto.Address   `json:"voter_address"`
	Signature     crypto.Signature `json:"signature"`
}

var ErrVoteBadSignature = errors.New("vote: bad signature")

// voteSigningFields is the subset of Vote that is hashed/signed -- everything
// except Signature.
type voteSigningFields struct {
	Kind         VoteKind       `json:"kind"`
	Slot         uint64         `json:"slot"`
	Round        uint64         `json:"round"`
	BlockHash    crypto.Hash    `json:"block_hash"`
	VoterAddress crypto.Address `json:"voter_address"`
}

// SignBytes returns the canonical bytes signed for v.
func (v *Vote) SignBytes() []byte {
	return crypto.MustEncode(voteSigningFields{
		Kind:         v.Kind,
		Slot:         v.Slot,
		Round:        v.Round,
		BlockHash:    v.BlockHash,
		VoterAddress: v.VoterAddress,
	})
}

// Sign signs v with kp, setting VoterAddress/Signature.
func (v *Vote) Sign(kp crypto.KeyPair) error {
	v.VoterAddress = crypto.AddressFromPubKey(kp.Public)
	sig, err := crypto.Sign(kp.Secret, v.SignBytes())
	if err != nil {
		return err
	}
	v.Signature = sig
	return nil
}

// Verify checks v.Signature against pk, which must belong to v.VoterAddress.
func (v *Vote) Verify(pk crypto.PubKey) error {
	if crypto.AddressFromPubKey(pk) != v.VoterAddress {
		return ErrVoteBadSignature
	}
	if !crypto.Verify(pk, v.SignBytes(), v.Signature) {
		return ErrVoteBadSignature
	}
	return nil
}

// SameView reports whether v and other are votes of the same kind for the
// same (slot, round) -- the granularity at which equivocation is detected.
func (v *Vote) SameView(other *Vote) bool {
	return v.Kind == other.Kind && v.Slot == other.Slot && v.Round == other.Round
}
