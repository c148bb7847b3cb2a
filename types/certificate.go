package types

import (
	"errors"
	"fmt"
	"math/big"

	"chainforge/crypto"
)

// FinalityCertificate is the set of precommits witnessing quorum for a
// block at a given slot/round. Its existence and
// validity is what lets a block be marked finalized in the store.
type FinalityCertificate struct {
	Slot       uint64      `json:"slot"`
	Round      uint64      `json:"round"`
	BlockHash  crypto.Hash `json:"block_hash"`
	Precommits []Vote      `json:"precommits"`
}

var (
	ErrCertificateMismatch = errors.New("certificate: precommit does not match certificate slot/round/block")
	ErrCertificateNoQuorum = errors.New("certificate: precommits do not represent quorum stake")
	ErrCertificateBadVote  = errors.New("certificate: precommit signature invalid")
)

// Validate checks that every precommit in c agrees with c's (slot, round,
// block_hash) and that each member of vals signing one has a valid
// signature, then that the aggregate stake of those signers meets
// vals.HasQuorum. Precommits from non-members and repeats from the same
// voter are skipped: they are not rejected and add no stake.
func (c *FinalityCertificate) Validate(vals *ValidatorSet) error {
	seen := make(map[crypto.Address]bool, len(c.Precommits))
	stake := big.NewInt(0)
	for i := range c.Precommits {
		v := &c.Precommits[i]
		if v.Kind != PrecommitKind || v.Slot != c.Slot || v.Round != c.Round || v.BlockHash != c.BlockHash {
			return fmt.Errorf("%w: precommit #%d", ErrCertificateMismatch, i)
		}
		if seen[v.VoterAddress] {
			continue
		}
		idx, val := vals.GetByAddress(v.VoterAddress)
		if idx < 0 {
			continue
		}
		if err := v.Verify(val.PubKey); err != nil {
			return fmt.Errorf("%w: precommit #%d: %v", ErrCertificateBadVote, i, err)
		}
		seen[v.VoterAddress] = true
		stake.Add(stake, val.Stake)
	}
	if !vals.HasQuorum(stake) {
		return ErrCertificateNoQuorum
	}
	return nil
}
