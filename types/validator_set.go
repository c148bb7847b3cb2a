package types

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"chainforge/crypto"
)

// ValidatorSet is the ordered list of Validators effective for a given
// validator_set_id. Order is insertion order and is part of the
// set's canonical identity: it is NOT re-sorted by stake, since proposer
// selection indexes directly into it.
//
// NOTE: not goroutine-safe; callers copy before sharing across goroutines,
// same discipline callers apply around any shared mutable slice.
type ValidatorSet struct {
	ID         uint64       `json:"id"`
	Validators []*Validator `json:"validators"`
}

// NewValidatorSet builds a ValidatorSet from valz, panicking on duplicate
// addresses -- genesis/epoch-transition construction errors, not runtime
// conditions.
func NewValidatorSet(id uint64, valz []*Validator) *ValidatorSet {
	seen := make(map[crypto.Address]bool, len(valz))
	vals := make([]*Validator, 0, len(valz))
	for _, v := range valz {
		if seen[v.Address] {
			panic(fmt.Sprintf("validator set: duplicate address %s", v.Address))
		}
		seen[v.Address] = true
		vals = append(vals, v)
	}
	return &ValidatorSet{ID: id, Validators: vals}
}

func (vals *ValidatorSet) ValidateBasic() error {
	if vals.IsNilOrEmpty() {
		return errors.New("validator set is nil or empty")
	}
	for idx, val := range vals.Validators {
		if err := val.ValidateBasic(); err != nil {
			return fmt.Errorf("invalid validator #%d: %w", idx, err)
		}
	}
	return nil
}

func (vals *ValidatorSet) IsNilOrEmpty() bool {
	return vals == nil || len(vals.Validators) == 0
}

func (vals *ValidatorSet) Copy() *ValidatorSet {
	cp := make([]*Validator, len(vals.Validators))
	for i, v := range vals.Validators {
		cp[i] = v.Copy()
	}
	return &ValidatorSet{ID: vals.ID, Validators: cp}
}

// HasAddress reports whether address is in the set.
func (vals *ValidatorSet) HasAddress(address crypto.Address) bool {
	_, v := vals.GetByAddress(address)
	return v != nil
}

// GetByAddress returns the index and a copy of the validator at address, or
// (-1, nil) if not found.
func (vals *ValidatorSet) GetByAddress(address crypto.Address) (index int, val *Validator) {
	for idx, v := range vals.Validators {
		if v.Address == address {
			return idx, v.Copy()
		}
	}
	return -1, nil
}

// GetByIndex returns a copy of the validator at index, or nil if out of
// range.
func (vals *ValidatorSet) GetByIndex(index int) *Validator {
	if index < 0 || index >= len(vals.Validators) {
		return nil
	}
	return vals.Validators[index].Copy()
}

// Size returns the number of validators in the set.
func (vals *ValidatorSet) Size() int {
	return len(vals.Validators)
}

// Proposer implements deterministic round-robin proposer selection:
// proposer(slot, round, validator_set) = set[(slot+round) mod |set|].
func (vals *ValidatorSet) Proposer(slot, round uint64) *Validator {
	if len(vals.Validators) == 0 {
		return nil
	}
	idx := (slot + round) % uint64(len(vals.Validators))
	return vals.Validators[idx].Copy()
}

// TotalStake returns the sum of every validator's stake.
func (vals *ValidatorSet) TotalStake() *big.Int {
	total := big.NewInt(0)
	for _, v := range vals.Validators {
		total.Add(total, v.Stake)
	}
	return total
}

// HasQuorum reports whether stake represents at least two-thirds of the
// set's total stake -- the BFT quorum threshold used for Prevote,
// Precommit, and FinalityCertificate validation.
func (vals *ValidatorSet) HasQuorum(stake *big.Int) bool {
	total := vals.TotalStake()
	// stake*3 >= total*2
	lhs := new(big.Int).Mul(stake, big.NewInt(3))
	rhs := new(big.Int).Mul(total, big.NewInt(2))
	return lhs.Cmp(rhs) >= 0
}

// Hash returns the Merkle root over the set's validators, used as the
// validator_set_id's content commitment.
func (vals *ValidatorSet) Hash() crypto.Hash {
	leaves := make([][]byte, len(vals.Validators))
	for i, v := range vals.Validators {
		leaves[i] = crypto.MustEncode(v)
	}
	return crypto.MerkleRoot(leaves)
}

func (vals *ValidatorSet) Iterate(fn func(index int, val *Validator) bool) {
	for i, val := range vals.Validators {
		if fn(i, val.Copy()) {
			break
		}
	}
}

func (vals *ValidatorSet) String() string {
	if vals == nil {
		return "nil-ValidatorSet"
	}
	var parts []string
	vals.Iterate(func(_ int, val *Validator) bool {
		parts = append(parts, val.String())
		return false
	})
	return fmt.Sprintf("ValidatorSet{id=%d [%s]}", vals.ID, strings.Join(parts, ", "))
}
