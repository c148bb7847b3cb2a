package types

import (
	"errors"
	"fmt"
	"math/big"

	"chainforge/crypto"
)

// Validator is a single entry in a ValidatorSet: address, public
// key, stake, and commission rate.
type Validator struct {
	Address        crypto.Address `json:"address"`
	PubKey         crypto.PubKey  `json:"pub_key"`
	Stake          *big.Int       `json:"stake"`
	CommissionRate Rational       `json:"commission_rate"`
}

// NewValidator builds a Validator, deriving Address from pubKey.
func NewValidator(pubKey crypto.PubKey, stake *big.Int, commission Rational) *Validator {
	return &Validator{
		Address:        crypto.AddressFromPubKey(pubKey),
		PubKey:         pubKey,
		Stake:          stake,
		CommissionRate: commission,
	}
}

// ValidateBasic performs basic validation: pubkey-address consistency and a
// strictly positive stake.
func (v *Validator) ValidateBasic() error {
	if v == nil {
		return errors.New("nil validator")
	}
	if crypto.AddressFromPubKey(v.PubKey) != v.Address {
		return fmt.Errorf("validator %s: address does not match public key", v.Address)
	}
	if v.Stake == nil || v.Stake.Sign() <= 0 {
		return fmt.Errorf("validator %s: stake must be positive", v.Address)
	}
	return nil
}

// Copy returns a deep copy of v.
func (v *Validator) Copy() *Validator {
	vCopy := *v
	if v.Stake != nil {
		vCopy.Stake = new(big.Int).Set(v.Stake)
	}
	return &vCopy
}

func (v *Validator) String() string {
	if v == nil {
		return "nil-Validator"
	}
	return fmt.Sprintf("Validator{%s stake=%s}", v.Address, v.Stake)
}
