package types

import (
	"errors"
	"math/big"

	"chainforge/crypto"
)

// Transaction is the unit of state change a client submits.
//
// The signature must verify against public key material resolvable from the
// sender address. Since this signature scheme (crypto.PubKey/crypto.Signature,
// Ed25519-class) has no public-key-recovery property, the transaction
// carries the sender's public key alongside the signature, and Sender is
// required to equal crypto.AddressFromPubKey(SenderPubKey).
type Transaction struct {
	Sender               crypto.Address   `json:"sender"`
	SenderPubKey         crypto.PubKey    `json:"sender_pub_key"`
	Nonce                uint64           `json:"nonce"`
	To                   *crypto.Address  `json:"to,omitempty"`
	Value                uint64           `json:"value"`
	Payload              []byte           `json:"payload,omitempty"`
	GasLimit             uint64           `json:"gas_limit"`
	MaxFeePerGas         uint64           `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas uint64           `json:"max_priority_fee_per_gas"`
	ChainID              *uint64          `json:"chain_id,omitempty"`
	Signature            crypto.Signature `json:"signature"`
}

var (
	// ErrBadSignature is returned when a transaction's signature does not
	// verify, or the embedded public key does not hash to Sender.
	ErrBadSignature = errors.New("transaction: bad signature")
	// ErrPriorityExceedsMaxFee is returned when MaxPriorityFeePerGas >
	// MaxFeePerGas.
	ErrPriorityExceedsMaxFee = errors.New("transaction: max_priority_fee_per_gas exceeds max_fee_per_gas")
)

// signingFields is the subset of Transaction that is hashed/signed --
// everything except Signature itself.
type signingFields struct {
	Sender               crypto.Address   `json:"sender"`
	SenderPubKey         crypto.PubKey    `json:"sender_pub_key"`
	Nonce                uint64           `json:"nonce"`
	To                   *crypto.Address  `json:"to,omitempty"`
	Value                uint64           `json:"value"`
	Payload              []byte           `json:"payload,omitempty"`
	GasLimit             uint64           `json:"gas_limit"`
	MaxFeePerGas         uint64           `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas uint64           `json:"max_priority_fee_per_gas"`
	ChainID              *uint64          `json:"chain_id,omitempty"`
}

// SignBytes returns the canonical bytes signed/hashed for tx: a signature
// over the canonical hash of every field but the signature itself.
func (tx *Transaction) SignBytes() []byte {
	return crypto.MustEncode(signingFields{
		Sender:               tx.Sender,
		SenderPubKey:         tx.SenderPubKey,
		Nonce:                tx.Nonce,
		To:                   tx.To,
		Value:                tx.Value,
		Payload:              tx.Payload,
		GasLimit:             tx.GasLimit,
		MaxFeePerGas:         tx.MaxFeePerGas,
		MaxPriorityFeePerGas: tx.MaxPriorityFeePerGas,
		ChainID:              tx.ChainID,
	})
}

// Hash returns the canonical hash identifying tx.
func (tx *Transaction) Hash() crypto.Hash {
	return crypto.ComputeHash(tx.SignBytes())
}

// Sign signs tx with kp, setting SenderPubKey/Sender/Signature consistently.
func (tx *Transaction) Sign(kp crypto.KeyPair) error {
	tx.SenderPubKey = kp.Public
	tx.Sender = crypto.AddressFromPubKey(kp.Public)
	sig, err := crypto.Sign(kp.Secret, tx.SignBytes())
	if err != nil {
		return err
	}
	tx.Signature = sig
	return nil
}

// ValidateBasic checks the structural invariants that do not require
// store access: fee ordering and signature validity.
func (tx *Transaction) ValidateBasic() error {
	if tx.MaxPriorityFeePerGas > tx.MaxFeePerGas {
		return ErrPriorityExceedsMaxFee
	}
	if crypto.AddressFromPubKey(tx.SenderPubKey) != tx.Sender {
		return ErrBadSignature
	}
	if !crypto.Verify(tx.SenderPubKey, tx.SignBytes(), tx.Signature) {
		return ErrBadSignature
	}
	return nil
}

// Cost returns the maximum balance this transaction can consume:
// gas_limit * max_fee_per_gas + value.
func (tx *Transaction) Cost() *big.Int {
	cost := new(big.Int).Mul(big.NewInt(int64(tx.GasLimit)), big.NewInt(int64(tx.MaxFeePerGas)))
	cost.Add(cost, big.NewInt(int64(tx.Value)))
	return cost
}

// EffectiveFeePerGas returns min(max_fee_per_gas - base_fee,
// max_priority_fee_per_gas), the glossary's "Effective fee per gas". It
// returns (0, false) when max_fee_per_gas < base_fee (tx does not fit this
// block's base fee).
func (tx *Transaction) EffectiveFeePerGas(baseFee uint64) (uint64, bool) {
	if tx.MaxFeePerGas < baseFee {
		return 0, false
	}
	headroom := tx.MaxFeePerGas - baseFee
	if tx.MaxPriorityFeePerGas < headroom {
		return tx.MaxPriorityFeePerGas, true
	}
	return headroom, true
}

// Transactions is an ordered list of Transaction.
type Transactions []Transaction

// ExtrinsicsRoot computes H(concat(H(tx_i))), the Block Header's commitment
// to its transaction list.
func (txs Transactions) ExtrinsicsRoot() crypto.Hash {
	concat := make([]byte, 0, len(txs)*crypto.HashSize)
	for i := range txs {
		h := txs[i].Hash()
		concat = append(concat, h[:]...)
	}
	return crypto.ComputeHash(concat)
}
