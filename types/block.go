package types

import (
	"errors"

	"chainforge/crypto"
)

// Header carries everything identifying a block. Its hash is the block's
// identity; ProposerSignature signs the same bytes that hash is taken over
// and so is not itself part of the hashed payload.
type Header struct {
	ParentHash      crypto.Hash    `json:"parent_hash"`
	StateRoot       crypto.Hash    `json:"state_root"`
	ExtrinsicsRoot  crypto.Hash    `json:"extrinsics_root"`
	Slot            uint64         `json:"slot"`
	Epoch           uint64         `json:"epoch"`
	ValidatorSetID  uint64         `json:"validator_set_id"`
	Proposer        crypto.Address `json:"proposer"`
	GasUsed         uint64         `json:"gas_used"`
	BaseFee         uint64         `json:"base_fee"`

	ProposerSignature crypto.Signature `json:"proposer_signature"`
}

// headerSigningFields is the subset of Header that is hashed and signed --
// everything except ProposerSignature.
type headerSigningFields struct {
	ParentHash     crypto.Hash    `json:"parent_hash"`
	StateRoot      crypto.Hash    `json:"state_root"`
	ExtrinsicsRoot crypto.Hash    `json:"extrinsics_root"`
	Slot           uint64         `json:"slot"`
	Epoch          uint64         `json:"epoch"`
	ValidatorSetID uint64         `json:"validator_set_id"`
	Proposer       crypto.Address `json:"proposer"`
	GasUsed        uint64         `json:"gas_used"`
	BaseFee        uint64         `json:"base_fee"`
}

// SignBytes returns the canonical bytes the proposer signs.
func (h *Header) SignBytes() []byte {
	return crypto.MustEncode(headerSigningFields{
		ParentHash:     h.ParentHash,
		StateRoot:      h.StateRoot,
		ExtrinsicsRoot: h.ExtrinsicsRoot,
		Slot:           h.Slot,
		Epoch:          h.Epoch,
		ValidatorSetID: h.ValidatorSetID,
		Proposer:       h.Proposer,
		GasUsed:        h.GasUsed,
		BaseFee:        h.BaseFee,
	})
}

// Hash returns H(header), the block's identity.
func (h *Header) Hash() crypto.Hash {
	return crypto.ComputeHash(h.SignBytes())
}

// Sign signs the header with kp. It does not check kp's address against
// h.Proposer; VerifyProposerSignature against the expected proposer's key
// is what rejects a header signed by anyone else.
func (h *Header) Sign(kp crypto.KeyPair) error {
	sig, err := crypto.Sign(kp.Secret, h.SignBytes())
	if err != nil {
		return err
	}
	h.ProposerSignature = sig
	return nil
}

// VerifyProposerSignature checks ProposerSignature against pk.
func (h *Header) VerifyProposerSignature(pk crypto.PubKey) bool {
	return crypto.Verify(pk, h.SignBytes(), h.ProposerSignature)
}

// Block is a Header plus its ordered Transactions. Identity = H(header).
type Block struct {
	Header       Header       `json:"header"`
	Transactions Transactions `json:"transactions"`
}

var (
	// ErrMissingExtrinsicsRoot is returned when a block's declared
	// extrinsics_root does not match its transactions.
	ErrMissingExtrinsicsRoot = errors.New("block: extrinsics_root does not match transactions")
)

// Hash returns the block's identity, H(header).
func (b *Block) Hash() crypto.Hash {
	return b.Header.Hash()
}

// ValidateBasic checks structural well-formedness that does not require
// store/validator-set context: the extrinsics_root commitment and that
// every included transaction passes its own ValidateBasic.
func (b *Block) ValidateBasic() error {
	if b.Header.ExtrinsicsRoot != b.Transactions.ExtrinsicsRoot() {
		return ErrMissingExtrinsicsRoot
	}
	for i := range b.Transactions {
		if err := b.Transactions[i].ValidateBasic(); err != nil {
			return err
		}
	}
	return nil
}

// NewBlock builds a Block with ExtrinsicsRoot already filled in from txs.
func NewBlock(header Header, txs Transactions) *Block {
	header.ExtrinsicsRoot = txs.ExtrinsicsRoot()
	return &Block{Header: header, Transactions: txs}
}
