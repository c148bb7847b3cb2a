// Package privval implements the signing capability a validator's private
// key material provides to the consensus engine, with double-sign
// protection persisted to disk alongside the key so a restart cannot
// re-sign a conflicting vote or header for a slot/round already signed.
package privval

import (
	"errors"
	"fmt"
	"io/ioutil"

	"chainforge/crypto"
	"chainforge/types"

	tmjson "github.com/tendermint/tendermint/libs/json"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/libs/tempfile"
)

// PrivValidator is the narrow signing capability the engine needs from a
// validator's key material.
type PrivValidator interface {
	Address() crypto.Address
	PubKey() crypto.PubKey
	SignVote(vote *types.Vote) error
	SignHeader(header *types.Header) error
}

// ErrDoubleSign is returned when asked to sign at or before the last
// recorded (slot, round, kind)/proposal slot -- the guard against
// re-signing conflicting messages after a crash-restart.
var ErrDoubleSign = errors.New("privval: refusing to sign at or before the last signed view")

// lastSignState is persisted alongside the key so a restarted process does
// not re-sign a vote or proposal it already signed for an earlier or equal
// view, the property that makes equivocation a deliberate double-sign
// rather than an accidental one.
type lastSignState struct {
	VoteSlot         uint64         `json:"vote_slot"`
	VoteRound        uint64         `json:"vote_round"`
	VoteKind         types.VoteKind `json:"vote_kind"`
	LastProposalSlot int64          `json:"last_proposal_slot"`
}

func newLastSignState() lastSignState {
	return lastSignState{LastProposalSlot: -1}
}

func (s lastSignState) voteNotAfter(slot, round uint64, kind types.VoteKind) bool {
	if slot != s.VoteSlot {
		return slot < s.VoteSlot
	}
	if round != s.VoteRound {
		return round < s.VoteRound
	}
	return kind <= s.VoteKind
}

// FilePVKey stores the immutable part of a FilePV: the key pair and the
// address it derives.
type FilePVKey struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	PrivKey crypto.PrivKey `json:"priv_key"`

	filePath string
}

func (k FilePVKey) save() {
	if k.filePath == "" {
		panic("cannot save PrivValidator key: filePath not set")
	}
	bz, err := tmjson.MarshalIndent(k, "", "  ")
	if err != nil {
		panic(err)
	}
	if err := tempfile.WriteFileAtomic(k.filePath, bz, 0600); err != nil {
		panic(err)
	}
}

// FilePV implements PrivValidator using a key persisted to keyFilePath and
// a double-sign guard persisted to a sibling stateFilePath, so the guard
// survives a crash between signing and the resulting message reaching the
// store.
type FilePV struct {
	Key FilePVKey

	stateFilePath string
	lastSign      lastSignState
}

// NewFilePV wraps kp as a FilePV, not yet saved.
func NewFilePV(kp crypto.KeyPair, keyFilePath, stateFilePath string) *FilePV {
	return &FilePV{
		Key: FilePVKey{
			Address:  crypto.AddressFromPubKey(kp.Public),
			PubKey:   kp.Public,
			PrivKey:  kp.Secret,
			filePath: keyFilePath,
		},
		stateFilePath: stateFilePath,
		lastSign:      newLastSignState(),
	}
}

// GenFilePV generates a fresh random key pair.
func GenFilePV(keyFilePath, stateFilePath string) (*FilePV, error) {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return NewFilePV(kp, keyFilePath, stateFilePath), nil
}

// LoadFilePV loads a key from keyFilePath and, if present, the double-sign
// guard from stateFilePath.
func LoadFilePV(keyFilePath, stateFilePath string) (*FilePV, error) {
	keyBytes, err := ioutil.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	var key FilePVKey
	if err := tmjson.Unmarshal(keyBytes, &key); err != nil {
		return nil, fmt.Errorf("read privval key from %s: %w", keyFilePath, err)
	}
	pub, err := crypto.PubKeyFromPrivKey(key.PrivKey)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	key.PubKey = pub
	key.Address = crypto.AddressFromPubKey(pub)
	key.filePath = keyFilePath

	pv := &FilePV{Key: key, stateFilePath: stateFilePath, lastSign: newLastSignState()}
	if stateFilePath != "" && tmos.FileExists(stateFilePath) {
		stateBytes, err := ioutil.ReadFile(stateFilePath)
		if err != nil {
			return nil, err
		}
		if err := tmjson.Unmarshal(stateBytes, &pv.lastSign); err != nil {
			return nil, fmt.Errorf("read privval state from %s: %w", stateFilePath, err)
		}
	}
	return pv, nil
}

// LoadOrGenFilePV loads keyFilePath if present, else generates and saves a
// new key there.
func LoadOrGenFilePV(keyFilePath, stateFilePath string) (*FilePV, error) {
	if tmos.FileExists(keyFilePath) {
		return LoadFilePV(keyFilePath, stateFilePath)
	}
	pv, err := GenFilePV(keyFilePath, stateFilePath)
	if err != nil {
		return nil, err
	}
	pv.Save()
	return pv, nil
}

// Save persists the key and the current double-sign guard state.
func (pv *FilePV) Save() {
	pv.Key.save()
	pv.saveState()
}

func (pv *FilePV) saveState() {
	if pv.stateFilePath == "" {
		return
	}
	bz, err := tmjson.MarshalIndent(pv.lastSign, "", "  ")
	if err != nil {
		panic(err)
	}
	if err := tempfile.WriteFileAtomic(pv.stateFilePath, bz, 0600); err != nil {
		panic(err)
	}
}

func (pv *FilePV) Address() crypto.Address { return pv.Key.Address }
func (pv *FilePV) PubKey() crypto.PubKey   { return pv.Key.PubKey }

// SignVote implements PrivValidator: refuses to sign at or before the last
// signed (slot, round, kind), then records the new view.
func (pv *FilePV) SignVote(vote *types.Vote) error {
	if pv.lastSign.voteNotAfter(vote.Slot, vote.Round, vote.Kind) {
		return ErrDoubleSign
	}
	kp := crypto.KeyPair{Public: pv.Key.PubKey, Secret: pv.Key.PrivKey}
	if err := vote.Sign(kp); err != nil {
		return err
	}
	pv.lastSign.VoteSlot, pv.lastSign.VoteRound, pv.lastSign.VoteKind = vote.Slot, vote.Round, vote.Kind
	pv.saveState()
	return nil
}

// SignHeader implements PrivValidator: refuses to sign a second, distinct
// proposal header for a slot already signed.
func (pv *FilePV) SignHeader(header *types.Header) error {
	slot := int64(header.Slot)
	if slot <= pv.lastSign.LastProposalSlot {
		return ErrDoubleSign
	}
	kp := crypto.KeyPair{Public: pv.Key.PubKey, Secret: pv.Key.PrivKey}
	if err := header.Sign(kp); err != nil {
		return err
	}
	pv.lastSign.LastProposalSlot = slot
	pv.saveState()
	return nil
}

// String returns a human-readable identifier for pv.
func (pv *FilePV) String() string {
	return fmt.Sprintf("PrivValidator{%v}", pv.Key.Address)
}

var _ PrivValidator = (*FilePV)(nil)
