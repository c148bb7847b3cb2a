package crypto

import (
	"github.com/tendermint/tendermint/crypto/merkle"
	"github.com/tendermint/tendermint/crypto/tmhash"
)

// HashSize is the length in bytes of a digest produced by Hash.
const HashSize = tmhash.Size

// Hash is a 32-byte collision-resistant digest.
type Hash [HashSize]byte

// ComputeHash returns the collision-resistant digest of bz.
func ComputeHash(bz []byte) Hash {
	var h Hash
	copy(h[:], tmhash.Sum(bz))
	return h
}

// MerkleRoot builds a Merkle root over leaves, used for the state_root
// commitment and the validator set hash.
func MerkleRoot(leaves [][]byte) Hash {
	var h Hash
	copy(h[:], merkle.HashFromByteSlices(leaves))
	return h
}

// Bytes returns h as a byte slice.
func (h Hash) Bytes() []byte { return h[:] }

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	for _, b := range h {
		if b != 0 {
			return false
		}
	}
	return true
}
