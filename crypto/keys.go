// Package crypto implements the signature scheme, address derivation and
// canonical hashing shared by every signed or hashed object in chainforge.
//
// A single 32-byte-key / 64-byte-signature scheme is used uniformly for
// validators and accounts.
package crypto

import (
	"fmt"

	"go.dedis.ch/kyber/v3/group/edwards25519"
	"go.dedis.ch/kyber/v3/sign/eddsa"
)

const (
	// PubKeySize is the length in bytes of a public key.
	PubKeySize = 32
	// PrivKeySize is the length in bytes of a secret key.
	PrivKeySize = 32
	// SignatureSize is the length in bytes of a signature.
	SignatureSize = 64
)

var suite = edwards25519.NewBlakeSHA256Ed25519()

// PubKey is a 32-byte Ed25519-class public key.
type PubKey [PubKeySize]byte

// PrivKey is a 32-byte Ed25519-class secret key.
type PrivKey [PrivKeySize]byte

// Signature is a 64-byte detached signature.
type Signature [SignatureSize]byte

// KeyPair is a generated (public, secret) pair.
type KeyPair struct {
	Public PubKey
	Secret PrivKey
}

// GenerateKeyPair creates a new random keypair using the system CSPRNG.
func GenerateKeyPair() (KeyPair, error) {
	scalar := suite.Scalar().Pick(suite.RandomStream())
	point := suite.Point().Mul(scalar, nil)

	scalarBytes, err := scalar.MarshalBinary()
	if err != nil {
		return KeyPair{}, fmt.Errorf("marshal secret scalar: %w", err)
	}
	pointBytes, err := point.MarshalBinary()
	if err != nil {
		return KeyPair{}, fmt.Errorf("marshal public point: %w", err)
	}

	var kp KeyPair
	copy(kp.Secret[:], scalarBytes)
	copy(kp.Public[:], pointBytes)
	return kp, nil
}

// eddsaFromSecret rebuilds a kyber eddsa.EdDSA from a raw 32-byte seed the
// same way FilePV round-trips a stored secret.
func eddsaFromSecret(sk PrivKey) (*eddsa.EdDSA, error) {
	ed := eddsa.NewEdDSA(suite.RandomStream())
	scalar := suite.Scalar()
	if err := scalar.UnmarshalBinary(sk[:]); err != nil {
		return nil, fmt.Errorf("unmarshal secret: %w", err)
	}
	ed.Secret = scalar
	ed.Public = suite.Point().Mul(scalar, nil)
	return ed, nil
}

// PubKeyFromPrivKey derives the public key for sk, letting callers that
// persist only a secret key (privval's FilePVKey) reconstruct the pair on
// load.
func PubKeyFromPrivKey(sk PrivKey) (PubKey, error) {
	ed, err := eddsaFromSecret(sk)
	if err != nil {
		return PubKey{}, err
	}
	pointBytes, err := ed.Public.MarshalBinary()
	if err != nil {
		return PubKey{}, err
	}
	var pk PubKey
	copy(pk[:], pointBytes)
	return pk, nil
}

// Sign produces a 64-byte signature over msg using sk.
func Sign(sk PrivKey, msg []byte) (Signature, error) {
	ed, err := eddsaFromSecret(sk)
	if err != nil {
		return Signature{}, err
	}
	sig, err := ed.Sign(msg)
	if err != nil {
		return Signature{}, fmt.Errorf("sign: %w", err)
	}
	var out Signature
	copy(out[:], sig)
	return out, nil
}

// Verify reports whether sig is a valid signature over msg by pk.
func Verify(pk PubKey, msg []byte, sig Signature) bool {
	point := suite.Point()
	if err := point.UnmarshalBinary(pk[:]); err != nil {
		return false
	}
	if err := eddsa.Verify(point, msg, sig[:]); err != nil {
		return false
	}
	return true
}
