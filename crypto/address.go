package crypto

import (
	"encoding/hex"
	"errors"
)

// AddressSize is the length in bytes of an Address.
const AddressSize = 20

var errAddressLength = errors.New("crypto: wrong address length")

// Address is the low 20 bytes of the hash of an account public key.
type Address [AddressSize]byte

// AddressFromPubKey derives the Address for pk: the low 20 bytes of a
// collision-resistant 256-bit hash of the public key encoding.
func AddressFromPubKey(pk PubKey) Address {
	digest := ComputeHash(pk[:])
	var addr Address
	copy(addr[:], digest[HashSize-AddressSize:])
	return addr
}

// Bytes returns addr as a byte slice.
func (addr Address) Bytes() []byte { return addr[:] }

// IsZero reports whether addr is the zero address.
func (addr Address) IsZero() bool {
	for _, b := range addr {
		if b != 0 {
			return false
		}
	}
	return true
}

// AddressFromHex decodes a hex-encoded address, the inverse of String.
func AddressFromHex(s string) (Address, error) {
	bz, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, err
	}
	var addr Address
	if len(bz) != AddressSize {
		return Address{}, errAddressLength
	}
	copy(addr[:], bz)
	return addr, nil
}

// String renders addr as a lowercase hex string.
func (addr Address) String() string {
	const hextable = "0123456789abcdef"
	out := make([]byte, 2*AddressSize)
	for i, b := range addr {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}
