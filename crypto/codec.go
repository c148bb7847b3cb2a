package crypto

import (
	tmjson "github.com/tendermint/tendermint/libs/json"
)

// Encode produces the canonical, field-order-stable byte representation of
// v used for every signed or hashed object. It delegates to tendermint's
// reflection-based JSON codec: because both sides of any given encode/
// decode pair walk the same exported, JSON-tagged struct fields in
// declaration order, two independent encoders of a semantically equal
// value always produce identical bytes.
func Encode(v interface{}) ([]byte, error) {
	return tmjson.Marshal(v)
}

// Decode reverses Encode into the value pointed to by out.
func Decode(bz []byte, out interface{}) error {
	return tmjson.Unmarshal(bz, out)
}

// MustEncode is Encode but panics on error, for call sites (hashing,
// signing) where a marshal failure is a programmer error, not a runtime one.
func MustEncode(v interface{}) []byte {
	bz, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return bz
}

// HashObject returns ComputeHash(Encode(v)), the canonical hash of a signed
// or stored object.
func HashObject(v interface{}) Hash {
	return ComputeHash(MustEncode(v))
}
