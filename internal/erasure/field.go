// Package erasure implements the systematic Reed-Solomon codec of spec.md
// §4.1. It shares its evaluation domain and field arithmetic
// (internal/polynomial) with the KZG module (see internal/kzg) so that a
// chunk's symbol value is identical whether it is being erasure-coded or
// committed to: both read ShardValue(chunk) as the evaluation of the same
// degree-<k polynomial at the chunk's index.
package erasure

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// fieldBytes is how many leading bytes of a chunk feed the canonical field
// element. 31 bytes big-endian is always below the BLS12-381 scalar modulus,
// so SetBytes never silently reduces (see SPEC_FULL.md §3). This guard only
// holds for raw, sub-modulus input bytes; it must not be reused for a fresh
// polynomial evaluation, which is a uniformly distributed field element and
// needs the full width to round-trip (see ShardValue).
const fieldBytes = 31

// paritySize is the width of a parity shard's stored value: the full
// canonical 32-byte big-endian encoding fr.Element.Bytes() produces for an
// already-reduced field element. Systematic shards are always fieldBytes
// wide, since their payload is raw sub-modulus data rather than a
// polynomial evaluation.
const paritySize = 32

// SymbolValue maps a systematic chunk's raw, sub-modulus bytes onto its
// canonical scalar-field representative, used identically by the codec and
// by the KZG polynomial. It must only be called on fieldBytes-or-fewer raw
// input bytes; see ShardValue for a value that may be a parity evaluation.
func SymbolValue(data []byte) fr.Element {
	buf := make([]byte, fieldBytes)
	copy(buf, data)
	var e fr.Element
	e.SetBytes(buf)
	return e
}

// ShardValue recovers a shard's field-element value regardless of whether it
// is a systematic shard (fieldBytes of raw payload, read via SymbolValue) or
// a parity shard (the full paritySize canonical encoding of an
// already-reduced evaluation, read directly). A freshly evaluated field
// element is uniform over [0, r) with r just under 2^255, so its top byte is
// non-zero the overwhelming majority of the time; truncating it to
// fieldBytes the way a systematic shard is read would silently corrupt it.
// Data length alone distinguishes the two: splitToShards always zero-pads
// systematic payloads to exactly fieldBytes, while EncodeParityValue always
// emits exactly paritySize bytes.
func ShardValue(data []byte) fr.Element {
	if len(data) >= paritySize {
		var e fr.Element
		e.SetBytes(data)
		return e
	}
	return SymbolValue(data)
}

// EncodeParityValue renders a polynomial evaluation as the full canonical
// paritySize-byte encoding a parity shard must carry to round-trip, as
// opposed to the truncated fieldBytes encoding systematic input bytes use.
func EncodeParityValue(val fr.Element) []byte {
	b := val.Bytes()
	return append([]byte(nil), b[:]...)
}

// EvaluationPoint returns the fixed evaluation point assigned to chunk index i.
func EvaluationPoint(i int) fr.Element {
	var e fr.Element
	e.SetUint64(uint64(i))
	return e
}
