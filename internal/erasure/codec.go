package erasure

import (
	"fmt"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"nilavail/internal/polynomial"
	"nilavail/internal/types"
)

// Params is the (n, k) systematic Reed-Solomon configuration for one blob,
// mirroring dispencer/src/dispenser.rs's erasure_encode/erasure_decode
// parameters. K is the minimum number of chunks needed to recover the blob;
// N is the total number of chunks produced.
type Params struct {
	N uint16
	K uint16
}

// Validate checks the redundancy-ratio invariant from spec.md §3/§9.
func (p Params) Validate() error {
	if p.K == 0 || p.N < p.K {
		return fmt.Errorf("%w: n=%d k=%d", types.ErrInvalidInput, p.N, p.K)
	}
	if p.N > types.MaxChunks {
		return fmt.Errorf("%w: n=%d exceeds max chunks %d", types.ErrInvalidInput, p.N, types.MaxChunks)
	}
	if float64(p.N)/float64(p.K) < types.MinRedundancy {
		return fmt.Errorf("%w: n/k ratio %.2f below minimum %.2f", types.ErrInvalidInput, float64(p.N)/float64(p.K), types.MinRedundancy)
	}
	return nil
}

// shardSize is the number of raw bytes carried by one chunk. It equals
// fieldBytes so that each chunk maps onto exactly one scalar-field symbol.
const shardSize = fieldBytes

// Encode splits data into k systematic shards and produces n-k parity
// shards by evaluating the unique degree-<k interpolating polynomial at
// points k..n-1, mirroring create_shards + erasure_encode in the original
// dispenser. The first k returned chunks equal the input verbatim (padded
// to shardSize); the remaining n-k are parity.
func Encode(data []byte, p Params) ([]types.Chunk, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(data) < types.MinBlobSize {
		return nil, fmt.Errorf("%w: blob smaller than minimum %d bytes", types.ErrInvalidInput, types.MinBlobSize)
	}
	if len(data) > p.Capacity() {
		return nil, fmt.Errorf("%w: blob of %d bytes exceeds capacity %d for k=%d", types.ErrInvalidInput, len(data), p.Capacity(), p.K)
	}

	shards := splitToShards(data, int(p.K))

	points := make([]fr.Element, p.K)
	values := make([]fr.Element, p.K)
	for i := 0; i < int(p.K); i++ {
		points[i] = EvaluationPoint(i)
		values[i] = SymbolValue(shards[i])
	}
	poly := polynomial.Interpolate(points, values)

	chunks := make([]types.Chunk, p.N)
	for i := 0; i < int(p.K); i++ {
		chunks[i] = types.Chunk{Index: uint16(i), Data: shards[i]}
	}
	for i := int(p.K); i < int(p.N); i++ {
		point := EvaluationPoint(i)
		val := polynomial.Evaluate(poly, point)
		chunks[i] = types.Chunk{Index: uint16(i), Data: EncodeParityValue(val)}
	}

	return chunks, nil
}

// maxDecodeFanOut bounds how many alternative k-subsets Decode will try
// before giving up on an over-determined chunk set, per spec.md §4.1's
// "bounded fan-out" retry rule.
const maxDecodeFanOut = 4

// Decode reconstructs the original blob of the given size from any k of the
// n chunks, mirroring erasure_decode. Chunks need not be in index order and
// may include a mix of systematic and parity shards. Decode starts from the
// k smallest indices; if any additional supplied chunk contradicts the
// resulting polynomial, that chunk is excluded as corrupt and decode
// retries with the next-smallest k-subset of what remains, up to
// maxDecodeFanOut attempts, before surfacing ErrCorruptChunk.
func Decode(chunks []types.Chunk, p Params, size uint32) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	pool := dedupeByIndex(chunks)
	sort.Slice(pool, func(i, j int) bool { return pool[i].Index < pool[j].Index })
	if len(pool) < int(p.K) {
		return nil, fmt.Errorf("%w: have %d need %d", types.ErrInsufficientChunks, len(pool), p.K)
	}

	fanOut := len(pool) - int(p.K) + 1
	if fanOut > maxDecodeFanOut {
		fanOut = maxDecodeFanOut
	}

	excluded := make(map[uint16]bool)
	var lastErr error
	for attempt := 0; attempt < fanOut; attempt++ {
		usable, rest := partitionExcluding(pool, excluded, int(p.K))
		if len(usable) < int(p.K) {
			break
		}

		poly, err := interpolateSubset(usable, p.N)
		if err != nil {
			return nil, err
		}

		badIndex, err := firstMismatch(poly, rest, p.N)
		if err != nil {
			return nil, err
		}
		if badIndex < 0 {
			return reconstructBlob(poly, p, size)
		}
		lastErr = fmt.Errorf("%w: chunk %d does not match interpolated polynomial", types.ErrCorruptChunk, badIndex)
		excluded[uint16(badIndex)] = true
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: have %d need %d", types.ErrInsufficientChunks, len(pool), p.K)
	}
	return nil, lastErr
}

// partitionExcluding splits pool (already sorted ascending by index) into
// the smallest k chunks not in excluded, and everything else not in
// excluded.
func partitionExcluding(pool []types.Chunk, excluded map[uint16]bool, k int) (usable, rest []types.Chunk) {
	usable = make([]types.Chunk, 0, k)
	rest = make([]types.Chunk, 0, len(pool))
	for _, c := range pool {
		if excluded[c.Index] {
			continue
		}
		if len(usable) < k {
			usable = append(usable, c)
		} else {
			rest = append(rest, c)
		}
	}
	return usable, rest
}

func interpolateSubset(usable []types.Chunk, n uint16) ([]fr.Element, error) {
	points := make([]fr.Element, len(usable))
	values := make([]fr.Element, len(usable))
	for i, c := range usable {
		if c.Index >= n {
			return nil, fmt.Errorf("%w: index %d out of range for n=%d", types.ErrInvalidInput, c.Index, n)
		}
		points[i] = EvaluationPoint(int(c.Index))
		values[i] = ShardValue(c.Data)
	}
	return polynomial.Interpolate(points, values), nil
}

// firstMismatch returns the index of the first chunk in rest whose value
// disagrees with poly's evaluation at its point, or -1 if all agree.
func firstMismatch(poly []fr.Element, rest []types.Chunk, n uint16) (int, error) {
	for _, c := range rest {
		if c.Index >= n {
			return -1, fmt.Errorf("%w: index %d out of range for n=%d", types.ErrInvalidInput, c.Index, n)
		}
		got := polynomial.Evaluate(poly, EvaluationPoint(int(c.Index)))
		want := ShardValue(c.Data)
		if !got.Equal(&want) {
			return int(c.Index), nil
		}
	}
	return -1, nil
}

func reconstructBlob(poly []fr.Element, p Params, size uint32) ([]byte, error) {
	out := make([]byte, 0, int(p.K)*shardSize)
	for i := 0; i < int(p.K); i++ {
		val := polynomial.Evaluate(poly, EvaluationPoint(i))
		b := val.Bytes()
		out = append(out, b[len(b)-shardSize:]...)
	}
	if uint32(len(out)) < size {
		return nil, fmt.Errorf("%w: recovered %d bytes, want %d", types.ErrCorruptChunk, len(out), size)
	}
	return out[:size], nil
}

func dedupeByIndex(chunks []types.Chunk) []types.Chunk {
	seen := make(map[uint16]bool, len(chunks))
	out := make([]types.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if seen[c.Index] {
			continue
		}
		seen[c.Index] = true
		out = append(out, c)
	}
	return out
}

// splitToShards divides data into k equal shardSize-byte shards, zero-padding
// the final shard as needed. Mirrors split_to_chunks in the original
// dispenser.
func splitToShards(data []byte, k int) [][]byte {
	shards := make([][]byte, k)
	for i := 0; i < k; i++ {
		shard := make([]byte, shardSize)
		start := i * shardSize
		if start < len(data) {
			end := start + shardSize
			if end > len(data) {
				end = len(data)
			}
			copy(shard, data[start:end])
		}
		shards[i] = shard
	}
	return shards
}

// Capacity returns the maximum blob size (in bytes) that Params can carry.
func (p Params) Capacity() int {
	return int(p.K) * shardSize
}
