package erasure

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nilavail/internal/types"
)

func testParams() Params {
	return Params{N: types.DefaultN, K: types.DefaultK}
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i * 7)
	}
	p := testParams()

	chunks, err := Encode(data, p)
	require.NoError(t, err)
	require.Len(t, chunks, int(p.N))

	// Drop everything but exactly k chunks, mixing systematic and parity.
	subset := append([]types.Chunk{}, chunks[2:2+int(p.K)]...)

	recovered, err := Decode(subset, p, uint32(len(data)))
	require.NoError(t, err)
	require.Equal(t, data, recovered)
}

func TestDecodeInsufficientChunks(t *testing.T) {
	p := testParams()
	chunks, err := Encode(make([]byte, 100), p)
	require.NoError(t, err)

	_, err = Decode(chunks[:p.K-1], p, 100)
	require.ErrorIs(t, err, types.ErrInsufficientChunks)
}

func TestEncodeRejectsUndersizedBlob(t *testing.T) {
	_, err := Encode(make([]byte, 4), testParams())
	require.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestEncodeRejectsOversizedBlob(t *testing.T) {
	p := testParams()
	_, err := Encode(make([]byte, p.Capacity()+1), p)
	require.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestParamsValidateRedundancyRatio(t *testing.T) {
	_, err := Encode(make([]byte, 20), Params{N: 20, K: 16})
	require.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestSystematicChunksMatchInput(t *testing.T) {
	p := testParams()
	data := make([]byte, p.Capacity())
	for i := range data {
		data[i] = byte(i)
	}
	chunks, err := Encode(data, p)
	require.NoError(t, err)

	for i := 0; i < int(p.K); i++ {
		require.Equal(t, data[i*shardSize:(i+1)*shardSize], chunks[i].Data)
	}
}

// TestParityRoundTripSurvivesNonZeroTopByte guards against reintroducing the
// 31-byte parity truncation: it retries over enough blobs that at least one
// parity evaluation's top byte is non-zero (true for ~99% of draws), and
// requires every one of them to round-trip exactly.
func TestParityRoundTripSurvivesNonZeroTopByte(t *testing.T) {
	p := Params{N: 8, K: 4}
	for trial := 0; trial < 32; trial++ {
		data := make([]byte, p.Capacity())
		for i := range data {
			data[i] = byte(i*31 + trial*17 + 5)
		}
		chunks, err := Encode(data, p)
		require.NoError(t, err)

		recovered, err := Decode(chunks[p.K:], p, uint32(len(data)))
		require.NoError(t, err)
		require.Equal(t, data, recovered, "trial %d", trial)
	}
}

// TestDecodeRecoversFromSingleCorruptChunkAmongExtras exercises spec.md
// §4.1's bounded-fan-out retry rule: a single bad chunk in an
// over-determined set must not fail decode outright, since a good k-subset
// still exists among what's left.
func TestDecodeRecoversFromSingleCorruptChunkAmongExtras(t *testing.T) {
	p := Params{N: 8, K: 4}
	data := make([]byte, p.Capacity())
	for i := range data {
		data[i] = byte(i * 5)
	}
	chunks, err := Encode(data, p)
	require.NoError(t, err)

	overDetermined := append([]types.Chunk{}, chunks...)
	overDetermined[len(overDetermined)-1].Data = append([]byte(nil), overDetermined[len(overDetermined)-1].Data...)
	overDetermined[len(overDetermined)-1].Data[0] ^= 0xFF

	recovered, err := Decode(overDetermined, p, uint32(len(data)))
	require.NoError(t, err)
	require.Equal(t, data, recovered)
}

// TestDecodeGivesUpAfterExhaustingFanOut corrupts every chunk beyond the
// smallest k, leaving no consistent alternative subset within
// maxDecodeFanOut attempts, and expects the bounded retry to surface
// ErrCorruptChunk rather than loop indefinitely.
func TestDecodeGivesUpAfterExhaustingFanOut(t *testing.T) {
	p := Params{N: 8, K: 4}
	data := make([]byte, p.Capacity())
	for i := range data {
		data[i] = byte(i * 5)
	}
	chunks, err := Encode(data, p)
	require.NoError(t, err)

	corrupted := append([]types.Chunk{}, chunks...)
	for i := int(p.K); i < int(p.N); i++ {
		corrupted[i].Data = append([]byte(nil), corrupted[i].Data...)
		corrupted[i].Data[0] ^= 0xFF
	}

	_, err = Decode(corrupted, p, uint32(len(data)))
	require.ErrorIs(t, err, types.ErrCorruptChunk)
}

func TestDecodeUsingOnlyParityChunks(t *testing.T) {
	p := Params{N: 8, K: 4}
	data := make([]byte, p.Capacity())
	for i := range data {
		data[i] = byte(i * 3)
	}
	chunks, err := Encode(data, p)
	require.NoError(t, err)

	parity := chunks[p.K:]
	require.GreaterOrEqual(t, len(parity), int(p.K))

	recovered, err := Decode(parity[:p.K], p, uint32(len(data)))
	require.NoError(t, err)
	require.Equal(t, data, recovered)
}
