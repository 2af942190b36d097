package dispenser

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"nilavail/internal/types"
)

func testProviders() []types.Provider {
	return []types.Provider{
		{Address: common.HexToAddress("0x1"), Stake: 100, Active: true},
		{Address: common.HexToAddress("0x2"), Stake: 200, Active: true},
		{Address: common.HexToAddress("0x3"), Stake: 300, Active: true},
	}
}

func testChunks(n int) []types.Chunk {
	chunks := make([]types.Chunk, n)
	for i := range chunks {
		chunks[i] = types.Chunk{Index: uint16(i), Data: []byte{byte(i)}}
	}
	return chunks
}

func TestAssignChunksCoversEveryChunkExactlyOnce(t *testing.T) {
	root := types.Root{1, 2, 3}
	chunks := testChunks(24)
	providers := testProviders()

	assignments, err := AssignChunks(root, chunks, providers)
	require.NoError(t, err)

	seen := make(map[uint16]bool)
	total := 0
	for _, cs := range assignments {
		for _, c := range cs {
			require.False(t, seen[c.Index], "chunk %d assigned twice", c.Index)
			seen[c.Index] = true
			total++
		}
	}
	require.Equal(t, len(chunks), total)
}

func TestAssignChunksEveryProviderGetsQuotaBeforeAnyGetsMore(t *testing.T) {
	root := types.Root{9, 9, 9}
	chunks := testChunks(6)
	providers := testProviders()

	assignments, err := AssignChunks(root, chunks, providers)
	require.NoError(t, err)

	quota := 2 // ceil(6/3)
	for _, p := range providers {
		require.GreaterOrEqual(t, len(assignments[p.Address]), quota, "provider %s got less than its quota", p.Address.Hex())
		require.LessOrEqual(t, len(assignments[p.Address]), quota)
	}
}

func TestAssignChunksIsDeterministic(t *testing.T) {
	root := types.Root{4, 5, 6}
	chunks := testChunks(24)
	providers := testProviders()

	a, err := AssignChunks(root, chunks, providers)
	require.NoError(t, err)
	b, err := AssignChunks(root, chunks, providers)
	require.NoError(t, err)

	for _, p := range providers {
		require.ElementsMatch(t, indicesOf(a[p.Address]), indicesOf(b[p.Address]))
	}
}

func TestAssignChunksApproximatesStakeWeighting(t *testing.T) {
	root := types.Root{7, 7, 7}
	providers := testProviders()

	counts := map[common.Address]int{}
	for i := 0; i < 3000; i++ {
		r := root
		r[31] = byte(i)
		r[30] = byte(i >> 8)
		chunks := testChunks(1)
		assignments, err := AssignChunks(r, chunks, providers)
		require.NoError(t, err)
		for addr, cs := range assignments {
			counts[addr] += len(cs)
		}
	}

	total := 0
	for _, c := range counts {
		total += c
	}
	require.Greater(t, counts[providers[2].Address], counts[providers[0].Address],
		"higher-stake provider should receive more single-chunk assignments over many trials")
}

func TestAssignChunksRejectsEmptyProviderSet(t *testing.T) {
	_, err := AssignChunks(types.Root{}, testChunks(4), nil)
	require.ErrorIs(t, err, types.ErrInsufficientPlacement)
}

func indicesOf(chunks []types.Chunk) []uint16 {
	out := make([]uint16, len(chunks))
	for i, c := range chunks {
		out[i] = c.Index
	}
	return out
}
