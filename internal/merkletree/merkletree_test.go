package merkletree

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"nilavail/internal/types"
)

func sampleChunks() []types.Chunk {
	return []types.Chunk{
		{Index: 0, Data: []byte("hello")},
		{Index: 1, Data: []byte("world")},
		{Index: 2, Data: []byte("hello")},
		{Index: 3, Data: []byte("world")},
	}
}

func TestChunkLeafHashMatchesAbiPacking(t *testing.T) {
	chunk := types.Chunk{Index: 1, Data: []byte("hello")}
	inner := crypto.Keccak256Hash([]byte("hello"))
	// abi.encode(uint16(1), bytes32(inner)): the index left-padded to 32
	// bytes, followed by the chunk hash.
	preimage := make([]byte, 64)
	preimage[31] = 1
	copy(preimage[32:], inner[:])
	want := crypto.Keccak256Hash(preimage)
	require.Equal(t, want, ChunkLeafHash(chunk))
}

func TestBuildAndVerifyAllLeaves(t *testing.T) {
	chunks := sampleChunks()
	tree, err := BuildFromChunks(chunks)
	require.NoError(t, err)
	root := tree.Root()

	for i, c := range chunks {
		proof, err := tree.Prove(i)
		require.NoError(t, err)
		require.True(t, Verify(root, ChunkLeafHash(c), i, proof))
	}
}

func TestVerifyRejectsWrongLeaf(t *testing.T) {
	chunks := sampleChunks()
	tree, err := BuildFromChunks(chunks)
	require.NoError(t, err)
	root := tree.Root()

	proof, err := tree.Prove(0)
	require.NoError(t, err)
	require.False(t, Verify(root, ChunkLeafHash(chunks[1]), 0, proof))
}

func TestOddLeafCountUsesDuplicationPadding(t *testing.T) {
	chunks := append(sampleChunks(), types.Chunk{Index: 4, Data: []byte("odd")})
	tree, err := BuildFromChunks(chunks)
	require.NoError(t, err)
	root := tree.Root()

	for i, c := range chunks {
		proof, err := tree.Prove(i)
		require.NoError(t, err)
		require.True(t, Verify(root, ChunkLeafHash(c), i, proof))
	}
}

func TestBuildRejectsEmptyLeafSet(t *testing.T) {
	_, err := Build(nil)
	require.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestSingleLeafTree(t *testing.T) {
	chunks := []types.Chunk{{Index: 0, Data: []byte("solo")}}
	tree, err := BuildFromChunks(chunks)
	require.NoError(t, err)

	proof, err := tree.Prove(0)
	require.NoError(t, err)
	require.Empty(t, proof.Path)
	require.True(t, Verify(tree.Root(), ChunkLeafHash(chunks[0]), 0, proof))
}
