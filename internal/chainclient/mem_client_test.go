package chainclient

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"nilavail/internal/merkletree"
	"nilavail/internal/types"
)

func newTestMemClient(t *testing.T) *MemClient {
	t.Helper()
	return NewMemClient(big.NewInt(1e17))
}

func sampleRoot(b byte) types.Root {
	var r types.Root
	r[0] = b
	return r
}

func TestSubmitCommitmentRejectsDuplicate(t *testing.T) {
	c := newTestMemClient(t)
	ctx := context.Background()
	root := sampleRoot(1)

	require.NoError(t, c.SubmitCommitment(ctx, root, 1024, 24, 16, types.KZGCommitment{}))
	err := c.SubmitCommitment(ctx, root, 1024, 24, 16, types.KZGCommitment{})
	require.ErrorIs(t, err, types.ErrDuplicateCommitment)
}

func TestAttestationsDriveRecoverability(t *testing.T) {
	c := newTestMemClient(t)
	ctx := context.Background()
	root := sampleRoot(2)

	require.NoError(t, c.SubmitCommitment(ctx, root, 1024, 4, 2, types.KZGCommitment{}))

	recoverable, err := c.IsCommitmentRecoverable(ctx, root)
	require.NoError(t, err)
	require.False(t, recoverable)

	require.NoError(t, c.SubmitChunkAttestations(ctx, root, []uint16{0}))
	recoverable, err = c.IsCommitmentRecoverable(ctx, root)
	require.NoError(t, err)
	require.False(t, recoverable)

	require.NoError(t, c.SubmitChunkAttestations(ctx, root, []uint16{1}))
	recoverable, err = c.IsCommitmentRecoverable(ctx, root)
	require.NoError(t, err)
	require.True(t, recoverable)

	chunks, err := c.GetAvailableChunks(ctx, root)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint16{0, 1}, chunks)
}

func TestSubmitChunkAttestationsIgnoresDuplicateIndices(t *testing.T) {
	c := newTestMemClient(t)
	ctx := context.Background()
	root := sampleRoot(3)
	require.NoError(t, c.SubmitCommitment(ctx, root, 1024, 4, 2, types.KZGCommitment{}))

	require.NoError(t, c.SubmitChunkAttestations(ctx, root, []uint16{0}))
	require.NoError(t, c.SubmitChunkAttestations(ctx, root, []uint16{0, 1}))

	info, recoverable, err := c.GetCommitmentInfo(ctx, root)
	require.NoError(t, err)
	require.True(t, recoverable)
	require.Equal(t, uint16(2), info.AvailableChunksCount)
}

func TestSubmitChunkAttestationsRejectsOversizedBatch(t *testing.T) {
	c := newTestMemClient(t)
	ctx := context.Background()
	root := sampleRoot(4)
	require.NoError(t, c.SubmitCommitment(ctx, root, 1024, 1024, 512, types.KZGCommitment{}))

	indices := make([]uint16, types.MaxAttestationBatch+1)
	for i := range indices {
		indices[i] = uint16(i)
	}
	err := c.SubmitChunkAttestations(ctx, root, indices)
	require.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestChunkOwnershipAndChunkMap(t *testing.T) {
	c := newTestMemClient(t)
	ctx := context.Background()
	root := sampleRoot(5)
	provider := common.HexToAddress("0xaaaa000000000000000000000000000000aaaa")

	require.NoError(t, c.RegisterProviderAs(provider, "prov-a", "http://a", big.NewInt(1e18)))
	require.NoError(t, c.SubmitCommitment(ctx, root, 1024, 4, 2, types.KZGCommitment{}))
	require.NoError(t, c.SubmitChunkAttestations(ctx, root, []uint16{0, 1}))
	c.AssignChunkOwner(root, 0, provider)
	c.AssignChunkOwner(root, 1, provider)

	owner, err := c.GetChunkOwner(ctx, root, 0)
	require.NoError(t, err)
	require.Equal(t, provider, owner)

	chunkMap, err := c.GetCommitmentChunkMap(ctx, root)
	require.NoError(t, err)
	require.Len(t, chunkMap, 1)
	require.Equal(t, provider, chunkMap[0].Provider.Address)
	require.ElementsMatch(t, []uint16{0, 1}, chunkMap[0].ChunkIDs)
}

func TestChallengeIssueRespondSucceeds(t *testing.T) {
	c := newTestMemClient(t)
	ctx := context.Background()
	provider := common.HexToAddress("0xbbbb000000000000000000000000000000bbbb")
	require.NoError(t, c.RegisterProviderAs(provider, "prov-b", "http://b", big.NewInt(1e18)))

	chunkData := []byte("some chunk payload bytes")
	chunk := types.Chunk{Index: 0, Data: chunkData}
	tree, err := merkletree.BuildFromChunks([]types.Chunk{chunk})
	require.NoError(t, err)
	root32 := tree.Root()

	require.NoError(t, c.SubmitCommitment(ctx, root32, 1024, 1, 1, types.KZGCommitment{}))
	require.NoError(t, c.SubmitChunkAttestations(ctx, root32, []uint16{0}))
	c.AssignChunkOwner(root32, 0, provider)

	challengeID, err := c.IssueChunkChallenge(ctx, root32, 0, provider)
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, challengeID)

	proof, err := tree.Prove(0)
	require.NoError(t, err)

	require.NoError(t, c.RespondToChunkChallenge(ctx, root32, 0, chunkData, proof))

	_, exists, err := c.GetChunkChallenge(ctx, root32, 0)
	require.NoError(t, err)
	require.False(t, exists)

	info, err := c.GetProviderInfo(ctx, provider)
	require.NoError(t, err)
	require.Equal(t, uint32(1), info.ChallengesSucceeded)
}

func TestChallengeRespondRejectsBadProof(t *testing.T) {
	c := newTestMemClient(t)
	ctx := context.Background()
	provider := common.HexToAddress("0xcccc000000000000000000000000000000cccc")
	require.NoError(t, c.RegisterProviderAs(provider, "prov-c", "http://c", big.NewInt(1e18)))

	chunk := types.Chunk{Index: 0, Data: []byte("real payload")}
	tree, err := merkletree.BuildFromChunks([]types.Chunk{chunk})
	require.NoError(t, err)
	root := tree.Root()

	require.NoError(t, c.SubmitCommitment(ctx, root, 1024, 1, 1, types.KZGCommitment{}))
	require.NoError(t, c.SubmitChunkAttestations(ctx, root, []uint16{0}))
	c.AssignChunkOwner(root, 0, provider)

	_, err = c.IssueChunkChallenge(ctx, root, 0, provider)
	require.NoError(t, err)

	proof, err := tree.Prove(0)
	require.NoError(t, err)

	err = c.RespondToChunkChallenge(ctx, root, 0, []byte("forged payload"), proof)
	require.ErrorIs(t, err, types.ErrBadProof)
}

func TestSlashExpiredChallengeRequiresElapsedPeriod(t *testing.T) {
	c := newTestMemClient(t)
	ctx := context.Background()
	provider := common.HexToAddress("0xdddd000000000000000000000000000000dddd")
	require.NoError(t, c.RegisterProviderAs(provider, "prov-d", "http://d", big.NewInt(1e18)))

	chunk := types.Chunk{Index: 0, Data: []byte("payload")}
	tree, err := merkletree.BuildFromChunks([]types.Chunk{chunk})
	require.NoError(t, err)
	root := tree.Root()

	require.NoError(t, c.SubmitCommitment(ctx, root, 1024, 1, 1, types.KZGCommitment{}))
	require.NoError(t, c.SubmitChunkAttestations(ctx, root, []uint16{0}))
	c.AssignChunkOwner(root, 0, provider)

	_, err = c.IssueChunkChallenge(ctx, root, 0, provider)
	require.NoError(t, err)

	err = c.SlashExpiredChallenge(ctx, root, 0, provider)
	require.ErrorIs(t, err, types.ErrInvalidInput)

	// Force the challenge to look expired by rewriting its issuedAt directly.
	c.mu.Lock()
	c.challenges[challengeKey{root: root, index: 0}].IssuedAt = uint64(time.Now().Unix()) - (ChallengePeriodSeconds + 1)
	c.mu.Unlock()

	beforeStake, err := c.GetProviderInfo(ctx, provider)
	require.NoError(t, err)

	require.NoError(t, c.SlashExpiredChallenge(ctx, root, 0, provider))

	afterStake, err := c.GetProviderInfo(ctx, provider)
	require.NoError(t, err)
	require.Less(t, afterStake.Stake, beforeStake.Stake)

	available, err := c.IsChunkAvailable(ctx, root, 0)
	require.NoError(t, err)
	require.False(t, available)

	_, exists, err := c.GetChunkChallenge(ctx, root, 0)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestGetProvidersFiltersIneligible(t *testing.T) {
	c := newTestMemClient(t)
	ctx := context.Background()
	active := common.HexToAddress("0xeeee000000000000000000000000000000eeee")
	underfunded := common.HexToAddress("0xffff000000000000000000000000000000ffff")

	require.NoError(t, c.RegisterProviderAs(active, "active", "http://active", big.NewInt(1e18)))
	err := c.RegisterProviderAs(underfunded, "broke", "http://broke", big.NewInt(1))
	require.ErrorIs(t, err, types.ErrInvalidInput)

	providers, err := c.GetProviders(ctx, true)
	require.NoError(t, err)
	require.Len(t, providers, 1)
	require.Equal(t, active, providers[0].Address)
}
