package challenger

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"nilavail/internal/chainclient"
	"nilavail/internal/merkletree"
	"nilavail/internal/types"
)

func setupChain(t *testing.T) (*chainclient.MemClient, types.Root, common.Address) {
	t.Helper()
	client := chainclient.NewMemClient(big.NewInt(1))

	providerAddr := common.HexToAddress("0xaa00000000000000000000000000000000bb01")
	require.NoError(t, client.RegisterProviderAs(providerAddr, "p1", "http://p1", big.NewInt(1000)))

	chunks := []types.Chunk{{Index: 0, Data: []byte("chunk-zero-data")}, {Index: 1, Data: []byte("chunk-one-data!")}}
	tree, err := merkletree.BuildFromChunks(chunks)
	require.NoError(t, err)
	root := tree.Root()

	require.NoError(t, client.SubmitCommitment(context.Background(), root, 32, 2, 2, types.KZGCommitment{}))
	require.NoError(t, client.SubmitChunkAttestations(context.Background(), root, []uint16{0, 1}))
	client.AssignChunkOwner(root, 0, providerAddr)
	client.AssignChunkOwner(root, 1, providerAddr)

	return client, root, providerAddr
}

func TestChallengeOneRandomChunkIssuesAgainstAvailableChunk(t *testing.T) {
	client, root, providerAddr := setupChain(t)
	c := New(client, time.Hour, time.Hour, zerolog.Nop())

	require.NoError(t, c.ChallengeOneRandomChunk(context.Background()))

	found := false
	for idx := uint16(0); idx < 2; idx++ {
		ch, ok, err := client.GetChunkChallenge(context.Background(), root, idx)
		require.NoError(t, err)
		if ok {
			found = true
			require.Equal(t, providerAddr, ch.Provider)
		}
	}
	require.True(t, found, "expected a chunk to have an active challenge")
}

func TestChallengeOneRandomChunkNoRecoverableCommitmentsIsNoop(t *testing.T) {
	client := chainclient.NewMemClient(big.NewInt(1))
	c := New(client, time.Hour, time.Hour, zerolog.Nop())
	require.NoError(t, c.ChallengeOneRandomChunk(context.Background()))
}

func TestSlashExpiredClaimsBountyAfterChallengePeriod(t *testing.T) {
	client, root, providerAddr := setupChain(t)
	c := New(client, time.Hour, time.Hour, zerolog.Nop())

	require.NoError(t, c.ChallengeOneRandomChunk(context.Background()))

	var challengedIndex uint16
	for idx := uint16(0); idx < 2; idx++ {
		if _, ok, _ := client.GetChunkChallenge(context.Background(), root, idx); ok {
			challengedIndex = idx
		}
	}

	client.ExpireChallengeForTest(root, challengedIndex, providerAddr)

	require.NoError(t, c.SlashExpired(context.Background()))

	_, ok, err := client.GetChunkChallenge(context.Background(), root, challengedIndex)
	require.NoError(t, err)
	require.False(t, ok, "expired challenge should be cleared after slashing")
}

func TestWeightedPickUnderchallengedFavorsFewerChallenges(t *testing.T) {
	low := common.HexToAddress("0x01")
	high := common.HexToAddress("0x02")
	candidates := []chunkCandidate{
		{provider: low, index: 0, challengesIssued: 0},
		{provider: high, index: 1, challengesIssued: 100},
	}

	counts := map[common.Address]int{}
	for i := 0; i < 500; i++ {
		pick, err := weightedPickUnderchallenged(candidates)
		require.NoError(t, err)
		counts[pick.provider]++
	}
	require.Greater(t, counts[low], counts[high])
}
