// Package chainclient talks to the external Contract collaborator of
// spec.md §4.7: the on-chain registry of providers, commitments, chunk
// ownership and challenges that the Dispenser, Storage Provider and
// Challenger all read from and write to. Client is implemented twice: by
// EthClient, a thin typed wrapper over go-ethereum's bind.BoundContract, and
// by MemClient, an in-process reference implementation of the same state
// machine used by every package's tests.
package chainclient

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"nilavail/internal/types"
)

// Client is the full ABI surface of spec.md §6, typed for Go callers.
type Client interface {
	// Provider management.
	RegisterProvider(ctx context.Context, name, url string, stakeWei *big.Int) error

	// Reed-Solomon commitment operations.
	SubmitCommitment(ctx context.Context, root types.Root, size uint32, n, k uint16, kzgCommitment types.KZGCommitment) error
	SubmitChunkAttestations(ctx context.Context, root types.Root, indices []uint16) error

	// View functions.
	CommitmentExists(ctx context.Context, root types.Root) (bool, error)
	IsCommitmentRecoverable(ctx context.Context, root types.Root) (bool, error)
	GetCommitmentInfo(ctx context.Context, root types.Root) (types.CommitmentRecord, bool, error)
	GetAvailableChunks(ctx context.Context, root types.Root) ([]uint16, error)
	GetCommitmentList(ctx context.Context) ([]types.Root, error)
	GetProviderChunks(ctx context.Context, root types.Root, provider common.Address) ([]uint16, error)
	GetChunkOwner(ctx context.Context, root types.Root, index uint16) (common.Address, error)
	GetCommitmentChunkMap(ctx context.Context, root types.Root) ([]types.ProviderChunkMap, error)
	GetProviders(ctx context.Context, eligibleOnly bool) ([]types.Provider, error)
	GetProviderInfo(ctx context.Context, provider common.Address) (types.Provider, error)
	IsChunkAvailable(ctx context.Context, root types.Root, index uint16) (bool, error)
	GetMultipleCommitmentStatus(ctx context.Context, roots []types.Root) ([]bool, error)

	// Challenge system.
	IssueChunkChallenge(ctx context.Context, root types.Root, index uint16, provider common.Address) (common.Hash, error)
	RespondToChunkChallenge(ctx context.Context, root types.Root, index uint16, chunkData []byte, proof types.MerkleProof) error
	SlashExpiredChallenge(ctx context.Context, root types.Root, index uint16, provider common.Address) error
	GetProviderActiveChallenges(ctx context.Context, provider common.Address) ([]types.ActiveChallenge, error)
	GetProviderExpiredChallenges(ctx context.Context, provider common.Address) ([]types.ActiveChallenge, error)
	GetChunkChallenge(ctx context.Context, root types.Root, index uint16) (types.ActiveChallenge, bool, error)
}

// MinStakeWei is the minimum registerProvider stake, matching the Contract's
// minStake constructor parameter.
var MinStakeWei = big.NewInt(1e17) // 0.1 ETH

// ChallengePenaltyWei is CHALLENGE_PENALTY from spec.md §6.
var ChallengePenaltyWei = big.NewInt(1e17) // 0.1 ETH

// ChallengePeriodSeconds is CHALLENGE_PERIOD from spec.md §6.
const ChallengePeriodSeconds = 3600

// SlashBountyPercent is SLASH_BOUNTY from spec.md §6.
const SlashBountyPercent = 10
