package chainclient

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"nilavail/internal/merkletree"
	"nilavail/internal/types"
)

// MemClient is an in-process reference implementation of Client: the full
// state machine of spec.md §3 (providers, commitments, chunk ownership,
// active/expired challenges) behind a single mutex. It mirrors the Contract
// mock harness in tests/src/setup.rs and the semantics PodaClientTrait
// documents, so package tests can exercise real ingest/retrieval/challenge
// flows without a live chain.
type MemClient struct {
	mu sync.Mutex

	minStake *big.Int
	nonce    uint64

	providers   map[common.Address]*types.Provider
	commitments map[types.Root]*memCommitment
	challenges  map[challengeKey]*types.ActiveChallenge
}

type memCommitment struct {
	record    types.CommitmentRecord
	owners    map[uint16]common.Address
	attested  map[uint16]bool
	timestamp uint64
}

type challengeKey struct {
	root  types.Root
	index uint16
}

// NewMemClient returns an empty MemClient requiring minStakeWei to register.
func NewMemClient(minStakeWei *big.Int) *MemClient {
	return &MemClient{
		minStake:    minStakeWei,
		providers:   make(map[common.Address]*types.Provider),
		commitments: make(map[types.Root]*memCommitment),
		challenges:  make(map[challengeKey]*types.ActiveChallenge),
	}
}

// RegisterProviderAs registers a provider under a caller-chosen address,
// bypassing the normal msg.sender derivation a real transaction would use.
// Tests use this to seed a fixed provider set.
func (m *MemClient) RegisterProviderAs(addr common.Address, name, url string, stakeWei *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stakeWei.Cmp(m.minStake) < 0 {
		return fmt.Errorf("%w: stake below minimum", types.ErrInvalidInput)
	}
	m.providers[addr] = &types.Provider{
		Address: addr,
		Name:    name,
		URL:     url,
		Stake:   stakeWei.Uint64(),
		Active:  true,
	}
	return nil
}

func (m *MemClient) RegisterProvider(ctx context.Context, name, url string, stakeWei *big.Int) error {
	var addr common.Address
	copy(addr[:], crypto.Keccak256([]byte(name), []byte(url))[:20])
	return m.RegisterProviderAs(addr, name, url, stakeWei)
}

func (m *MemClient) SubmitCommitment(ctx context.Context, root types.Root, size uint32, n, k uint16, kzgCommitment types.KZGCommitment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.commitments[root]; exists {
		return types.ErrDuplicateCommitment
	}

	m.commitments[root] = &memCommitment{
		record: types.CommitmentRecord{
			Root:          root,
			Size:          size,
			Timestamp:     uint64(time.Now().Unix()),
			N:             n,
			K:             k,
			KZGCommitment: kzgCommitment,
		},
		owners:   make(map[uint16]common.Address),
		attested: make(map[uint16]bool),
	}
	return nil
}

func (m *MemClient) SubmitChunkAttestations(ctx context.Context, root types.Root, indices []uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.commitments[root]
	if !ok {
		return fmt.Errorf("%w: unknown commitment", types.ErrInvalidInput)
	}
	if len(indices) > types.MaxAttestationBatch {
		return fmt.Errorf("%w: batch of %d exceeds max %d", types.ErrInvalidInput, len(indices), types.MaxAttestationBatch)
	}

	for _, idx := range indices {
		if idx >= c.record.N {
			return fmt.Errorf("%w: index %d out of range", types.ErrInvalidInput, idx)
		}
		if c.attested[idx] {
			continue // duplicate indices are skipped here rather than rejected
		}
		c.attested[idx] = true
		c.record.AvailableChunksCount++
	}
	return nil
}

// AssignChunkOwner records which provider a chunk was distributed to. This
// is a MemClient-only helper standing in for the Contract's implicit
// bookkeeping when a provider's attestation is accepted; real deployments
// derive ownership from submitChunkAttestations's caller.
func (m *MemClient) AssignChunkOwner(root types.Root, index uint16, provider common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.commitments[root]; ok {
		c.owners[index] = provider
	}
}

// ExpireChallengeForTest backdates an active challenge's IssuedAt so it
// reads as expired, without needing a real ChallengePeriodSeconds wait. Tests
// only; the real Contract has no equivalent.
func (m *MemClient) ExpireChallengeForTest(root types.Root, index uint16, provider common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := challengeKey{root: root, index: index}
	if ch, ok := m.challenges[key]; ok && ch.Provider == provider {
		ch.IssuedAt = 1
	}
}

func (m *MemClient) CommitmentExists(ctx context.Context, root types.Root) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.commitments[root]
	return ok, nil
}

func (m *MemClient) IsCommitmentRecoverable(ctx context.Context, root types.Root) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commitments[root]
	if !ok {
		return false, fmt.Errorf("%w: unknown commitment", types.ErrNotFound)
	}
	return c.record.Recoverable(), nil
}

func (m *MemClient) GetCommitmentInfo(ctx context.Context, root types.Root) (types.CommitmentRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commitments[root]
	if !ok {
		return types.CommitmentRecord{}, false, fmt.Errorf("%w: unknown commitment", types.ErrNotFound)
	}
	return c.record, c.record.Recoverable(), nil
}

func (m *MemClient) GetAvailableChunks(ctx context.Context, root types.Root) ([]uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commitments[root]
	if !ok {
		return nil, fmt.Errorf("%w: unknown commitment", types.ErrNotFound)
	}
	chunks := make([]uint16, 0, len(c.attested))
	for i := uint16(0); i < c.record.N; i++ {
		if c.attested[i] {
			chunks = append(chunks, i)
		}
	}
	return chunks, nil
}

func (m *MemClient) GetCommitmentList(ctx context.Context) ([]types.Root, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roots := make([]types.Root, 0, len(m.commitments))
	for r := range m.commitments {
		roots = append(roots, r)
	}
	return roots, nil
}

func (m *MemClient) GetProviderChunks(ctx context.Context, root types.Root, provider common.Address) ([]uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commitments[root]
	if !ok {
		return nil, fmt.Errorf("%w: unknown commitment", types.ErrNotFound)
	}
	var chunks []uint16
	for idx, owner := range c.owners {
		if owner == provider && c.attested[idx] {
			chunks = append(chunks, idx)
		}
	}
	return chunks, nil
}

func (m *MemClient) GetChunkOwner(ctx context.Context, root types.Root, index uint16) (common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commitments[root]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: unknown commitment", types.ErrNotFound)
	}
	owner, ok := c.owners[index]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: chunk %d has no owner", types.ErrNotFound, index)
	}
	return owner, nil
}

func (m *MemClient) GetCommitmentChunkMap(ctx context.Context, root types.Root) ([]types.ProviderChunkMap, error) {
	m.mu.Lock()
	c, ok := m.commitments[root]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: unknown commitment", types.ErrNotFound)
	}
	byProvider := make(map[common.Address][]uint16)
	for idx, owner := range c.owners {
		if c.attested[idx] {
			byProvider[owner] = append(byProvider[owner], idx)
		}
	}
	m.mu.Unlock()

	result := make([]types.ProviderChunkMap, 0, len(byProvider))
	for addr, ids := range byProvider {
		info, err := m.GetProviderInfo(ctx, addr)
		if err != nil {
			return nil, err
		}
		result = append(result, types.ProviderChunkMap{Provider: info, ChunkIDs: ids})
	}
	return result, nil
}

func (m *MemClient) GetProviders(ctx context.Context, eligibleOnly bool) ([]types.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	providers := make([]types.Provider, 0, len(m.providers))
	for _, p := range m.providers {
		if eligibleOnly && (!p.Active || p.Stake < m.minStake.Uint64()) {
			continue
		}
		providers = append(providers, *p)
	}
	return providers, nil
}

func (m *MemClient) GetProviderInfo(ctx context.Context, provider common.Address) (types.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[provider]
	if !ok {
		return types.Provider{}, fmt.Errorf("%w: unknown provider", types.ErrNotFound)
	}
	return *p, nil
}

func (m *MemClient) IsChunkAvailable(ctx context.Context, root types.Root, index uint16) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commitments[root]
	if !ok {
		return false, fmt.Errorf("%w: unknown commitment", types.ErrNotFound)
	}
	return c.attested[index], nil
}

func (m *MemClient) GetMultipleCommitmentStatus(ctx context.Context, roots []types.Root) ([]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	statuses := make([]bool, len(roots))
	for i, r := range roots {
		if c, ok := m.commitments[r]; ok {
			statuses[i] = c.record.Recoverable()
		}
	}
	return statuses, nil
}

func (m *MemClient) IssueChunkChallenge(ctx context.Context, root types.Root, index uint16, provider common.Address) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.commitments[root]
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: unknown commitment", types.ErrNotFound)
	}
	if !c.attested[index] {
		return common.Hash{}, fmt.Errorf("%w: chunk %d not available", types.ErrInvalidInput, index)
	}

	key := challengeKey{root: root, index: index}
	if _, exists := m.challenges[key]; exists {
		return common.Hash{}, fmt.Errorf("%w: challenge already active for chunk %d", types.ErrInvalidInput, index)
	}

	m.nonce++
	var nonceBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], m.nonce)
	id := crypto.Keccak256Hash(root[:], []byte{byte(index >> 8), byte(index)}, provider[:], nonceBuf[:])

	p, ok := m.providers[provider]
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: unknown provider", types.ErrNotFound)
	}
	p.ChallengesIssued++

	m.challenges[key] = &types.ActiveChallenge{
		ChallengeID: id,
		Root:        root,
		Index:       index,
		Provider:    provider,
		IssuedAt:    uint64(time.Now().Unix()),
	}
	return id, nil
}

func (m *MemClient) RespondToChunkChallenge(ctx context.Context, root types.Root, index uint16, chunkData []byte, proof types.MerkleProof) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := challengeKey{root: root, index: index}
	challenge, ok := m.challenges[key]
	if !ok {
		return fmt.Errorf("%w: no active challenge for chunk %d", types.ErrInvalidInput, index)
	}

	c := m.commitments[root]
	leaf := merkletree.LeafHash(index, crypto.Keccak256Hash(chunkData))
	if !merkletree.Verify(c.record.Root, leaf, int(index), proof) {
		return types.ErrBadProof
	}

	if p, ok := m.providers[challenge.Provider]; ok {
		p.ChallengesSucceeded++
	}
	delete(m.challenges, key)
	return nil
}

func (m *MemClient) SlashExpiredChallenge(ctx context.Context, root types.Root, index uint16, provider common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := challengeKey{root: root, index: index}
	challenge, ok := m.challenges[key]
	if !ok {
		return fmt.Errorf("%w: no active challenge for chunk %d", types.ErrInvalidInput, index)
	}
	if time.Now().Unix()-int64(challenge.IssuedAt) <= ChallengePeriodSeconds {
		return fmt.Errorf("%w: challenge period has not elapsed", types.ErrInvalidInput)
	}

	p, ok := m.providers[provider]
	if !ok {
		return fmt.Errorf("%w: unknown provider", types.ErrNotFound)
	}
	penalty := ChallengePenaltyWei.Uint64()
	if p.Stake > penalty {
		p.Stake -= penalty
	} else {
		p.Stake = 0
	}

	c := m.commitments[root]
	if c != nil {
		delete(c.owners, index)
		delete(c.attested, index)
		if c.record.AvailableChunksCount > 0 {
			c.record.AvailableChunksCount--
		}
	}

	delete(m.challenges, key)
	return nil
}

func (m *MemClient) GetProviderActiveChallenges(ctx context.Context, provider common.Address) ([]types.ActiveChallenge, error) {
	return m.filterChallenges(provider, func(c *types.ActiveChallenge) bool {
		return time.Now().Unix()-int64(c.IssuedAt) <= ChallengePeriodSeconds
	})
}

func (m *MemClient) GetProviderExpiredChallenges(ctx context.Context, provider common.Address) ([]types.ActiveChallenge, error) {
	return m.filterChallenges(provider, func(c *types.ActiveChallenge) bool {
		return time.Now().Unix()-int64(c.IssuedAt) > ChallengePeriodSeconds
	})
}

func (m *MemClient) filterChallenges(provider common.Address, keep func(*types.ActiveChallenge) bool) ([]types.ActiveChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.ActiveChallenge
	for _, c := range m.challenges {
		if c.Provider == provider && keep(c) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *MemClient) GetChunkChallenge(ctx context.Context, root types.Root, index uint16) (types.ActiveChallenge, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[challengeKey{root: root, index: index}]
	if !ok {
		return types.ActiveChallenge{}, false, nil
	}
	return *c, true, nil
}
