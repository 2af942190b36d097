package dispenser

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"nilavail/internal/chainclient"
	"nilavail/internal/erasure"
	"nilavail/internal/kzg"
	"nilavail/internal/merkletree"
	"nilavail/internal/types"
)

const distributeRetries = 3
const reassignAttempts = 2

// Dispenser owns the ingest and retrieval pipelines of spec.md §4.4.
type Dispenser struct {
	client   chainclient.Client
	setup    *kzg.Setup
	params   erasure.Params
	provider *providerClient

	maxConcurrency int
	log            zerolog.Logger
}

// Option configures a Dispenser.
type Option func(*Dispenser)

// WithConcurrency overrides the bounded fan-out width for distribution and
// retrieval (default 8).
func WithConcurrency(n int) Option {
	return func(d *Dispenser) {
		if n > 0 {
			d.maxConcurrency = n
		}
	}
}

// WithLogger overrides the Dispenser's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispenser) { d.log = log }
}

// New constructs a Dispenser. httpTimeout bounds every outbound call to a
// storage provider.
func New(client chainclient.Client, setup *kzg.Setup, params erasure.Params, httpTimeout time.Duration, opts ...Option) *Dispenser {
	d := &Dispenser{
		client:         client,
		setup:          setup,
		params:         params,
		provider:       newProviderClient(httpTimeout),
		maxConcurrency: 8,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ChunkAssignment maps a provider's address to the chunks it was assigned.
type ChunkAssignment = map[common.Address][]types.Chunk

// SubmitData runs the ingest pipeline of spec.md §4.4 and returns the
// resulting commitment root.
func (d *Dispenser) SubmitData(ctx context.Context, data []byte) (types.Root, error) {
	if len(data) < types.MinBlobSize {
		return types.Root{}, fmt.Errorf("%w: blob must be at least %d bytes", types.ErrInvalidInput, types.MinBlobSize)
	}

	chunks, err := erasure.Encode(data, d.params)
	if err != nil {
		return types.Root{}, err
	}

	tree, err := merkletree.BuildFromChunks(chunks)
	if err != nil {
		return types.Root{}, err
	}
	root := tree.Root()

	commitment, poly, err := d.setup.CommitChunks(chunks)
	if err != nil {
		return types.Root{}, err
	}

	if err := d.client.SubmitCommitment(ctx, root, uint32(len(data)), d.params.N, d.params.K, commitment); err != nil {
		return types.Root{}, err
	}
	d.log.Info().Str("root", root.String()).Msg("submitted commitment")

	providers, err := d.client.GetProviders(ctx, true)
	if err != nil {
		return types.Root{}, err
	}

	assignments, err := AssignChunks(root, chunks, providers)
	if err != nil {
		return types.Root{}, err
	}

	providerByAddr := make(map[common.Address]types.Provider, len(providers))
	for _, p := range providers {
		providerByAddr[p.Address] = p
	}
	candidates := stakeOrderedCandidates(providers)

	acked, err := d.distribute(ctx, root, tree, poly, assignments, providerByAddr, candidates)
	if err != nil {
		return types.Root{}, err
	}
	if acked < int(d.params.K) {
		return types.Root{}, fmt.Errorf("%w: only %d of %d required chunks were placed", types.ErrInsufficientPlacement, acked, d.params.K)
	}

	return root, nil
}

func stakeOrderedCandidates(providers []types.Provider) []types.Provider {
	ordered := make([]types.Provider, len(providers))
	copy(ordered, providers)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Stake > ordered[j].Stake })
	return ordered
}

func (d *Dispenser) distribute(ctx context.Context, root types.Root, tree *merkletree.Tree, poly kzg.Polynomial, assignments ChunkAssignment, providerByAddr map[common.Address]types.Provider, candidates []types.Provider) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(d.maxConcurrency))

	var mu sync.Mutex
	acked := 0

	for providerAddr, chunkList := range assignments {
		for _, chunk := range chunkList {
			providerAddr, chunk := providerAddr, chunk
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					return nil // context cancelled, tolerate and stop trying more work
				}
				defer sem.Release(1)

				if d.tryDeliver(gctx, root, tree, poly, chunk, providerAddr, providerByAddr, candidates) {
					mu.Lock()
					acked++
					mu.Unlock()
				}
				return nil
			})
		}
	}

	_ = g.Wait()
	return acked, nil
}

// tryDeliver attempts to deliver chunk to its assigned provider, retrying a
// small bounded number of times; on persistent failure it reassigns the
// chunk to the next candidates in stake order, per spec.md §4.4 step 8.
func (d *Dispenser) tryDeliver(ctx context.Context, root types.Root, tree *merkletree.Tree, poly kzg.Polynomial, chunk types.Chunk, assigned common.Address, providerByAddr map[common.Address]types.Provider, candidates []types.Provider) bool {
	proof, err := tree.Prove(int(chunk.Index))
	if err != nil {
		d.log.Error().Err(err).Uint16("index", chunk.Index).Msg("failed to build merkle proof")
		return false
	}
	opening := d.setup.OpenChunk(poly, chunk.Index)

	tried := map[common.Address]bool{}
	target := assigned
	for attempt := 0; attempt < distributeRetries; attempt++ {
		p, ok := providerByAddr[target]
		if !ok {
			break
		}
		if err := d.provider.putChunk(ctx, p.URL, root, chunk, proof, opening); err == nil {
			return true
		} else {
			d.log.Warn().Err(err).Uint16("index", chunk.Index).Str("provider", target.Hex()).Msg("chunk distribution attempt failed")
		}
	}

	tried[assigned] = true
	for i := 0; i < reassignAttempts; i++ {
		reassigned := nextCandidate(candidates, tried)
		if reassigned == (common.Address{}) {
			break
		}
		tried[reassigned] = true
		p, ok := providerByAddr[reassigned]
		if !ok {
			continue
		}
		if err := d.provider.putChunk(ctx, p.URL, root, chunk, proof, opening); err == nil {
			return true
		}
		d.log.Warn().Uint16("index", chunk.Index).Str("provider", reassigned.Hex()).Msg("reassigned delivery also failed")
	}

	d.log.Error().Uint16("index", chunk.Index).Msg("chunk could not be placed with any provider")
	return false
}

func nextCandidate(candidates []types.Provider, tried map[common.Address]bool) common.Address {
	for _, c := range candidates {
		if !tried[c.Address] {
			return c.Address
		}
	}
	return common.Address{}
}
