package dispenser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"nilavail/internal/erasure"
	"nilavail/internal/merkletree"
	"nilavail/internal/types"
)

// maxCorruptRetries bounds how many times RetrieveData will enlarge its
// working set and retry decode after erasure.Decode reports a corrupt
// chunk, per spec.md §4.4 step 4's "on CorruptChunk, enlarge the working
// set and retry" rule.
const maxCorruptRetries = 3

// RetrieveData runs the retrieval pipeline of spec.md §4.4: verify
// recoverability, fetch chunks from the providers holding the most of them,
// verify each against the commitment's Merkle root, and decode once k valid
// chunks are in hand. If decode reports a corrupt chunk, the working set is
// enlarged with additional verified chunks and decode is retried, up to
// maxCorruptRetries, before the error is surfaced. A context deadline ends
// retrieval immediately with ErrTimeout, discarding whatever was collected.
func (d *Dispenser) RetrieveData(ctx context.Context, root types.Root) ([]byte, error) {
	recoverable, err := d.client.IsCommitmentRecoverable(ctx, root)
	if err != nil {
		return nil, err
	}
	if !recoverable {
		return nil, fmt.Errorf("%w: %s", types.ErrNotRecoverable, root.String())
	}

	record, ok, err := d.client.GetCommitmentInfo(ctx, root)
	if err != nil {
		return nil, err
	}
	if !ok {
		// GetCommitmentInfo's bool is the record's isRecoverable flag.
		return nil, fmt.Errorf("%w: %s", types.ErrNotRecoverable, root.String())
	}

	chunkMap, err := d.client.GetCommitmentChunkMap(ctx, root)
	if err != nil {
		return nil, err
	}
	// Fetch from the providers holding the most chunks first, minimizing the
	// number of round trips needed to reach k.
	sort.Slice(chunkMap, func(i, j int) bool { return len(chunkMap[i].ChunkIDs) > len(chunkMap[j].ChunkIDs) })

	collected := map[uint16]types.Chunk{}
	var mu sync.Mutex

	for corruptRetries := 0; ; corruptRetries++ {
		target := int(record.K) + corruptRetries
		// Every provider is a candidate again on each round, so indices not
		// fetched in an earlier round can enlarge the working set.
		tried := map[int]bool{}
		if err := d.collectAtLeast(ctx, root, record, chunkMap, tried, target, collected, &mu); err != nil {
			return nil, err
		}

		chunks := make([]types.Chunk, 0, len(collected))
		for _, c := range collected {
			chunks = append(chunks, c)
		}
		sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })

		data, err := erasure.Decode(chunks, erasure.Params{N: record.N, K: record.K}, record.Size)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, types.ErrCorruptChunk) || corruptRetries >= maxCorruptRetries {
			return nil, err
		}
		d.log.Warn().Err(err).Str("root", root.String()).Msg("decode found a corrupt chunk, enlarging working set and retrying")
	}
}

// collectAtLeast fetches from untried providers until collected holds at
// least target verified chunks or the candidate providers are exhausted.
func (d *Dispenser) collectAtLeast(ctx context.Context, root types.Root, record types.CommitmentRecord, chunkMap []types.ProviderChunkMap, tried map[int]bool, target int, collected map[uint16]types.Chunk, mu *sync.Mutex) error {
	mu.Lock()
	have := len(collected)
	mu.Unlock()

	for have < target {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", types.ErrTimeout, ctx.Err())
		}

		remainingCandidate := -1
		for i := range chunkMap {
			if !tried[i] {
				remainingCandidate = i
				break
			}
		}
		if remainingCandidate == -1 {
			return fmt.Errorf("%w: exhausted providers with only %d of %d chunks verified", types.ErrInsufficientChunks, have, record.K)
		}

		batch := chunkMap[remainingCandidate:]
		if err := d.fetchAndVerify(ctx, root, target, batch, collected, mu); err != nil {
			return err
		}
		for i := remainingCandidate; i < len(chunkMap); i++ {
			tried[i] = true
		}

		mu.Lock()
		have = len(collected)
		mu.Unlock()
	}
	return nil
}

// fetchAndVerify pulls chunks from every provider in batch concurrently and
// merges Merkle-verified results into collected, stopping early once target
// distinct chunks have been gathered. A context deadline that expires
// mid-fetch is reported as ErrTimeout rather than silently returning
// whatever partial set was collected.
func (d *Dispenser) fetchAndVerify(ctx context.Context, root types.Root, target int, batch []types.ProviderChunkMap, collected map[uint16]types.Chunk, mu *sync.Mutex) error {
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(d.maxConcurrency))

	for _, pcm := range batch {
		pcm := pcm
		mu.Lock()
		needed := missingIndices(pcm.ChunkIDs, collected)
		mu.Unlock()
		if len(needed) == 0 {
			continue
		}

		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			chunks, proofs, err := d.provider.batchRetrieve(gctx, pcm.Provider.URL, root, needed)
			if err != nil {
				d.log.Warn().Err(err).Str("provider", pcm.Provider.Address.Hex()).Msg("batch retrieve failed")
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			for i, chunk := range chunks {
				if chunk == nil || i >= len(proofs) || proofs[i] == nil {
					continue
				}
				if len(collected) >= target {
					return nil
				}
				leaf := merkletree.ChunkLeafHash(*chunk)
				if !merkletree.Verify(root, leaf, int(chunk.Index), *proofs[i]) {
					d.log.Warn().Uint16("index", chunk.Index).Str("provider", pcm.Provider.Address.Hex()).Msg("chunk failed merkle verification, discarding")
					continue
				}
				collected[chunk.Index] = *chunk
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", types.ErrTimeout, ctx.Err())
	}
	return nil
}

func missingIndices(ids []uint16, collected map[uint16]types.Chunk) []uint16 {
	out := make([]uint16, 0, len(ids))
	for _, id := range ids {
		if _, ok := collected[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
