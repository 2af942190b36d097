// Package dispenser implements the ingest and retrieval pipelines of
// spec.md §4.4: erasure-encode a blob, commit it on-chain, distribute chunks
// to storage providers by stake weight, and reconstruct blobs from whatever
// providers hold.
package dispenser

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"nilavail/internal/types"
)

// AssignChunks distributes chunks to providers by stake weight: each chunk's
// preferred provider is chosen deterministically from H(root || index) as a
// weighted draw over stake, matching the original
// dispenser.rs::select_provider_for_chunk seed construction. Assignment is
// then rebalanced so that no provider receives more than its floor share
// ⌈n/|providers|⌉ before every provider has received that share — the documented
// resolution of spec.md §9's open tie-break question. Once every provider has
// met quota, further chunks fall back to the unconstrained weighted draw.
func AssignChunks(root types.Root, chunks []types.Chunk, providers []types.Provider) (map[common.Address][]types.Chunk, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: no eligible providers", types.ErrInsufficientPlacement)
	}

	order := make([]types.Provider, len(providers))
	copy(order, providers)
	sort.Slice(order, func(i, j int) bool { return order[i].Address.Cmp(order[j].Address) < 0 })

	totalStake := new(big.Int)
	for _, p := range order {
		totalStake.Add(totalStake, new(big.Int).SetUint64(p.Stake))
	}
	if totalStake.Sign() == 0 {
		return nil, fmt.Errorf("%w: total provider stake is zero", types.ErrInsufficientPlacement)
	}

	quota := (len(chunks) + len(order) - 1) / len(order)
	counts := make(map[common.Address]int, len(order))
	assignments := make(map[common.Address][]types.Chunk, len(order))
	for _, p := range order {
		assignments[p.Address] = nil
	}

	for _, chunk := range chunks {
		preferred := selectProviderIndex(root, chunk.Index, order, totalStake)
		idx := preferred
		if counts[order[preferred].Address] >= quota && !allAtQuota(counts, order, quota) {
			for i := 0; i < len(order); i++ {
				candidate := (preferred + i) % len(order)
				if counts[order[candidate].Address] < quota {
					idx = candidate
					break
				}
			}
		}
		addr := order[idx].Address
		assignments[addr] = append(assignments[addr], chunk)
		counts[addr]++
	}

	return assignments, nil
}

func allAtQuota(counts map[common.Address]int, providers []types.Provider, quota int) bool {
	for _, p := range providers {
		if counts[p.Address] < quota {
			return false
		}
	}
	return true
}

// selectProviderIndex returns the stake-weighted provider index for a chunk,
// deterministic per (root, index) so retries pick the same target.
func selectProviderIndex(root types.Root, index uint16, providers []types.Provider, totalStake *big.Int) int {
	var idxBuf [2]byte
	binary.BigEndian.PutUint16(idxBuf[:], index)
	seed := crypto.Keccak256(root[:], idxBuf[:])
	randomValue := new(big.Int).SetBytes(seed[:8])

	target := new(big.Int).Mod(randomValue, totalStake)
	cumulative := new(big.Int)
	for i, p := range providers {
		cumulative.Add(cumulative, new(big.Int).SetUint64(p.Stake))
		if target.Cmp(cumulative) < 0 {
			return i
		}
	}
	return len(providers) - 1
}
