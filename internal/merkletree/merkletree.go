// Package merkletree builds and verifies the binary Merkle tree of spec.md
// §4.3 over a blob's encoded chunks. Leaf pre-images are packed the way
// go-ethereum's abi package packs a Solidity (uint16, bytes32) tuple, so a
// proof produced here verifies unmodified against the Contract's
// verifyChunkProof.
package merkletree

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"nilavail/internal/types"
)

// LeafHash returns H(abi_encode(uint16(index), H(chunk_bytes))), the leaf
// pre-image spec.md §4.3 requires. The uint16 is left-padded to 32 bytes and
// the chunk hash follows, matching abi.encode(uint16,bytes32).
func LeafHash(index uint16, chunkHash common.Hash) common.Hash {
	buf := make([]byte, 64)
	buf[30] = byte(index >> 8)
	buf[31] = byte(index)
	copy(buf[32:], chunkHash[:])
	return crypto.Keccak256Hash(buf)
}

// ChunkLeafHash is LeafHash applied to a chunk's own index and content hash.
func ChunkLeafHash(c types.Chunk) common.Hash {
	return LeafHash(c.Index, c.Hash())
}

// Tree is a binary Merkle tree built bottom-up from a fixed leaf set, with
// duplication padding for odd-sized levels (the last node of an odd level is
// paired with itself), matching the build-time child order spec.md §4.3
// requires proofs to preserve.
type Tree struct {
	levels [][]common.Hash // levels[0] is the leaf level
}

// Build constructs a Tree over the given leaves. The leaf order is the chunk
// index order; callers must pass leaves in that order for proofs to line up
// with on-chain verification.
func Build(leaves []common.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("%w: cannot build a merkle tree with zero leaves", types.ErrInvalidInput)
	}

	levels := make([][]common.Hash, 0)
	current := append([]common.Hash(nil), leaves...)
	levels = append(levels, current)

	for len(current) > 1 {
		next := make([]common.Hash, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			var right common.Hash
			if i+1 < len(current) {
				right = current[i+1]
			} else {
				right = current[i] // duplication padding
			}
			next = append(next, hashPair(left, right))
		}
		levels = append(levels, next)
		current = next
	}

	return &Tree{levels: levels}, nil
}

// BuildFromChunks builds a Tree keyed by chunk index; chunks must already be
// sorted by Index (the assignment/encode pipeline guarantees this).
func BuildFromChunks(chunks []types.Chunk) (*Tree, error) {
	leaves := make([]common.Hash, len(chunks))
	for i, c := range chunks {
		leaves[i] = ChunkLeafHash(c)
	}
	return Build(leaves)
}

// Root returns the tree's root hash.
func (t *Tree) Root() types.Root {
	top := t.levels[len(t.levels)-1][0]
	var r types.Root
	copy(r[:], top[:])
	return r
}

// Prove returns the sibling path from the leaf at index i to the root.
func (t *Tree) Prove(index int) (types.MerkleProof, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return types.MerkleProof{}, fmt.Errorf("%w: leaf index %d out of range", types.ErrInvalidInput, index)
	}

	path := make([]common.Hash, 0, len(t.levels)-1)
	idx := index
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		var sibling common.Hash
		if idx%2 == 0 {
			if idx+1 < len(nodes) {
				sibling = nodes[idx+1]
			} else {
				sibling = nodes[idx] // this leaf was duplicated at build time
			}
		} else {
			sibling = nodes[idx-1]
		}
		path = append(path, sibling)
		idx /= 2
	}

	return types.MerkleProof{Path: path}, nil
}

// Verify reconstructs the root from leaf, proof and the leaf's original
// index, and reports whether it matches root. Orientation at each step is
// derived from the bit of index at that level, matching how Prove walked
// the tree.
func Verify(root types.Root, leaf common.Hash, index int, proof types.MerkleProof) bool {
	current := leaf
	idx := index
	for _, sibling := range proof.Path {
		if idx%2 == 0 {
			current = hashPair(current, sibling)
		} else {
			current = hashPair(sibling, current)
		}
		idx /= 2
	}
	return common.Hash(root) == current
}

func hashPair(left, right common.Hash) common.Hash {
	buf := make([]byte, 64)
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return crypto.Keccak256Hash(buf)
}
