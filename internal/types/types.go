// Package types holds the value types shared by the dispenser, provider, and
// challenger: chunks, commitments, provider descriptors, and the on-chain
// records the Contract exposes through chainclient.
package types

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MinBlobSize is the smallest blob accepted by the dispenser (§6 constants).
const MinBlobSize = 16

// DefaultN and DefaultK are the systematic Reed-Solomon parameters used
// unless a caller overrides them (§6 constants).
const (
	DefaultN = 24
	DefaultK = 16
)

// MaxChunks bounds the total shard count of any single commitment.
const MaxChunks = 1024

// MinRedundancy is the minimum n/k ratio a codec configuration must satisfy.
const MinRedundancy = 1.5

// MaxAttestationBatch is the Contract's per-call cap on attested indices.
const MaxAttestationBatch = 50

// Root identifies a blob's commitment: the Merkle root over its encoded chunks.
type Root [32]byte

// String renders the root as 0x-prefixed lowercase hex.
func (r Root) String() string {
	return "0x" + hex.EncodeToString(r[:])
}

// Hex renders the root as lowercase hex without the "0x" prefix String adds,
// for call sites such as JSON keys and file names.
func (r Root) Hex() string {
	return hex.EncodeToString(r[:])
}

// RootFromHex parses a 32-byte hex string, with or without a 0x prefix.
func RootFromHex(s string) (Root, error) {
	var r Root
	b := common.FromHex(s)
	if len(b) != 32 {
		return r, fmt.Errorf("root must decode to 32 bytes, got %d", len(b))
	}
	copy(r[:], b)
	return r, nil
}

// KZGCommitment is a 48-byte compressed BLS12-381 G1 point.
type KZGCommitment [48]byte

// KZGProof is a 48-byte compressed BLS12-381 G1 point (the opening proof).
type KZGProof [48]byte

// Chunk is one symbol of an erasure-coded blob.
type Chunk struct {
	Index uint16 `json:"index"`
	Data  []byte `json:"data"`
}

// Hash returns H(chunk_bytes), the pre-image used by the Merkle leaf.
func (c Chunk) Hash() common.Hash {
	return crypto.Keccak256Hash(c.Data)
}

// MerkleProof is an ordered list of sibling hashes from a leaf to the root.
type MerkleProof struct {
	Path []common.Hash `json:"path"`
}

// Provider mirrors the on-chain provider descriptor of spec.md §3.
type Provider struct {
	Address              common.Address `json:"address"`
	Name                 string         `json:"name"`
	URL                  string         `json:"url"`
	Stake                uint64         `json:"stake"`
	Active               bool           `json:"active"`
	ChallengesIssued     uint32         `json:"challenges_issued"`
	ChallengesSucceeded  uint32         `json:"challenges_succeeded"`
}

// CommitmentRecord is the on-chain record created by a Dispenser's ingest and
// mutated by chunk attestations and slashing.
type CommitmentRecord struct {
	Root                 Root          `json:"root"`
	Size                 uint32        `json:"size"`
	Timestamp            uint64        `json:"timestamp"`
	N                    uint16        `json:"n"`
	K                    uint16        `json:"k"`
	AvailableChunksCount uint16        `json:"available_chunks_count"`
	KZGCommitment        KZGCommitment `json:"kzg_commitment"`
}

// Recoverable reports whether the commitment currently has at least K
// attested chunks. The Contract is the source of truth for *which* indices
// are available; this only checks the count invariant from spec.md §3.
func (c CommitmentRecord) Recoverable() bool {
	return uint16(c.AvailableChunksCount) >= c.K
}

// ActiveChallenge mirrors the on-chain (root, index, provider) -> challenge
// record of spec.md §3.
type ActiveChallenge struct {
	ChallengeID common.Hash    `json:"challenge_id"`
	Root        Root           `json:"root"`
	Index       uint16         `json:"index"`
	Provider    common.Address `json:"provider"`
	Challenger  common.Address `json:"challenger"`
	IssuedAt    uint64         `json:"issued_at"`
}

// ProviderChunkMap is one entry of getCommitmentChunkMap: the chunk indices a
// single provider holds for a root.
type ProviderChunkMap struct {
	Provider Provider `json:"provider"`
	ChunkIDs []uint16 `json:"chunk_ids"`
}
