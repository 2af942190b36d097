package kzg

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"nilavail/internal/erasure"
	"nilavail/internal/polynomial"
	"nilavail/internal/types"
)

// PolynomialFromChunks interpolates the degree-<len(chunks) polynomial that
// takes chunk[i].Data's symbol value at point i, then pads or truncates it
// to the setup's committed degree. Mirrors gen_polynomial in the original
// implementation.
func (s *Setup) PolynomialFromChunks(chunks []types.Chunk) Polynomial {
	points := make([]fr.Element, len(chunks))
	values := make([]fr.Element, len(chunks))
	for i, c := range chunks {
		points[i] = erasure.EvaluationPoint(int(c.Index))
		values[i] = erasure.ShardValue(c.Data)
	}

	poly := polynomial.Interpolate(points, values)
	target := s.Degree + 1
	if len(poly) > target {
		poly = poly[:target]
	} else if len(poly) < target {
		padded := make([]fr.Element, target)
		copy(padded, poly)
		poly = padded
	}
	return poly
}

// CommitChunks builds the interpolating polynomial for chunks and commits to
// it, returning both the commitment and the polynomial (callers reuse the
// polynomial for subsequent Open calls without recomputing it), mirroring
// kzg_commit.
func (s *Setup) CommitChunks(chunks []types.Chunk) (types.KZGCommitment, Polynomial, error) {
	poly := s.PolynomialFromChunks(chunks)
	commitment, err := s.Commit(poly)
	return commitment, poly, err
}

// OpenChunk proves that a chunk's symbol value is the evaluation of poly at
// its own index, mirroring kzg_prove for a single chunk index.
func (s *Setup) OpenChunk(poly Polynomial, index uint16) types.KZGProof {
	proof, _ := s.Open(poly, erasure.EvaluationPoint(int(index)))
	return proof
}

// VerifyChunk checks that chunk opens correctly against commitment at its
// own index, mirroring kzg_verify.
func (s *Setup) VerifyChunk(chunk types.Chunk, commitment types.KZGCommitment, proof types.KZGProof) (bool, error) {
	point := erasure.EvaluationPoint(int(chunk.Index))
	value := erasure.ShardValue(chunk.Data)
	return s.Verify(point, value, commitment, proof)
}
