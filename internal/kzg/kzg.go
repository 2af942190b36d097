package kzg

import (
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"nilavail/internal/polynomial"
	"nilavail/internal/types"
)

// Polynomial is a coefficient-form polynomial over the KZG scalar field.
type Polynomial = []fr.Element

// Commit computes g1^poly(tau) via the CRS, i.e. sum_i crs_g1[i] * poly[i].
// poly must have at most Degree+1 coefficients.
func (s *Setup) Commit(poly Polynomial) (types.KZGCommitment, error) {
	if len(poly) > s.Degree+1 {
		return types.KZGCommitment{}, fmt.Errorf("%w: polynomial degree %d exceeds setup degree %d", types.ErrInvalidInput, len(poly)-1, s.Degree)
	}

	acc := zeroG1(s.G1)
	for i, coeff := range poly {
		term := g1ScalarMul(s.CRSG1[i], coeff)
		acc = g1Add(acc, term)
	}

	return commitmentFromPoint(acc), nil
}

// Open produces the KZG opening proof pi that poly(point) equals the value
// returned alongside it, following kzg.rs::open: quotient = (poly - value) /
// (X - point), proof = g1^quotient(tau).
func (s *Setup) Open(poly Polynomial, point fr.Element) (types.KZGProof, fr.Element) {
	value := polynomial.Evaluate(poly, point)

	numerator := append([]fr.Element(nil), poly...)
	if len(numerator) == 0 {
		numerator = []fr.Element{{}}
	}
	numerator[0].Sub(&numerator[0], &value)

	var negPoint fr.Element
	negPoint.Neg(&point)
	denominator := []fr.Element{negPoint, fr.One()}

	quotient := polynomial.Div(numerator, denominator)

	acc := zeroG1(s.G1)
	for i, coeff := range quotient {
		acc = g1Add(acc, g1ScalarMul(s.CRSG1[i], coeff))
	}

	return proofFromPoint(acc), value
}

// Verify checks that commitment opens to value at point via proof, following
// kzg.rs::verify's pairing equation: e(pi, g2_tau - g2^point) ==
// e(commitment - g1^value, g2).
func (s *Setup) Verify(point, value fr.Element, commitment types.KZGCommitment, proof types.KZGProof) (bool, error) {
	commitPoint, err := pointFromCommitment(commitment)
	if err != nil {
		return false, err
	}
	proofPoint, err := pointFromProof(proof)
	if err != nil {
		return false, err
	}

	a := g2Sub(s.G2Tau, g2ScalarMul(s.G2, point))
	c := g1Sub(commitPoint, g1ScalarMul(s.G1, value))
	negC := negG1(c)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{proofPoint, negC},
		[]bls12381.G2Affine{a, s.G2},
	)
	if err != nil {
		return false, fmt.Errorf("kzg verify pairing: %w", err)
	}
	return ok, nil
}

// MultiOpen produces a single proof that poly agrees with its own
// evaluations at every point in points, following kzg.rs::multi_open.
func (s *Setup) MultiOpen(poly Polynomial, points []fr.Element) types.KZGProof {
	zeroPoly := zeroPolyOverRoots(points)

	values := make([]fr.Element, len(points))
	for i, p := range points {
		values[i] = polynomial.Evaluate(poly, p)
	}
	lagrange := polynomial.Interpolate(points, values)
	if len(lagrange) < len(poly) {
		padded := make([]fr.Element, len(poly))
		copy(padded, lagrange)
		lagrange = padded
	}

	numerator := polynomial.Sub(poly, lagrange)
	quotient := polynomial.Div(numerator, zeroPoly)

	acc := zeroG1(s.G1)
	for i, coeff := range quotient {
		if i >= len(s.CRSG1) {
			break
		}
		acc = g1Add(acc, g1ScalarMul(s.CRSG1[i], coeff))
	}

	return proofFromPoint(acc)
}

// MultiVerify checks a multi-point opening proof, following
// kzg.rs::verify_multi.
func (s *Setup) MultiVerify(points, values []fr.Element, commitment types.KZGCommitment, proof types.KZGProof) (bool, error) {
	if len(points) != len(values) || len(points) == 0 {
		return false, fmt.Errorf("%w: mismatched or empty points/values", types.ErrInvalidInput)
	}

	commitPoint, err := pointFromCommitment(commitment)
	if err != nil {
		return false, err
	}
	proofPoint, err := pointFromProof(proof)
	if err != nil {
		return false, err
	}

	zeroPoly := zeroPolyOverRoots(points)
	zeroCommitment := zeroG2(s.G2)
	for i, coeff := range zeroPoly {
		if i >= len(s.CRSG2) {
			break
		}
		zeroCommitment = g2Add(zeroCommitment, g2ScalarMul(s.CRSG2[i], coeff))
	}

	lagrange := polynomial.Interpolate(points, values)
	lagrangeCommitment := zeroG1(s.G1)
	n := len(lagrange)
	if len(s.CRSG1) < n {
		n = len(s.CRSG1)
	}
	for i := 0; i < n; i++ {
		lagrangeCommitment = g1Add(lagrangeCommitment, g1ScalarMul(s.CRSG1[i], lagrange[i]))
	}

	c := g1Sub(commitPoint, lagrangeCommitment)
	negC := negG1(c)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{proofPoint, negC},
		[]bls12381.G2Affine{zeroCommitment, s.G2},
	)
	if err != nil {
		return false, fmt.Errorf("kzg multi-verify pairing: %w", err)
	}
	return ok, nil
}

// zeroPolyOverRoots builds prod_i (X - points[i]), the vanishing polynomial
// over the given evaluation points.
func zeroPolyOverRoots(points []fr.Element) []fr.Element {
	var neg0 fr.Element
	neg0.Neg(&points[0])
	zeroPoly := []fr.Element{neg0, fr.One()}
	for _, p := range points[1:] {
		var neg fr.Element
		neg.Neg(&p)
		zeroPoly = polynomial.Mul(zeroPoly, []fr.Element{neg, fr.One()})
	}
	return zeroPoly
}

func commitmentFromPoint(p bls12381.G1Affine) types.KZGCommitment {
	var c types.KZGCommitment
	b := p.Bytes()
	copy(c[:], b[:])
	return c
}

func proofFromPoint(p bls12381.G1Affine) types.KZGProof {
	var pr types.KZGProof
	b := p.Bytes()
	copy(pr[:], b[:])
	return pr
}

func pointFromCommitment(c types.KZGCommitment) (bls12381.G1Affine, error) {
	var p bls12381.G1Affine
	if _, err := p.SetBytes(c[:]); err != nil {
		return p, fmt.Errorf("%w: invalid kzg commitment bytes: %v", types.ErrBadProof, err)
	}
	return p, nil
}

func pointFromProof(pr types.KZGProof) (bls12381.G1Affine, error) {
	var p bls12381.G1Affine
	if _, err := p.SetBytes(pr[:]); err != nil {
		return p, fmt.Errorf("%w: invalid kzg proof bytes: %v", types.ErrBadProof, err)
	}
	return p, nil
}
