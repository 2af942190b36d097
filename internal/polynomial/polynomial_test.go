package polynomial

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/stretchr/testify/require"
)

func felt(v int64) fr.Element {
	var e fr.Element
	e.SetInt64(v)
	return e
}

func TestInterpolateRecoversKnownPolynomial(t *testing.T) {
	// p(x) = 3 + 2x + x^2
	poly := []fr.Element{felt(3), felt(2), felt(1)}
	points := []fr.Element{felt(0), felt(1), felt(2)}
	values := make([]fr.Element, len(points))
	for i, p := range points {
		values[i] = Evaluate(poly, p)
	}

	got := Interpolate(points, values)
	for i, p := range points {
		gotVal := Evaluate(got, p)
		require.True(t, gotVal.Equal(&values[i]))
	}
}

func TestDivExactDivision(t *testing.T) {
	// (x - 2)(x - 3) = x^2 - 5x + 6
	product := []fr.Element{felt(6), felt(-5), felt(1)}
	divisor := []fr.Element{felt(-2), felt(1)} // x - 2
	quotient := Div(product, divisor)

	// quotient should be x - 3
	remainderAtRoot := Evaluate(quotient, felt(3))
	require.True(t, remainderAtRoot.IsZero())
}

func TestMulDistributesOverAdd(t *testing.T) {
	a := []fr.Element{felt(1), felt(2)}
	b := []fr.Element{felt(3)}
	c := []fr.Element{felt(4)}

	lhs := Mul(a, Add(b, c))
	rhs := Add(Mul(a, b), Mul(a, c))

	point := felt(7)
	lhsVal := Evaluate(lhs, point)
	rhsVal := Evaluate(rhs, point)
	require.True(t, lhsVal.Equal(&rhsVal))
}
