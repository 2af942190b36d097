// Package polynomial provides the coefficient-form polynomial arithmetic
// shared by the erasure codec and the KZG module: both need to interpolate a
// polynomial through evaluation points and evaluate/divide it afterward.
// This mirrors kzg/src/utils.rs in the original implementation, which the
// same two modules import from.
package polynomial

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// Add returns p1 + p2, zero-extended to the longer operand's length.
func Add(p1, p2 []fr.Element) []fr.Element {
	n := len(p1)
	if len(p2) > n {
		n = len(p2)
	}
	out := make([]fr.Element, n)
	copy(out, p1)
	for i, c := range p2 {
		out[i].Add(&out[i], &c)
	}
	return out
}

// Sub returns p1 - p2, zero-extended to the longer operand's length.
func Sub(p1, p2 []fr.Element) []fr.Element {
	n := len(p1)
	if len(p2) > n {
		n = len(p2)
	}
	out := make([]fr.Element, n)
	copy(out, p1)
	for i, c := range p2 {
		out[i].Sub(&out[i], &c)
	}
	return out
}

// Mul returns the coefficient-form product of two polynomials.
func Mul(p1, p2 []fr.Element) []fr.Element {
	if len(p1) == 0 || len(p2) == 0 {
		return nil
	}
	out := make([]fr.Element, len(p1)+len(p2)-1)
	var tmp fr.Element
	for i, c1 := range p1 {
		for j, c2 := range p2 {
			tmp.Mul(&c1, &c2)
			out[i+j].Add(&out[i+j], &tmp)
		}
	}
	return out
}

// Evaluate computes poly(point).
func Evaluate(poly []fr.Element, point fr.Element) fr.Element {
	var value, term, powed fr.Element
	powed.SetOne()
	for _, c := range poly {
		term.Mul(&c, &powed)
		value.Add(&value, &term)
		powed.Mul(&powed, &point)
	}
	return value
}

// Div performs polynomial long division p1 / p2, returning the quotient and
// discarding the remainder (callers only ever divide exactly, as in a KZG
// opening where the remainder is the evaluation itself, already subtracted
// out). Ported from kzg/src/utils.rs::div.
func Div(p1, p2 []fr.Element) []fr.Element {
	if len(p1) < len(p2) {
		return []fr.Element{{}}
	}

	quotient := make([]fr.Element, len(p1)-len(p2)+1)
	remainder := append([]fr.Element(nil), p1...)

	for len(remainder) >= len(p2) {
		lastP2 := p2[len(p2)-1]
		lastRem := remainder[len(remainder)-1]

		var coeff fr.Element
		coeff.Div(&lastRem, &lastP2)

		pos := len(remainder) - len(p2)
		quotient[pos] = coeff

		var factor fr.Element
		for i, f := range p2 {
			factor.Mul(&f, &coeff)
			remainder[pos+i].Sub(&remainder[pos+i], &factor)
		}

		for len(remainder) > 0 && remainder[len(remainder)-1].IsZero() {
			remainder = remainder[:len(remainder)-1]
		}
	}

	return quotient
}

// Interpolate returns the unique lowest-degree polynomial P such that
// P(points[i]) = values[i], via Lagrange interpolation. Ported from
// kzg/src/utils.rs::interpolate.
func Interpolate(points, values []fr.Element) []fr.Element {
	result := make([]fr.Element, len(points))
	one := fr.One()

	for i := range points {
		numerator := []fr.Element{one}
		denominator := fr.One()

		for j := range points {
			if i == j {
				continue
			}
			var negPj fr.Element
			negPj.Neg(&points[j])
			numerator = Mul(numerator, []fr.Element{negPj, one})

			var diff fr.Element
			diff.Sub(&points[i], &points[j])
			denominator.Mul(&denominator, &diff)
		}

		denomInv := new(fr.Element).Inverse(&denominator)
		var scale fr.Element
		scale.Mul(&values[i], denomInv)

		term := make([]fr.Element, len(numerator))
		for k, c := range numerator {
			term[k].Mul(&c, &scale)
		}
		result = Add(result, term)
	}

	return result
}
