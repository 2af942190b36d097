package kzg

import (
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// Small G1/G2 helpers built on Jacobian addition so the KZG math above reads
// close to the additive notation in kzg.rs (commitment += crs_g1[i] * coeff).

func zeroG1(g1 bls12381.G1Affine) bls12381.G1Affine {
	var zero bls12381.G1Affine
	zero.ScalarMultiplication(&g1, big.NewInt(0))
	return zero
}

func zeroG2(g2 bls12381.G2Affine) bls12381.G2Affine {
	var zero bls12381.G2Affine
	zero.ScalarMultiplication(&g2, big.NewInt(0))
	return zero
}

func g1ScalarMul(base bls12381.G1Affine, scalar fr.Element) bls12381.G1Affine {
	var s big.Int
	scalar.BigInt(&s)
	var res bls12381.G1Affine
	res.ScalarMultiplication(&base, &s)
	return res
}

func g2ScalarMul(base bls12381.G2Affine, scalar fr.Element) bls12381.G2Affine {
	var s big.Int
	scalar.BigInt(&s)
	var res bls12381.G2Affine
	res.ScalarMultiplication(&base, &s)
	return res
}

func g1Add(a, b bls12381.G1Affine) bls12381.G1Affine {
	var bJac, sum bls12381.G1Jac
	bJac.FromAffine(&b)
	sum.FromAffine(&a)
	sum.AddAssign(&bJac)
	var res bls12381.G1Affine
	res.FromJacobian(&sum)
	return res
}

func g2Add(a, b bls12381.G2Affine) bls12381.G2Affine {
	var bJac, sum bls12381.G2Jac
	bJac.FromAffine(&b)
	sum.FromAffine(&a)
	sum.AddAssign(&bJac)
	var res bls12381.G2Affine
	res.FromJacobian(&sum)
	return res
}

func negG1(a bls12381.G1Affine) bls12381.G1Affine {
	var res bls12381.G1Affine
	res.Neg(&a)
	return res
}

func g1Sub(a, b bls12381.G1Affine) bls12381.G1Affine {
	return g1Add(a, negG1(b))
}

func g2Sub(a, b bls12381.G2Affine) bls12381.G2Affine {
	var bNeg bls12381.G2Affine
	bNeg.Neg(&b)
	return g2Add(a, bNeg)
}
