package dispenser

import (
	"math/big"
	"time"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/ethereum/go-ethereum/common"

	"nilavail/internal/erasure"
	"nilavail/internal/kzg"
)

// testSetup builds an insecure toy CRS, mirroring kzg's own test helper,
// sized for the erasure params used across this package's tests.
func testSetup(degree int) *kzg.Setup {
	var secret fr.Element
	secret.SetUint64(13371337)

	_, _, g1Gen, g2Gen := bls12381.Generators()

	crsG1 := make([]bls12381.G1Affine, degree+1)
	crsG2 := make([]bls12381.G2Affine, degree+1)
	power := fr.One()
	for i := 0; i <= degree; i++ {
		var scalar big.Int
		power.BigInt(&scalar)

		var g1 bls12381.G1Affine
		g1.ScalarMultiplication(&g1Gen, &scalar)
		crsG1[i] = g1

		var g2 bls12381.G2Affine
		g2.ScalarMultiplication(&g2Gen, &scalar)
		crsG2[i] = g2

		power.Mul(&power, &secret)
	}

	return &kzg.Setup{
		G1:     g1Gen,
		G2:     g2Gen,
		G2Tau:  crsG2[1],
		Degree: degree,
		CRSG1:  crsG1,
		CRSG2:  crsG2,
	}
}

func testDispenserParams() erasure.Params {
	return erasure.Params{N: 24, K: 16}
}

func testDispenserAddr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

const testHTTPTimeout = 5 * time.Second
const testEventuallyWait = 2 * time.Second
const testEventuallyTick = 10 * time.Millisecond
