// Package kzg implements the polynomial commitment scheme of spec.md §4.2
// over BLS12-381, ported from kzg/src/kzg.rs and kzg/src/lib.rs in the
// original implementation. A Setup holds the trusted-setup CRS; Commit,
// Open and Verify (plus their multi-point counterparts) operate against it.
package kzg

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"

	"nilavail/internal/types"
)

// Setup is the loaded trusted-setup common reference string, truncated to
// the degree this deployment commits polynomials of (types.DefaultK - 1).
type Setup struct {
	G1     bls12381.G1Affine
	G2     bls12381.G2Affine
	G2Tau  bls12381.G2Affine // crs_g2[1], the first power of tau in G2
	Degree int
	CRSG1  []bls12381.G1Affine
	CRSG2  []bls12381.G2Affine
}

// ceremonyFile is the JSON shape of the bundled trusted-setup file: hex
// compressed points, mirroring the Ethereum KZG ceremony transcript format
// consumed by load_ethereum_ceremony in the original implementation.
type ceremonyFile struct {
	G1Powers []string `json:"g1_powers"`
	G2Powers []string `json:"g2_powers"`
}

// LoadSetup reads a ceremony JSON file and builds a Setup usable for
// polynomials of degree up to maxDegree. It never mutates package-level
// state; callers that want a process-wide singleton should use Default.
func LoadSetup(path string, maxDegree int) (*Setup, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSetupLoadFailure, err)
	}

	var ceremony ceremonyFile
	if err := json.Unmarshal(raw, &ceremony); err != nil {
		return nil, fmt.Errorf("%w: parsing ceremony json: %v", types.ErrSetupLoadFailure, err)
	}

	need := maxDegree + 1
	if len(ceremony.G1Powers) < need {
		return nil, fmt.Errorf("%w: ceremony has %d g1 powers, need %d", types.ErrSetupLoadFailure, len(ceremony.G1Powers), need)
	}
	if len(ceremony.G2Powers) < need {
		return nil, fmt.Errorf("%w: ceremony has %d g2 powers, need %d", types.ErrSetupLoadFailure, len(ceremony.G2Powers), need)
	}

	crsG1 := make([]bls12381.G1Affine, need)
	for i := 0; i < need; i++ {
		b, err := decodeHexPoint(ceremony.G1Powers[i])
		if err != nil {
			return nil, fmt.Errorf("%w: g1 power %d: %v", types.ErrSetupLoadFailure, i, err)
		}
		if _, err := crsG1[i].SetBytes(b); err != nil {
			return nil, fmt.Errorf("%w: g1 power %d not a valid point: %v", types.ErrSetupLoadFailure, i, err)
		}
	}

	crsG2 := make([]bls12381.G2Affine, need)
	for i := 0; i < need; i++ {
		b, err := decodeHexPoint(ceremony.G2Powers[i])
		if err != nil {
			return nil, fmt.Errorf("%w: g2 power %d: %v", types.ErrSetupLoadFailure, i, err)
		}
		if _, err := crsG2[i].SetBytes(b); err != nil {
			return nil, fmt.Errorf("%w: g2 power %d not a valid point: %v", types.ErrSetupLoadFailure, i, err)
		}
	}

	_, _, g1Gen, g2Gen := bls12381.Generators()

	return &Setup{
		G1:     g1Gen,
		G2:     g2Gen,
		G2Tau:  crsG2[1],
		Degree: maxDegree,
		CRSG1:  crsG1,
		CRSG2:  crsG2,
	}, nil
}

func decodeHexPoint(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

var (
	defaultOnce  sync.Once
	defaultSetup *Setup
	defaultErr   error
)

// Default lazily loads the process-wide Setup from path, guarded by
// sync.Once so concurrent callers block on a single load. A failure here is
// meant to be fatal at process startup, per spec.md §6's exit-code contract.
func Default(path string) (*Setup, error) {
	defaultOnce.Do(func() {
		defaultSetup, defaultErr = LoadSetup(path, int(types.DefaultK)-1)
	})
	return defaultSetup, defaultErr
}
