// Package config loads process configuration from the environment, in the
// envDefault/envInt idiom the rest of this codebase's ancestor tooling uses
// (see nil_gateway/main.go), rather than a flags or file-based scheme.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"nilavail/internal/erasure"
)

// Dispenser holds everything the dispenser binary needs to run.
type Dispenser struct {
	Port           int
	ChainRPCURL    string
	ContractAddr   common.Address
	SignerKeyHex   string
	TrustedSetup   string
	Params         erasure.Params
	FetchTimeout   time.Duration
	SubmitTimeout  time.Duration
	MaxConcurrency int
}

// Provider holds everything the storage-provider binary needs to run.
type Provider struct {
	Port               int
	ChainRPCURL        string
	ContractAddr       common.Address
	SignerKeyHex       string
	TrustedSetup       string
	DataDir            string
	AttestBatchSize    int
	AttestInterval     time.Duration
	ChallengePollEvery time.Duration
	Name               string
	PublicURL          string
	StakeWei           string
}

// Challenger holds everything the challenger binary needs to run.
type Challenger struct {
	ChainRPCURL   string
	ContractAddr  common.Address
	SignerKeyHex  string
	SampleEvery   time.Duration
	SweepEvery    time.Duration
	ChunksPerTick int
}

// LoadDispenser reads a Dispenser config from the environment.
func LoadDispenser() (Dispenser, error) {
	addr, err := envAddress("NILAVAIL_CONTRACT_ADDRESS")
	if err != nil {
		return Dispenser{}, err
	}
	return Dispenser{
		Port:         envInt("NILAVAIL_DISPENSER_PORT", 8080),
		ChainRPCURL:  envDefault("NILAVAIL_CHAIN_RPC_URL", "http://127.0.0.1:8545"),
		ContractAddr: addr,
		SignerKeyHex: os.Getenv("NILAVAIL_SIGNER_KEY"),
		TrustedSetup: envDefault("NILAVAIL_TRUSTED_SETUP", "trusted_setup.json"),
		Params: erasure.Params{
			N: uint16(envInt("NILAVAIL_N", int(erasureDefaultN))),
			K: uint16(envInt("NILAVAIL_K", int(erasureDefaultK))),
		},
		FetchTimeout:   envDuration("NILAVAIL_FETCH_TIMEOUT", 30*time.Second),
		SubmitTimeout:  envDuration("NILAVAIL_SUBMIT_TIMEOUT", 10*time.Second),
		MaxConcurrency: envInt("NILAVAIL_MAX_CONCURRENCY", 8),
	}, nil
}

// LoadProvider reads a Provider config from the environment.
func LoadProvider() (Provider, error) {
	addr, err := envAddress("NILAVAIL_CONTRACT_ADDRESS")
	if err != nil {
		return Provider{}, err
	}
	return Provider{
		Port:               envInt("NILAVAIL_PROVIDER_PORT", 9090),
		ChainRPCURL:        envDefault("NILAVAIL_CHAIN_RPC_URL", "http://127.0.0.1:8545"),
		ContractAddr:       addr,
		SignerKeyHex:       os.Getenv("NILAVAIL_SIGNER_KEY"),
		TrustedSetup:       envDefault("NILAVAIL_TRUSTED_SETUP", "trusted_setup.json"),
		DataDir:            envDefault("NILAVAIL_DATA_DIR", "./data"),
		AttestBatchSize:    envInt("NILAVAIL_ATTEST_BATCH_SIZE", 50),
		AttestInterval:     envDuration("NILAVAIL_ATTEST_INTERVAL", 5*time.Second),
		ChallengePollEvery: envDuration("NILAVAIL_CHALLENGE_POLL_INTERVAL", 10*time.Second),
		Name:               envDefault("NILAVAIL_PROVIDER_NAME", "unnamed-provider"),
		PublicURL:          os.Getenv("NILAVAIL_PROVIDER_URL"),
		StakeWei:           envDefault("NILAVAIL_STAKE_WEI", "100000000000000000"),
	}, nil
}

// LoadChallenger reads a Challenger config from the environment.
func LoadChallenger() (Challenger, error) {
	addr, err := envAddress("NILAVAIL_CONTRACT_ADDRESS")
	if err != nil {
		return Challenger{}, err
	}
	return Challenger{
		ChainRPCURL:   envDefault("NILAVAIL_CHAIN_RPC_URL", "http://127.0.0.1:8545"),
		ContractAddr:  addr,
		SignerKeyHex:  os.Getenv("NILAVAIL_SIGNER_KEY"),
		SampleEvery:   envDuration("NILAVAIL_SAMPLE_INTERVAL", 30*time.Second),
		SweepEvery:    envDuration("NILAVAIL_SWEEP_INTERVAL", 60*time.Second),
		ChunksPerTick: envInt("NILAVAIL_CHUNKS_PER_TICK", 5),
	}, nil
}

const (
	erasureDefaultN = 24
	erasureDefaultK = 16
)

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envAddress(key string) (common.Address, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return common.Address{}, fmt.Errorf("%s must be set", key)
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%s is not a valid hex address: %q", key, v)
	}
	return common.HexToAddress(v), nil
}
