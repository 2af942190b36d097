// Command dispenser runs the ingest/retrieval HTTP surface of spec.md §4.4.
package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"nilavail/internal/chainclient"
	"nilavail/internal/config"
	"nilavail/internal/dispenser"
	"nilavail/internal/kzg"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.LoadDispenser()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setup, err := kzg.Default(cfg.TrustedSetup)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load trusted setup")
	}

	auth, err := newSignerFromHex(context.Background(), cfg.ChainRPCURL, cfg.SignerKeyHex)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load signer")
	}

	client, err := chainclient.NewEthClient(context.Background(), cfg.ChainRPCURL, cfg.ContractAddr, auth)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to chain")
	}

	d := dispenser.New(client, setup, cfg.Params, cfg.FetchTimeout,
		dispenser.WithConcurrency(cfg.MaxConcurrency),
		dispenser.WithLogger(log),
	)
	srv := dispenser.NewServer(d, log)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SubmitTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("dispenser listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("dispenser server exited")
	}
}

// newSignerFromHex builds transaction-signing opts from a hex private key,
// mirroring nil_relayer's crypto.HexToECDSA + bind.NewKeyedTransactorWithChainID
// pairing.
func newSignerFromHex(ctx context.Context, rpcURL, keyHex string) (*bind.TransactOpts, error) {
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid signer key: %w", err)
	}
	return dialAndKeyTransactor(ctx, rpcURL, key)
}

func dialAndKeyTransactor(ctx context.Context, rpcURL string, key *ecdsa.PrivateKey) (*bind.TransactOpts, error) {
	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	defer rpc.Close()

	chainID, err := rpc.NetworkID(ctx)
	if err != nil {
		return nil, err
	}
	return bind.NewKeyedTransactorWithChainID(key, chainID)
}
