// Command provider runs the storage-provider daemon of spec.md §4.5: it
// registers on the Contract, then serves the chunk-storage HTTP surface
// while attesting and answering challenges in the background.
package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"nilavail/internal/chainclient"
	"nilavail/internal/config"
	"nilavail/internal/kzg"
	"nilavail/internal/provider"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.LoadProvider()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setup, err := kzg.Default(cfg.TrustedSetup)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load trusted setup")
	}

	key, err := crypto.HexToECDSA(cfg.SignerKeyHex)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid signer key")
	}
	self := crypto.PubkeyToAddress(key.PublicKey)

	rpc, err := ethclient.DialContext(context.Background(), cfg.ChainRPCURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to dial chain RPC")
	}
	chainID, err := rpc.NetworkID(context.Background())
	rpc.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to fetch chain id")
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build signer")
	}

	client, err := chainclient.NewEthClient(context.Background(), cfg.ChainRPCURL, cfg.ContractAddr, auth)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to chain")
	}

	stakeWei, ok := new(big.Int).SetString(cfg.StakeWei, 10)
	if !ok {
		log.Fatal().Str("value", cfg.StakeWei).Msg("invalid stake amount")
	}
	if err := client.RegisterProvider(context.Background(), cfg.Name, cfg.PublicURL, stakeWei); err != nil {
		log.Warn().Err(err).Msg("registerProvider failed, assuming already registered")
	}

	store, err := provider.NewFileStore(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open chunk store")
	}

	srv := provider.NewServer(provider.Config{
		Store:              store,
		Client:             client,
		Setup:              setup,
		Self:               self,
		AttestBatchSize:    cfg.AttestBatchSize,
		AttestInterval:     cfg.AttestInterval,
		ChallengePollEvery: cfg.ChallengePollEvery,
		Log:                log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Run(ctx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", addr).Str("self", self.Hex()).Msg("provider listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("provider server exited")
	}
}
