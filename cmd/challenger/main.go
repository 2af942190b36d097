// Command challenger runs the sampling and slashing control loop of
// spec.md §4.6.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"nilavail/internal/chainclient"
	"nilavail/internal/challenger"
	"nilavail/internal/config"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.LoadChallenger()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	key, err := crypto.HexToECDSA(cfg.SignerKeyHex)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid signer key")
	}

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

	c := challenger.New(client, cfg.SampleEvery, cfg.SweepEvery, log).WithChunksPerTick(cfg.ChunksPerTick)

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("shutting down")
		cancel()
	}()

	log.Info().Msg("challenger running")
	c.Run(ctx)
}
