package provider

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"nilavail/internal/chainclient"
)

// challengeResponder polls getProviderActiveChallenges on an interval and
// answers each one from local storage, mirroring
// storage-provider/src/responder.rs::respond_to_active_challenges. It never
// fabricates a missing chunk: if storage doesn't have it, the challenge is
// left to expire and slash per spec.md §4.5.
type challengeResponder struct {
	client   chainclient.Client
	store    *FileStore
	self     common.Address
	interval time.Duration
	log      zerolog.Logger
}

func newChallengeResponder(client chainclient.Client, store *FileStore, self common.Address, interval time.Duration, log zerolog.Logger) *challengeResponder {
	return &challengeResponder{client: client, store: store, self: self, interval: interval, log: log}
}

func (r *challengeResponder) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *challengeResponder) tick(ctx context.Context) {
	challenges, err := r.client.GetProviderActiveChallenges(ctx, r.self)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to list active challenges")
		return
	}
	r.log.Info().Int("count", len(challenges)).Msg("responding to active challenges")

	for _, challenge := range challenges {
		chunk, proof, found, err := r.store.Retrieve(challenge.Root, challenge.Index)
		if err != nil {
			r.log.Error().Err(err).Str("root", challenge.Root.String()).Uint16("index", challenge.Index).Msg("failed to load challenged chunk")
			continue
		}
		if !found {
			r.log.Error().Str("root", challenge.Root.String()).Uint16("index", challenge.Index).Msg("challenged chunk missing from storage, will not fabricate a response")
			continue
		}

		if err := r.client.RespondToChunkChallenge(ctx, challenge.Root, challenge.Index, chunk.Data, proof); err != nil {
			r.log.Error().Err(err).Str("root", challenge.Root.String()).Uint16("index", challenge.Index).Msg("failed to respond to challenge")
			continue
		}
		r.log.Info().Str("root", challenge.Root.String()).Uint16("index", challenge.Index).Msg("responded to challenge")
	}
}
