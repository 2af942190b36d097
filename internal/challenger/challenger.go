// Package challenger implements the sampling and slashing control loop of
// spec.md §4.6: periodically challenge a random attested chunk, biased
// toward providers that have been challenged least, and separately sweep for
// challenges that expired unanswered.
package challenger

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"nilavail/internal/chainclient"
	"nilavail/internal/types"
)

// Challenger runs the sampling and slashing loops against a Client.
type Challenger struct {
	client         chainclient.Client
	sampleInterval time.Duration
	sweepInterval  time.Duration
	perTick        int
	log            zerolog.Logger
}

// New constructs a Challenger with the default of one challenge issued per
// sample tick, per spec.md §4.6's on-chain-spam throttle.
func New(client chainclient.Client, sampleInterval, sweepInterval time.Duration, log zerolog.Logger) *Challenger {
	return &Challenger{client: client, sampleInterval: sampleInterval, sweepInterval: sweepInterval, perTick: 1, log: log}
}

// WithChunksPerTick overrides how many challenges are issued per sample
// tick; still throttled to avoid on-chain spam, just at a configurable rate.
func (c *Challenger) WithChunksPerTick(n int) *Challenger {
	if n > 0 {
		c.perTick = n
	}
	return c
}

// Run starts the sample and sweep loops and blocks until ctx is cancelled.
func (c *Challenger) Run(ctx context.Context) {
	go c.sampleLoop(ctx)
	c.sweepLoop(ctx)
}

func (c *Challenger) sampleLoop(ctx context.Context) {
	ticker := time.NewTicker(c.sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i := 0; i < c.perTick; i++ {
				if err := c.ChallengeOneRandomChunk(ctx); err != nil {
					c.log.Warn().Err(err).Msg("sample round failed")
				}
			}
		}
	}
}

func (c *Challenger) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.SlashExpired(ctx); err != nil {
				c.log.Warn().Err(err).Msg("slash sweep failed")
			}
		}
	}
}

// ChallengeOneRandomChunk picks a recoverable commitment, then a chunk within
// it biased toward providers with fewer challenges issued, and challenges it.
// A revert because the (root, index, provider) triple already has an active
// challenge is expected under contention and is swallowed.
func (c *Challenger) ChallengeOneRandomChunk(ctx context.Context) error {
	roots, err := c.client.GetCommitmentList(ctx)
	if err != nil {
		return err
	}
	root, ok := pickRecoverableRoot(ctx, c.client, roots)
	if !ok {
		return nil // nothing recoverable to challenge yet
	}

	chunkMap, err := c.client.GetCommitmentChunkMap(ctx, root)
	if err != nil {
		return err
	}
	candidates := flattenChunkMap(chunkMap)
	if len(candidates) == 0 {
		return nil
	}

	pick, err := weightedPickUnderchallenged(candidates)
	if err != nil {
		return err
	}

	available, err := c.client.IsChunkAvailable(ctx, root, pick.index)
	if err != nil {
		return err
	}
	if !available {
		return nil
	}

	if _, err := c.client.IssueChunkChallenge(ctx, root, pick.index, pick.provider); err != nil {
		c.log.Debug().Err(err).Str("root", root.String()).Uint16("index", pick.index).Msg("issue challenge failed, likely already active")
		return nil
	}
	c.log.Info().Str("root", root.String()).Uint16("index", pick.index).Str("provider", pick.provider.Hex()).Msg("issued chunk challenge")
	return nil
}

// SlashExpired sweeps every known provider's expired challenges and claims
// the slash bounty on each, per spec.md §4.6 step 4. A revert because
// another challenger already claimed the slash is swallowed.
func (c *Challenger) SlashExpired(ctx context.Context) error {
	providers, err := c.client.GetProviders(ctx, false)
	if err != nil {
		return err
	}
	for _, p := range providers {
		expired, err := c.client.GetProviderExpiredChallenges(ctx, p.Address)
		if err != nil {
			c.log.Warn().Err(err).Str("provider", p.Address.Hex()).Msg("failed to list expired challenges")
			continue
		}
		for _, ch := range expired {
			if err := c.client.SlashExpiredChallenge(ctx, ch.Root, ch.Index, ch.Provider); err != nil {
				c.log.Debug().Err(err).Str("provider", ch.Provider.Hex()).Msg("slash failed, likely already claimed")
				continue
			}
			c.log.Info().Str("root", ch.Root.String()).Uint16("index", ch.Index).Str("provider", ch.Provider.Hex()).Msg("slashed expired challenge")
		}
	}
	return nil
}

func pickRecoverableRoot(ctx context.Context, client chainclient.Client, roots []types.Root) (types.Root, bool) {
	if len(roots) == 0 {
		return types.Root{}, false
	}
	// Scan from a random start so the choice isn't biased toward the front of
	// the list when many commitments aren't yet recoverable.
	start, err := cryptoIntn(len(roots))
	if err != nil {
		return types.Root{}, false
	}
	for i := 0; i < len(roots); i++ {
		root := roots[(start+i)%len(roots)]
		recoverable, err := client.IsCommitmentRecoverable(ctx, root)
		if err == nil && recoverable {
			return root, true
		}
	}
	return types.Root{}, false
}

type chunkCandidate struct {
	provider         common.Address
	index            uint16
	challengesIssued uint32
}

func flattenChunkMap(chunkMap []types.ProviderChunkMap) []chunkCandidate {
	var out []chunkCandidate
	for _, pcm := range chunkMap {
		for _, idx := range pcm.ChunkIDs {
			out = append(out, chunkCandidate{
				provider:         pcm.Provider.Address,
				index:            idx,
				challengesIssued: pcm.Provider.ChallengesIssued,
			})
		}
	}
	return out
}

// weightedPickUnderchallenged draws a candidate with probability inversely
// proportional to how many challenges its provider has already received, so
// challenge attention spreads across the provider set instead of
// concentrating on whichever provider happens first in enumeration order.
func weightedPickUnderchallenged(candidates []chunkCandidate) (chunkCandidate, error) {
	const weightScale = 1 << 20

	weights := make([]int64, len(candidates))
	var total int64
	for i, cand := range candidates {
		w := int64(weightScale / (1 + int64(cand.challengesIssued)))
		if w < 1 {
			w = 1
		}
		weights[i] = w
		total += w
	}

	target, err := rand.Int(rand.Reader, big.NewInt(total))
	if err != nil {
		return chunkCandidate{}, err
	}
	t := target.Int64()
	for i, w := range weights {
		if t < w {
			return candidates[i], nil
		}
		t -= w
	}
	return candidates[len(candidates)-1], nil
}

func cryptoIntn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: n must be positive", types.ErrInvalidInput)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
