package provider

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"nilavail/internal/chainclient"
	"nilavail/internal/types"
)

// attestationBatcher accepts successfully-stored (root, index) pairs on a
// buffered channel and periodically flushes them to submitChunkAttestations
// in batches capped at the Contract's per-call limit, deduping against a
// local "already attested" set per spec.md §4.5's batching note.
type attestationBatcher struct {
	client    chainclient.Client
	self      common.Address
	batchSize int
	interval  time.Duration
	log       zerolog.Logger

	pending chan pendingAttestation

	mu       sync.Mutex
	attested map[types.Root]map[uint16]bool
}

type pendingAttestation struct {
	root  types.Root
	index uint16
}

// chunkOwnerRecorder is implemented by chainclient.MemClient. EthClient needs
// no equivalent: the real Contract derives ownership from the transaction's
// signer when submitChunkAttestations lands on-chain.
type chunkOwnerRecorder interface {
	AssignChunkOwner(root types.Root, index uint16, provider common.Address)
}

func newAttestationBatcher(client chainclient.Client, self common.Address, batchSize int, interval time.Duration, log zerolog.Logger) *attestationBatcher {
	return &attestationBatcher{
		client:    client,
		self:      self,
		batchSize: batchSize,
		interval:  interval,
		log:       log,
		pending:   make(chan pendingAttestation, 4096),
		attested:  make(map[types.Root]map[uint16]bool),
	}
}

// enqueue schedules (root, index) for attestation. Non-blocking: if the
// buffer is full the pair is dropped and a warning is logged.
func (b *attestationBatcher) enqueue(root types.Root, index uint16) {
	select {
	case b.pending <- pendingAttestation{root: root, index: index}:
	default:
		b.log.Warn().Str("root", root.String()).Uint16("index", index).Msg("attestation queue full, dropping")
	}
}

func (b *attestationBatcher) alreadyAttested(root types.Root, index uint16) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attested[root][index]
}

func (b *attestationBatcher) markAttested(root types.Root, index uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attested[root] == nil {
		b.attested[root] = make(map[uint16]bool)
	}
	b.attested[root][index] = true
}

// run drains the queue on a ticker until ctx is cancelled, grouping pending
// indices by root and flushing each group in chunks of at most batchSize.
func (b *attestationBatcher) run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	byRoot := make(map[types.Root][]uint16)
	drain := func() {
		for root, indices := range byRoot {
			for start := 0; start < len(indices); start += b.batchSize {
				end := start + b.batchSize
				if end > len(indices) {
					end = len(indices)
				}
				batch := indices[start:end]
				if err := b.client.SubmitChunkAttestations(ctx, root, batch); err != nil {
					b.log.Warn().Err(err).Str("root", root.String()).Msg("attestation batch failed")
					continue
				}
				for _, idx := range batch {
					b.markAttested(root, idx)
					// On the real Contract, attesting a chunk over a signed
					// transaction is itself the proof of ownership. MemClient
					// has no msg.sender to key off, so it needs telling.
					if recorder, ok := b.client.(chunkOwnerRecorder); ok {
						recorder.AssignChunkOwner(root, idx, b.self)
					}
				}
			}
		}
		for root := range byRoot {
			delete(byRoot, root)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case item := <-b.pending:
			if b.alreadyAttested(item.root, item.index) {
				continue
			}
			byRoot[item.root] = append(byRoot[item.root], item.index)
		case <-ticker.C:
			drain()
		}
	}
}
