package dispenser

import (
	"context"
	"math/big"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"nilavail/internal/chainclient"
	"nilavail/internal/kzg"
	"nilavail/internal/provider"
)

// newProviderFleet spins up n storage-provider HTTP servers, each backed by
// its own temp-dir FileStore, registered on the shared chain client.
func newProviderFleet(t *testing.T, client *chainclient.MemClient, setup *kzg.Setup, n int, stakeWei int64) []*httptest.Server {
	t.Helper()
	servers := make([]*httptest.Server, n)
	for i := 0; i < n; i++ {
		dir, err := os.MkdirTemp("", "nilavail-dispenser-fleet")
		require.NoError(t, err)
		t.Cleanup(func() { os.RemoveAll(dir) })

		store, err := provider.NewFileStore(dir)
		require.NoError(t, err)

		addr := testDispenserAddr(byte(i + 1))

		srv := provider.NewServer(provider.Config{
			Store:              store,
			Client:             client,
			Setup:              setup,
			Self:               addr,
			AttestBatchSize:    50,
			AttestInterval:     20 * time.Millisecond,
			ChallengePollEvery: time.Hour,
			Log:                zerolog.Nop(),
		})
		ts := httptest.NewServer(srv.Handler())
		t.Cleanup(ts.Close)

		require.NoError(t, client.RegisterProviderAs(addr, "fleet-provider", ts.URL, big.NewInt(stakeWei)))
		servers[i] = ts
	}
	return servers
}

func TestIngestThenRetrieveRoundTrips(t *testing.T) {
	params := testDispenserParams()
	setup := testSetup(int(params.K) - 1)

	client := chainclient.NewMemClient(big.NewInt(1))
	newProviderFleet(t, client, setup, 6, 1000)

	d := New(client, setup, params, testHTTPTimeout, WithLogger(zerolog.Nop()))

	blob := make([]byte, 400)
	for i := range blob {
		blob[i] = byte(i * 7)
	}

	root, err := d.SubmitData(context.Background(), blob)
	require.NoError(t, err)

	// Attestations flush asynchronously off each provider's batch ticker.
	require.Eventually(t, func() bool {
		recoverable, err := client.IsCommitmentRecoverable(context.Background(), root)
		return err == nil && recoverable
	}, 2*time.Second, 10*time.Millisecond)

	got, err := d.RetrieveData(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, blob, got)
}

func TestIngestRejectsUndersizedBlob(t *testing.T) {
	params := testDispenserParams()
	setup := testSetup(int(params.K) - 1)
	client := chainclient.NewMemClient(big.NewInt(1))
	d := New(client, setup, params, testHTTPTimeout)

	_, err := d.SubmitData(context.Background(), []byte("short"))
	require.Error(t, err)
}
