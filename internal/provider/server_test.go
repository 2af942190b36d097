package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"nilavail/internal/chainclient"
	"nilavail/internal/merkletree"
	"nilavail/internal/types"
)

func newTestServer(t *testing.T) (*Server, *chainclient.MemClient, types.Root, []types.Chunk, *merkletree.Tree) {
	t.Helper()

	dir, err := os.MkdirTemp("", "nilavail-provider-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	client := chainclient.NewMemClient(big.NewInt(1e17))
	self := common.HexToAddress("0x1111000000000000000000000000000000aaaa")
	require.NoError(t, client.RegisterProviderAs(self, "test-provider", "http://self", big.NewInt(1e18)))

	chunks := []types.Chunk{
		{Index: 0, Data: []byte("chunk zero payload")},
		{Index: 1, Data: []byte("chunk one payload!")},
	}
	tree, err := merkletree.BuildFromChunks(chunks)
	require.NoError(t, err)
	root := tree.Root()

	require.NoError(t, client.SubmitCommitment(context.Background(), root, 1024, 2, 2, types.KZGCommitment{}))

	srv := NewServer(Config{
		Store:              store,
		Client:             client,
		Setup:              nil,
		Self:               self,
		AttestBatchSize:    50,
		AttestInterval:     50 * time.Millisecond,
		ChallengePollEvery: time.Hour,
		Log:                zerolog.Nop(),
	})
	return srv, client, root, chunks, tree
}

func TestPutChunkThenGetRoundtrips(t *testing.T) {
	srv, _, root, chunks, tree := newTestServer(t)
	handler := srv.Handler()

	proof, err := tree.Prove(0)
	require.NoError(t, err)

	body, _ := json.Marshal(putChunkRequest{
		Root:        root.Hex(),
		Index:       0,
		ChunkData:   chunks[0].Data,
		MerkleProof: proof,
	})

	req := httptest.NewRequest(http.MethodPut, "/chunk", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/chunk/"+root.Hex()+"/0", nil)
	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	var got struct {
		Chunk types.Chunk `json:"chunk"`
	}
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &got))
	require.Equal(t, chunks[0].Data, got.Chunk.Data)
}

func TestPutChunkRejectsBadMerkleProof(t *testing.T) {
	srv, _, root, chunks, tree := newTestServer(t)
	handler := srv.Handler()

	proof, err := tree.Prove(0)
	require.NoError(t, err)
	if len(proof.Path) > 0 {
		proof.Path[0][0] ^= 0xFF
	}

	body, _ := json.Marshal(putChunkRequest{
		Root:        root.Hex(),
		Index:       0,
		ChunkData:   chunks[0].Data,
		MerkleProof: proof,
	})

	req := httptest.NewRequest(http.MethodPut, "/chunk", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/chunk/"+root.Hex()+"/0", nil)
	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusNotFound, getRec.Code)
}

func TestPutChunkIsIdempotent(t *testing.T) {
	srv, _, root, chunks, tree := newTestServer(t)
	handler := srv.Handler()
	proof, err := tree.Prove(0)
	require.NoError(t, err)

	body, _ := json.Marshal(putChunkRequest{Root: root.Hex(), Index: 0, ChunkData: chunks[0].Data, MerkleProof: proof})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPut, "/chunk", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestBatchRetrieveAndStatusAndList(t *testing.T) {
	srv, _, root, chunks, tree := newTestServer(t)
	handler := srv.Handler()

	for _, c := range chunks {
		proof, err := tree.Prove(int(c.Index))
		require.NoError(t, err)
		body, _ := json.Marshal(putChunkRequest{Root: root.Hex(), Index: c.Index, ChunkData: c.Data, MerkleProof: proof})
		req := httptest.NewRequest(http.MethodPut, "/chunk", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	batchBody, _ := json.Marshal(batchRetrieveRequest{Root: root.Hex(), Indices: []uint16{0, 1}})
	batchReq := httptest.NewRequest(http.MethodPost, "/chunks", bytes.NewReader(batchBody))
	batchRec := httptest.NewRecorder()
	handler.ServeHTTP(batchRec, batchReq)
	require.Equal(t, http.StatusOK, batchRec.Code)

	var batchResp batchRetrieveResponse
	require.NoError(t, json.Unmarshal(batchRec.Body.Bytes(), &batchResp))
	require.NotNil(t, batchResp.Chunks[0])
	require.NotNil(t, batchResp.Chunks[1])

	statusReq := httptest.NewRequest(http.MethodGet, "/status/"+root.Hex()+"/0", nil)
	statusRec := httptest.NewRecorder()
	handler.ServeHTTP(statusRec, statusReq)
	require.Equal(t, http.StatusOK, statusRec.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/list?root="+root.Hex(), nil)
	listRec := httptest.NewRecorder()
	handler.ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)
	var listResp map[string][]uint16
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listResp))
	require.ElementsMatch(t, []uint16{0, 1}, listResp["indices"])
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
