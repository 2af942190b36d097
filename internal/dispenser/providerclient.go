package dispenser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nilavail/internal/types"
)

// providerClient talks the wire protocol internal/provider.Server exposes:
// PUT /chunk to distribute a single chunk, POST /chunks to batch-retrieve.
type providerClient struct {
	httpClient *http.Client
}

func newProviderClient(timeout time.Duration) *providerClient {
	return &providerClient{httpClient: &http.Client{Timeout: timeout}}
}

type putChunkRequest struct {
	Root        string            `json:"root"`
	Index       uint16            `json:"index"`
	ChunkData   []byte            `json:"chunk_data"`
	MerkleProof types.MerkleProof `json:"merkle_proof"`
	KZGOpening  types.KZGProof    `json:"kzg_opening"`
}

// putChunk delivers one chunk to a provider's PUT /chunk endpoint.
func (c *providerClient) putChunk(ctx context.Context, baseURL string, root types.Root, chunk types.Chunk, proof types.MerkleProof, opening types.KZGProof) error {
	body, err := json.Marshal(putChunkRequest{
		Root:        root.Hex(),
		Index:       chunk.Index,
		ChunkData:   chunk.Data,
		MerkleProof: proof,
		KZGOpening:  opening,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, baseURL+"/chunk", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrTimeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("provider rejected chunk %d: %s", chunk.Index, string(msg))
	}
	return nil
}

type batchRetrieveRequest struct {
	Root    string   `json:"root"`
	Indices []uint16 `json:"indices"`
}

type batchRetrieveResponse struct {
	Chunks []*types.Chunk       `json:"chunks"`
	Proofs []*types.MerkleProof `json:"proofs"`
}

// batchRetrieve fetches a set of chunks from one provider's POST /chunks
// endpoint. The response may contain nils for chunks that provider doesn't
// actually hold.
func (c *providerClient) batchRetrieve(ctx context.Context, baseURL string, root types.Root, indices []uint16) ([]*types.Chunk, []*types.MerkleProof, error) {
	body, err := json.Marshal(batchRetrieveRequest{Root: root.Hex(), Indices: indices})
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chunks", bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", types.ErrTimeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, nil, fmt.Errorf("provider batch-retrieve failed: %s", string(msg))
	}

	var out batchRetrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, err
	}
	return out.Chunks, out.Proofs, nil
}
