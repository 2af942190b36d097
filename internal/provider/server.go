package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"nilavail/internal/chainclient"
	"nilavail/internal/kzg"
	"nilavail/internal/merkletree"
	"nilavail/internal/types"
)

// Server hosts the storage-provider HTTP surface of spec.md §4.5 plus the
// EXPANSION endpoints (status/delete/list) carried over from
// storage-provider/src/http.rs.
type Server struct {
	store     *FileStore
	client    chainclient.Client
	setup     *kzg.Setup
	self      common.Address
	batcher   *attestationBatcher
	responder *challengeResponder
	log       zerolog.Logger

	router *mux.Router
}

// Config bundles the dependencies a Server needs.
type Config struct {
	Store             *FileStore
	Client            chainclient.Client
	Setup             *kzg.Setup
	Self              common.Address
	AttestBatchSize   int
	AttestInterval    time.Duration
	ChallengePollEvery time.Duration
	Log               zerolog.Logger
}

// NewServer wires the router, attestation batcher and challenge responder.
func NewServer(cfg Config) *Server {
	s := &Server{
		store:     cfg.Store,
		client:    cfg.Client,
		setup:     cfg.Setup,
		self:      cfg.Self,
		batcher:   newAttestationBatcher(cfg.Client, cfg.Self, cfg.AttestBatchSize, cfg.AttestInterval, cfg.Log),
		responder: newChallengeResponder(cfg.Client, cfg.Store, cfg.Self, cfg.ChallengePollEvery, cfg.Log),
		log:       cfg.Log,
	}
	s.router = s.buildRouter()
	return s
}

// Run starts the attestation batcher and challenge responder background
// loops; both stop when ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	go s.batcher.run(ctx)
	go s.responder.run(ctx)
}

// Handler returns the http.Handler serving this provider's routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/chunk", s.handlePutChunk).Methods(http.MethodPut)
	r.HandleFunc("/chunk/{root}/{index}", s.handleGetChunk).Methods(http.MethodGet)
	r.HandleFunc("/chunks", s.handleBatchRetrieve).Methods(http.MethodPost)
	r.HandleFunc("/status/{root}/{index}", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/delete", s.handleDelete).Methods(http.MethodPost)
	r.HandleFunc("/list", s.handleList).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ok"})
}

type putChunkRequest struct {
	Root        string            `json:"root"`
	Index       uint16            `json:"index"`
	ChunkData   []byte            `json:"chunk_data"`
	MerkleProof types.MerkleProof `json:"merkle_proof"`
	KZGOpening  types.KZGProof    `json:"kzg_opening"`
}

type simpleResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handlePutChunk(w http.ResponseWriter, r *http.Request) {
	var req putChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidInput, err))
		return
	}
	root, err := types.RootFromHex(req.Root)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidInput, err))
		return
	}
	chunk := types.Chunk{Index: req.Index, Data: req.ChunkData}

	exists, err := s.client.CommitmentExists(r.Context(), root)
	if err != nil {
		writeError(w, err)
		return
	}
	if !exists {
		writeError(w, fmt.Errorf("%w: %s", types.ErrNotFound, root.String()))
		return
	}
	// The bool GetCommitmentInfo returns is isRecoverable, which stays false
	// until k chunks are attested, so it is not an existence check.
	info, _, err := s.client.GetCommitmentInfo(r.Context(), root)
	if err != nil {
		writeError(w, err)
		return
	}

	leaf := merkletree.ChunkLeafHash(chunk)
	if !merkletree.Verify(root, leaf, int(chunk.Index), req.MerkleProof) {
		writeError(w, fmt.Errorf("%w: merkle proof verification failed", types.ErrBadProof))
		return
	}

	if s.setup != nil {
		ok, err := s.setup.VerifyChunk(chunk, info.KZGCommitment, req.KZGOpening)
		if err != nil || !ok {
			writeError(w, fmt.Errorf("%w: kzg proof verification failed", types.ErrBadProof))
			return
		}
	}

	if err := s.store.Store(root, chunk, req.MerkleProof); err != nil {
		writeError(w, err)
		return
	}

	s.batcher.enqueue(root, chunk.Index)
	writeJSONStatus(w, http.StatusOK, simpleResponse{Success: true, Message: "chunk stored"})
}

func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	root, index, ok := parseRootIndex(w, vars["root"], vars["index"])
	if !ok {
		return
	}

	chunk, proof, found, err := s.store.Retrieve(root, index)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeError(w, fmt.Errorf("%w: chunk not stored", types.ErrNotFound))
		return
	}
	writeJSONStatus(w, http.StatusOK, struct {
		Chunk types.Chunk       `json:"chunk"`
		Proof types.MerkleProof `json:"merkle_proof"`
	}{Chunk: chunk, Proof: proof})
}

type batchRetrieveRequest struct {
	Root    string   `json:"root"`
	Indices []uint16 `json:"indices"`
}

type batchRetrieveResponse struct {
	Chunks []*types.Chunk       `json:"chunks"`
	Proofs []*types.MerkleProof `json:"proofs"`
}

func (s *Server) handleBatchRetrieve(w http.ResponseWriter, r *http.Request) {
	var req batchRetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidInput, err))
		return
	}
	root, err := types.RootFromHex(req.Root)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidInput, err))
		return
	}

	resp := batchRetrieveResponse{
		Chunks: make([]*types.Chunk, len(req.Indices)),
		Proofs: make([]*types.MerkleProof, len(req.Indices)),
	}
	found := 0
	for i, idx := range req.Indices {
		chunk, proof, ok, err := s.store.Retrieve(root, idx)
		if err != nil || !ok {
			continue
		}
		resp.Chunks[i] = &chunk
		resp.Proofs[i] = &proof
		found++
	}
	if found == 0 && len(req.Indices) > 0 {
		writeError(w, fmt.Errorf("%w: none of the requested chunks are stored", types.ErrNotFound))
		return
	}
	writeJSONStatus(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	root, index, ok := parseRootIndex(w, vars["root"], vars["index"])
	if !ok {
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]bool{"exists": s.store.Exists(root, index)})
}

type batchDeleteRequest struct {
	Root    string   `json:"root"`
	Indices []uint16 `json:"indices"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidInput, err))
		return
	}
	root, err := types.RootFromHex(req.Root)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidInput, err))
		return
	}
	for _, idx := range req.Indices {
		s.store.Delete(root, idx)
	}
	writeJSONStatus(w, http.StatusOK, simpleResponse{Success: true})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	rootHex := r.URL.Query().Get("root")
	root, err := types.RootFromHex(rootHex)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidInput, err))
		return
	}
	indices, err := s.store.ListChunks(root)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string][]uint16{"indices": indices})
}

func parseRootIndex(w http.ResponseWriter, rootHex, indexStr string) (types.Root, uint16, bool) {
	root, err := types.RootFromHex(rootHex)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidInput, err))
		return types.Root{}, 0, false
	}
	idx, err := strconv.ParseUint(indexStr, 10, 16)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrInvalidInput, err))
		return types.Root{}, 0, false
	}
	return root, uint16(idx), true
}
