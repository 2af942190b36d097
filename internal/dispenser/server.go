package dispenser

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"nilavail/internal/types"
)

// Server exposes the Dispenser's ingest and retrieval pipelines over HTTP.
type Server struct {
	dispenser *Dispenser
	log       zerolog.Logger
	router    *mux.Router
}

// NewServer wires a Dispenser behind an HTTP router.
func NewServer(d *Dispenser, log zerolog.Logger) *Server {
	s := &Server{dispenser: d, log: log}
	s.router = s.buildRouter()
	return s
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/submit", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/retrieve", s.handleRetrieve).Methods(http.MethodPost)
	r.HandleFunc("/commitment/{root}", s.handleCommitment).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitRequest struct {
	Data []byte `json:"data"`
}

type submitResponse struct {
	Commitment string `json:"commitment"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.ErrInvalidInput)
		return
	}

	root, err := s.dispenser.SubmitData(r.Context(), req.Data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, submitResponse{Commitment: root.Hex()})
}

type retrieveRequest struct {
	Commitment string `json:"commitment"`
}

type retrieveResponse struct {
	Data []byte `json:"data"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.ErrInvalidInput)
		return
	}

	root, err := types.RootFromHex(req.Commitment)
	if err != nil {
		writeError(w, types.ErrInvalidInput)
		return
	}

	data, err := s.dispenser.RetrieveData(r.Context(), root)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, retrieveResponse{Data: data})
}

type commitmentResponse struct {
	Record      types.CommitmentRecord `json:"record"`
	Recoverable bool                   `json:"recoverable"`
}

func (s *Server) handleCommitment(w http.ResponseWriter, r *http.Request) {
	rootHex := mux.Vars(r)["root"]
	root, err := types.RootFromHex(rootHex)
	if err != nil {
		writeError(w, types.ErrInvalidInput)
		return
	}

	ctx := r.Context()
	exists, err := s.dispenser.client.CommitmentExists(ctx, root)
	if err != nil {
		writeError(w, err)
		return
	}
	if !exists {
		writeError(w, types.ErrNotFound)
		return
	}
	record, _, err := s.dispenser.client.GetCommitmentInfo(ctx, root)
	if err != nil {
		writeError(w, err)
		return
	}
	recoverable, err := s.dispenser.client.IsCommitmentRecoverable(ctx, root)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, commitmentResponse{Record: record, Recoverable: recoverable})
}
