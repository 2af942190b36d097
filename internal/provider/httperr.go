package provider

import (
	"encoding/json"
	"errors"
	"net/http"

	"nilavail/internal/types"
)

type jsonErrorResponse struct {
	Error string `json:"error"`
}

// writeError maps a sentinel error from internal/types onto the status codes
// of spec.md §7, in the teacher's single-shared-writer style
// (nil_s3/json_error.go's writeJSONError).
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrBadProof):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrDuplicateCommitment):
		status = http.StatusConflict
	case errors.Is(err, types.ErrNotRecoverable):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, types.ErrStorageFull), errors.Is(err, types.ErrStorageCorrupt):
		status = http.StatusInternalServerError
	case errors.Is(err, types.ErrChainRPCFatal):
		status = http.StatusBadGateway
	case errors.Is(err, types.ErrChainRPCTransient):
		status = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, status, jsonErrorResponse{Error: err.Error()})
}

func writeJSONStatus(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
