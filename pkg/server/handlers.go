package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Sugar().Errorw("Failed to encode response", "error", err)
	}
}

// readBody reads the request body, answering 413 or 400 itself on failure
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, "Payload Too Large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		http.Error(w, fmt.Sprintf("Failed to read request: %v", err), http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// handleSubmissions handles the /submissions endpoint
func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmit(w, r)
	case http.MethodGet:
		s.handleListSubmissions(w, r)
	case http.MethodDelete:
		if !s.requireAdmin(w, r) {
			return
		}
		s.handleClearSubmissions(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	resp := s.service.HandleApiSubmission(r.Context(), body)
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadRequest
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	var (
		records []*types.SubmissionRecord
		err     error
	)
	if signer := r.URL.Query().Get("signer"); signer != "" {
		records, err = s.service.GetSubmissionsFrom(signer)
	} else {
		records, err = s.service.GetSubmissions()
	}
	if err != nil {
		s.logger.Sugar().Errorw("Failed to list submissions", "error", err)
		http.Error(w, "Failed to list submissions", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*types.SubmissionRecord{}
	}

	s.writeJSON(w, http.StatusOK, &types.SubmissionListResponse{
		Submissions: records,
		Count:       len(records),
	})
}

func (s *Server) handleClearSubmissions(w http.ResponseWriter, _ *http.Request) {
	if err := s.service.ClearSubmissions(); err != nil {
		s.logger.Sugar().Errorw("Failed to clear submissions", "error", err)
		http.Error(w, "Failed to clear submissions", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTypedDataVerify handles the /typed-data/verify endpoint
func (s *Server) handleTypedDataVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var req types.TypedDataSubmission
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	result := s.service.VerifyTypedDataSubmission(&req)
	status := http.StatusOK
	if !result.IsValid {
		status = http.StatusBadRequest
	}
	s.writeJSON(w, status, result)
}

// handleTrusted handles the /trusted endpoint
func (s *Server) handleTrusted(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		if !s.requireAdmin(w, r) {
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		var req types.TrustedAddressRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
			return
		}
		if err := s.service.AddTrustedAddress(req.Address); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Sugar().Infow("Trusted address added", "address", req.Address)
	case http.MethodDelete:
		if !s.requireAdmin(w, r) {
			return
		}
		address := r.URL.Query().Get("address")
		if address == "" {
			http.Error(w, "address is required", http.StatusBadRequest)
			return
		}
		s.service.RemoveTrustedAddress(address)
		s.logger.Sugar().Infow("Trusted address removed", "address", address)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, &types.TrustedAddressesResponse{
		TrustedAddresses: s.service.TrustedAddresses(),
	})
}

// handleLedgerRoot handles the /ledger/root endpoint
func (s *Server) handleLedgerRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	root, count, err := s.service.LedgerRoot()
	if err != nil {
		s.logger.Sugar().Errorw("Failed to compute ledger root", "error", err)
		http.Error(w, "Failed to compute ledger root", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, &types.LedgerRootResponse{
		Root:  root.Hex(),
		Count: count,
	})
}

// handleLedgerProof handles the /ledger/proof endpoint
func (s *Server) handleLedgerProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		http.Error(w, "index must be an integer", http.StatusBadRequest)
		return
	}

	proof, root, err := s.service.LedgerProof(index)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	siblings := make([]string, len(proof.Proof))
	for i, h := range proof.Proof {
		siblings[i] = hexutil.Encode(h[:])
	}
	s.writeJSON(w, http.StatusOK, &types.LedgerProofResponse{
		Index: proof.LeafIndex,
		Leaf:  hexutil.Encode(proof.Leaf[:]),
		Root:  root.Hex(),
		Proof: siblings,
	})
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.service.HealthCheck(); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, &types.HealthResponse{Status: "unhealthy", Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, &types.HealthResponse{Status: "ok"})
}
