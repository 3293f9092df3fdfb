package rpc

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"github.com/monalisastar/elr-protocol-mainnet/core/events"
	"github.com/monalisastar/elr-protocol-mainnet/core/types"
	"github.com/monalisastar/elr-protocol-mainnet/crypto"
	"github.com/monalisastar/elr-protocol-mainnet/observability/logging"
	"github.com/monalisastar/elr-protocol-mainnet/native/merchants"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	view, err := s.node.Pool()
	if err != nil {
		writeCallError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolResponse(view))
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	view, err := s.node.Account(addr)
	if err != nil {
		writeCallError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(addr, view))
}

func (s *Server) handleMerchant(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	m, err := s.node.Merchant(addr)
	if err != nil {
		writeCallError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMerchantResponse(addr, m))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	filter := strings.TrimSpace(r.URL.Query().Get("type"))

	var selected []events.Event
	for _, evt := range s.node.Events() {
		if filter == "" || evt.EventType() == filter {
			selected = append(selected, evt)
		}
	}
	if len(selected) > limit {
		selected = selected[len(selected)-limit:]
	}
	out := make([]*types.Event, 0, len(selected))
	for _, evt := range selected {
		out = append(out, events.Project(evt))
	}
	writeJSON(w, http.StatusOK, EventsResponse{Total: s.node.EventsTotal(), Events: out})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	merchant, ok := pathAddress(w, r)
	if !ok {
		return
	}
	var req ApproveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tier, err := merchants.ParseTier(req.Tier)
	if err != nil {
		writeCallError(w, r, err)
		return
	}
	sig, ok := decodeSignature(w, r, req.Signature)
	if !ok {
		return
	}
	s.logger.Info("approval submitted",
		"request_id", requestIDFrom(r.Context()),
		"merchant", crypto.FormatHex(merchant),
		"tier", tier.String(),
		logging.MaskField("signature", req.Signature),
	)
	if err := s.node.ApproveMerchant(merchant, tier, sig); err != nil {
		writeCallError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "approved", RequestID: requestIDFrom(r.Context())})
}

func (s *Server) handleBlacklist(w http.ResponseWriter, r *http.Request) {
	merchant, ok := pathAddress(w, r)
	if !ok {
		return
	}
	var req BlacklistRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sig, ok := decodeSignature(w, r, req.Signature)
	if !ok {
		return
	}
	s.logger.Info("blacklist submitted",
		"request_id", requestIDFrom(r.Context()),
		"merchant", crypto.FormatHex(merchant),
		logging.MaskField("signature", req.Signature),
	)
	if err := s.node.BlacklistMerchant(merchant, sig); err != nil {
		writeCallError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "blacklisted", RequestID: requestIDFrom(r.Context())})
}

func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	var req AllocationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	beneficiary, err := crypto.ParseAddress(req.Beneficiary)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, fmt.Sprintf("beneficiary: %v", err))
		return
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(req.Amount), 10)
	if !ok {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "amount must be a decimal integer")
		return
	}
	nonceBytes, err := hexutil.Decode(strings.TrimSpace(req.Nonce))
	if err != nil || len(nonceBytes) != 32 {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "nonce must be 32 hex-encoded bytes")
		return
	}
	var nonce [32]byte
	copy(nonce[:], nonceBytes)
	sig, ok := decodeSignature(w, r, req.Signature)
	if !ok {
		return
	}
	s.logger.Info("allocation submitted",
		"request_id", requestIDFrom(r.Context()),
		"beneficiary", crypto.FormatHex(beneficiary),
		"amount", amount.String(),
		logging.MaskField("signature", req.Signature),
	)
	if err := s.node.AllocateSigned(beneficiary, amount, nonce, sig); err != nil {
		writeCallError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "allocated", RequestID: requestIDFrom(r.Context())})
}

func pathAddress(w http.ResponseWriter, r *http.Request) ([20]byte, bool) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, fmt.Sprintf("address: %v", err))
		return addr, false
	}
	return addr, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, fmt.Sprintf("invalid body: %v", err))
		return false
	}
	return true
}

func decodeSignature(w http.ResponseWriter, r *http.Request, raw string) ([]byte, bool) {
	sig, err := hexutil.Decode(strings.TrimSpace(raw))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidSignature, "signature must be 0x-prefixed hex")
		return nil, false
	}
	return sig, true
}
