package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/monalisastar/elr-protocol-mainnet/core"
	"github.com/monalisastar/elr-protocol-mainnet/crypto/attestation"
	nativecommon "github.com/monalisastar/elr-protocol-mainnet/native/common"
	"github.com/monalisastar/elr-protocol-mainnet/native/merchants"
	"github.com/monalisastar/elr-protocol-mainnet/native/rewards"
)

// Stable error codes returned in the "code" field of error responses.
const (
	CodeInvalidRequest   = "InvalidRequest"
	CodeInvalidSignature = "InvalidSignature"
	CodeNonceUsed        = "AlreadyUsedNonce"
	CodeNotModule        = "NotModule"
	CodeNotAdmin         = "NotAdmin"
	CodePoolLow          = "PoolLow"
	CodeZeroAmount       = "ZeroAmount"
	CodeNothingToClaim   = "NothingToClaim"
	CodeReentrant        = "ReentrantCall"
	CodeInvalidTier      = "InvalidTier"
	CodeNotRegistered    = "NotRegistered"
	CodeBlacklisted      = "Blacklisted"
	CodePaused           = "Paused"
	CodeNotFound         = "NotFound"
	CodeRateLimited      = "RateLimited"
	CodeInternal         = "Internal"
)

type errorMapping struct {
	target error
	code   string
	status int
}

var errorMappings = []errorMapping{
	{attestation.ErrInvalidSignature, CodeInvalidSignature, http.StatusUnauthorized},
	{attestation.ErrNonceUsed, CodeNonceUsed, http.StatusConflict},
	{rewards.ErrNotModule, CodeNotModule, http.StatusForbidden},
	{rewards.ErrNotAdmin, CodeNotAdmin, http.StatusForbidden},
	{merchants.ErrNotAdmin, CodeNotAdmin, http.StatusForbidden},
	{rewards.ErrPoolLow, CodePoolLow, http.StatusUnprocessableEntity},
	{rewards.ErrZeroAmount, CodeZeroAmount, http.StatusBadRequest},
	{rewards.ErrInvalidBeneficiary, CodeInvalidRequest, http.StatusBadRequest},
	{rewards.ErrNothingToClaim, CodeNothingToClaim, http.StatusUnprocessableEntity},
	{rewards.ErrReentrantCall, CodeReentrant, http.StatusConflict},
	{merchants.ErrInvalidTier, CodeInvalidTier, http.StatusBadRequest},
	{merchants.ErrInvalidMerchant, CodeInvalidRequest, http.StatusBadRequest},
	{merchants.ErrNotRegistered, CodeNotRegistered, http.StatusNotFound},
	{merchants.ErrBlacklisted, CodeBlacklisted, http.StatusConflict},
	{nativecommon.ErrModulePaused, CodePaused, http.StatusServiceUnavailable},
	{core.ErrNotFound, CodeNotFound, http.StatusNotFound},
}

// ErrorCode maps err onto its stable code. Unknown errors map to Internal.
func ErrorCode(err error) string {
	code, _ := classify(err)
	return code
}

func classify(err error) (string, int) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.code, m.status
		}
	}
	return CodeInternal, http.StatusInternalServerError
}

type errorResponse struct {
	Code      string `json:"code"`
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Error: message, RequestID: requestIDFrom(r.Context())})
}

// writeCallError renders a domain error. Internal errors are not echoed back
// to the client.
func writeCallError(w http.ResponseWriter, r *http.Request, err error) {
	code, status := classify(err)
	message := err.Error()
	if code == CodeInternal {
		message = "internal error"
	}
	writeError(w, r, status, code, message)
}
