package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/monalisastar/elr-protocol-mainnet/config"
	"github.com/monalisastar/elr-protocol-mainnet/core"
	"github.com/monalisastar/elr-protocol-mainnet/core/events"
	"github.com/monalisastar/elr-protocol-mainnet/crypto"
	"github.com/monalisastar/elr-protocol-mainnet/crypto/attestation"
	"github.com/monalisastar/elr-protocol-mainnet/native/merchants"
	"github.com/monalisastar/elr-protocol-mainnet/native/rewards"
	"github.com/monalisastar/elr-protocol-mainnet/storage"
)

var (
	testAdmin    = [20]byte{0xad}
	testMerchant = [20]byte{0x4d}
	testUser     = [20]byte{0x55}
)

type fixture struct {
	node    *core.Node
	signer  *attestation.Signer
	handler http.Handler
}

func newFixture(t *testing.T, limit RateLimit) *fixture {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	signer := attestation.NewSigner(key, attestation.PersonalSign{})

	cfg := config.Default()
	cfg.AdminAddress = crypto.FormatHex(testAdmin)
	cfg.AuthorityAddress = crypto.FormatHex(signer.Address())

	node, err := core.NewNode(storage.NewMemDB(), cfg)
	require.NoError(t, err)
	require.NoError(t, node.Bootstrap())

	srv, err := NewServer(node, Config{RateLimit: limit, Metrics: http.NotFoundHandler()})
	require.NoError(t, err)
	return &fixture{node: node, signer: signer, handler: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.1:4000"
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) sign(t *testing.T, fields []attestation.Field) string {
	t.Helper()
	sig, err := f.signer.Sign(fields...)
	require.NoError(t, err)
	return hexutil.Encode(sig)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func whole(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestHealthAndRequestID(t *testing.T) {
	f := newFixture(t, RateLimit{})
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "9b2f5f0e-5d0c-4d6f-9a53-3f8a2b8f7c11")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, "9b2f5f0e-5d0c-4d6f-9a53-3f8a2b8f7c11", rec.Header().Get(requestIDHeader))
}

func TestPoolReflectsFunding(t *testing.T) {
	f := newFixture(t, RateLimit{})
	require.NoError(t, f.node.FundPool(testAdmin, whole(500)))

	rec := f.do(t, http.MethodGet, "/pool", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp PoolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, whole(500).String(), resp.Pool)
	require.Equal(t, whole(500).String(), resp.Custody)
	require.Equal(t, "0", resp.Liabilities)
	require.True(t, resp.Solvent)
}

func TestApproveMerchantFlow(t *testing.T) {
	f := newFixture(t, RateLimit{})
	require.NoError(t, f.node.RegisterMerchant(testMerchant, "Corner Shop", "ext-1"))
	registry := f.node.Registry().Address()
	path := "/merchants/" + crypto.FormatHex(testMerchant)

	sig := f.sign(t, attestation.ApprovalPayload(testMerchant, uint8(merchants.TierGold), registry))
	rec := f.do(t, http.MethodPost, path+"/approve", ApproveRequest{Tier: "gold", Signature: sig})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var m MerchantResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	require.True(t, m.Approved)
	require.Equal(t, "GOLD", m.Tier)
	require.Equal(t, "Corner Shop", m.Name)

	// A signature for one tier cannot approve another.
	rec = f.do(t, http.MethodPost, path+"/approve", ApproveRequest{Tier: "PLATINUM", Signature: sig})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, CodeInvalidSignature, decodeError(t, rec).Code)

	rec = f.do(t, http.MethodPost, path+"/approve", ApproveRequest{Tier: "DIAMOND", Signature: sig})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, CodeInvalidTier, decodeError(t, rec).Code)
}

func TestBlacklistMerchantFlow(t *testing.T) {
	f := newFixture(t, RateLimit{})
	registry := f.node.Registry().Address()
	path := "/merchants/" + crypto.FormatHex(testMerchant)
	sig := f.sign(t, attestation.BlacklistPayload(testMerchant, registry))

	rec := f.do(t, http.MethodPost, path+"/blacklist", BlacklistRequest{Signature: sig})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, CodeNotRegistered, decodeError(t, rec).Code)

	require.NoError(t, f.node.RegisterMerchant(testMerchant, "Corner Shop", ""))
	rec = f.do(t, http.MethodPost, path+"/blacklist", BlacklistRequest{Signature: sig})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	m, err := f.node.Merchant(testMerchant)
	require.NoError(t, err)
	require.True(t, m.Blacklisted)
}

func TestSignedAllocationFlow(t *testing.T) {
	f := newFixture(t, RateLimit{})
	require.NoError(t, f.node.FundPool(testAdmin, whole(100)))
	ledger := f.node.Ledger().Address()
	nonce := [32]byte{0x01}
	amount := whole(40)

	req := AllocationRequest{
		Beneficiary: crypto.FormatHex(testUser),
		Amount:      amount.String(),
		Nonce:       hexutil.Encode(nonce[:]),
		Signature:   f.sign(t, attestation.AllocationPayload(testUser, amount, nonce, ledger)),
	}
	rec := f.do(t, http.MethodPost, "/allocations", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/accounts/"+crypto.FormatHex(testUser), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var account AccountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
	require.Equal(t, amount.String(), account.Pending)
	require.Equal(t, "0", account.Claimed)

	rec = f.do(t, http.MethodPost, "/allocations", req)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, CodeNonceUsed, decodeError(t, rec).Code)

	tooMuch := whole(1000)
	other := [32]byte{0x02}
	rec = f.do(t, http.MethodPost, "/allocations", AllocationRequest{
		Beneficiary: crypto.FormatHex(testUser),
		Amount:      tooMuch.String(),
		Nonce:       hexutil.Encode(other[:]),
		Signature:   f.sign(t, attestation.AllocationPayload(testUser, tooMuch, other, ledger)),
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, CodePoolLow, decodeError(t, rec).Code)

	used, err := f.node.NonceUsed(other)
	require.NoError(t, err)
	require.False(t, used, "a rejected allocation must not consume its nonce")
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t, RateLimit{})
	cases := []struct {
		method string
		path   string
		body   interface{}
		status int
	}{
		{http.MethodGet, "/accounts/not-an-address", nil, http.StatusBadRequest},
		{http.MethodGet, "/merchants/" + crypto.FormatHex(testMerchant), nil, http.StatusNotFound},
		{http.MethodPost, "/allocations", map[string]string{"unexpected": "field"}, http.StatusBadRequest},
		{http.MethodPost, "/allocations", AllocationRequest{Beneficiary: crypto.FormatHex(testUser), Amount: "ten"}, http.StatusBadRequest},
		{http.MethodPost, "/allocations", AllocationRequest{Beneficiary: crypto.FormatHex(testUser), Amount: "1", Nonce: "0x01"}, http.StatusBadRequest},
		{http.MethodGet, "/events?limit=0", nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := f.do(t, tc.method, tc.path, tc.body)
		require.Equal(t, tc.status, rec.Code, "%s %s: %s", tc.method, tc.path, rec.Body.String())
	}
}

func TestEventsEndpointFiltersAndLimits(t *testing.T) {
	f := newFixture(t, RateLimit{})
	require.NoError(t, f.node.RegisterMerchant(testMerchant, "Corner Shop", ""))
	require.NoError(t, f.node.FundPool(testAdmin, whole(10)))

	rec := f.do(t, http.MethodGet, "/events?type="+events.TypeMerchantRegistered, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp EventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	require.Equal(t, events.TypeMerchantRegistered, resp.Events[0].Type)
	require.Equal(t, "Corner Shop", resp.Events[0].Attributes["name"])

	rec = f.do(t, http.MethodGet, "/events?limit=1", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	require.Equal(t, events.TypeRewardPoolFunded, resp.Events[0].Type)
	require.Greater(t, resp.Total, uint64(1))
}

func TestSubmissionsAreRateLimited(t *testing.T) {
	f := newFixture(t, RateLimit{RequestsPerSecond: 0.001, Burst: 1})
	body := BlacklistRequest{Signature: "0x00"}
	path := "/merchants/" + crypto.FormatHex(testMerchant) + "/blacklist"

	first := f.do(t, http.MethodPost, path, body)
	require.NotEqual(t, http.StatusTooManyRequests, first.Code)
	second := f.do(t, http.MethodPost, path, body)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Equal(t, CodeRateLimited, decodeError(t, second).Code)

	// Views are not throttled.
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/pool", nil).Code)
}

func TestErrorCodeUnwrapsDomainErrors(t *testing.T) {
	wrapped := fmt.Errorf("host: call failed: %w", rewards.ErrPoolLow)
	require.Equal(t, CodePoolLow, ErrorCode(wrapped))
	require.Equal(t, CodeNonceUsed, ErrorCode(rewards.ErrAlreadyUsedNonce))
	require.Equal(t, CodeNotModule, ErrorCode(rewards.ErrNotModule))
	require.Equal(t, CodeInternal, ErrorCode(errors.New("disk on fire")))
}
