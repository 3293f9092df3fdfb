package rpc

import (
	"math/big"

	"github.com/monalisastar/elr-protocol-mainnet/core"
	"github.com/monalisastar/elr-protocol-mainnet/core/types"
	"github.com/monalisastar/elr-protocol-mainnet/crypto"
	"github.com/monalisastar/elr-protocol-mainnet/native/merchants"
)

// Amounts are rendered as decimal strings in base units.

type PoolResponse struct {
	Pool        string `json:"pool"`
	Funded      string `json:"funded"`
	Allocated   string `json:"allocated"`
	Claimed     string `json:"claimed"`
	Reclaimed   string `json:"reclaimed"`
	Forfeited   string `json:"forfeited"`
	Custody     string `json:"custody"`
	Liabilities string `json:"liabilities"`
	Surplus     string `json:"surplus"`
	Solvent     bool   `json:"solvent"`
}

type StreakResponse struct {
	Days    uint64 `json:"days"`
	Longest uint64 `json:"longest"`
	LastDay uint64 `json:"lastDay"`
}

type AccountResponse struct {
	Address       string          `json:"address"`
	Earned        string          `json:"earned"`
	Claimed       string          `json:"claimed"`
	Pending       string          `json:"pending"`
	LastClaimedAt uint64          `json:"lastClaimedAt"`
	Balance       string          `json:"balance"`
	Referrer      string          `json:"referrer,omitempty"`
	Streak        *StreakResponse `json:"streak,omitempty"`
}

type MerchantResponse struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	ExternalRef  string `json:"externalRef,omitempty"`
	Approved     bool   `json:"approved"`
	Blacklisted  bool   `json:"blacklisted"`
	Tier         string `json:"tier"`
	Volume       string `json:"volume"`
	RegisteredAt uint64 `json:"registeredAt"`
	ApprovedAt   uint64 `json:"approvedAt,omitempty"`
}

type EventsResponse struct {
	Total  uint64         `json:"total"`
	Events []*types.Event `json:"events"`
}

type ApproveRequest struct {
	Tier      string `json:"tier"`
	Signature string `json:"signature"`
}

type BlacklistRequest struct {
	Signature string `json:"signature"`
}

type AllocationRequest struct {
	Beneficiary string `json:"beneficiary"`
	Amount      string `json:"amount"`
	Nonce       string `json:"nonce"`
	Signature   string `json:"signature"`
}

type StatusResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"requestId,omitempty"`
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newPoolResponse(view core.PoolView) PoolResponse {
	return PoolResponse{
		Pool:        formatAmount(view.Pool),
		Funded:      formatAmount(view.Totals.Funded),
		Allocated:   formatAmount(view.Totals.Allocated),
		Claimed:     formatAmount(view.Totals.Claimed),
		Reclaimed:   formatAmount(view.Totals.Reclaimed),
		Forfeited:   formatAmount(view.Totals.Forfeited),
		Custody:     formatAmount(view.Solvency.Custody),
		Liabilities: formatAmount(view.Solvency.Liabilities),
		Surplus:     formatAmount(view.Solvency.Surplus()),
		Solvent:     view.Solvency.Solvent(),
	}
}

func newAccountResponse(addr [20]byte, view core.AccountView) AccountResponse {
	resp := AccountResponse{
		Address:       crypto.FormatHex(addr),
		Earned:        formatAmount(view.Account.Earned),
		Claimed:       formatAmount(view.Account.Claimed),
		Pending:       formatAmount(view.Account.Pending()),
		LastClaimedAt: view.Account.LastClaimedAt,
		Balance:       formatAmount(view.Balance),
	}
	if view.Referrer != nil {
		resp.Referrer = crypto.FormatHex(*view.Referrer)
	}
	if view.Streak != nil {
		resp.Streak = &StreakResponse{Days: view.Streak.Days, Longest: view.Streak.Longest, LastDay: view.Streak.LastDay}
	}
	return resp
}

func newMerchantResponse(addr [20]byte, m merchants.Merchant) MerchantResponse {
	return MerchantResponse{
		Address:      crypto.FormatHex(addr),
		Name:         m.Name,
		ExternalRef:  m.ExternalRef,
		Approved:     m.Approved,
		Blacklisted:  m.Blacklisted,
		Tier:         m.Tier.String(),
		Volume:       formatAmount(m.Volume),
		RegisteredAt: m.RegisteredAt,
		ApprovedAt:   m.ApprovedAt,
	}
}
