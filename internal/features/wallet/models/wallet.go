package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrRequestReviewed = errors.New("fund request is already reviewed")

// RequestStatus moves from Pending to exactly one terminal state.
type RequestStatus string

const (
	RequestPending  RequestStatus = "Pending"
	RequestApproved RequestStatus = "Approved"
	RequestRejected RequestStatus = "Rejected"
)

// FundRequest is a member's ask for a wallet top-up, settled by an admin.
type FundRequest struct {
	ID       string          `json:"id"`
	MemberID string          `json:"member_id"`
	Amount   decimal.Decimal `json:"amount"`
	Note     string          `json:"note,omitempty"`

	Status     RequestStatus `json:"status"`
	ReviewedBy string        `json:"reviewed_by,omitempty"`
	ReviewNote string        `json:"review_note,omitempty"`
	ReviewedAt *time.Time    `json:"reviewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Review settles a pending request, once.
func (r *FundRequest) Review(status RequestStatus, reviewerID, note string, at time.Time) error {
	if r.Status != RequestPending {
		return ErrRequestReviewed
	}
	r.Status = status
	r.ReviewedBy = reviewerID
	r.ReviewNote = note
	r.ReviewedAt = &at
	return nil
}

// EntryKind classifies a wallet credit outside the commission engine.
type EntryKind string

const (
	EntryAdminCredit EntryKind = "AdminCredit"
	EntryFundRequest EntryKind = "FundRequestCredit"
)

// WalletEntry records one ambient wallet credit. Every balance change made
// by this feature is paired with exactly one entry.
type WalletEntry struct {
	ID       string          `json:"id"`
	MemberID string          `json:"member_id"`
	Kind     EntryKind       `json:"kind"`
	Amount   decimal.Decimal `json:"amount"`

	// Reference points at the fund request or names the crediting admin.
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WalletDetails is the member-facing wallet projection.
type WalletDetails struct {
	MemberID string          `json:"member_id"`
	Balance  decimal.Decimal `json:"balance"`
	Entries  []WalletEntry   `json:"entries,omitempty"`
	Requests []FundRequest   `json:"requests,omitempty"`
}

// RequestFundsRequest is the member-facing top-up ask.
type RequestFundsRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Note   string          `json:"note,omitempty"`
}

// ReviewRequestRequest settles a pending fund request.
type ReviewRequestRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note,omitempty"`
}

// AddBalanceRequest is the admin direct top-up.
type AddBalanceRequest struct {
	MemberID string          `json:"member_id" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
}
