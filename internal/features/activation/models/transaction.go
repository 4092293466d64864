package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrStatusFinal = errors.New("transaction status is already terminal")

// TransactionStatus moves from Pending to exactly one terminal state.
type TransactionStatus string

const (
	StatusPending TransactionStatus = "Pending"
	StatusSuccess TransactionStatus = "Success"
	StatusFailed  TransactionStatus = "Failed"
)

// PackageTransaction is the durable record of one package purchase or
// activation attempt. Immutable once created except for the status field.
type PackageTransaction struct {
	ID string `json:"id"`

	// MemberID is the member the package was bought for; ActivatorID is the
	// member whose wallet paid. They differ when an upline activates a
	// downline member.
	MemberID    string `json:"member_id"`
	ActivatorID string `json:"activator_id,omitempty"`

	ProductName string          `json:"product_name"`
	ProductMRP  decimal.Decimal `json:"product_mrp"`
	UnitDP      decimal.Decimal `json:"unit_dp"`
	UnitBV      decimal.Decimal `json:"unit_bv"`
	Quantity    int             `json:"quantity"`

	// Amount is the debited total (unit DP times quantity); TotalBV the
	// volume the package carries into the tree.
	Amount  decimal.Decimal `json:"amount"`
	TotalBV decimal.Decimal `json:"total_bv"`

	// PaymentRef is the globally unique reference handed back to the caller.
	PaymentRef string            `json:"payment_ref"`
	Status     TransactionStatus `json:"status"`
	FailReason string            `json:"fail_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Finish moves a pending transaction to a terminal status, once.
func (t *PackageTransaction) Finish(status TransactionStatus, reason string, at time.Time) error {
	if t.Status != StatusPending {
		return ErrStatusFinal
	}
	t.Status = status
	t.FailReason = reason
	t.UpdatedAt = at
	return nil
}
