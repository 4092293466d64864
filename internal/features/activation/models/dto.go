package models

import (
	"github.com/shopspring/decimal"

	membermodels "mlm-compensation-backend/internal/features/member/models"
)

// ActivateRequest drives one activation. Side is a placement hint used only
// when the activated member's branch cannot be resolved by walking the tree.
// The unit overrides let an admin price a package off-catalog.
type ActivateRequest struct {
	TargetID    string            `json:"target_id" binding:"required"`
	ProductName string            `json:"product_name" binding:"required"`
	Quantity    int               `json:"quantity" binding:"required,min=1"`
	Side        membermodels.Side `json:"side,omitempty"`

	UnitDP  *decimal.Decimal `json:"unit_dp,omitempty"`
	UnitBV  *decimal.Decimal `json:"unit_bv,omitempty"`
	UnitMRP *decimal.Decimal `json:"unit_mrp,omitempty"`
}

type ActivateResponse struct {
	TransactionID string          `json:"transaction_id"`
	PaymentRef    string          `json:"payment_ref"`
	Amount        decimal.Decimal `json:"amount"`
	TotalBV       decimal.Decimal `json:"total_bv"`
}

// PurchaseRequest creates a pending package purchase for the caller.
type PurchaseRequest struct {
	ProductName string `json:"product_name" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

// TransactionStats aggregates the transaction ledger for the admin overview.
type TransactionStats struct {
	Total       int                  `json:"total"`
	Success     int                  `json:"success"`
	Pending     int                  `json:"pending"`
	Failed      int                  `json:"failed"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	TotalBV     decimal.Decimal      `json:"total_bv"`
	Recent      []PackageTransaction `json:"recent,omitempty"`
}
