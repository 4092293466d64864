package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance = errors.New("wallet balance is insufficient")
	ErrAlreadyActive       = errors.New("member is already activated")
	ErrNotActive           = errors.New("member is not activated yet")
	ErrSlotTaken           = errors.New("tree slot is already occupied")
	ErrInvalidSide         = errors.New("side must be left or right")
)

// Side identifies one of the two legs of the binary tree.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

// IncomeKind classifies a commission credit.
type IncomeKind string

const (
	IncomeDirect   IncomeKind = "Direct"   // 10% of the package amount, paid to the enrolling sponsor
	IncomeFighter  IncomeKind = "Fighter"  // 5% of the package amount, paid to the flat fighter partner
	IncomeMatching IncomeKind = "Matching" // paid on the lesser leg BV of the sponsor
)

// IncomeLog is one append-only commission record. Every wallet credit made
// by the compensation engine is paired with exactly one of these.
type IncomeLog struct {
	Kind           IncomeKind      `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	SourceMemberID string          `json:"source_member_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

// PackageSnapshot records the product a member was activated with.
type PackageSnapshot struct {
	ProductName string          `json:"product_name"`
	ProductMRP  decimal.Decimal `json:"product_mrp"`
	ProductDP   decimal.Decimal `json:"product_dp"`
	ProductBV   decimal.Decimal `json:"product_bv"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// ReferralEntry is one member enrolled under this member's code.
type ReferralEntry struct {
	MemberID string    `json:"member_id"`
	Position Side      `json:"position"`
	JoinedAt time.Time `json:"joined_at"`
}

// Member is the durable ledger entity. It occupies at most one slot in the
// binary tree and carries its own balance, BV counters, and income logs.
type Member struct {
	ID string `json:"id"`

	// MemberCode is the public sponsor code others use to enroll under this
	// member. SponsorCode names the code this member enrolled with.
	MemberCode  string `json:"member_code"`
	SponsorCode string `json:"sponsor_code"`

	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
	Mobile   string `json:"mobile,omitempty"`
	Country  string `json:"country,omitempty"`

	// Tree links. ParentID/Position place this member under its placement
	// parent; the child ids expose the two slots.
	ParentID     string `json:"parent_id,omitempty"`
	Position     Side   `json:"position,omitempty"`
	LeftChildID  string `json:"left_child,omitempty"`
	RightChildID string `json:"right_child,omitempty"`

	// Running BV carry per leg. Never negative.
	LeftBV  decimal.Decimal `json:"left_bv"`
	RightBV decimal.Decimal `json:"right_bv"`

	WalletBalance  decimal.Decimal `json:"wallet_balance"`
	DirectIncome   decimal.Decimal `json:"direct_income"`
	FighterIncome  decimal.Decimal `json:"fighter_income"`
	MatchingIncome decimal.Decimal `json:"matching_income"`
	IncomeLogs     []IncomeLog     `json:"income_logs,omitempty"`

	// Network lists members enrolled with this member's code, and UplinePath
	// the chain of enrolling sponsors from the root down to the parent.
	Network    []ReferralEntry `json:"network,omitempty"`
	UplinePath []string        `json:"upline_path,omitempty"`
	Level      int             `json:"level"`

	// FighterPartnerID designates the flat income beneficiary; it has no
	// relation to this member's tree position.
	FighterPartnerID string `json:"fighter_partner_id,omitempty"`

	ActivatedWith *PackageSnapshot `json:"activated_with,omitempty"`
	Active        bool             `json:"is_active"`
	Suspended     bool             `json:"is_suspended,omitempty"`
	SuspendReason string           `json:"suspend_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChildID returns the child occupying the given slot.
func (m *Member) ChildID(side Side) string {
	if side == SideLeft {
		return m.LeftChildID
	}
	return m.RightChildID
}

// SetChild links a child into the given slot.
func (m *Member) SetChild(side Side, id string) error {
	if !side.Valid() {
		return ErrInvalidSide
	}
	if m.ChildID(side) != "" {
		return ErrSlotTaken
	}
	if side == SideLeft {
		m.LeftChildID = id
	} else {
		m.RightChildID = id
	}
	return nil
}

// OpenSlot returns the first empty slot, preferring left.
func (m *Member) OpenSlot() (Side, bool) {
	if m.LeftChildID == "" {
		return SideLeft, true
	}
	if m.RightChildID == "" {
		return SideRight, true
	}
	return "", false
}

// IncomeTotal returns the cumulative total for one income kind.
func (m *Member) IncomeTotal(kind IncomeKind) decimal.Decimal {
	switch kind {
	case IncomeDirect:
		return m.DirectIncome
	case IncomeFighter:
		return m.FighterIncome
	case IncomeMatching:
		return m.MatchingIncome
	}
	return decimal.Zero
}

// CreditIncome applies a commission: wallet balance, the per-kind total, and
// the append-only log move together so the ledger cannot drift.
func (m *Member) CreditIncome(kind IncomeKind, amount decimal.Decimal, sourceMemberID string, at time.Time) {
	m.WalletBalance = m.WalletBalance.Add(amount)
	switch kind {
	case IncomeDirect:
		m.DirectIncome = m.DirectIncome.Add(amount)
	case IncomeFighter:
		m.FighterIncome = m.FighterIncome.Add(amount)
	case IncomeMatching:
		m.MatchingIncome = m.MatchingIncome.Add(amount)
	}
	m.IncomeLogs = append(m.IncomeLogs, IncomeLog{
		Kind:           kind,
		Amount:         amount,
		SourceMemberID: sourceMemberID,
		CreatedAt:      at,
	})
}

// Debit reduces the wallet balance, refusing to drive it negative.
func (m *Member) Debit(amount decimal.Decimal) error {
	if m.WalletBalance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	m.WalletBalance = m.WalletBalance.Sub(amount)
	return nil
}

// AddBV accumulates business volume on one leg.
func (m *Member) AddBV(side Side, bv decimal.Decimal) error {
	if !side.Valid() {
		return ErrInvalidSide
	}
	if side == SideLeft {
		m.LeftBV = m.LeftBV.Add(bv)
	} else {
		m.RightBV = m.RightBV.Add(bv)
	}
	return nil
}

// Activate flips the member active exactly once and stores the purchased
// package snapshot.
func (m *Member) Activate(snapshot PackageSnapshot, at time.Time) error {
	if m.Active {
		return ErrAlreadyActive
	}
	m.Active = true
	m.ActivatedWith = &snapshot
	m.UpdatedAt = at
	return nil
}

// CheckIntegrity verifies the member's ledger invariants: non-negative BV
// counters and per-kind income totals equal to the sum of logged entries.
func (m *Member) CheckIntegrity() error {
	if m.LeftBV.IsNegative() || m.RightBV.IsNegative() {
		return fmt.Errorf("member %s: negative BV counter (left=%s right=%s)", m.ID, m.LeftBV, m.RightBV)
	}
	if m.LeftChildID != "" && m.LeftChildID == m.RightChildID {
		return fmt.Errorf("member %s: same child in both slots", m.ID)
	}

	sums := map[IncomeKind]decimal.Decimal{}
	for _, entry := range m.IncomeLogs {
		sums[entry.Kind] = sums[entry.Kind].Add(entry.Amount)
	}
	for _, kind := range []IncomeKind{IncomeDirect, IncomeFighter, IncomeMatching} {
		if !sums[kind].Equal(m.IncomeTotal(kind)) {
			return fmt.Errorf("member %s: %s income total %s does not match logged sum %s",
				m.ID, kind, m.IncomeTotal(kind), sums[kind])
		}
	}
	return nil
}
