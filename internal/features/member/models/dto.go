package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegisterRequest enrolls a new member under a sponsor code.
type RegisterRequest struct {
	SponsorCode string `json:"sponsor_code" binding:"required"`
	Side        Side   `json:"side" binding:"required"`
	FullName    string `json:"full_name" binding:"required"`
	Email       string `json:"email"`
	Mobile      string `json:"mobile"`
	Country     string `json:"country"`
}

type RegisterResponse struct {
	MemberID   string `json:"member_id"`
	MemberCode string `json:"member_code"`
}

// MemberResponse is the public projection of a member.
type MemberResponse struct {
	ID             string           `json:"id"`
	MemberCode     string           `json:"member_code"`
	SponsorCode    string           `json:"sponsor_code"`
	FullName       string           `json:"full_name"`
	Email          string           `json:"email,omitempty"`
	Mobile         string           `json:"mobile,omitempty"`
	Country        string           `json:"country,omitempty"`
	Active         bool             `json:"is_active"`
	Suspended      bool             `json:"is_suspended"`
	Level          int              `json:"level"`
	WalletBalance  decimal.Decimal  `json:"wallet_balance"`
	LeftBV         decimal.Decimal  `json:"left_bv"`
	RightBV        decimal.Decimal  `json:"right_bv"`
	DirectIncome   decimal.Decimal  `json:"direct_income"`
	FighterIncome  decimal.Decimal  `json:"fighter_income"`
	MatchingIncome decimal.Decimal  `json:"matching_income"`
	ActivatedWith  *PackageSnapshot `json:"activated_with,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// GenealogyNode is one node of the binary-subtree projection.
type GenealogyNode struct {
	ID         string         `json:"id"`
	MemberCode string         `json:"member_code"`
	FullName   string         `json:"full_name"`
	Active     bool           `json:"is_active"`
	Left       *GenealogyNode `json:"left,omitempty"`
	Right      *GenealogyNode `json:"right,omitempty"`
}

// TeamMember is one row of the enrolling-network downline listing.
type TeamMember struct {
	ID         string    `json:"id"`
	MemberCode string    `json:"member_code"`
	FullName   string    `json:"full_name"`
	Active     bool      `json:"is_active"`
	Level      int       `json:"level"`
	JoinedAt   time.Time `json:"joined_at"`
}

// IncomeSummary aggregates one income kind over a set of members.
type IncomeSummary struct {
	Kind  IncomeKind      `json:"kind"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// NetworkStats is the read-only aggregate projection over all members.
type NetworkStats struct {
	TotalMembers  int             `json:"total_members"`
	ActiveMembers int             `json:"active_members"`
	TotalLeftBV   decimal.Decimal `json:"total_left_bv"`
	TotalRightBV  decimal.Decimal `json:"total_right_bv"`
	Incomes       []IncomeSummary `json:"incomes"`
	TopEarners    []TopEarner     `json:"top_earners,omitempty"`
}

type TopEarner struct {
	MemberID   string          `json:"member_id"`
	MemberCode string          `json:"member_code"`
	FullName   string          `json:"full_name"`
	Total      decimal.Decimal `json:"total"`
}

func ToMemberResponse(m *Member) *MemberResponse {
	return &MemberResponse{
		ID:             m.ID,
		MemberCode:     m.MemberCode,
		SponsorCode:    m.SponsorCode,
		FullName:       m.FullName,
		Email:          m.Email,
		Mobile:         m.Mobile,
		Country:        m.Country,
		Active:         m.Active,
		Suspended:      m.Suspended,
		Level:          m.Level,
		WalletBalance:  m.WalletBalance,
		LeftBV:         m.LeftBV,
		RightBV:        m.RightBV,
		DirectIncome:   m.DirectIncome,
		FighterIncome:  m.FighterIncome,
		MatchingIncome: m.MatchingIncome,
		ActivatedWith:  m.ActivatedWith,
		CreatedAt:      m.CreatedAt,
	}
}
