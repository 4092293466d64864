package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSetChildAndOpenSlot(t *testing.T) {
	m := &Member{ID: "m"}

	side, ok := m.OpenSlot()
	require.True(t, ok)
	require.Equal(t, SideLeft, side)

	require.NoError(t, m.SetChild(SideLeft, "a"))
	require.ErrorIs(t, m.SetChild(SideLeft, "b"), ErrSlotTaken)

	side, ok = m.OpenSlot()
	require.True(t, ok)
	require.Equal(t, SideRight, side)

	require.NoError(t, m.SetChild(SideRight, "b"))
	_, ok = m.OpenSlot()
	require.False(t, ok)

	require.ErrorIs(t, m.SetChild(Side("middle"), "c"), ErrInvalidSide)
}

func TestCreditIncomeKeepsLedgerConsistent(t *testing.T) {
	m := &Member{ID: "m"}
	now := time.Now().UTC()

	m.CreditIncome(IncomeDirect, decimal.NewFromInt(100), "src", now)
	m.CreditIncome(IncomeMatching, decimal.NewFromInt(30), "src", now)
	m.CreditIncome(IncomeDirect, decimal.NewFromInt(50), "src", now)

	require.True(t, m.WalletBalance.Equal(decimal.NewFromInt(180)))
	require.True(t, m.DirectIncome.Equal(decimal.NewFromInt(150)))
	require.True(t, m.MatchingIncome.Equal(decimal.NewFromInt(30)))
	require.Len(t, m.IncomeLogs, 3)
	require.NoError(t, m.CheckIntegrity())

	// A total drifting from its logs is an integrity violation.
	m.DirectIncome = m.DirectIncome.Add(decimal.NewFromInt(1))
	require.Error(t, m.CheckIntegrity())
}

func TestDebitRefusesOverdraft(t *testing.T) {
	m := &Member{ID: "m", WalletBalance: decimal.NewFromInt(100)}

	require.ErrorIs(t, m.Debit(decimal.NewFromInt(101)), ErrInsufficientBalance)
	require.True(t, m.WalletBalance.Equal(decimal.NewFromInt(100)))

	require.NoError(t, m.Debit(decimal.NewFromInt(100)))
	require.True(t, m.WalletBalance.IsZero())
}

func TestActivateOnlyOnce(t *testing.T) {
	m := &Member{ID: "m"}
	snapshot := PackageSnapshot{ProductName: "Starter Pack", TotalAmount: decimal.NewFromInt(1000)}

	require.NoError(t, m.Activate(snapshot, time.Now().UTC()))
	require.True(t, m.Active)
	require.ErrorIs(t, m.Activate(snapshot, time.Now().UTC()), ErrAlreadyActive)
}

func TestCheckIntegrityCatchesBadTree(t *testing.T) {
	m := &Member{ID: "m", LeftChildID: "x", RightChildID: "x"}
	require.Error(t, m.CheckIntegrity())

	m = &Member{ID: "m", LeftBV: decimal.NewFromInt(-1)}
	require.Error(t, m.CheckIntegrity())
}
