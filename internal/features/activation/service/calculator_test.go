package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"mlm-compensation-backend/internal/common/config"
	membermodels "mlm-compensation-backend/internal/features/member/models"
	membermemory "mlm-compensation-backend/internal/features/member/repository/memory"
)

func planConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Plan.DirectRate = decimal.RequireFromString("0.10")
	cfg.Plan.FighterRate = decimal.RequireFromString("0.05")
	cfg.Plan.MatchingRate = decimal.RequireFromString("0.30")
	cfg.Plan.BVPointValue = decimal.NewFromInt(10)
	return cfg
}

func TestDirectAndFighterIncome(t *testing.T) {
	calc := NewCalculator(planConfig())
	amount := decimal.NewFromInt(1000)

	require.True(t, calc.DirectIncome(amount).Equal(decimal.NewFromInt(100)))
	require.True(t, calc.FighterIncome(amount).Equal(decimal.NewFromInt(50)))
}

func TestPackageAmount(t *testing.T) {
	total := PackageAmount(decimal.NewFromInt(1000), 3)
	require.True(t, total.Equal(decimal.NewFromInt(3000)))
}

func TestMatchingIncomePairsLegs(t *testing.T) {
	calc := NewCalculator(planConfig())

	// One empty leg: nothing to pair.
	income, left, right := calc.MatchingIncome(decimal.NewFromInt(10), decimal.Zero)
	require.True(t, income.IsZero())
	require.True(t, left.Equal(decimal.NewFromInt(10)))
	require.True(t, right.IsZero())

	// pairBV = min(10, 15) = 10; income = 10 * 10 * 0.30 = 30; the
	// remainder carries forward on the larger side.
	income, left, right = calc.MatchingIncome(decimal.NewFromInt(10), decimal.NewFromInt(15))
	require.True(t, income.Equal(decimal.NewFromInt(30)))
	require.True(t, left.IsZero())
	require.True(t, right.Equal(decimal.NewFromInt(5)))
	require.True(t, decimal.Min(left, right).IsZero())
}

func TestResolveLeg(t *testing.T) {
	repo := membermemory.NewMemberRepository()
	ctx := context.Background()

	mk := func(id, parentID string, pos membermodels.Side) *membermodels.Member {
		m := &membermodels.Member{ID: id, MemberCode: "code-" + id, ParentID: parentID, Position: pos}
		require.NoError(t, repo.Create(ctx, m))
		return m
	}

	mk("root", "", "")
	mk("L", "root", membermodels.SideLeft)
	deep := mk("LL", "L", membermodels.SideLeft)
	stray := mk("stray", "", "")

	// LL sits two levels down the root's left leg.
	side, err := ResolveLeg(ctx, repo, "root", deep, 100)
	require.NoError(t, err)
	require.Equal(t, membermodels.SideLeft, side)

	// A member with no path to the sponsor resolves to neither leg.
	_, err = ResolveLeg(ctx, repo, "root", stray, 100)
	require.ErrorIs(t, err, ErrLegUnresolved)

	// Bounded walk: a limit shorter than the path gives up.
	_, err = ResolveLeg(ctx, repo, "root", deep, 1)
	require.ErrorIs(t, err, ErrLegUnresolved)
}
