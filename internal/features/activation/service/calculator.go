package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"mlm-compensation-backend/internal/common/config"
	membermodels "mlm-compensation-backend/internal/features/member/models"
)

// ErrLegUnresolved means the walk toward the sponsor never reached one of
// its direct children, so the member's branch side is unknown.
var ErrLegUnresolved = errors.New("member does not descend from either sponsor leg")

// Calculator holds the configured plan rates and performs all commission
// arithmetic. Pure: no persistence, no side effects.
type Calculator struct {
	directRate   decimal.Decimal
	fighterRate  decimal.Decimal
	matchingRate decimal.Decimal
	pointValue   decimal.Decimal
}

func NewCalculator(cfg *config.Config) Calculator {
	return Calculator{
		directRate:   cfg.Plan.DirectRate,
		fighterRate:  cfg.Plan.FighterRate,
		matchingRate: cfg.Plan.MatchingRate,
		pointValue:   cfg.Plan.BVPointValue,
	}
}

// PackageAmount is the debited total for a package purchase.
func PackageAmount(unitDP decimal.Decimal, quantity int) decimal.Decimal {
	return unitDP.Mul(decimal.NewFromInt(int64(quantity)))
}

// DirectIncome is the enrolling sponsor's cut of the package amount.
func (c Calculator) DirectIncome(packageAmount decimal.Decimal) decimal.Decimal {
	return packageAmount.Mul(c.directRate)
}

// FighterIncome is the flat partner's cut of the package amount.
func (c Calculator) FighterIncome(packageAmount decimal.Decimal) decimal.Decimal {
	return packageAmount.Mul(c.fighterRate)
}

// MatchingIncome pairs the two leg counters: the lesser leg's BV is paid out
// at pointValue * rate and both counters drop by the paired volume, leaving
// the unmatched remainder on the larger side to carry forward. After a
// non-zero match exactly one counter is zero.
func (c Calculator) MatchingIncome(leftBV, rightBV decimal.Decimal) (income, newLeft, newRight decimal.Decimal) {
	pairBV := decimal.Min(leftBV, rightBV)
	if !pairBV.IsPositive() {
		return decimal.Zero, leftBV, rightBV
	}
	income = pairBV.Mul(c.pointValue).Mul(c.matchingRate)
	return income, leftBV.Sub(pairBV), rightBV.Sub(pairBV)
}

// legReader provides the node loads ResolveLeg needs.
type legReader interface {
	GetByID(ctx context.Context, id string) (*membermodels.Member, error)
}

// ResolveLeg determines which of the sponsor's legs the member descends
// from, walking parent links upward from the member. Parent links are
// write-once, so the walk is safe outside the activation's atomic unit. The
// walk is iteration-bounded; a member not under the sponsor within limit
// steps yields ErrLegUnresolved.
func ResolveLeg(ctx context.Context, tree legReader, sponsorID string, member *membermodels.Member, limit int) (membermodels.Side, error) {
	cur := member
	for i := 0; i < limit; i++ {
		if cur.ParentID == sponsorID {
			return cur.Position, nil
		}
		if cur.ParentID == "" {
			return "", ErrLegUnresolved
		}
		parent, err := tree.GetByID(ctx, cur.ParentID)
		if err != nil {
			return "", err
		}
		cur = parent
	}
	return "", ErrLegUnresolved
}
