package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"mlm-compensation-backend/internal/common/config"
	apperrors "mlm-compensation-backend/internal/common/errors"
	"mlm-compensation-backend/internal/features/activation/models"
	txnmemory "mlm-compensation-backend/internal/features/activation/repository/memory"
	membermodels "mlm-compensation-backend/internal/features/member/models"
	memberrepo "mlm-compensation-backend/internal/features/member/repository"
	membermemory "mlm-compensation-backend/internal/features/member/repository/memory"
	memberservice "mlm-compensation-backend/internal/features/member/service"
)

type fixture struct {
	svc     ActivationService
	members memberrepo.MemberRepository
	cfg     *config.Config

	root  *membermodels.Member
	alice *membermodels.Member // enrolled by root, left leg
	bob   *membermodels.Member // enrolled by root, right leg
}

func activationConfig() *config.Config {
	cfg := planConfig()
	cfg.Root.MemberCode = "1000000001"
	cfg.Root.FullName = "Company Root"
	cfg.Limits.MaxTxRetries = 3
	cfg.Limits.RetryDelay = time.Millisecond
	cfg.Limits.ActivationTimeout = time.Second
	cfg.Limits.PlacementScanLimit = 1000
	cfg.Products = []config.Product{
		{Name: "Starter Pack", MRP: decimal.NewFromInt(1250), DP: decimal.NewFromInt(1000), BV: decimal.NewFromInt(10)},
	}
	return cfg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	members := membermemory.NewMemberRepository()
	cfg := activationConfig()
	msvc := memberservice.NewMemberService(members, cfg)
	require.NoError(t, msvc.EnsureRoot(ctx))

	f := &fixture{
		svc:     NewActivationService(members, txnmemory.NewTransactionRepository(), cfg),
		members: members,
		cfg:     cfg,
	}

	root, err := members.GetByCode(ctx, cfg.Root.MemberCode)
	require.NoError(t, err)
	f.root = root
	f.alice = f.register(t, msvc, membermodels.SideLeft, "Alice")
	f.bob = f.register(t, msvc, membermodels.SideRight, "Bob")
	return f
}

func (f *fixture) register(t *testing.T, msvc memberservice.MemberService, side membermodels.Side, name string) *membermodels.Member {
	t.Helper()
	ctx := context.Background()
	resp, err := msvc.Register(ctx, &membermodels.RegisterRequest{
		SponsorCode: f.cfg.Root.MemberCode,
		Side:        side,
		FullName:    name,
	})
	require.NoError(t, err)
	m, err := f.members.GetByID(ctx, resp.MemberID)
	require.NoError(t, err)
	return m
}

func (f *fixture) fund(t *testing.T, id string, amount int64) {
	t.Helper()
	ctx := context.Background()
	m, err := f.members.GetByID(ctx, id)
	require.NoError(t, err)
	m.WalletBalance = m.WalletBalance.Add(decimal.NewFromInt(amount))
	require.NoError(t, f.members.Update(ctx, m))
}

func (f *fixture) get(t *testing.T, id string) *membermodels.Member {
	t.Helper()
	m, err := f.members.GetByID(context.Background(), id)
	require.NoError(t, err)
	return m
}

func starterRequest(targetID string) *models.ActivateRequest {
	return &models.ActivateRequest{
		TargetID:    targetID,
		ProductName: "Starter Pack",
		Quantity:    1,
	}
}

func TestActivateDistributesCommissions(t *testing.T) {
	// Alice (enrolled by root) activates Bob, who sits in root's right leg:
	// Bob flips active, Alice pays, root earns direct income and right BV.
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.alice.ID, 10000)

	resp, err := f.svc.Activate(ctx, f.alice.ID, starterRequest(f.bob.ID))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resp.PaymentRef, "TXN_"))
	require.True(t, resp.Amount.Equal(decimal.NewFromInt(1000)))

	bob := f.get(t, f.bob.ID)
	require.True(t, bob.Active)
	require.NotNil(t, bob.ActivatedWith)
	require.Equal(t, "Starter Pack", bob.ActivatedWith.ProductName)
	require.True(t, bob.ActivatedWith.TotalAmount.Equal(decimal.NewFromInt(1000)))

	alice := f.get(t, f.alice.ID)
	require.True(t, alice.WalletBalance.Equal(decimal.NewFromInt(9000)))

	root := f.get(t, f.root.ID)
	require.True(t, root.DirectIncome.Equal(decimal.NewFromInt(100)))
	require.True(t, root.RightBV.Equal(decimal.NewFromInt(10)))
	require.True(t, root.LeftBV.IsZero())
	require.True(t, root.MatchingIncome.IsZero())
	require.NoError(t, root.CheckIntegrity())

	require.Len(t, root.IncomeLogs, 1)
	require.Equal(t, membermodels.IncomeDirect, root.IncomeLogs[0].Kind)
	require.Equal(t, f.alice.ID, root.IncomeLogs[0].SourceMemberID)

	txn, err := f.svc.GetTransaction(ctx, resp.TransactionID)
	require.NoError(t, err)
	require.Equal(t, models.StatusSuccess, txn.Status)
	require.Equal(t, f.bob.ID, txn.MemberID)
	require.Equal(t, f.alice.ID, txn.ActivatorID)
}

func TestActivateMatchingPairsLegs(t *testing.T) {
	// Right leg first carries BV 10, then a BV-15 activation on the left leg
	// pairs 10: matching = 10 * 10 * 0.30 = 30, remainder 5 stays left.
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.alice.ID, 10000)

	_, err := f.svc.Activate(ctx, f.alice.ID, starterRequest(f.bob.ID))
	require.NoError(t, err)

	bv15 := decimal.NewFromInt(15)
	req := starterRequest(f.alice.ID)
	req.UnitBV = &bv15
	_, err = f.svc.Activate(ctx, f.alice.ID, req)
	require.NoError(t, err)

	root := f.get(t, f.root.ID)
	require.True(t, root.MatchingIncome.Equal(decimal.NewFromInt(30)))
	require.True(t, root.LeftBV.Equal(decimal.NewFromInt(5)))
	require.True(t, root.RightBV.IsZero())
	require.True(t, decimal.Min(root.LeftBV, root.RightBV).IsZero())
	require.NoError(t, root.CheckIntegrity())
}

func TestActivatePaysFighterPartner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.alice.ID, 10000)

	// Bob's fighter partner is Alice herself: activator, partner, and payer
	// alias to one record.
	bob := f.get(t, f.bob.ID)
	bob.FighterPartnerID = f.alice.ID
	require.NoError(t, f.members.Update(ctx, bob))

	_, err := f.svc.Activate(ctx, f.alice.ID, starterRequest(f.bob.ID))
	require.NoError(t, err)

	alice := f.get(t, f.alice.ID)
	require.True(t, alice.FighterIncome.Equal(decimal.NewFromInt(50)))
	// Debit 1000, fighter credit 50.
	require.True(t, alice.WalletBalance.Equal(decimal.NewFromInt(9050)))
	require.NoError(t, alice.CheckIntegrity())
}

func TestActivateAlreadyActiveLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.alice.ID, 10000)

	_, err := f.svc.Activate(ctx, f.alice.ID, starterRequest(f.bob.ID))
	require.NoError(t, err)

	before := f.get(t, f.alice.ID)
	rootBefore := f.get(t, f.root.ID)

	_, err = f.svc.Activate(ctx, f.alice.ID, starterRequest(f.bob.ID))
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrCodeAlreadyActive, appErr.Code)

	require.Equal(t, before, f.get(t, f.alice.ID))
	require.Equal(t, rootBefore, f.get(t, f.root.ID))
}

func TestActivateInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.alice.ID, 500)

	_, err := f.svc.Activate(ctx, f.alice.ID, starterRequest(f.bob.ID))
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrCodeInsufficientFunds, appErr.Code)

	require.False(t, f.get(t, f.bob.ID).Active)
	require.True(t, f.get(t, f.alice.ID).WalletBalance.Equal(decimal.NewFromInt(500)))
}

func TestActivateWithoutSponsorIsTerminalOfChain(t *testing.T) {
	// The root has no enrolling sponsor: its activation succeeds with no
	// commission distributed anywhere.
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.root.ID, 10000)

	deactivatedRoot := f.get(t, f.root.ID)
	deactivatedRoot.Active = false
	require.NoError(t, f.members.Update(ctx, deactivatedRoot))

	_, err := f.svc.Activate(ctx, f.root.ID, starterRequest(f.root.ID))
	require.NoError(t, err)

	root := f.get(t, f.root.ID)
	require.True(t, root.Active)
	require.True(t, root.DirectIncome.IsZero())
	require.True(t, root.WalletBalance.Equal(decimal.NewFromInt(9000)))
}

func TestActivateUnknownProduct(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.alice.ID, 10000)

	req := starterRequest(f.bob.ID)
	req.ProductName = "Mystery Pack"
	_, err := f.svc.Activate(context.Background(), f.alice.ID, req)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrCodeValidation, appErr.Code)
}

func TestConcurrentActivationsOfSameTarget(t *testing.T) {
	// Two simultaneous activations of Bob: exactly one succeeds and Bob's
	// ledger reflects exactly one debit and one distribution.
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.alice.ID, 10000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Activate(ctx, f.alice.ID, starterRequest(f.bob.ID))
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		require.Contains(t, []apperrors.ErrorCode{apperrors.ErrCodeAlreadyActive, apperrors.ErrCodeTxConflict}, appErr.Code)
		conflicts++
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, conflicts)

	alice := f.get(t, f.alice.ID)
	require.True(t, alice.WalletBalance.Equal(decimal.NewFromInt(9000)))

	root := f.get(t, f.root.ID)
	require.True(t, root.DirectIncome.Equal(decimal.NewFromInt(100)))
	require.True(t, root.RightBV.Equal(decimal.NewFromInt(10)))
	require.NoError(t, root.CheckIntegrity())
}

func TestPurchasePackageRecordsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txn, err := f.svc.PurchasePackage(ctx, f.bob.ID, &models.PurchaseRequest{
		ProductName: "Starter Pack",
		Quantity:    2,
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, txn.Status)
	require.True(t, txn.Amount.Equal(decimal.NewFromInt(2000)))
	require.True(t, txn.TotalBV.Equal(decimal.NewFromInt(20)))

	listed, err := f.svc.MemberTransactions(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, txn.ID, listed[0].ID)
}

func TestStatsAggregatesLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.alice.ID, 10000)

	_, err := f.svc.Activate(ctx, f.alice.ID, starterRequest(f.bob.ID))
	require.NoError(t, err)
	_, err = f.svc.PurchasePackage(ctx, f.alice.ID, &models.PurchaseRequest{ProductName: "Starter Pack", Quantity: 1})
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.Success)
	require.Equal(t, 1, stats.Pending)
	require.True(t, stats.TotalAmount.Equal(decimal.NewFromInt(1000)))
	require.True(t, stats.TotalBV.Equal(decimal.NewFromInt(10)))
	require.Len(t, stats.Recent, 2)
}
