package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mlm-compensation-backend/internal/common/config"
	apperrors "mlm-compensation-backend/internal/common/errors"
	"mlm-compensation-backend/internal/common/logger"
	"mlm-compensation-backend/internal/features/activation/models"
	"mlm-compensation-backend/internal/features/activation/repository"
	membermodels "mlm-compensation-backend/internal/features/member/models"
	memberrepo "mlm-compensation-backend/internal/features/member/repository"
)

const recentTransactionCount = 10

type ActivationService interface {
	Activate(ctx context.Context, activatorID string, req *models.ActivateRequest) (*models.ActivateResponse, error)
	PurchasePackage(ctx context.Context, memberID string, req *models.PurchaseRequest) (*models.PackageTransaction, error)
	GetTransaction(ctx context.Context, id string) (*models.PackageTransaction, error)
	MemberTransactions(ctx context.Context, memberID string) ([]*models.PackageTransaction, error)
	ListTransactions(ctx context.Context) ([]*models.PackageTransaction, error)
	Stats(ctx context.Context) (*models.TransactionStats, error)
}

type activationService struct {
	members memberrepo.MemberRepository
	txns    repository.TransactionRepository
	calc    Calculator
	cfg     *config.Config
}

func NewActivationService(members memberrepo.MemberRepository, txns repository.TransactionRepository, cfg *config.Config) ActivationService {
	return &activationService{
		members: members,
		txns:    txns,
		calc:    NewCalculator(cfg),
		cfg:     cfg,
	}
}

// pricing is the per-unit package price resolved from the catalog plus any
// request overrides.
type pricing struct {
	mrp decimal.Decimal
	dp  decimal.Decimal
	bv  decimal.Decimal
}

func (s *activationService) resolvePricing(req *models.ActivateRequest) (pricing, error) {
	var p pricing
	if product, ok := s.cfg.Product(req.ProductName); ok {
		p = pricing{mrp: product.MRP, dp: product.DP, bv: product.BV}
	} else if req.UnitDP == nil || req.UnitBV == nil {
		return pricing{}, apperrors.Newf(apperrors.ErrCodeValidation, "unknown product %q and no unit pricing given", req.ProductName)
	}

	if req.UnitDP != nil {
		p.dp = *req.UnitDP
	}
	if req.UnitBV != nil {
		p.bv = *req.UnitBV
	}
	if req.UnitMRP != nil {
		p.mrp = *req.UnitMRP
	} else if p.mrp.IsZero() {
		p.mrp = p.dp
	}

	if !p.dp.IsPositive() || p.bv.IsNegative() {
		return pricing{}, apperrors.New(apperrors.ErrCodeValidation, "package pricing must have a positive DP and non-negative BV")
	}
	return p, nil
}

// Activate runs the whole distribution for one package activation: it flips
// the target active, debits the activator, records a Success transaction,
// and credits direct, fighter, and matching income up the chain. Everything
// lands in a single atomic unit or not at all; conflicting concurrent
// attempts are retried a bounded number of times.
func (s *activationService) Activate(ctx context.Context, activatorID string, req *models.ActivateRequest) (*models.ActivateResponse, error) {
	price, err := s.resolvePricing(req)
	if err != nil {
		return nil, err
	}
	amount := PackageAmount(price.dp, req.Quantity)
	totalBV := price.bv.Mul(decimal.NewFromInt(int64(req.Quantity)))

	activator, err := s.loadMember(ctx, activatorID)
	if err != nil {
		return nil, err
	}
	target, err := s.loadMember(ctx, req.TargetID)
	if err != nil {
		return nil, err
	}
	if target.Active {
		return nil, apperrors.Newf(apperrors.ErrCodeAlreadyActive, "member %s is already activated", target.ID)
	}
	if target.Suspended {
		return nil, apperrors.Newf(apperrors.ErrCodeMemberSuspended, "member %s is deactivated", target.ID)
	}
	if activator.WalletBalance.LessThan(amount) {
		return nil, apperrors.Newf(apperrors.ErrCodeInsufficientFunds, "wallet balance %s does not cover package amount %s", activator.WalletBalance, amount)
	}

	// An unresolvable sponsor code ends the chain: the activation still
	// succeeds, no commissions flow.
	var sponsor *membermodels.Member
	if activator.SponsorCode != "" {
		sponsor, err = s.members.GetByCode(ctx, activator.SponsorCode)
		if err != nil && !errors.Is(err, memberrepo.ErrMemberNotFound) {
			return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to resolve sponsor", err)
		}
	}

	legSide, creditBV := s.resolveLegSide(ctx, sponsor, target, req.Side)

	watchIDs := []string{activator.ID, target.ID, target.FighterPartnerID}
	if sponsor != nil {
		watchIDs = append(watchIDs, sponsor.ID)
	}
	watch := distinct(watchIDs...)

	var txn *models.PackageTransaction
	for attempt := 1; attempt <= s.cfg.Limits.MaxTxRetries; attempt++ {
		txn = &models.PackageTransaction{
			ID:          uuid.New().String(),
			MemberID:    target.ID,
			ActivatorID: activator.ID,
			ProductName: req.ProductName,
			ProductMRP:  price.mrp,
			UnitDP:      price.dp,
			UnitBV:      price.bv,
			Quantity:    req.Quantity,
			Amount:      amount,
			TotalBV:     totalBV,
			PaymentRef:  generatePaymentRef(),
			Status:      models.StatusSuccess,
			CreatedAt:   time.Now().UTC(),
			UpdatedAt:   time.Now().UTC(),
		}

		err = s.activateOnce(ctx, txn, sponsor, legSide, creditBV, watch)
		switch {
		case err == nil:
			logger.Info().
				Str("transaction_id", txn.ID).
				Str("payment_ref", txn.PaymentRef).
				Str("member_id", target.ID).
				Str("activator_id", activator.ID).
				Str("amount", amount.String()).
				Msg("Member activated")
			return &models.ActivateResponse{
				TransactionID: txn.ID,
				PaymentRef:    txn.PaymentRef,
				Amount:        amount,
				TotalBV:       totalBV,
			}, nil

		case errors.Is(err, membermodels.ErrAlreadyActive):
			return nil, apperrors.Newf(apperrors.ErrCodeAlreadyActive, "member %s is already activated", target.ID)
		case errors.Is(err, membermodels.ErrInsufficientBalance):
			return nil, apperrors.Newf(apperrors.ErrCodeInsufficientFunds, "wallet balance does not cover package amount %s", amount)

		case errors.Is(err, memberrepo.ErrTxConflict),
			errors.Is(err, repository.ErrPaymentRefTaken),
			errors.Is(err, context.DeadlineExceeded):
			logger.Warn().
				Int("attempt", attempt).
				Str("member_id", target.ID).
				Msg("Activation attempt conflicted, retrying")
			time.Sleep(s.cfg.Limits.RetryDelay)

		default:
			return nil, err
		}
	}

	s.recordFailure(ctx, txn, "concurrent activation conflicts exhausted retries")
	return nil, apperrors.Newf(apperrors.ErrCodeTxConflict, "activation kept conflicting after %d attempts", s.cfg.Limits.MaxTxRetries)
}

// activateOnce is one bounded attempt: every read re-validated under watch,
// every write queued into the same unit.
func (s *activationService) activateOnce(ctx context.Context, txn *models.PackageTransaction, sponsor *membermodels.Member, legSide membermodels.Side, creditBV bool, watch []string) error {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.Limits.ActivationTimeout)
	defer cancel()

	now := time.Now().UTC()
	return s.members.Atomically(attemptCtx, func(tx memberrepo.Transaction) error {
		// Participants are loaded once and aliased by id, so an activator who
		// is also the sponsor mutates a single record.
		loaded := make(map[string]*membermodels.Member)
		load := func(id string) (*membermodels.Member, error) {
			if m, ok := loaded[id]; ok {
				return m, nil
			}
			m, err := s.members.GetTx(attemptCtx, tx, id)
			if err != nil {
				return nil, err
			}
			loaded[id] = m
			return m, nil
		}

		target, err := load(txn.MemberID)
		if err != nil {
			return err
		}
		if err := target.Activate(membermodels.PackageSnapshot{
			ProductName: txn.ProductName,
			ProductMRP:  txn.ProductMRP,
			ProductDP:   txn.UnitDP,
			ProductBV:   txn.UnitBV,
			TotalAmount: txn.Amount,
		}, now); err != nil {
			return err
		}

		activator, err := load(txn.ActivatorID)
		if err != nil {
			return err
		}
		if err := activator.Debit(txn.Amount); err != nil {
			return err
		}
		activator.UpdatedAt = now

		if sponsor != nil {
			sp, err := load(sponsor.ID)
			if err != nil {
				return err
			}
			if !sp.Suspended {
				sp.CreditIncome(membermodels.IncomeDirect, s.calc.DirectIncome(txn.Amount), txn.ActivatorID, now)

				if target.FighterPartnerID != "" {
					partner, err := load(target.FighterPartnerID)
					if err != nil && !errors.Is(err, memberrepo.ErrMemberNotFound) {
						return err
					}
					if partner != nil && !partner.Suspended {
						partner.CreditIncome(membermodels.IncomeFighter, s.calc.FighterIncome(txn.Amount), txn.ActivatorID, now)
						partner.UpdatedAt = now
					}
				}

				if creditBV {
					if err := sp.AddBV(legSide, txn.TotalBV); err != nil {
						return err
					}
					income, newLeft, newRight := s.calc.MatchingIncome(sp.LeftBV, sp.RightBV)
					if income.IsPositive() {
						sp.LeftBV = newLeft
						sp.RightBV = newRight
						sp.CreditIncome(membermodels.IncomeMatching, income, txn.ActivatorID, now)
					}
				}
				sp.UpdatedAt = now
			}
		}

		for _, m := range loaded {
			if err := m.CheckIntegrity(); err != nil {
				return apperrors.Wrap(apperrors.ErrCodeIntegrityViolation, "ledger invariant broken before commit", err)
			}
		}

		if err := s.txns.CreateTx(attemptCtx, tx, txn); err != nil {
			return err
		}
		for _, m := range loaded {
			if err := s.members.SaveTx(attemptCtx, tx, m); err != nil {
				return err
			}
		}
		return nil
	}, watch...)
}

// resolveLegSide walks the tree to find which sponsor leg the target sits
// in; the request's side hint is used only when the walk cannot.
func (s *activationService) resolveLegSide(ctx context.Context, sponsor, target *membermodels.Member, hint membermodels.Side) (membermodels.Side, bool) {
	if sponsor == nil {
		return "", false
	}
	side, err := ResolveLeg(ctx, s.members, sponsor.ID, target, s.cfg.Limits.PlacementScanLimit)
	if err == nil {
		return side, true
	}
	if hint.Valid() {
		return hint, true
	}
	logger.Warn().
		Str("member_id", target.ID).
		Str("sponsor_id", sponsor.ID).
		Msg("Branch side unresolved and no placement hint given, skipping BV contribution")
	return "", false
}

// recordFailure writes an audit record for an activation that exhausted its
// retries. Best effort: the activation outcome does not depend on it.
func (s *activationService) recordFailure(ctx context.Context, txn *models.PackageTransaction, reason string) {
	failed := *txn
	failed.ID = uuid.New().String()
	failed.PaymentRef = generatePaymentRef()
	failed.Status = models.StatusFailed
	failed.FailReason = reason
	failed.UpdatedAt = time.Now().UTC()
	if err := s.txns.Create(ctx, &failed); err != nil {
		logger.Error().Err(err).Str("member_id", txn.MemberID).Msg("Failed to record failed activation")
	}
}

// PurchasePackage records a member's own package purchase as a Pending
// transaction awaiting activation by an upline or admin.
func (s *activationService) PurchasePackage(ctx context.Context, memberID string, req *models.PurchaseRequest) (*models.PackageTransaction, error) {
	product, ok := s.cfg.Product(req.ProductName)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCodeValidation, "unknown product %q", req.ProductName)
	}
	member, err := s.loadMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member.Active {
		return nil, apperrors.Newf(apperrors.ErrCodeAlreadyActive, "member %s is already activated", member.ID)
	}

	now := time.Now().UTC()
	txn := &models.PackageTransaction{
		ID:          uuid.New().String(),
		MemberID:    member.ID,
		ProductName: product.Name,
		ProductMRP:  product.MRP,
		UnitDP:      product.DP,
		UnitBV:      product.BV,
		Quantity:    req.Quantity,
		Amount:      PackageAmount(product.DP, req.Quantity),
		TotalBV:     product.BV.Mul(decimal.NewFromInt(int64(req.Quantity))),
		PaymentRef:  generatePaymentRef(),
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.txns.Create(ctx, txn); err != nil {
		if errors.Is(err, repository.ErrPaymentRefTaken) {
			return nil, apperrors.New(apperrors.ErrCodeConflict, "payment reference collision, retry the purchase")
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to record purchase", err)
	}

	logger.Info().
		Str("transaction_id", txn.ID).
		Str("member_id", member.ID).
		Str("product", product.Name).
		Msg("Package purchase recorded")
	return txn, nil
}

func (s *activationService) GetTransaction(ctx context.Context, id string) (*models.PackageTransaction, error) {
	txn, err := s.txns.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperrors.Newf(apperrors.ErrCodeNotFound, "transaction %s not found", id)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to load transaction", err)
	}
	return txn, nil
}

func (s *activationService) MemberTransactions(ctx context.Context, memberID string) ([]*models.PackageTransaction, error) {
	txns, err := s.txns.ListByMember(ctx, memberID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to list transactions", err)
	}
	sortByNewest(txns)
	return txns, nil
}

func (s *activationService) ListTransactions(ctx context.Context) ([]*models.PackageTransaction, error) {
	txns, err := s.txns.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to list transactions", err)
	}
	sortByNewest(txns)
	return txns, nil
}

func (s *activationService) Stats(ctx context.Context) (*models.TransactionStats, error) {
	txns, err := s.txns.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to list transactions", err)
	}
	sortByNewest(txns)

	stats := &models.TransactionStats{Total: len(txns)}
	for _, txn := range txns {
		switch txn.Status {
		case models.StatusSuccess:
			stats.Success++
			stats.TotalAmount = stats.TotalAmount.Add(txn.Amount)
			stats.TotalBV = stats.TotalBV.Add(txn.TotalBV)
		case models.StatusPending:
			stats.Pending++
		case models.StatusFailed:
			stats.Failed++
		}
	}
	for i := 0; i < len(txns) && i < recentTransactionCount; i++ {
		stats.Recent = append(stats.Recent, *txns[i])
	}
	return stats, nil
}

func (s *activationService) loadMember(ctx context.Context, id string) (*membermodels.Member, error) {
	member, err := s.members.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, memberrepo.ErrMemberNotFound) {
			return nil, apperrors.Newf(apperrors.ErrCodeMemberNotFound, "member %s not found", id)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to load member", err)
	}
	return member, nil
}

func sortByNewest(txns []*models.PackageTransaction) {
	sort.Slice(txns, func(i, j int) bool { return txns[i].CreatedAt.After(txns[j].CreatedAt) })
}

// generatePaymentRef builds the public payment reference. The repository's
// reference index rejects the rare collision, which is retried.
func generatePaymentRef() string {
	return fmt.Sprintf("TXN_%d%04d", time.Now().UnixMilli(), rand.Intn(10000))
}

func distinct(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
