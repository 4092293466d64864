package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"mlm-compensation-backend/internal/common/config"
	apperrors "mlm-compensation-backend/internal/common/errors"
	"mlm-compensation-backend/internal/common/logger"
	membermodels "mlm-compensation-backend/internal/features/member/models"
	memberrepo "mlm-compensation-backend/internal/features/member/repository"
	"mlm-compensation-backend/internal/features/wallet/models"
	"mlm-compensation-backend/internal/features/wallet/repository"
)

type WalletService interface {
	RequestFunds(ctx context.Context, memberID string, req *models.RequestFundsRequest) (*models.FundRequest, error)
	ReviewRequest(ctx context.Context, adminID, requestID string, review *models.ReviewRequestRequest) (*models.FundRequest, error)
	AddBalance(ctx context.Context, adminID string, req *models.AddBalanceRequest) (*models.WalletEntry, error)
	Wallet(ctx context.Context, memberID string) (*models.WalletDetails, error)
	ListRequests(ctx context.Context, status models.RequestStatus) ([]*models.FundRequest, error)
}

type walletService struct {
	members memberrepo.MemberRepository
	wallet  repository.WalletRepository
	cfg     *config.Config
}

func NewWalletService(members memberrepo.MemberRepository, wallet repository.WalletRepository, cfg *config.Config) WalletService {
	return &walletService{members: members, wallet: wallet, cfg: cfg}
}

func (s *walletService) RequestFunds(ctx context.Context, memberID string, req *models.RequestFundsRequest) (*models.FundRequest, error) {
	if !req.Amount.IsPositive() {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "amount must be positive")
	}
	if _, err := s.loadMember(ctx, memberID); err != nil {
		return nil, err
	}

	fundReq := &models.FundRequest{
		ID:        uuid.New().String(),
		MemberID:  memberID,
		Amount:    req.Amount,
		Note:      req.Note,
		Status:    models.RequestPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.wallet.CreateRequest(ctx, fundReq); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to record fund request", err)
	}

	logger.Info().
		Str("request_id", fundReq.ID).
		Str("member_id", memberID).
		Str("amount", req.Amount.String()).
		Msg("Fund request recorded")
	return fundReq, nil
}

// ReviewRequest settles a pending fund request. An approval credits the
// member's wallet and writes the paired wallet entry in the same atomic unit
// as the request's status flip, watching the member record.
func (s *walletService) ReviewRequest(ctx context.Context, adminID, requestID string, review *models.ReviewRequestRequest) (*models.FundRequest, error) {
	fundReq, err := s.wallet.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, apperrors.Newf(apperrors.ErrCodeNotFound, "fund request %s not found", requestID)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to load fund request", err)
	}
	if fundReq.Status != models.RequestPending {
		return nil, apperrors.Newf(apperrors.ErrCodeConflict, "fund request %s is already %s", requestID, fundReq.Status)
	}

	now := time.Now().UTC()
	status := models.RequestRejected
	if review.Approve {
		status = models.RequestApproved
	}
	if err := fundReq.Review(status, adminID, review.Note, now); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeConflict, "fund request settled concurrently", err)
	}

	for attempt := 1; ; attempt++ {
		err = s.members.Atomically(ctx, func(tx memberrepo.Transaction) error {
			if review.Approve {
				member, err := s.members.GetTx(ctx, tx, fundReq.MemberID)
				if err != nil {
					return err
				}
				member.WalletBalance = member.WalletBalance.Add(fundReq.Amount)
				member.UpdatedAt = now
				if err := s.members.SaveTx(ctx, tx, member); err != nil {
					return err
				}
				if err := s.wallet.CreateEntryTx(ctx, tx, &models.WalletEntry{
					ID:        uuid.New().String(),
					MemberID:  fundReq.MemberID,
					Kind:      models.EntryFundRequest,
					Amount:    fundReq.Amount,
					Reference: fundReq.ID,
					CreatedAt: now,
				}); err != nil {
					return err
				}
			}
			return s.wallet.SaveRequestTx(ctx, tx, fundReq)
		}, fundReq.MemberID)

		if err == nil {
			break
		}
		if errors.Is(err, memberrepo.ErrTxConflict) && attempt < s.cfg.Limits.MaxTxRetries {
			time.Sleep(s.cfg.Limits.RetryDelay)
			continue
		}
		if errors.Is(err, memberrepo.ErrTxConflict) {
			return nil, apperrors.Newf(apperrors.ErrCodeTxConflict, "fund request settlement kept conflicting after %d attempts", s.cfg.Limits.MaxTxRetries)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to settle fund request", err)
	}

	logger.Info().
		Str("request_id", fundReq.ID).
		Str("member_id", fundReq.MemberID).
		Str("status", string(fundReq.Status)).
		Str("reviewed_by", adminID).
		Msg("Fund request settled")
	return fundReq, nil
}

// AddBalance is the admin direct top-up: the credit and its wallet entry
// commit together.
func (s *walletService) AddBalance(ctx context.Context, adminID string, req *models.AddBalanceRequest) (*models.WalletEntry, error) {
	if !req.Amount.IsPositive() {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "amount must be positive")
	}
	if _, err := s.loadMember(ctx, req.MemberID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := &models.WalletEntry{
		ID:        uuid.New().String(),
		MemberID:  req.MemberID,
		Kind:      models.EntryAdminCredit,
		Amount:    req.Amount,
		Reference: adminID,
		CreatedAt: now,
	}

	for attempt := 1; ; attempt++ {
		err := s.members.Atomically(ctx, func(tx memberrepo.Transaction) error {
			member, err := s.members.GetTx(ctx, tx, req.MemberID)
			if err != nil {
				return err
			}
			member.WalletBalance = member.WalletBalance.Add(req.Amount)
			member.UpdatedAt = now
			if err := s.members.SaveTx(ctx, tx, member); err != nil {
				return err
			}
			return s.wallet.CreateEntryTx(ctx, tx, entry)
		}, req.MemberID)

		if err == nil {
			break
		}
		if errors.Is(err, memberrepo.ErrTxConflict) && attempt < s.cfg.Limits.MaxTxRetries {
			time.Sleep(s.cfg.Limits.RetryDelay)
			continue
		}
		if errors.Is(err, memberrepo.ErrTxConflict) {
			return nil, apperrors.Newf(apperrors.ErrCodeTxConflict, "wallet credit kept conflicting after %d attempts", s.cfg.Limits.MaxTxRetries)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to credit wallet", err)
	}

	logger.Info().
		Str("member_id", req.MemberID).
		Str("amount", req.Amount.String()).
		Str("credited_by", adminID).
		Msg("Wallet credited")
	return entry, nil
}

func (s *walletService) Wallet(ctx context.Context, memberID string) (*models.WalletDetails, error) {
	member, err := s.loadMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	entries, err := s.wallet.ListEntriesByMember(ctx, memberID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to list wallet entries", err)
	}
	requests, err := s.wallet.ListRequestsByMember(ctx, memberID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to list fund requests", err)
	}

	details := &models.WalletDetails{MemberID: memberID, Balance: member.WalletBalance}
	for _, e := range entries {
		details.Entries = append(details.Entries, *e)
	}
	for _, r := range requests {
		details.Requests = append(details.Requests, *r)
	}
	sort.Slice(details.Entries, func(i, j int) bool { return details.Entries[i].CreatedAt.After(details.Entries[j].CreatedAt) })
	sort.Slice(details.Requests, func(i, j int) bool { return details.Requests[i].CreatedAt.After(details.Requests[j].CreatedAt) })
	return details, nil
}

func (s *walletService) ListRequests(ctx context.Context, status models.RequestStatus) ([]*models.FundRequest, error) {
	requests, err := s.wallet.ListRequests(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to list fund requests", err)
	}

	if status != "" {
		filtered := requests[:0]
		for _, r := range requests {
			if r.Status == status {
				filtered = append(filtered, r)
			}
		}
		requests = filtered
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.After(requests[j].CreatedAt) })
	return requests, nil
}

func (s *walletService) loadMember(ctx context.Context, id string) (*membermodels.Member, error) {
	member, err := s.members.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, memberrepo.ErrMemberNotFound) {
			return nil, apperrors.Newf(apperrors.ErrCodeMemberNotFound, "member %s not found", id)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to load member", err)
	}
	return member, nil
}
