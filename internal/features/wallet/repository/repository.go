package repository

import (
	"context"
	"errors"

	"mlm-compensation-backend/internal/features/wallet/models"
	memberrepo "mlm-compensation-backend/internal/features/member/repository"
)

var ErrRequestNotFound = errors.New("fund request not found")

// WalletRepository stores fund requests and wallet entries. The Tx variants
// join a member transaction so a request settlement, its wallet entry, and
// the balance credit commit together.
type WalletRepository interface {
	CreateRequest(ctx context.Context, req *models.FundRequest) error
	GetRequest(ctx context.Context, id string) (*models.FundRequest, error)
	ListRequestsByMember(ctx context.Context, memberID string) ([]*models.FundRequest, error)
	ListRequests(ctx context.Context) ([]*models.FundRequest, error)

	ListEntriesByMember(ctx context.Context, memberID string) ([]*models.WalletEntry, error)

	SaveRequestTx(ctx context.Context, tx memberrepo.Transaction, req *models.FundRequest) error
	CreateEntryTx(ctx context.Context, tx memberrepo.Transaction, entry *models.WalletEntry) error
}
