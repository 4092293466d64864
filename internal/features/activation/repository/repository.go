package repository

import (
	"context"
	"errors"

	"mlm-compensation-backend/internal/features/activation/models"
	memberrepo "mlm-compensation-backend/internal/features/member/repository"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrPaymentRefTaken     = errors.New("payment reference is already used")
)

// TransactionRepository stores package transactions. CreateTx joins a member
// transaction so the record lands in the same atomic unit as the ledger
// mutations it describes.
type TransactionRepository interface {
	Create(ctx context.Context, txn *models.PackageTransaction) error
	Update(ctx context.Context, txn *models.PackageTransaction) error
	GetByID(ctx context.Context, id string) (*models.PackageTransaction, error)
	ListByMember(ctx context.Context, memberID string) ([]*models.PackageTransaction, error)
	List(ctx context.Context) ([]*models.PackageTransaction, error)

	CreateTx(ctx context.Context, tx memberrepo.Transaction, txn *models.PackageTransaction) error
}
