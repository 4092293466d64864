package repository

import (
	"context"
	"errors"

	"mlm-compensation-backend/internal/features/member/models"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrCodeTaken      = errors.New("member code is already taken")

	// ErrTxConflict reports that a watched record changed underneath an
	// atomic unit; the caller may retry the whole unit.
	ErrTxConflict = errors.New("optimistic transaction conflict")
)

// Transaction is an opaque handle to one atomic unit of work. Storage
// implementations type-assert it to their own concrete transaction.
type Transaction interface{}

// MemberRepository is the narrow storage surface the compensation engine
// needs: lookups by id and by public sponsor code, plus an atomic
// multi-record unit with conflict detection.
type MemberRepository interface {
	Create(ctx context.Context, member *models.Member) error
	GetByID(ctx context.Context, id string) (*models.Member, error)
	GetByCode(ctx context.Context, code string) (*models.Member, error)
	Update(ctx context.Context, member *models.Member) error
	List(ctx context.Context) ([]*models.Member, error)

	// Atomically runs fn against a consistent view of the watched members and
	// applies every write queued inside fn as one unit, or none. A concurrent
	// change to any watched member fails the unit with ErrTxConflict; an
	// error returned by fn discards the queued writes.
	Atomically(ctx context.Context, fn func(tx Transaction) error, watchMemberIDs ...string) error

	GetTx(ctx context.Context, tx Transaction, id string) (*models.Member, error)
	GetByCodeTx(ctx context.Context, tx Transaction, code string) (*models.Member, error)
	SaveTx(ctx context.Context, tx Transaction, member *models.Member) error
	CreateTx(ctx context.Context, tx Transaction, member *models.Member) error
}
