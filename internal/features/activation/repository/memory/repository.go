// Package memory is the in-memory TransactionRepository used by tests. Its
// CreateTx defers the write into the shared member transaction so commit and
// conflict behavior match the Redis implementation.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"mlm-compensation-backend/internal/features/activation/models"
	"mlm-compensation-backend/internal/features/activation/repository"
	memberrepo "mlm-compensation-backend/internal/features/member/repository"
	membermemory "mlm-compensation-backend/internal/features/member/repository/memory"
)

type transactionRepository struct {
	mu       sync.Mutex
	txns     map[string][]byte // id -> encoded transaction
	byMember map[string][]string
	refs     map[string]string // payment ref -> id
}

func NewTransactionRepository() repository.TransactionRepository {
	return &transactionRepository{
		txns:     make(map[string][]byte),
		byMember: make(map[string][]string),
		refs:     make(map[string]string),
	}
}

func (r *transactionRepository) Create(_ context.Context, txn *models.PackageTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.refs[txn.PaymentRef]; taken {
		return repository.ErrPaymentRefTaken
	}
	raw, err := json.Marshal(txn)
	if err != nil {
		return err
	}
	r.store(txn, raw)
	return nil
}

func (r *transactionRepository) Update(_ context.Context, txn *models.PackageTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.txns[txn.ID]; !ok {
		return repository.ErrTransactionNotFound
	}
	raw, err := json.Marshal(txn)
	if err != nil {
		return err
	}
	r.txns[txn.ID] = raw
	return nil
}

func (r *transactionRepository) GetByID(_ context.Context, id string) (*models.PackageTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.decode(id)
}

func (r *transactionRepository) ListByMember(_ context.Context, memberID string) ([]*models.PackageTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.PackageTransaction
	for _, id := range r.byMember[memberID] {
		txn, err := r.decode(id)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, nil
}

func (r *transactionRepository) List(_ context.Context) ([]*models.PackageTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.PackageTransaction, 0, len(r.txns))
	for id := range r.txns {
		txn, err := r.decode(id)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, nil
}

func (r *transactionRepository) CreateTx(_ context.Context, tx memberrepo.Transaction, txn *models.PackageTransaction) error {
	mtx := tx.(*membermemory.Tx)

	r.mu.Lock()
	_, taken := r.refs[txn.PaymentRef]
	r.mu.Unlock()
	if taken {
		return repository.ErrPaymentRefTaken
	}

	raw, err := json.Marshal(txn)
	if err != nil {
		return err
	}
	record := *txn
	mtx.Queue(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.store(&record, raw)
	})
	return nil
}

// store assumes r.mu is held.
func (r *transactionRepository) store(txn *models.PackageTransaction, raw []byte) {
	r.refs[txn.PaymentRef] = txn.ID
	r.txns[txn.ID] = raw
	r.byMember[txn.MemberID] = append(r.byMember[txn.MemberID], txn.ID)
}

// decode assumes r.mu is held.
func (r *transactionRepository) decode(id string) (*models.PackageTransaction, error) {
	raw, ok := r.txns[id]
	if !ok {
		return nil, repository.ErrTransactionNotFound
	}
	var txn models.PackageTransaction
	if err := json.Unmarshal(raw, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}
