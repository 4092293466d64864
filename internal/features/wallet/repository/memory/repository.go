// Package memory is the in-memory WalletRepository used by tests, deferring
// Tx writes into the shared member transaction like the Redis one.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	memberrepo "mlm-compensation-backend/internal/features/member/repository"
	membermemory "mlm-compensation-backend/internal/features/member/repository/memory"
	"mlm-compensation-backend/internal/features/wallet/models"
	"mlm-compensation-backend/internal/features/wallet/repository"
)

type walletRepository struct {
	mu               sync.Mutex
	requests         map[string][]byte
	requestsByMember map[string][]string
	entries          map[string][]byte
	entriesByMember  map[string][]string
}

func NewWalletRepository() repository.WalletRepository {
	return &walletRepository{
		requests:         make(map[string][]byte),
		requestsByMember: make(map[string][]string),
		entries:          make(map[string][]byte),
		entriesByMember:  make(map[string][]string),
	}
}

func (r *walletRepository) CreateRequest(_ context.Context, req *models.FundRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requests[req.ID]; !exists {
		r.requestsByMember[req.MemberID] = append(r.requestsByMember[req.MemberID], req.ID)
	}
	r.requests[req.ID] = raw
	return nil
}

func (r *walletRepository) GetRequest(_ context.Context, id string) (*models.FundRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, ok := r.requests[id]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	var req models.FundRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *walletRepository) ListRequestsByMember(ctx context.Context, memberID string) ([]*models.FundRequest, error) {
	r.mu.Lock()
	ids := append([]string{}, r.requestsByMember[memberID]...)
	r.mu.Unlock()
	return r.collectRequests(ctx, ids)
}

func (r *walletRepository) ListRequests(ctx context.Context) ([]*models.FundRequest, error) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.requests))
	for id := range r.requests {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	return r.collectRequests(ctx, ids)
}

func (r *walletRepository) collectRequests(ctx context.Context, ids []string) ([]*models.FundRequest, error) {
	var out []*models.FundRequest
	for _, id := range ids {
		req, err := r.GetRequest(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func (r *walletRepository) ListEntriesByMember(_ context.Context, memberID string) ([]*models.WalletEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.WalletEntry
	for _, id := range r.entriesByMember[memberID] {
		var entry models.WalletEntry
		if err := json.Unmarshal(r.entries[id], &entry); err != nil {
			return nil, err
		}
		out = append(out, &entry)
	}
	return out, nil
}

func (r *walletRepository) SaveRequestTx(_ context.Context, tx memberrepo.Transaction, req *models.FundRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}
	id, memberID := req.ID, req.MemberID
	tx.(*membermemory.Tx).Queue(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, exists := r.requests[id]; !exists {
			r.requestsByMember[memberID] = append(r.requestsByMember[memberID], id)
		}
		r.requests[id] = raw
	})
	return nil
}

func (r *walletRepository) CreateEntryTx(_ context.Context, tx memberrepo.Transaction, entry *models.WalletEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	id, memberID := entry.ID, entry.MemberID
	tx.(*membermemory.Tx).Queue(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.entries[id] = raw
		r.entriesByMember[memberID] = append(r.entriesByMember[memberID], id)
	})
	return nil
}
