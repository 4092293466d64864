package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	memberrepo "mlm-compensation-backend/internal/features/member/repository"
	"mlm-compensation-backend/internal/features/wallet/models"
	"mlm-compensation-backend/internal/features/wallet/repository"
	platform "mlm-compensation-backend/internal/platform/redis"
)

const (
	keyPrefixRequest     = "fund_request:"
	keyRequests          = "fund_requests:all"     // set of request ids
	keyPrefixRequestsFor = "fund_requests:member:" // set of request ids per member
	keyPrefixEntry       = "wallet_entry:"
	keyPrefixEntriesFor  = "wallet_entries:member:" // set of entry ids per member
)

type walletRepository struct {
	client *platform.Client
}

func NewWalletRepository(client *platform.Client) repository.WalletRepository {
	return &walletRepository{client: client}
}

func requestKey(id string) string {
	return keyPrefixRequest + id
}

func entryKey(id string) string {
	return keyPrefixEntry + id
}

func (r *walletRepository) CreateRequest(ctx context.Context, req *models.FundRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal fund request: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, requestKey(req.ID), data, 0)
	pipe.SAdd(ctx, keyRequests, req.ID)
	pipe.SAdd(ctx, keyPrefixRequestsFor+req.MemberID, req.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *walletRepository) GetRequest(ctx context.Context, id string) (*models.FundRequest, error) {
	data, err := r.client.Get(ctx, requestKey(id)).Bytes()
	if err == goredis.Nil {
		return nil, repository.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}

	var req models.FundRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fund request: %w", err)
	}
	return &req, nil
}

func (r *walletRepository) ListRequestsByMember(ctx context.Context, memberID string) ([]*models.FundRequest, error) {
	return r.listRequests(ctx, keyPrefixRequestsFor+memberID)
}

func (r *walletRepository) ListRequests(ctx context.Context) ([]*models.FundRequest, error) {
	return r.listRequests(ctx, keyRequests)
}

func (r *walletRepository) listRequests(ctx context.Context, key string) ([]*models.FundRequest, error) {
	ids, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var reqs []*models.FundRequest
	for _, id := range ids {
		req, err := r.GetRequest(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrRequestNotFound) {
				continue
			}
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func (r *walletRepository) ListEntriesByMember(ctx context.Context, memberID string) ([]*models.WalletEntry, error) {
	ids, err := r.client.SMembers(ctx, keyPrefixEntriesFor+memberID).Result()
	if err != nil {
		return nil, err
	}

	var entries []*models.WalletEntry
	for _, id := range ids {
		data, err := r.client.Get(ctx, entryKey(id)).Bytes()
		if err == goredis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var entry models.WalletEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal wallet entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (r *walletRepository) SaveRequestTx(ctx context.Context, tx memberrepo.Transaction, req *models.FundRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal fund request: %w", err)
	}
	tx.(*platform.Tx).Queue(func(pipe goredis.Pipeliner) {
		pipe.Set(ctx, requestKey(req.ID), data, 0)
		pipe.SAdd(ctx, keyRequests, req.ID)
		pipe.SAdd(ctx, keyPrefixRequestsFor+req.MemberID, req.ID)
	})
	return nil
}

func (r *walletRepository) CreateEntryTx(ctx context.Context, tx memberrepo.Transaction, entry *models.WalletEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet entry: %w", err)
	}
	tx.(*platform.Tx).Queue(func(pipe goredis.Pipeliner) {
		pipe.Set(ctx, entryKey(entry.ID), data, 0)
		pipe.SAdd(ctx, keyPrefixEntriesFor+entry.MemberID, entry.ID)
	})
	return nil
}
