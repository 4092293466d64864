package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"mlm-compensation-backend/internal/features/activation/models"
	"mlm-compensation-backend/internal/features/activation/repository"
	memberrepo "mlm-compensation-backend/internal/features/member/repository"
	platform "mlm-compensation-backend/internal/platform/redis"
)

const (
	keyPrefixTxn     = "transaction:"
	keyTxns          = "transactions:all"         // set of transaction ids
	keyPrefixTxnsFor = "transactions:member:"     // set of transaction ids per member
	keyPaymentRefs   = "transactions:refs"        // hash: payment ref -> transaction id
)

type transactionRepository struct {
	client *platform.Client
}

func NewTransactionRepository(client *platform.Client) repository.TransactionRepository {
	return &transactionRepository{client: client}
}

func txnKey(id string) string {
	return keyPrefixTxn + id
}

func memberTxnsKey(memberID string) string {
	return keyPrefixTxnsFor + memberID
}

func (r *transactionRepository) Create(ctx context.Context, txn *models.PackageTransaction) error {
	data, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	ok, err := r.client.HSetNX(ctx, keyPaymentRefs, txn.PaymentRef, txn.ID).Result()
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrPaymentRefTaken
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, txnKey(txn.ID), data, 0)
	pipe.SAdd(ctx, keyTxns, txn.ID)
	pipe.SAdd(ctx, memberTxnsKey(txn.MemberID), txn.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *transactionRepository) Update(ctx context.Context, txn *models.PackageTransaction) error {
	data, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}
	return r.client.Set(ctx, txnKey(txn.ID), data, 0).Err()
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*models.PackageTransaction, error) {
	data, err := r.client.Get(ctx, txnKey(id)).Bytes()
	if err == goredis.Nil {
		return nil, repository.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeTransaction(data)
}

func (r *transactionRepository) ListByMember(ctx context.Context, memberID string) ([]*models.PackageTransaction, error) {
	return r.listSet(ctx, memberTxnsKey(memberID))
}

func (r *transactionRepository) List(ctx context.Context) ([]*models.PackageTransaction, error) {
	return r.listSet(ctx, keyTxns)
}

func (r *transactionRepository) listSet(ctx context.Context, key string) ([]*models.PackageTransaction, error) {
	ids, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var txns []*models.PackageTransaction
	for _, id := range ids {
		txn, err := r.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrTransactionNotFound) {
				continue
			}
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func (r *transactionRepository) CreateTx(ctx context.Context, tx memberrepo.Transaction, txn *models.PackageTransaction) error {
	ptx := tx.(*platform.Tx)

	// Payment reference uniqueness checked through the watched connection.
	if _, err := ptx.HGet(keyPaymentRefs, txn.PaymentRef); err == nil {
		return repository.ErrPaymentRefTaken
	} else if err != goredis.Nil {
		return err
	}

	data, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}
	ptx.Queue(func(pipe goredis.Pipeliner) {
		pipe.HSet(ctx, keyPaymentRefs, txn.PaymentRef, txn.ID)
		pipe.Set(ctx, txnKey(txn.ID), data, 0)
		pipe.SAdd(ctx, keyTxns, txn.ID)
		pipe.SAdd(ctx, memberTxnsKey(txn.MemberID), txn.ID)
	})
	return nil
}

func decodeTransaction(data []byte) (*models.PackageTransaction, error) {
	var txn models.PackageTransaction
	if err := json.Unmarshal(data, &txn); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	return &txn, nil
}
