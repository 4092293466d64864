package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"mlm-compensation-backend/internal/features/member/models"
	"mlm-compensation-backend/internal/features/member/repository"
	platform "mlm-compensation-backend/internal/platform/redis"
)

const (
	keyPrefixMember = "member:"
	keyMemberCodes  = "members:codes" // hash: member code -> member id
	keyMembers      = "members:all"   // set of member ids
)

type memberRepository struct {
	client *platform.Client
}

func NewMemberRepository(client *platform.Client) repository.MemberRepository {
	return &memberRepository{client: client}
}

func memberKey(id string) string {
	return keyPrefixMember + id
}

func (r *memberRepository) Create(ctx context.Context, member *models.Member) error {
	data, err := json.Marshal(member)
	if err != nil {
		return fmt.Errorf("failed to marshal member: %w", err)
	}

	ok, err := r.client.HSetNX(ctx, keyMemberCodes, member.MemberCode, member.ID).Result()
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrCodeTaken
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, memberKey(member.ID), data, 0)
	pipe.SAdd(ctx, keyMembers, member.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *memberRepository) GetByID(ctx context.Context, id string) (*models.Member, error) {
	data, err := r.client.Get(ctx, memberKey(id)).Bytes()
	if err == goredis.Nil {
		return nil, repository.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeMember(data)
}

func (r *memberRepository) GetByCode(ctx context.Context, code string) (*models.Member, error) {
	id, err := r.client.HGet(ctx, keyMemberCodes, code).Result()
	if err == goredis.Nil {
		return nil, repository.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *memberRepository) Update(ctx context.Context, member *models.Member) error {
	data, err := json.Marshal(member)
	if err != nil {
		return fmt.Errorf("failed to marshal member: %w", err)
	}
	return r.client.Set(ctx, memberKey(member.ID), data, 0).Err()
}

func (r *memberRepository) List(ctx context.Context) ([]*models.Member, error) {
	ids, err := r.client.SMembers(ctx, keyMembers).Result()
	if err != nil {
		return nil, err
	}

	var members []*models.Member
	for _, id := range ids {
		member, err := r.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrMemberNotFound) {
				continue
			}
			return nil, err
		}
		members = append(members, member)
	}
	return members, nil
}

func (r *memberRepository) Atomically(ctx context.Context, fn func(tx repository.Transaction) error, watchMemberIDs ...string) error {
	keys := make([]string, 0, len(watchMemberIDs))
	for _, id := range watchMemberIDs {
		keys = append(keys, memberKey(id))
	}

	err := r.client.Atomic(ctx, func(tx *platform.Tx) error {
		return fn(tx)
	}, keys...)
	if errors.Is(err, goredis.TxFailedErr) {
		return repository.ErrTxConflict
	}
	return err
}

func (r *memberRepository) GetTx(ctx context.Context, tx repository.Transaction, id string) (*models.Member, error) {
	ptx := tx.(*platform.Tx)
	data, err := ptx.Get(memberKey(id))
	if err == goredis.Nil {
		return nil, repository.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeMember(data)
}

func (r *memberRepository) GetByCodeTx(ctx context.Context, tx repository.Transaction, code string) (*models.Member, error) {
	ptx := tx.(*platform.Tx)
	id, err := ptx.HGet(keyMemberCodes, code)
	if err == goredis.Nil {
		return nil, repository.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetTx(ctx, tx, id)
}

func (r *memberRepository) SaveTx(ctx context.Context, tx repository.Transaction, member *models.Member) error {
	data, err := json.Marshal(member)
	if err != nil {
		return fmt.Errorf("failed to marshal member: %w", err)
	}
	tx.(*platform.Tx).Queue(func(pipe goredis.Pipeliner) {
		pipe.Set(ctx, memberKey(member.ID), data, 0)
	})
	return nil
}

func (r *memberRepository) CreateTx(ctx context.Context, tx repository.Transaction, member *models.Member) error {
	ptx := tx.(*platform.Tx)

	if _, err := ptx.HGet(keyMemberCodes, member.MemberCode); err == nil {
		return repository.ErrCodeTaken
	} else if err != goredis.Nil {
		return err
	}

	data, err := json.Marshal(member)
	if err != nil {
		return fmt.Errorf("failed to marshal member: %w", err)
	}
	ptx.Queue(func(pipe goredis.Pipeliner) {
		pipe.HSet(ctx, keyMemberCodes, member.MemberCode, member.ID)
		pipe.Set(ctx, memberKey(member.ID), data, 0)
		pipe.SAdd(ctx, keyMembers, member.ID)
	})
	return nil
}

func decodeMember(data []byte) (*models.Member, error) {
	var member models.Member
	if err := json.Unmarshal(data, &member); err != nil {
		return nil, fmt.Errorf("failed to unmarshal member: %w", err)
	}
	return &member, nil
}
