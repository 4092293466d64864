// Package memory provides an in-memory MemberRepository with the same
// optimistic-concurrency behavior as the Redis implementation. It backs the
// service tests and can run the server without external infrastructure.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"mlm-compensation-backend/internal/features/member/models"
	"mlm-compensation-backend/internal/features/member/repository"
)

type memberRepository struct {
	mu       sync.Mutex
	members  map[string][]byte // id -> encoded member
	codes    map[string]string // member code -> id
	versions map[string]uint64 // id -> write counter
}

func NewMemberRepository() repository.MemberRepository {
	return &memberRepository{
		members:  make(map[string][]byte),
		codes:    make(map[string]string),
		versions: make(map[string]uint64),
	}
}

// Tx collects pending writes plus the versions observed for watched members.
// Commit applies the writes only if no watched member changed in between,
// matching WATCH/MULTI/EXEC semantics.
type Tx struct {
	repo     *memberRepository
	observed map[string]uint64
	writes   []func()
}

// Queue defers a write until the transaction commits. Other repositories
// sharing the atomic unit use this the way the Redis ones pipeline commands.
func (tx *Tx) Queue(write func()) {
	tx.writes = append(tx.writes, write)
}

func (r *memberRepository) Create(_ context.Context, member *models.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.codes[member.MemberCode]; taken {
		return repository.ErrCodeTaken
	}
	raw, err := json.Marshal(member)
	if err != nil {
		return err
	}
	r.codes[member.MemberCode] = member.ID
	r.members[member.ID] = raw
	r.versions[member.ID]++
	return nil
}

func (r *memberRepository) GetByID(_ context.Context, id string) (*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.decode(id)
}

func (r *memberRepository) GetByCode(_ context.Context, code string) (*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.codes[code]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	return r.decode(id)
}

func (r *memberRepository) Update(_ context.Context, member *models.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[member.ID]; !ok {
		return repository.ErrMemberNotFound
	}
	raw, err := json.Marshal(member)
	if err != nil {
		return err
	}
	r.members[member.ID] = raw
	r.versions[member.ID]++
	return nil
}

func (r *memberRepository) List(_ context.Context) ([]*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.Member, 0, len(r.members))
	for id := range r.members {
		member, err := r.decode(id)
		if err != nil {
			return nil, err
		}
		out = append(out, member)
	}
	return out, nil
}

func (r *memberRepository) Atomically(_ context.Context, fn func(tx repository.Transaction) error, watchMemberIDs ...string) error {
	tx := &Tx{repo: r, observed: make(map[string]uint64)}

	r.mu.Lock()
	for _, id := range watchMemberIDs {
		tx.observed[id] = r.versions[id]
	}
	r.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, seen := range tx.observed {
		if r.versions[id] != seen {
			return repository.ErrTxConflict
		}
	}
	for _, write := range tx.writes {
		write()
	}
	return nil
}

func (r *memberRepository) GetTx(_ context.Context, t repository.Transaction, id string) (*models.Member, error) {
	tx := t.(*Tx)

	r.mu.Lock()
	defer r.mu.Unlock()
	tx.observed[id] = r.versions[id]
	return r.decode(id)
}

func (r *memberRepository) GetByCodeTx(ctx context.Context, t repository.Transaction, code string) (*models.Member, error) {
	r.mu.Lock()
	id, ok := r.codes[code]
	r.mu.Unlock()
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	return r.GetTx(ctx, t, id)
}

func (r *memberRepository) SaveTx(_ context.Context, t repository.Transaction, member *models.Member) error {
	tx := t.(*Tx)
	raw, err := json.Marshal(member)
	if err != nil {
		return err
	}

	id := member.ID
	tx.writes = append(tx.writes, func() {
		r.members[id] = raw
		r.versions[id]++
	})
	return nil
}

func (r *memberRepository) CreateTx(_ context.Context, t repository.Transaction, member *models.Member) error {
	tx := t.(*Tx)

	r.mu.Lock()
	_, taken := r.codes[member.MemberCode]
	r.mu.Unlock()
	if taken {
		return repository.ErrCodeTaken
	}

	raw, err := json.Marshal(member)
	if err != nil {
		return err
	}
	id, code := member.ID, member.MemberCode
	tx.writes = append(tx.writes, func() {
		r.codes[code] = id
		r.members[id] = raw
		r.versions[id]++
	})
	return nil
}

// decode assumes r.mu is held.
func (r *memberRepository) decode(id string) (*models.Member, error) {
	raw, ok := r.members[id]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	var member models.Member
	if err := json.Unmarshal(raw, &member); err != nil {
		return nil, err
	}
	return &member, nil
}
