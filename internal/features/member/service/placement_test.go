package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mlm-compensation-backend/internal/features/member/models"
	"mlm-compensation-backend/internal/features/member/repository/memory"
)

func seedMember(t *testing.T, repo interface {
	Create(ctx context.Context, m *models.Member) error
}, id, parentID string, side models.Side) *models.Member {
	t.Helper()
	m := &models.Member{
		ID:         id,
		MemberCode: "code-" + id,
		FullName:   "Member " + id,
		ParentID:   parentID,
		Position:   side,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), m))
	return m
}

func link(t *testing.T, repo interface {
	GetByID(ctx context.Context, id string) (*models.Member, error)
	Update(ctx context.Context, m *models.Member) error
}, parentID, childID string, side models.Side) {
	t.Helper()
	ctx := context.Background()
	parent, err := repo.GetByID(ctx, parentID)
	require.NoError(t, err)
	require.NoError(t, parent.SetChild(side, childID))
	require.NoError(t, repo.Update(ctx, parent))
}

func TestFindSlotDirect(t *testing.T) {
	repo := memory.NewMemberRepository()
	root := seedMember(t, repo, "root", "", "")

	slot, err := FindSlot(context.Background(), repo, root, models.SideRight, 100)
	require.NoError(t, err)
	require.Equal(t, Slot{ParentID: "root", Side: models.SideRight}, slot)
}

func TestFindSlotSpillsToShallowest(t *testing.T) {
	// root's left leg: L is full (LL, LR present), LL has an open left slot.
	repo := memory.NewMemberRepository()
	ctx := context.Background()

	seedMember(t, repo, "root", "", "")
	seedMember(t, repo, "L", "root", models.SideLeft)
	seedMember(t, repo, "LL", "L", models.SideLeft)
	seedMember(t, repo, "LR", "L", models.SideRight)
	link(t, repo, "root", "L", models.SideLeft)
	link(t, repo, "L", "LL", models.SideLeft)
	link(t, repo, "L", "LR", models.SideRight)

	root, err := repo.GetByID(ctx, "root")
	require.NoError(t, err)

	slot, err := FindSlot(ctx, repo, root, models.SideLeft, 100)
	require.NoError(t, err)
	require.Equal(t, Slot{ParentID: "LL", Side: models.SideLeft}, slot)
}

func TestFindSlotPrefersLeftWithinNode(t *testing.T) {
	repo := memory.NewMemberRepository()
	ctx := context.Background()

	seedMember(t, repo, "root", "", "")
	seedMember(t, repo, "L", "root", models.SideLeft)
	link(t, repo, "root", "L", models.SideLeft)

	root, err := repo.GetByID(ctx, "root")
	require.NoError(t, err)

	slot, err := FindSlot(ctx, repo, root, models.SideLeft, 100)
	require.NoError(t, err)
	require.Equal(t, Slot{ParentID: "L", Side: models.SideLeft}, slot)
}

func TestFindSlotRejectsInvalidSide(t *testing.T) {
	repo := memory.NewMemberRepository()
	root := seedMember(t, repo, "root", "", "")

	_, err := FindSlot(context.Background(), repo, root, models.Side("middle"), 100)
	require.ErrorIs(t, err, models.ErrInvalidSide)
}

func TestFindSlotHonorsScanLimit(t *testing.T) {
	// Full three-level left leg with limit 1: the scan must give up instead
	// of walking to the open level.
	repo := memory.NewMemberRepository()
	ctx := context.Background()

	seedMember(t, repo, "root", "", "")
	seedMember(t, repo, "L", "root", models.SideLeft)
	seedMember(t, repo, "LL", "L", models.SideLeft)
	seedMember(t, repo, "LR", "L", models.SideRight)
	link(t, repo, "root", "L", models.SideLeft)
	link(t, repo, "L", "LL", models.SideLeft)
	link(t, repo, "L", "LR", models.SideRight)

	root, err := repo.GetByID(ctx, "root")
	require.NoError(t, err)

	_, err = FindSlot(ctx, repo, root, models.SideLeft, 1)
	require.ErrorIs(t, err, ErrPlacementExhausted)
}

func TestFindSlotTerminatesOnCycle(t *testing.T) {
	// A node that points at itself must not hang the scan.
	repo := memory.NewMemberRepository()
	ctx := context.Background()

	seedMember(t, repo, "root", "", "")
	cyclic := seedMember(t, repo, "L", "root", models.SideLeft)
	cyclic.LeftChildID = "L"
	cyclic.RightChildID = "root"
	require.NoError(t, repo.Update(ctx, cyclic))
	link(t, repo, "root", "L", models.SideLeft)

	root, err := repo.GetByID(ctx, "root")
	require.NoError(t, err)

	_, err = FindSlot(ctx, repo, root, models.SideLeft, 100)
	require.ErrorIs(t, err, ErrPlacementExhausted)
}
