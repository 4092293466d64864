package service

import (
	"context"
	"errors"

	"mlm-compensation-backend/internal/features/member/models"
)

var ErrPlacementExhausted = errors.New("no open slot found within the traversal limit")

// TreeReader provides the node loads a placement scan needs.
type TreeReader interface {
	GetByID(ctx context.Context, id string) (*models.Member, error)
}

// Slot is an open position in the tree: a parent and one of its two sides.
type Slot struct {
	ParentID string
	Side     models.Side
}

// FindSlot returns the next open slot in the anchor's chosen leg. If the
// anchor's own slot on side is empty it is used directly. Otherwise the leg
// is scanned breadth-first from the leg's root, expanding each node's left
// child before its right, and the first node with an empty slot wins, its
// left slot preferred. This fills the shallowest available position
// (spillover) and is deterministic: the same tree yields the same slot.
//
// The scan is iteration-bounded and tracks visited nodes, so a corrupted or
// cyclic tree terminates with ErrPlacementExhausted instead of hanging.
// FindSlot only reads tree state; linking into the returned slot is the
// caller's write.
func FindSlot(ctx context.Context, tree TreeReader, anchor *models.Member, side models.Side, limit int) (Slot, error) {
	if !side.Valid() {
		return Slot{}, models.ErrInvalidSide
	}
	if anchor.ChildID(side) == "" {
		return Slot{ParentID: anchor.ID, Side: side}, nil
	}

	queue := []string{anchor.ChildID(side)}
	seen := map[string]struct{}{anchor.ID: {}}
	visited := 0

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		visited++
		if visited > limit {
			return Slot{}, ErrPlacementExhausted
		}

		node, err := tree.GetByID(ctx, id)
		if err != nil {
			return Slot{}, err
		}
		if open, ok := node.OpenSlot(); ok {
			return Slot{ParentID: node.ID, Side: open}, nil
		}
		queue = append(queue, node.LeftChildID, node.RightChildID)
	}

	return Slot{}, ErrPlacementExhausted
}
