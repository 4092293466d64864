package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mlm-compensation-backend/internal/common/config"
	apperrors "mlm-compensation-backend/internal/common/errors"
	"mlm-compensation-backend/internal/common/logger"
	"mlm-compensation-backend/internal/features/member/models"
	"mlm-compensation-backend/internal/features/member/repository"
)

// genealogyNodeLimit caps the nodes materialized by a single tree projection.
const genealogyNodeLimit = 2048

type MemberService interface {
	EnsureRoot(ctx context.Context) error
	Register(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResponse, error)
	GetMember(ctx context.Context, id string) (*models.MemberResponse, error)
	ListMembers(ctx context.Context) ([]*models.MemberResponse, error)
	Genealogy(ctx context.Context, memberID string) (*models.GenealogyNode, error)
	Team(ctx context.Context, memberID string) ([]*models.TeamMember, error)
	IncomeLogs(ctx context.Context, memberID string, kind models.IncomeKind) (decimal.Decimal, []models.IncomeLog, error)
	SetFighterPartner(ctx context.Context, memberID, partnerID string) error
	Deactivate(ctx context.Context, memberID, reason string) error
	Resume(ctx context.Context, memberID string) error
	NetworkStats(ctx context.Context) (*models.NetworkStats, error)
}

type memberService struct {
	repo repository.MemberRepository
	cfg  *config.Config
}

func NewMemberService(repo repository.MemberRepository, cfg *config.Config) MemberService {
	return &memberService{repo: repo, cfg: cfg}
}

// EnsureRoot seeds the configured root member so the first registration has
// a sponsor to enroll under. Idempotent.
func (s *memberService) EnsureRoot(ctx context.Context) error {
	_, err := s.repo.GetByCode(ctx, s.cfg.Root.MemberCode)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrMemberNotFound) {
		return err
	}

	now := time.Now().UTC()
	root := &models.Member{
		ID:         uuid.New().String(),
		MemberCode: s.cfg.Root.MemberCode,
		FullName:   s.cfg.Root.FullName,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, root); err != nil {
		if errors.Is(err, repository.ErrCodeTaken) {
			// Another instance seeded it first.
			return nil
		}
		return err
	}

	logger.Info().Str("member_id", root.ID).Str("member_code", root.MemberCode).Msg("Root member seeded")
	return nil
}

func (s *memberService) Register(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResponse, error) {
	if req.FullName == "" {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "full_name is required")
	}
	if !req.Side.Valid() {
		return nil, apperrors.New(apperrors.ErrCodeValidation, `side must be "left" or "right"`)
	}

	sponsor, err := s.repo.GetByCode(ctx, req.SponsorCode)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return nil, apperrors.Newf(apperrors.ErrCodeInvalidSponsor, "sponsor code %s does not resolve", req.SponsorCode)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to resolve sponsor", err)
	}

	var resp *models.RegisterResponse
	for attempt := 1; attempt <= s.cfg.Limits.MaxTxRetries; attempt++ {
		resp, err = s.registerOnce(ctx, sponsor, req)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, repository.ErrTxConflict) && !errors.Is(err, models.ErrSlotTaken) && !errors.Is(err, repository.ErrCodeTaken) {
			return nil, err
		}

		// The slot or a watched record was taken underneath us; re-resolve
		// against fresh tree state and try again.
		time.Sleep(s.cfg.Limits.RetryDelay)
		sponsor, err = s.repo.GetByCode(ctx, req.SponsorCode)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to re-resolve sponsor", err)
		}
	}

	return nil, apperrors.Newf(apperrors.ErrCodeTxConflict, "registration kept conflicting after %d attempts", s.cfg.Limits.MaxTxRetries)
}

func (s *memberService) registerOnce(ctx context.Context, sponsor *models.Member, req *models.RegisterRequest) (*models.RegisterResponse, error) {
	slot, err := FindSlot(ctx, s.repo, sponsor, req.Side, s.cfg.Limits.PlacementScanLimit)
	if err != nil {
		if errors.Is(err, ErrPlacementExhausted) {
			return nil, apperrors.Newf(apperrors.ErrCodePlacementExhausted, "no space available on the %s leg", req.Side)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "placement scan failed", err)
	}

	now := time.Now().UTC()
	newMember := &models.Member{
		ID:          uuid.New().String(),
		MemberCode:  generateMemberCode(),
		SponsorCode: sponsor.MemberCode,
		FullName:    req.FullName,
		Email:       req.Email,
		Mobile:      req.Mobile,
		Country:     req.Country,
		ParentID:    slot.ParentID,
		Position:    slot.Side,
		UplinePath:  append(append([]string{}, sponsor.UplinePath...), sponsor.ID),
		Level:       sponsor.Level + 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.repo.Atomically(ctx, func(tx repository.Transaction) error {
		parent, err := s.repo.GetTx(ctx, tx, slot.ParentID)
		if err != nil {
			return err
		}
		if err := parent.SetChild(slot.Side, newMember.ID); err != nil {
			return err
		}
		parent.UpdatedAt = now

		// The sponsor's referral network grows even when placement spilled
		// over to a deeper parent.
		enroller := parent
		if sponsor.ID != parent.ID {
			enroller, err = s.repo.GetTx(ctx, tx, sponsor.ID)
			if err != nil {
				return err
			}
		}
		enroller.Network = append(enroller.Network, models.ReferralEntry{
			MemberID: newMember.ID,
			Position: slot.Side,
			JoinedAt: now,
		})
		enroller.UpdatedAt = now

		if err := s.repo.CreateTx(ctx, tx, newMember); err != nil {
			return err
		}
		if err := s.repo.SaveTx(ctx, tx, parent); err != nil {
			return err
		}
		if enroller != parent {
			if err := s.repo.SaveTx(ctx, tx, enroller); err != nil {
				return err
			}
		}
		return nil
	}, slot.ParentID, sponsor.ID)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("member_id", newMember.ID).
		Str("member_code", newMember.MemberCode).
		Str("parent_id", slot.ParentID).
		Str("side", string(slot.Side)).
		Msg("Member registered")

	return &models.RegisterResponse{MemberID: newMember.ID, MemberCode: newMember.MemberCode}, nil
}

func (s *memberService) GetMember(ctx context.Context, id string) (*models.MemberResponse, error) {
	member, err := s.getMember(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.ToMemberResponse(member), nil
}

func (s *memberService) ListMembers(ctx context.Context) ([]*models.MemberResponse, error) {
	members, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to list members", err)
	}

	sort.Slice(members, func(i, j int) bool { return members[i].CreatedAt.After(members[j].CreatedAt) })

	out := make([]*models.MemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, models.ToMemberResponse(m))
	}
	return out, nil
}

// Genealogy projects the member's binary subtree breadth-first with an
// explicit queue; deep or malformed trees cannot exhaust the call stack.
func (s *memberService) Genealogy(ctx context.Context, memberID string) (*models.GenealogyNode, error) {
	root, err := s.getMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	rootNode := toGenealogyNode(root)
	type item struct {
		member *models.Member
		node   *models.GenealogyNode
	}
	queue := []item{{member: root, node: rootNode}}
	visited := 1

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, side := range []models.Side{models.SideLeft, models.SideRight} {
			childID := cur.member.ChildID(side)
			if childID == "" || visited >= genealogyNodeLimit {
				continue
			}
			child, err := s.repo.GetByID(ctx, childID)
			if err != nil {
				if errors.Is(err, repository.ErrMemberNotFound) {
					continue
				}
				return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to load subtree", err)
			}
			node := toGenealogyNode(child)
			if side == models.SideLeft {
				cur.node.Left = node
			} else {
				cur.node.Right = node
			}
			visited++
			queue = append(queue, item{member: child, node: node})
		}
	}

	return rootNode, nil
}

// Team lists the enrolling-network downline, walked iteratively through the
// referral entries.
func (s *memberService) Team(ctx context.Context, memberID string) ([]*models.TeamMember, error) {
	root, err := s.getMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	var team []*models.TeamMember
	queue := append([]models.ReferralEntry{}, root.Network...)
	seen := map[string]struct{}{root.ID: {}}

	for len(queue) > 0 && len(team) < genealogyNodeLimit {
		entry := queue[0]
		queue = queue[1:]
		if _, dup := seen[entry.MemberID]; dup {
			continue
		}
		seen[entry.MemberID] = struct{}{}

		member, err := s.repo.GetByID(ctx, entry.MemberID)
		if err != nil {
			if errors.Is(err, repository.ErrMemberNotFound) {
				continue
			}
			return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to load downline", err)
		}
		team = append(team, &models.TeamMember{
			ID:         member.ID,
			MemberCode: member.MemberCode,
			FullName:   member.FullName,
			Active:     member.Active,
			Level:      member.Level,
			JoinedAt:   entry.JoinedAt,
		})
		queue = append(queue, member.Network...)
	}

	return team, nil
}

func (s *memberService) IncomeLogs(ctx context.Context, memberID string, kind models.IncomeKind) (decimal.Decimal, []models.IncomeLog, error) {
	member, err := s.getMember(ctx, memberID)
	if err != nil {
		return decimal.Zero, nil, err
	}

	if kind == "" {
		total := member.DirectIncome.Add(member.FighterIncome).Add(member.MatchingIncome)
		return total, member.IncomeLogs, nil
	}

	logs := make([]models.IncomeLog, 0)
	for _, entry := range member.IncomeLogs {
		if entry.Kind == kind {
			logs = append(logs, entry)
		}
	}
	return member.IncomeTotal(kind), logs, nil
}

func (s *memberService) SetFighterPartner(ctx context.Context, memberID, partnerID string) error {
	if memberID == partnerID {
		return apperrors.New(apperrors.ErrCodeValidation, "a member cannot be its own fighter partner")
	}
	if _, err := s.getMember(ctx, partnerID); err != nil {
		return err
	}

	member, err := s.getMember(ctx, memberID)
	if err != nil {
		return err
	}
	member.FighterPartnerID = partnerID
	member.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, member); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to update member", err)
	}
	return nil
}

func (s *memberService) Deactivate(ctx context.Context, memberID, reason string) error {
	if reason == "" {
		return apperrors.New(apperrors.ErrCodeValidation, "a deactivation reason is required")
	}
	member, err := s.getMember(ctx, memberID)
	if err != nil {
		return err
	}
	if !member.Active && !member.Suspended {
		return apperrors.New(apperrors.ErrCodeConflict, "member has never been activated")
	}
	if member.Suspended {
		return apperrors.New(apperrors.ErrCodeConflict, "member is already deactivated")
	}

	member.Suspended = true
	member.SuspendReason = reason
	member.Active = false
	member.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, member); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to update member", err)
	}

	logger.Info().Str("member_id", memberID).Str("reason", reason).Msg("Member deactivated")
	return nil
}

func (s *memberService) Resume(ctx context.Context, memberID string) error {
	member, err := s.getMember(ctx, memberID)
	if err != nil {
		return err
	}
	if !member.Suspended {
		return apperrors.New(apperrors.ErrCodeConflict, "member is not deactivated")
	}

	member.Suspended = false
	member.SuspendReason = ""
	member.Active = true
	member.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, member); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to update member", err)
	}

	logger.Info().Str("member_id", memberID).Msg("Member resumed")
	return nil
}

func (s *memberService) NetworkStats(ctx context.Context) (*models.NetworkStats, error) {
	members, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to list members", err)
	}

	stats := &models.NetworkStats{TotalMembers: len(members)}
	totals := map[models.IncomeKind]*models.IncomeSummary{}
	for _, kind := range []models.IncomeKind{models.IncomeDirect, models.IncomeFighter, models.IncomeMatching} {
		summary := &models.IncomeSummary{Kind: kind}
		totals[kind] = summary
	}

	type earner struct {
		member *models.Member
		total  decimal.Decimal
	}
	earners := make([]earner, 0, len(members))

	for _, m := range members {
		if m.Active {
			stats.ActiveMembers++
		}
		stats.TotalLeftBV = stats.TotalLeftBV.Add(m.LeftBV)
		stats.TotalRightBV = stats.TotalRightBV.Add(m.RightBV)

		for _, entry := range m.IncomeLogs {
			if summary, ok := totals[entry.Kind]; ok {
				summary.Total = summary.Total.Add(entry.Amount)
				summary.Count++
			}
		}
		earners = append(earners, earner{
			member: m,
			total:  m.DirectIncome.Add(m.FighterIncome).Add(m.MatchingIncome),
		})
	}

	for _, kind := range []models.IncomeKind{models.IncomeDirect, models.IncomeFighter, models.IncomeMatching} {
		stats.Incomes = append(stats.Incomes, *totals[kind])
	}

	sort.Slice(earners, func(i, j int) bool { return earners[i].total.GreaterThan(earners[j].total) })
	for i := 0; i < len(earners) && i < 5; i++ {
		if earners[i].total.IsZero() {
			break
		}
		stats.TopEarners = append(stats.TopEarners, models.TopEarner{
			MemberID:   earners[i].member.ID,
			MemberCode: earners[i].member.MemberCode,
			FullName:   earners[i].member.FullName,
			Total:      earners[i].total,
		})
	}

	return stats, nil
}

func (s *memberService) getMember(ctx context.Context, id string) (*models.Member, error) {
	member, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return nil, apperrors.Newf(apperrors.ErrCodeMemberNotFound, "member %s not found", id)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeDatabaseError, "failed to load member", err)
	}
	return member, nil
}

func toGenealogyNode(m *models.Member) *models.GenealogyNode {
	return &models.GenealogyNode{
		ID:         m.ID,
		MemberCode: m.MemberCode,
		FullName:   m.FullName,
		Active:     m.Active,
	}
}

// generateMemberCode produces the public 10-digit sponsor code. Uniqueness
// is enforced by the repository's code index on create.
func generateMemberCode() string {
	return fmt.Sprintf("%010d", rand.Int63n(1e10))
}
