package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"kasirinaja/backoffice/internal/domain"
	"kasirinaja/backoffice/internal/logger"
	"kasirinaja/backoffice/internal/metrics"
	"kasirinaja/backoffice/internal/store"
	"kasirinaja/backoffice/internal/xid"
)

var (
	ErrNotClockedIn      = errors.New("you're not clocked in")
	ErrAdminRequired     = errors.New("admin role required")
	ErrUnauthenticated   = errors.New("authentication required")
	ErrInvalidManagerPIN = errors.New("invalid manager pin")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// PINChecker validates the manager PIN required by supervisor actions.
type PINChecker interface {
	ValidateManagerPIN(pin string) bool
}

type Options struct {
	DefaultBranchID string
	ShiftsPerPage   int
	Logger          *logger.Logger
	Metrics         *metrics.Metrics
	ManagerPIN      PINChecker
	Now             func() time.Time
}

type Service struct {
	repo            store.Repository
	log             *logger.Logger
	metrics         *metrics.Metrics
	pin             PINChecker
	now             func() time.Time
	defaultBranchID string
	shiftsPerPage   int
}

func New(repo store.Repository, opts Options) *Service {
	if opts.DefaultBranchID == "" {
		opts.DefaultBranchID = "main-branch"
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:            repo,
		log:             opts.Logger,
		metrics:         opts.Metrics,
		pin:             opts.ManagerPIN,
		now:             func() time.Time { return opts.Now().UTC() },
		defaultBranchID: opts.DefaultBranchID,
		shiftsPerPage:   opts.ShiftsPerPage,
	}
}

// actor returns the request's actor with the branch defaulted.
func (s *Service) actor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == "" {
		return domain.Actor{}, ErrUnauthenticated
	}
	if actor.BranchID == "" {
		actor.BranchID = s.defaultBranchID
	}
	return actor, nil
}

func (s *Service) admin(ctx context.Context) (domain.Actor, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if !actor.IsAdmin() {
		return domain.Actor{}, ErrAdminRequired
	}
	return actor, nil
}

func (s *Service) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	return s.repo.ListBranches(ctx)
}

func (s *Service) ListAuditLogs(ctx context.Context, branchID string, date string, limit int) ([]domain.AuditLog, error) {
	if _, err := s.admin(ctx); err != nil {
		return nil, err
	}
	if branchID == "" {
		branchID = s.defaultBranchID
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, branchID, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, branchID string, action string, entityType string, entityID string, detail string) {
	if branchID == "" {
		branchID = s.defaultBranchID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		BranchID:      branchID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		logCtx := s.log.WithFields(ctx, map[string]any{"action": action, "entity_type": entityType, "entity_id": entityID})
		s.log.Warn(logCtx, "audit.write_failed", err)
	}
}

// startOfDay is midnight UTC of the day containing t.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
