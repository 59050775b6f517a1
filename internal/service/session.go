package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/guayoyo/loyalty-service/internal/domain"
	"github.com/guayoyo/loyalty-service/internal/events"
	"github.com/guayoyo/loyalty-service/internal/progress"
	"github.com/guayoyo/loyalty-service/internal/repository"
	apperrors "github.com/guayoyo/loyalty-service/pkg/util/errorutil"
)

// Session is one client's view of its account. Mutations are applied to
// the cached account first and written through in the background; a
// failed write is compensated by undoing the change in the cache.
type Session struct {
	ID  string
	svc *LoyaltyService

	mu        sync.Mutex
	state     domain.SessionState
	account   *domain.Account
	gen       uint64
	expiresAt time.Time

	// inflight counts background writes; idle is signalled when it drops to zero.
	wmu      sync.Mutex
	idle     *sync.Cond
	inflight int
}

// VisitResult is returned by RecordVisit.
type VisitResult struct {
	Account *domain.Account
	// Milestone is set when this visit completed a tier exactly.
	Milestone *domain.TierDefinition
}

// State reports where the session is in its login lifecycle.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Account returns a copy of the cached account, nil when anonymous.
func (s *Session) Account() *domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account.Clone()
}

func (s *Session) authenticate(ctx context.Context, id string) error {
	s.mu.Lock()
	s.state = domain.SessionAuthenticating
	s.mu.Unlock()

	account, err := s.svc.FindAccount(ctx, id)
	if err != nil {
		s.mu.Lock()
		s.state = domain.SessionAnonymous
		s.mu.Unlock()
		return err
	}

	s.establish(account)
	s.svc.logger.Info("session authenticated", zap.String("session_id", s.ID), zap.String("account_id", account.ID))
	return nil
}

func (s *Session) establish(account *domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = account.Clone()
	s.state = domain.SessionAuthenticated
}

// RecordVisit credits exactly one visit.
func (s *Session) RecordVisit(ctx context.Context) (VisitResult, error) {
	s.mu.Lock()
	if s.state != domain.SessionAuthenticated || s.account == nil {
		s.mu.Unlock()
		return VisitResult{}, apperrors.NewUnauthorized("login required")
	}
	s.account.VisitCount++
	s.gen++
	snapshot := s.account.Clone()
	s.mu.Unlock()

	result := VisitResult{Account: snapshot}
	if tier, ok := progress.MilestoneAt(snapshot.VisitCount, s.svc.catalog.Tiers()); ok {
		result.Milestone = &tier
	}

	s.writeThrough(ctx, "visit", snapshot.ID, func(ctx context.Context) error {
		return s.svc.store.AddVisit(ctx, snapshot.ID)
	}, func(a *domain.Account) {
		if a.VisitCount > 0 {
			a.VisitCount--
		}
	}, func(ctx context.Context) {
		s.svc.publish(ctx, events.New(events.EventVisitRecorded, snapshot.ID, events.VisitRecordedPayload{
			VisitCount: snapshot.VisitCount,
		}))
		if result.Milestone != nil {
			s.svc.publish(ctx, events.New(events.EventTierCompleted, snapshot.ID, tierPayload(*result.Milestone)))
		}
	})

	return result, nil
}

// RedeemTier marks tierID as redeemed. Redeeming twice is a no-op that
// reports changed=false. The tier must be completed according to the
// visits settled so far.
func (s *Session) RedeemTier(ctx context.Context, tierID int) (account *domain.Account, changed bool, err error) {
	tier, idx, ok := s.svc.catalog.Lookup(tierID)
	if !ok {
		return nil, false, apperrors.NewNotFound("tier", map[string]any{"tier_id": tierID})
	}

	// Eligibility is judged on settled visits, not on writes still in flight,
	// and on the durable count so visits made through other sessions count.
	s.Wait()
	if err := s.Refresh(ctx); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	if s.state != domain.SessionAuthenticated || s.account == nil {
		s.mu.Unlock()
		return nil, false, apperrors.NewUnauthorized("login required")
	}
	if s.account.HasRedeemed(tierID) {
		snapshot := s.account.Clone()
		s.mu.Unlock()
		return snapshot, false, nil
	}
	statuses := progress.Compute(s.account.VisitCount, s.svc.catalog.Tiers())
	if !statuses[idx].Completed {
		s.mu.Unlock()
		return nil, false, apperrors.NewTierNotCompleted(tierID)
	}
	s.account.AddRedemption(tierID)
	s.gen++
	snapshot := s.account.Clone()
	s.mu.Unlock()

	s.writeThrough(ctx, "redeem", snapshot.ID, func(ctx context.Context) error {
		return s.svc.store.AddRedemption(ctx, snapshot.ID, tierID)
	}, func(a *domain.Account) {
		a.RemoveRedemption(tierID)
	}, func(ctx context.Context) {
		s.svc.publish(ctx, events.New(events.EventTierRedeemed, snapshot.ID, tierPayload(tier)))
	})

	return snapshot, true, nil
}

// Refresh replaces the cached account with the stored record. It is a
// no-op while writes are in flight or when the cache changes during the
// read, so optimistic updates are never overwritten. A store outage keeps
// the cached copy.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.state != domain.SessionAuthenticated || s.account == nil {
		s.mu.Unlock()
		return apperrors.NewUnauthorized("login required")
	}
	id, gen := s.account.ID, s.gen
	s.mu.Unlock()

	if s.pending() {
		return nil
	}

	account, err := s.svc.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return apperrors.NewUnauthorized("account no longer exists")
		}
		s.svc.logger.Warn("refresh session account; serving cached copy",
			zap.String("session_id", s.ID), zap.String("account_id", id), zap.Error(err))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account != nil && s.account.ID == id && s.gen == gen && !s.pending() {
		s.account = account
	}
	return nil
}

// Clear drops the cached account. Writes already in flight still finish.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = nil
	s.state = domain.SessionAnonymous
}

// Wait blocks until background writes issued by this session settle.
func (s *Session) Wait() {
	s.wmu.Lock()
	for s.inflight > 0 {
		s.idle.Wait()
	}
	s.wmu.Unlock()
}

func (s *Session) pending() bool {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.inflight > 0
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.expiresAt.IsZero() && now.After(s.expiresAt)
}

func (s *Session) setExpiry(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresAt = at
}

func (s *Session) beginWrite() {
	s.wmu.Lock()
	s.inflight++
	s.wmu.Unlock()
}

func (s *Session) endWrite() {
	s.wmu.Lock()
	s.inflight--
	if s.inflight == 0 {
		s.idle.Broadcast()
	}
	s.wmu.Unlock()
}

// writeThrough runs write in the background, detached from the caller's
// cancellation. On failure undo is applied to the cached account.
func (s *Session) writeThrough(
	ctx context.Context,
	operation, accountID string,
	write func(context.Context) error,
	undo func(*domain.Account),
	onSuccess func(context.Context),
) {
	base := context.WithoutCancel(ctx)
	s.beginWrite()
	go func() {
		defer s.endWrite()

		wctx, cancel := context.WithTimeout(base, s.svc.writeTimeout)
		defer cancel()

		err := write(wctx)
		if err != nil {
			s.rollback(wctx, operation, accountID, err, undo)
			return
		}
		onSuccess(wctx)
		s.persistSnapshot(wctx)
	}()
}

func (s *Session) rollback(ctx context.Context, operation, accountID string, cause error, undo func(*domain.Account)) {
	s.svc.logger.Error("durable write failed; rolling back session state",
		zap.String("session_id", s.ID),
		zap.String("account_id", accountID),
		zap.String("operation", operation),
		zap.Error(cause))
	s.svc.metrics.RecordRollback(operation)

	s.mu.Lock()
	if s.account != nil && s.account.ID == accountID {
		undo(s.account)
		s.gen++
	}
	s.mu.Unlock()

	s.svc.publish(ctx, events.New(events.EventWriteFailed, accountID, events.WriteFailedPayload{
		Operation: operation,
		Error:     cause.Error(),
	}))
	s.persistSnapshot(ctx)
}

func (s *Session) persistSnapshot(ctx context.Context) {
	account := s.Account()
	if account == nil {
		return
	}
	s.svc.saveSnapshot(ctx, s.ID, account)
}

func tierPayload(tier domain.TierDefinition) events.TierPayload {
	return events.TierPayload{
		TierID:   tier.ID,
		TierName: tier.Name,
		Reward:   tier.Reward,
	}
}
