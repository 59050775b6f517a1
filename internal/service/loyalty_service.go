package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/guayoyo/loyalty-service/internal/auth"
	"github.com/guayoyo/loyalty-service/internal/domain"
	"github.com/guayoyo/loyalty-service/internal/events"
	"github.com/guayoyo/loyalty-service/internal/observability"
	"github.com/guayoyo/loyalty-service/internal/progress"
	"github.com/guayoyo/loyalty-service/internal/repository"
	"github.com/guayoyo/loyalty-service/internal/tiers"
	apperrors "github.com/guayoyo/loyalty-service/pkg/util/errorutil"
)

// SessionToken is the bearer marker handed to a client after login.
type SessionToken struct {
	Token     string
	ExpiresAt time.Time
}

// LoyaltyService is the persistence gateway: account lookup, registration
// and the registry of live client sessions.
type LoyaltyService struct {
	store        repository.AccountStore
	snapshots    repository.SessionStore
	catalog      *tiers.Catalog
	dispatcher   events.Dispatcher
	tokens       *auth.TokenManager
	logger       *zap.Logger
	metrics      *observability.Metrics
	writeTimeout time.Duration
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// Dependencies encapsulates collaborators for the loyalty service.
type Dependencies struct {
	Store        repository.AccountStore
	Snapshots    repository.SessionStore
	Catalog      *tiers.Catalog
	Dispatcher   events.Dispatcher
	Tokens       *auth.TokenManager
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	WriteTimeout time.Duration
}

// NewLoyaltyService builds the service.
func NewLoyaltyService(deps Dependencies) *LoyaltyService {
	svc := &LoyaltyService{
		store:        deps.Store,
		snapshots:    deps.Snapshots,
		catalog:      deps.Catalog,
		dispatcher:   deps.Dispatcher,
		tokens:       deps.Tokens,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		writeTimeout: deps.WriteTimeout,
		now:          time.Now,
		sessions:     make(map[string]*Session),
	}
	if svc.catalog == nil {
		svc.catalog = tiers.Default()
	}
	if svc.dispatcher == nil {
		svc.dispatcher = events.NewInMemoryDispatcher(deps.Logger)
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.writeTimeout <= 0 {
		svc.writeTimeout = 10 * time.Second
	}
	return svc
}

// Mode reports which backing store is active.
func (s *LoyaltyService) Mode() domain.StoreMode {
	return s.store.Mode()
}

// Ping checks the active backing store.
func (s *LoyaltyService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Catalog returns the tier catalog in effect.
func (s *LoyaltyService) Catalog() *tiers.Catalog {
	return s.catalog
}

// Progress derives the tier summary for an account.
func (s *LoyaltyService) Progress(account *domain.Account) progress.Summary {
	return progress.Summarize(account, s.catalog.Tiers())
}

// FindAccount loads the durable account record.
func (s *LoyaltyService) FindAccount(ctx context.Context, id string) (*domain.Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewValidationError("id required", nil)
	}

	account, err := s.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperrors.NewNotFound("account", map[string]any{"id": id})
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return account, nil
}

// Register creates an account with no visits and opens an authenticated
// session for it.
func (s *LoyaltyService) Register(ctx context.Context, id, displayName, contact string) (*Session, SessionToken, error) {
	id = strings.TrimSpace(id)
	displayName = strings.TrimSpace(displayName)
	if id == "" || displayName == "" {
		return nil, SessionToken{}, apperrors.NewValidationError("id and name required", nil)
	}

	account := domain.NewAccount(id, displayName, strings.TrimSpace(contact), s.now())
	if err := s.store.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateAccount) {
			return nil, SessionToken{}, apperrors.NewDuplicateAccount(id)
		}
		return nil, SessionToken{}, apperrors.NewStoreUnavailable(err)
	}

	s.logger.Info("account registered", zap.String("account_id", id), zap.String("mode", string(s.Mode())))
	s.publish(ctx, events.New(events.EventAccountRegistered, id, events.AccountRegisteredPayload{
		DisplayName: displayName,
	}))

	session := s.newSession()
	session.establish(account)
	token, err := s.open(ctx, session)
	if err != nil {
		return nil, SessionToken{}, err
	}
	return session, token, nil
}

// Login asserts an identity: it succeeds iff an account with id exists.
func (s *LoyaltyService) Login(ctx context.Context, id string) (*Session, SessionToken, error) {
	session := s.newSession()
	if err := session.authenticate(ctx, id); err != nil {
		return nil, SessionToken{}, err
	}
	token, err := s.open(ctx, session)
	if err != nil {
		return nil, SessionToken{}, err
	}
	return session, token, nil
}

// Resume returns the live session named by a token. Sessions not held in
// memory are restored when their snapshot still exists; the account is
// re-read from the store, falling back to the snapshot if the store fails.
func (s *LoyaltyService) Resume(ctx context.Context, sessionID, accountID string) (*Session, error) {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if ok {
		if session.expired(s.now()) {
			s.evict(sessionID, session)
			return nil, apperrors.NewUnauthorized("session expired")
		}
		if acc := session.Account(); acc == nil || acc.ID != accountID {
			return nil, apperrors.NewUnauthorized("session closed")
		}
		return session, nil
	}

	if s.snapshots == nil {
		return nil, apperrors.NewUnauthorized("session expired")
	}
	snapshot, err := s.snapshots.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, repository.ErrSessionNotFound) {
			s.logger.Warn("load session snapshot", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil, apperrors.NewUnauthorized("session expired")
	}
	if snapshot.ID != accountID {
		return nil, apperrors.NewUnauthorized("session mismatch")
	}

	account, err := s.store.Find(ctx, accountID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrAccountNotFound):
		return nil, apperrors.NewUnauthorized("account no longer exists")
	default:
		s.logger.Warn("restoring session from snapshot", zap.String("account_id", accountID), zap.Error(err))
		account = snapshot
	}

	restored := s.newSessionWithID(sessionID)
	restored.establish(account)
	restored.setExpiry(s.now().Add(s.tokens.TTL()))

	s.mu.Lock()
	if existing, ok := s.sessions[sessionID]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.sessions[sessionID] = restored
	s.mu.Unlock()
	return restored, nil
}

// Logout clears the session's cached account and its persisted marker.
// Durable account records are untouched. The session stays registered,
// cleared, until its snapshot is gone: pending writes re-save the snapshot
// when they land, so they are awaited before the delete. A failed delete
// is reported so the client can retry.
func (s *LoyaltyService) Logout(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	s.mu.Unlock()

	if ok {
		session.Clear()
		session.Wait()
	}
	if s.snapshots != nil {
		if err := s.snapshots.Delete(ctx, sessionID); err != nil {
			s.logger.Warn("delete session snapshot", zap.String("session_id", sessionID), zap.Error(err))
			return apperrors.NewStoreUnavailable(err)
		}
	}

	if ok {
		s.evict(sessionID, session)
	}
	return nil
}

// Sweep drops sessions whose token has expired and that have no writes in
// flight. It returns the number of sessions evicted.
func (s *LoyaltyService) Sweep() int {
	now := s.now()

	s.mu.Lock()
	candidates := make(map[string]*Session)
	for id, session := range s.sessions {
		candidates[id] = session
	}
	s.mu.Unlock()

	evicted := 0
	for id, session := range candidates {
		if !session.expired(now) || session.pending() {
			continue
		}
		if s.evict(id, session) {
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Info("expired sessions evicted", zap.Int("count", evicted))
	}
	return evicted
}

// evict removes session from the registry unless it was replaced meanwhile.
func (s *LoyaltyService) evict(sessionID string, session *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sessionID] != session {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

// SessionCount reports how many sessions are held in memory.
func (s *LoyaltyService) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Wait blocks until every live session has settled its pending writes.
func (s *LoyaltyService) Wait() {
	s.mu.Lock()
	live := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		live = append(live, session)
	}
	s.mu.Unlock()

	for _, session := range live {
		session.Wait()
	}
}

func (s *LoyaltyService) newSession() *Session {
	return s.newSessionWithID(uuid.NewString())
}

func (s *LoyaltyService) newSessionWithID(id string) *Session {
	session := &Session{ID: id, svc: s, state: domain.SessionAnonymous}
	session.idle = sync.NewCond(&session.wmu)
	return session
}

func (s *LoyaltyService) open(ctx context.Context, session *Session) (SessionToken, error) {
	account := session.Account()
	token, exp, err := s.tokens.GenerateToken(session.ID, account.ID)
	if err != nil {
		return SessionToken{}, apperrors.NewInternalError(err)
	}

	session.setExpiry(exp)

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.saveSnapshot(ctx, session.ID, account)
	return SessionToken{Token: token, ExpiresAt: exp}, nil
}

func (s *LoyaltyService) saveSnapshot(ctx context.Context, sessionID string, account *domain.Account) {
	if s.snapshots == nil || account == nil {
		return
	}
	if err := s.snapshots.Save(ctx, sessionID, account, s.tokens.TTL()); err != nil {
		s.logger.Warn("save session snapshot", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *LoyaltyService) publish(ctx context.Context, event events.Event) {
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
