package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/guayoyo/loyalty-service/internal/api/http/handlers"
	"github.com/guayoyo/loyalty-service/internal/auth"
	"github.com/guayoyo/loyalty-service/internal/domain"
	"github.com/guayoyo/loyalty-service/internal/observability"
	"github.com/guayoyo/loyalty-service/internal/repository"
	"github.com/guayoyo/loyalty-service/internal/service"
	"github.com/guayoyo/loyalty-service/internal/tiers"
)

type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

func (s *fakeStore) Mode() domain.StoreMode { return domain.StoreModeLocal }

func (s *fakeStore) Find(_ context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[id]; ok {
		return acc.Clone(), nil
	}
	return nil, repository.ErrAccountNotFound
}

func (s *fakeStore) Create(_ context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return repository.ErrDuplicateAccount
	}
	s.accounts[account.ID] = account.Clone()
	return nil
}

func (s *fakeStore) with(id string, fn func(*domain.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	fn(acc)
	return nil
}

func (s *fakeStore) AddVisit(_ context.Context, id string) error {
	return s.with(id, func(a *domain.Account) { a.VisitCount++ })
}

func (s *fakeStore) AddRedemption(_ context.Context, id string, tierID int) error {
	return s.with(id, func(a *domain.Account) { a.AddRedemption(tierID) })
}

func (s *fakeStore) Ping(context.Context) error { return nil }

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := &fakeStore{accounts: make(map[string]*domain.Account)}
	tokens := auth.NewTokenManager("router-test-secret", time.Hour)

	loyalty := service.NewLoyaltyService(service.Dependencies{
		Store:        repository.Instrument(store, metrics),
		Catalog:      tiers.Default(),
		Tokens:       tokens,
		Logger:       logger,
		Metrics:      metrics,
		WriteTimeout: time.Second,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("loyalty-service", "test", store.Mode(), loyalty, nil),
		Tiers:          handlers.NewTiersHandler(loyalty.Catalog()),
		Accounts:       handlers.NewAccountsHandler(loyalty),
		AuthMiddleware: auth.NewSessionMiddleware(tokens),
		Metrics:        metrics,
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, token, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, env
}

type sessionData struct {
	Session struct {
		Token string `json:"token"`
	} `json:"session"`
	State struct {
		Account struct {
			ID     string `json:"id"`
			Visits int    `json:"visits"`
		} `json:"account"`
	} `json:"state"`
}

func register(t *testing.T, app *fiber.App, id string) string {
	t.Helper()
	status, env := doRequest(t, app, fiber.MethodPost, "/api/v1/accounts", "",
		`{"id":"`+id+`","name":"Ana","phone":"0412-5550000"}`)
	require.Equal(t, fiber.StatusCreated, status)

	var data sessionData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Session.Token)
	assert.Equal(t, id, data.State.Account.ID)
	assert.Equal(t, 0, data.State.Account.Visits)
	return data.Session.Token
}

func TestTiersEndpoint(t *testing.T) {
	app := newTestApp(t)

	status, env := doRequest(t, app, fiber.MethodGet, "/api/v1/tiers", "", "")
	require.Equal(t, fiber.StatusOK, status)

	var items []struct {
		ID       int  `json:"id"`
		Terminal bool `json:"terminal"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 4)
	assert.True(t, items[3].Terminal)
}

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApp(t)
	register(t, app, "12345678")

	status, env := doRequest(t, app, fiber.MethodPost, "/api/v1/accounts", "", `{"id":"12345678","name":"Otra"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DUPLICATE_ACCOUNT", env.Error.Code)

	status, env = doRequest(t, app, fiber.MethodPost, "/api/v1/sessions", "", `{"id":"12345678"}`)
	require.Equal(t, fiber.StatusOK, status)
	var data sessionData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.Session.Token)

	status, env = doRequest(t, app, fiber.MethodPost, "/api/v1/sessions", "", `{"id":"999"}`)
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestRegisterValidation(t *testing.T) {
	app := newTestApp(t)

	status, env := doRequest(t, app, fiber.MethodPost, "/api/v1/accounts", "", `{"id":"1"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Equal(t, "required", env.Error.Details["name"])
}

func TestMeRequiresSession(t *testing.T) {
	app := newTestApp(t)

	status, env := doRequest(t, app, fiber.MethodGet, "/api/v1/me", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, _ = doRequest(t, app, fiber.MethodGet, "/api/v1/me", "not-a-jwt", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestVisitAndRedeemFlow(t *testing.T) {
	app := newTestApp(t)
	token := register(t, app, "1")

	var milestone struct {
		Milestone *struct {
			ID int `json:"id"`
		} `json:"milestone"`
		State struct {
			Account struct {
				Visits int `json:"visits"`
			} `json:"account"`
		} `json:"state"`
	}
	for i := 1; i <= 3; i++ {
		status, env := doRequest(t, app, fiber.MethodPost, "/api/v1/me/visits", token, "")
		require.Equal(t, fiber.StatusCreated, status)
		require.NoError(t, json.Unmarshal(env.Data, &milestone))
		assert.Equal(t, i, milestone.State.Account.Visits)
	}
	require.NotNil(t, milestone.Milestone)
	assert.Equal(t, 1, milestone.Milestone.ID)

	status, env := doRequest(t, app, fiber.MethodPost, "/api/v1/me/redemptions/2", token, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TIER_NOT_COMPLETED", env.Error.Code)

	status, env = doRequest(t, app, fiber.MethodPost, "/api/v1/me/redemptions/99", token, "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, env = doRequest(t, app, fiber.MethodPost, "/api/v1/me/redemptions/abc", token, "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	var redeemed struct {
		Redeemed bool `json:"redeemed"`
		State    struct {
			Account struct {
				RedeemedLevels []int `json:"redeemed_levels"`
			} `json:"account"`
		} `json:"state"`
	}
	status, env = doRequest(t, app, fiber.MethodPost, "/api/v1/me/redemptions/1", token, "")
	require.Equal(t, fiber.StatusCreated, status)
	require.NoError(t, json.Unmarshal(env.Data, &redeemed))
	assert.True(t, redeemed.Redeemed)
	assert.Equal(t, []int{1}, redeemed.State.Account.RedeemedLevels)

	status, env = doRequest(t, app, fiber.MethodPost, "/api/v1/me/redemptions/1", token, "")
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &redeemed))
	assert.False(t, redeemed.Redeemed)
	assert.Equal(t, []int{1}, redeemed.State.Account.RedeemedLevels)

	var me struct {
		Progress struct {
			ActiveTierID int   `json:"active_tier_id"`
			Redeemable   []int `json:"redeemable"`
		} `json:"progress"`
	}
	status, env = doRequest(t, app, fiber.MethodGet, "/api/v1/me", token, "")
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, 2, me.Progress.ActiveTierID)
	assert.Empty(t, me.Progress.Redeemable)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	app := newTestApp(t)
	token := register(t, app, "1")

	status, _ := doRequest(t, app, fiber.MethodDelete, "/api/v1/sessions/current", token, "")
	require.Equal(t, fiber.StatusNoContent, status)

	status, _ = doRequest(t, app, fiber.MethodGet, "/api/v1/me", token, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = doRequest(t, app, fiber.MethodPost, "/api/v1/sessions", "", `{"id":"1"}`)
	assert.Equal(t, fiber.StatusOK, status, "account survives logout")
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	status, _ := doRequest(t, app, fiber.MethodGet, "/health/live", "", "")
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = doRequest(t, app, fiber.MethodGet, "/health/ready", "", "")
	assert.Equal(t, fiber.StatusOK, status)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "loyalty_http_requests_total")
}
