package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/guayoyo/loyalty-service/internal/api/dto"
	"github.com/guayoyo/loyalty-service/internal/auth"
	"github.com/guayoyo/loyalty-service/internal/domain"
	"github.com/guayoyo/loyalty-service/internal/service"
	apperrors "github.com/guayoyo/loyalty-service/pkg/util/errorutil"
)

// AccountsHandler exposes registration, login and the caller's account.
type AccountsHandler struct {
	loyalty  *service.LoyaltyService
	validate *validator.Validate
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(loyalty *service.LoyaltyService) *AccountsHandler {
	return &AccountsHandler{loyalty: loyalty, validate: validator.New()}
}

// Register handles POST /api/v1/accounts.
func (h *AccountsHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validate.Struct(req); err != nil {
		return apperrors.NewValidationError("id and name required", validationDetails(err))
	}

	session, token, err := h.loyalty.Register(c.UserContext(), req.ID, req.Name, req.Phone)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"session": dto.SessionResponse{Token: token.Token, ExpiresAt: token.ExpiresAt},
			"state":   h.state(session),
		},
	})
}

// Login handles POST /api/v1/sessions.
func (h *AccountsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validate.Struct(req); err != nil {
		return apperrors.NewValidationError("id required", validationDetails(err))
	}

	session, token, err := h.loyalty.Login(c.UserContext(), req.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"session": dto.SessionResponse{Token: token.Token, ExpiresAt: token.ExpiresAt},
			"state":   h.state(session),
		},
	})
}

// Logout handles DELETE /api/v1/sessions/current.
func (h *AccountsHandler) Logout(c *fiber.Ctx) error {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("session required")
	}
	if err := h.loyalty.Logout(c.UserContext(), claims.SessionID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Me handles GET /api/v1/me.
func (h *AccountsHandler) Me(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}
	if err := session.Refresh(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.state(session)})
}

// RecordVisit handles POST /api/v1/me/visits.
func (h *AccountsHandler) RecordVisit(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return err
	}

	result, err := session.RecordVisit(c.UserContext())
	if err != nil {
		return err
	}

	data := fiber.Map{"state": h.accountState(result.Account)}
	if result.Milestone != nil {
		data["milestone"] = dto.NewTierResponse(*result.Milestone)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": data})
}

// Redeem handles POST /api/v1/me/redemptions/:tierId.
func (h *AccountsHandler) Redeem(c *fiber.Ctx) error {
	tierID, err := c.ParamsInt("tierId")
	if err != nil || tierID <= 0 {
		return apperrors.NewValidationError("invalid tier id", map[string]any{"tier_id": c.Params("tierId")})
	}

	session, err := h.session(c)
	if err != nil {
		return err
	}

	account, changed, err := session.RedeemTier(c.UserContext(), tierID)
	if err != nil {
		return err
	}

	status := http.StatusOK
	if changed {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"data": fiber.Map{
			"redeemed": changed,
			"state":    h.accountState(account),
		},
	})
}

func (h *AccountsHandler) session(c *fiber.Ctx) (*service.Session, error) {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("session required")
	}
	return h.loyalty.Resume(c.UserContext(), claims.SessionID, claims.AccountID)
}

func (h *AccountsHandler) state(session *service.Session) dto.AccountStateResponse {
	account := session.Account()
	if account == nil {
		return dto.AccountStateResponse{}
	}
	return h.accountState(account)
}

func (h *AccountsHandler) accountState(account *domain.Account) dto.AccountStateResponse {
	return dto.AccountStateResponse{
		Account:  dto.NewAccountResponse(account),
		Progress: dto.NewProgressResponse(h.loyalty.Progress(account), h.loyalty.Catalog().Tiers()),
	}
}

func validationDetails(err error) map[string]any {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return details
}
