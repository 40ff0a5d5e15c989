package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
	"github.com/kursadbilgin/campaign-engine/internal/entitlement"
	"github.com/kursadbilgin/campaign-engine/internal/service"
)

type SubscriptionService interface {
	Sweep(ctx context.Context) (*service.SweepResult, error)
	Assign(ctx context.Context, actor domain.Actor, tenantID string, plan domain.Plan, durationMonths *int, notes string) (*domain.Tenant, error)
	Renew(ctx context.Context, actor domain.Actor, tenantID string, durationMonths int) (*domain.Tenant, error)
}

type CreditService interface {
	Balances(ctx context.Context, tenantID string) (*service.CreditBalances, error)
	Topup(ctx context.Context, actor domain.Actor, tenantID string, channel domain.Channel, amount int64, description string) (*domain.CreditTransaction, error)
}

// CredentialStore seals and persists per-tenant gateway credentials.
type CredentialStore interface {
	Save(ctx context.Context, tenantID string, channel domain.Channel, apiKey, senderID string) error
}

type TenantHandler struct {
	subscriptions SubscriptionService
	credits       CreditService
	credentials   CredentialStore
}

func NewTenantHandler(subscriptions SubscriptionService, credits CreditService, credentials CredentialStore) (*TenantHandler, error) {
	if subscriptions == nil {
		return nil, fmt.Errorf("subscription service is required")
	}
	if credits == nil {
		return nil, fmt.Errorf("credit service is required")
	}
	if credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	return &TenantHandler{subscriptions: subscriptions, credits: credits, credentials: credentials}, nil
}

func RegisterTenantRoutes(router fiber.Router, subscriptions SubscriptionService, credits CreditService, credentials CredentialStore) error {
	h, err := NewTenantHandler(subscriptions, credits, credentials)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/subscriptions/sweep", h.SweepSubscriptions)
	v1.Put("/tenants/:id/plan", h.AssignPlan)
	v1.Post("/tenants/:id/renew", h.RenewSubscription)
	v1.Get("/tenants/:id/credits", h.GetCredits)
	v1.Post("/tenants/:id/credits/topup", h.TopupCredits)
	v1.Put("/tenants/:id/credentials", h.SaveCredentials)

	return nil
}

type assignPlanRequest struct {
	Plan           string `json:"plan"`
	DurationMonths *int   `json:"durationMonths"`
	Notes          string `json:"notes"`
}

type renewRequest struct {
	DurationMonths int `json:"durationMonths"`
}

type topupRequest struct {
	Channel     string `json:"channel"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

type saveCredentialsRequest struct {
	Channel  string `json:"channel"`
	APIKey   string `json:"apiKey"`
	SenderID string `json:"senderId"`
}

type tenantSubscriptionResponse struct {
	TenantID           string     `json:"tenantId"`
	Plan               string     `json:"plan"`
	SubscriptionStatus string     `json:"subscriptionStatus"`
	StartsAt           *time.Time `json:"startsAt,omitempty"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
}

type creditTransactionResponse struct {
	TransactionID string `json:"transactionId"`
	Channel       string `json:"channel"`
	Amount        int64  `json:"amount"`
	BalanceAfter  int64  `json:"balanceAfter"`
}

func (h *TenantHandler) SweepSubscriptions(c *fiber.Ctx) error {
	result, err := h.subscriptions.Sweep(c.Context())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *TenantHandler) AssignPlan(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}

	var req assignPlanRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	plan, err := domain.ParsePlanFromString(req.Plan)
	if err != nil {
		return err
	}

	tenantID := strings.TrimSpace(c.Params("id"))
	tenant, err := h.subscriptions.Assign(c.Context(), actor, tenantID, plan, req.DurationMonths, req.Notes)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(toSubscriptionResponse(tenant))
}

func (h *TenantHandler) RenewSubscription(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}

	var req renewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	tenantID := strings.TrimSpace(c.Params("id"))
	tenant, err := h.subscriptions.Renew(c.Context(), actor, tenantID, req.DurationMonths)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(toSubscriptionResponse(tenant))
}

func (h *TenantHandler) GetCredits(c *fiber.Ctx) error {
	tenantID := strings.TrimSpace(c.Params("id"))
	balances, err := h.credits.Balances(c.Context(), tenantID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(balances)
}

func (h *TenantHandler) TopupCredits(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}

	var req topupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return err
	}

	tenantID := strings.TrimSpace(c.Params("id"))
	txn, err := h.credits.Topup(c.Context(), actor, tenantID, channel, req.Amount, strings.TrimSpace(req.Description))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(creditTransactionResponse{
		TransactionID: txn.ID,
		Channel:       txn.Channel.String(),
		Amount:        txn.Amount,
		BalanceAfter:  txn.BalanceAfter,
	})
}

// SaveCredentials replaces the stored gateway credentials for one leg. The
// plaintext key only exists for the duration of the request; the row is
// sealed before it reaches the database.
func (h *TenantHandler) SaveCredentials(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}
	if !entitlement.HasPermission(actor.Role, entitlement.PermPlanManage) {
		return fmt.Errorf("%w: role %s may not manage credentials", domain.ErrUnauthorized, actor.Role)
	}

	var req saveCredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return err
	}

	tenantID := strings.TrimSpace(c.Params("id"))
	if err := h.credentials.Save(c.Context(), tenantID, channel, req.APIKey, req.SenderID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func toSubscriptionResponse(t *domain.Tenant) tenantSubscriptionResponse {
	return tenantSubscriptionResponse{
		TenantID:           t.ID,
		Plan:               t.Plan.String(),
		SubscriptionStatus: t.SubscriptionStatus.String(),
		StartsAt:           t.SubscriptionStartsAt,
		ExpiresAt:          t.SubscriptionExpiresAt,
	}
}
