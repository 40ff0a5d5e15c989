package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
	"github.com/kursadbilgin/campaign-engine/internal/service"
)

type DispatchService interface {
	Send(ctx context.Context, actor domain.Actor, campaignID string) (*service.DispatchResult, error)
}

type CampaignHandler struct {
	dispatch DispatchService
}

func NewCampaignHandler(dispatch DispatchService) (*CampaignHandler, error) {
	if dispatch == nil {
		return nil, fmt.Errorf("dispatch service is required")
	}
	return &CampaignHandler{dispatch: dispatch}, nil
}

func RegisterCampaignRoutes(router fiber.Router, dispatch DispatchService) error {
	h, err := NewCampaignHandler(dispatch)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/campaigns/:id/send", h.SendCampaign)

	return nil
}

func (h *CampaignHandler) SendCampaign(c *fiber.Ctx) error {
	actor, err := actorFromRequest(c)
	if err != nil {
		return err
	}

	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fmt.Errorf("%w: campaign id is required", domain.ErrValidation)
	}

	result, err := h.dispatch.Send(c.Context(), actor, id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
