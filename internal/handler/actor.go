package handler

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
)

// Identity headers set by the upstream API gateway after authentication.
const (
	headerUserID    = "X-User-Id"
	headerTenantID  = "X-Tenant-Id"
	headerUserRole  = "X-User-Role"
	headerUserEmail = "X-User-Email"
)

func actorFromRequest(c *fiber.Ctx) (domain.Actor, error) {
	userID := strings.TrimSpace(c.Get(headerUserID))
	tenantID := strings.TrimSpace(c.Get(headerTenantID))
	if userID == "" || tenantID == "" {
		return domain.Actor{}, fmt.Errorf("%w: missing identity headers", domain.ErrUnauthorized)
	}

	role, err := domain.ParseRoleFromString(c.Get(headerUserRole))
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: missing or invalid role header", domain.ErrUnauthorized)
	}

	return domain.Actor{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		Email:    strings.TrimSpace(c.Get(headerUserEmail)),
	}, nil
}
