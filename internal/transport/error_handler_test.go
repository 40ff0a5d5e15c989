package transport

import (
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/kursadbilgin/campaign-engine/internal/domain"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{name: "validation", err: fmt.Errorf("%w: bad input", domain.ErrValidation), wantStatus: 400, wantKind: KindValidation},
		{name: "not found", err: domain.ErrNotFound, wantStatus: 404, wantKind: KindNotFound},
		{name: "conflict", err: fmt.Errorf("%w: already sending", domain.ErrConflict), wantStatus: 409, wantKind: KindConflict},
		{name: "unauthorized", err: domain.ErrUnauthorized, wantStatus: 403, wantKind: KindUnauthorized},
		{name: "not entitled", err: domain.ErrNotEntitled, wantStatus: 403, wantKind: KindNotEntitled},
		{name: "insufficient credits", err: domain.ErrInsufficientCredits, wantStatus: 402, wantKind: KindInsufficientCredits},
		{name: "wrapped twice", err: fmt.Errorf("send: %w", fmt.Errorf("%w: SMS short", domain.ErrInsufficientCredits)), wantStatus: 402, wantKind: KindInsufficientCredits},
		{name: "fiber 4xx", err: fiber.NewError(fiber.StatusUnprocessableEntity, "bad body"), wantStatus: 422, wantKind: KindValidation},
		{name: "unknown", err: fmt.Errorf("pq: connection reset"), wantStatus: 500, wantKind: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status, kind := Classify(tt.err)
			if status != tt.wantStatus || kind != tt.wantKind {
				t.Fatalf("Classify() = (%d, %s), want (%d, %s)", status, kind, tt.wantStatus, tt.wantKind)
			}
		})
	}
}
