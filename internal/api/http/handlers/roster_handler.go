package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// RosterHandler exposes the read-only handler roster.
type RosterHandler struct {
	handlers repository.HandlerRepository
}

// NewRosterHandler constructs handler.
func NewRosterHandler(handlerRepo repository.HandlerRepository) *RosterHandler {
	return &RosterHandler{handlers: handlerRepo}
}

// ListHandlers GET /handlers.
func (h *RosterHandler) ListHandlers(c *fiber.Ctx) error {
	active, err := h.handlers.ListActive(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.HandlerResponse, 0, len(active))
	for _, handler := range active {
		items = append(items, dto.HandlerResponse{
			ID:         handler.ID,
			Name:       handler.Name,
			Email:      handler.Email,
			Role:       handler.Role,
			Department: handler.Department,
			Expertise:  handler.Expertise,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
