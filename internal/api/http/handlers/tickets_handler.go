package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/service"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Title == "" || req.Description == "" {
		return apperrors.NewValidationError("title, description required", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), service.TicketCreateInput{
		RequesterName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter := parseTicketQuery(c)
	tickets, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, trail, stages, err := h.service.GetTicketDetail(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, trail, stages)})
}

// TriggerTriage POST /tickets/:id/triage. Enqueues the run; processing is
// asynchronous.
func (h *TicketsHandler) TriggerTriage(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	if err := h.service.EnqueueTriage(c.UserContext(), ticketID); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{
		"ticket_id": ticketID,
		"status":    "queued",
	}})
}

// ChangeStatus POST /tickets/:id/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}

	ticket, err := h.service.ChangeStatus(c.UserContext(), c.Params("id"), service.StatusChangeInput{
		Status:     req.Status,
		Comment:    req.Comment,
		Resolution: req.Resolution,
		Actor:      req.Actor,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ReopenTicket POST /tickets/:id/reopen.
func (h *TicketsHandler) ReopenTicket(c *fiber.Ctx) error {
	actor := "admin"
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err == nil && req.Actor != "" {
		actor = req.Actor
	}
	ticket, err := h.service.ReopenTicket(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Metrics GET /metrics/tickets.
func (h *TicketsHandler) Metrics(c *fiber.Ctx) error {
	metrics, err := h.service.Metrics(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketMetricsResponse{
		Total:             metrics.Total,
		ByStatus:          metrics.ByStatus,
		BySeverity:        metrics.BySeverity,
		AvgResolutionDays: metrics.AvgResolutionDays,
	}})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if severityStr := c.Query("severity"); severityStr != "" {
		for _, part := range strings.Split(severityStr, ",") {
			filter.Severities = append(filter.Severities, domain.TicketSeverity(strings.TrimSpace(part)))
		}
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:                   ticket.ID,
		ExternalKey:          ticket.ExternalKey,
		Title:                ticket.Title,
		Status:               ticket.Status,
		Category:             ticket.Category,
		Severity:             ticket.Severity,
		Priority:             ticket.Priority,
		AssignedHandlerEmail: ticket.AssignedHandlerEmail,
		CreatedAt:            ticket.CreatedAt,
		UpdatedAt:            ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, trail []domain.AuditEntry, stages []domain.StageResult) dto.TicketDetailResponse {
	auditResp := make([]dto.AuditEntryResponse, 0, len(trail))
	for _, entry := range trail {
		auditResp = append(auditResp, dto.AuditEntryResponse{
			ID:        entry.ID,
			Action:    string(entry.Action),
			Actor:     entry.Actor,
			Details:   entry.Details,
			Metadata:  entry.Metadata,
			CreatedAt: entry.CreatedAt,
		})
	}
	stageResp := make([]dto.StageResultResponse, 0, len(stages))
	for _, stage := range stages {
		stageResp = append(stageResp, dto.StageResultResponse{
			ID:        stage.ID,
			Stage:     stage.StageName,
			Text:      stage.Text,
			CreatedAt: stage.CreatedAt,
		})
	}
	return dto.TicketDetailResponse{
		ID:                   ticket.ID,
		ExternalKey:          ticket.ExternalKey,
		RequesterName:        ticket.RequesterName,
		RequesterEmail:       ticket.RequesterEmail,
		Title:                ticket.Title,
		Description:          ticket.Description,
		Status:               ticket.Status,
		Category:             ticket.Category,
		Severity:             ticket.Severity,
		Priority:             ticket.Priority,
		AssignedHandlerID:    ticket.AssignedHandlerID,
		AssignedHandlerEmail: ticket.AssignedHandlerEmail,
		AssignmentReason:     ticket.AssignmentReason,
		Resolution:           ticket.Resolution,
		CreatedAt:            ticket.CreatedAt,
		UpdatedAt:            ticket.UpdatedAt,
		ResolvedAt:           ticket.ResolvedAt,
		AuditTrail:           auditResp,
		StageResults:         stageResp,
	}
}
