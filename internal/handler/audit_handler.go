package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/relawan-api/internal/dto"
	"github.com/noah-isme/relawan-api/internal/service"
	"github.com/noah-isme/relawan-api/internal/utils"
)

// AuditHandler exposes the read side of the audit ledger. Records are never written over HTTP.
type AuditHandler struct {
	service service.AuditService
	logger  zerolog.Logger
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(service service.AuditService, logger zerolog.Logger) *AuditHandler {
	return &AuditHandler{
		service: service,
		logger:  logger.With().Str("component", "audit_handler").Logger(),
	}
}

// Register attaches audit routes to the router group.
func (h *AuditHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
}

func (h *AuditHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	actorID, err := parseQueryInt(c, "actor_id")
	if err != nil || actorID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid actor id")
	}

	req := dto.AuditRecordListRequest{
		Page:       page,
		PageSize:   pageSize,
		ActorID:    uint(actorID),
		Action:     c.Query("action"),
		TargetType: c.Query("target_type"),
	}

	response, err := h.service.List(requestContext(c), req)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list audit records")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list audit records")
	}

	return utils.OK(c, response.Items, "audit records", response.Pagination)
}
