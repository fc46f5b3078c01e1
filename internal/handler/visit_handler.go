package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/relawan-api/internal/dto"
	"github.com/noah-isme/relawan-api/internal/middleware"
	"github.com/noah-isme/relawan-api/internal/service"
	"github.com/noah-isme/relawan-api/internal/utils"
)

// VisitGates holds the middleware guarding each group of visit routes.
// A nil gate lets the request through.
type VisitGates struct {
	Read   fiber.Handler
	Create fiber.Handler
	Review fiber.Handler
	Delete fiber.Handler
	// Write throttles every mutating route.
	Write fiber.Handler
}

// VisitHandler exposes the kunjungan workflow.
type VisitHandler struct {
	service service.VisitService
	logger  zerolog.Logger
}

// NewVisitHandler constructs the handler.
func NewVisitHandler(service service.VisitService, logger zerolog.Logger) *VisitHandler {
	return &VisitHandler{
		service: service,
		logger:  logger.With().Str("component", "visit_handler").Logger(),
	}
}

// Register attaches visit routes to the router group.
func (h *VisitHandler) Register(router fiber.Router, gates VisitGates) {
	read := orPassThrough(gates.Read)
	create := orPassThrough(gates.Create)
	review := orPassThrough(gates.Review)
	remove := orPassThrough(gates.Delete)
	write := orPassThrough(gates.Write)

	router.Get("/", read, h.list)
	router.Get("/:id", read, h.get)
	router.Post("/", create, write, h.create)
	router.Put("/:id", create, write, h.update)
	router.Post("/:id/verify", review, write, h.verify)
	router.Post("/:id/reject", review, write, h.reject)
	router.Post("/:id/revision", review, write, h.revision)
	router.Delete("/:id", remove, write, h.delete)
}

func (h *VisitHandler) list(c *fiber.Ctx) error {
	principal, ok := currentPrincipal(c)
	if !ok {
		return unauthenticated(c)
	}

	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	volunteerID, err := parseQueryInt(c, "relawan_id")
	if err != nil || volunteerID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid relawan id")
	}

	req := dto.VisitListRequest{
		Page:        page,
		PageSize:    pageSize,
		VolunteerID: uint(volunteerID),
		Status:      c.Query("status"),
		Search:      c.Query("search"),
	}

	response, err := h.service.List(requestContext(c), *principal, req)
	if err != nil {
		return h.fail(c, err, "failed to list visits")
	}

	return utils.OK(c, response.Items, "visits", response.Pagination)
}

func (h *VisitHandler) get(c *fiber.Ctx) error {
	principal, ok := currentPrincipal(c)
	if !ok {
		return unauthenticated(c)
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid visit id")
	}

	visit, err := h.service.Get(requestContext(c), *principal, id)
	if err != nil {
		return h.fail(c, err, "failed to load visit")
	}

	return utils.SendSuccess(c, "visit", visit)
}

func (h *VisitHandler) create(c *fiber.Ctx) error {
	principal, ok := currentPrincipal(c)
	if !ok {
		return unauthenticated(c)
	}

	var payload dto.VisitCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	visit, err := h.service.Create(requestContext(c), *principal, payload)
	if err != nil {
		return h.fail(c, err, "failed to create visit")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "visit created", visit)
}

func (h *VisitHandler) update(c *fiber.Ctx) error {
	principal, ok := currentPrincipal(c)
	if !ok {
		return unauthenticated(c)
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid visit id")
	}

	var payload dto.VisitUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	visit, err := h.service.Update(requestContext(c), *principal, id, payload)
	if err != nil {
		return h.fail(c, err, "failed to update visit")
	}

	return utils.SendSuccess(c, "visit updated", visit)
}

func (h *VisitHandler) verify(c *fiber.Ctx) error {
	principal, ok := currentPrincipal(c)
	if !ok {
		return unauthenticated(c)
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid visit id")
	}

	visit, err := h.service.Verify(requestContext(c), *principal, id)
	if err != nil {
		return h.fail(c, err, "failed to verify visit")
	}

	return utils.SendSuccess(c, "visit verified", visit)
}

func (h *VisitHandler) reject(c *fiber.Ctx) error {
	principal, ok := currentPrincipal(c)
	if !ok {
		return unauthenticated(c)
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid visit id")
	}

	var payload dto.VisitRejectRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	visit, err := h.service.Reject(requestContext(c), *principal, id, payload)
	if err != nil {
		return h.fail(c, err, "failed to reject visit")
	}

	return utils.SendSuccess(c, "visit rejected", visit)
}

func (h *VisitHandler) revision(c *fiber.Ctx) error {
	principal, ok := currentPrincipal(c)
	if !ok {
		return unauthenticated(c)
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid visit id")
	}

	var payload dto.VisitRevisionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	visit, err := h.service.RequestRevision(requestContext(c), *principal, id, payload)
	if err != nil {
		return h.fail(c, err, "failed to request revision")
	}

	return utils.SendSuccess(c, "revision requested", visit)
}

func (h *VisitHandler) delete(c *fiber.Ctx) error {
	principal, ok := currentPrincipal(c)
	if !ok {
		return unauthenticated(c)
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid visit id")
	}

	if err := h.service.Delete(requestContext(c), *principal, id); err != nil {
		return h.fail(c, err, "failed to delete visit")
	}

	return utils.SendSuccess(c, "visit deleted", nil)
}

func (h *VisitHandler) fail(c *fiber.Ctx, err error, message string) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	case errors.Is(err, service.ErrEmptyAfterSanitization):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrVisitNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrVisitForbidden):
		return utils.SendError(c, fiber.StatusForbidden, middleware.ForbiddenMessage)
	case errors.Is(err, service.ErrInvalidVisitState):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	}

	requestLogger(h.logger, c).Error().Err(err).Msg(message)
	return utils.SendError(c, fiber.StatusInternalServerError, message)
}
