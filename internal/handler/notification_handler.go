package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/relawan-api/internal/dto"
	"github.com/noah-isme/relawan-api/internal/service"
	"github.com/noah-isme/relawan-api/internal/utils"
)

// NotificationHandler serves the recipient's inbox and its SSE stream.
type NotificationHandler struct {
	service   service.NotificationService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewNotificationHandler constructs a handler instance.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger, keepAlive time.Duration) *NotificationHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &NotificationHandler{
		service:   service,
		logger:    logger.With().Str("component", "notification_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the notification routes. write throttles the mutating routes and may be nil.
func (h *NotificationHandler) Register(router fiber.Router, write fiber.Handler) {
	write = orPassThrough(write)

	router.Get("/", h.list)
	router.Get("/unread-count", h.unreadCount)
	router.Get("/stream", h.stream)
	router.Patch("/read-all", write, h.markAllRead)
	router.Patch("/:id/read", write, h.markRead)
	router.Delete("/:id", write, h.delete)
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	principal, ok := currentPrincipal(c)
	if !ok {
		return unauthenticated(c)
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	req := dto.NotificationListRequest{
		UnreadOnly: c.QueryBool("unread_only", false),
		Limit:      limit,
		Offset:     offset,
	}

	notifications, err := h.service.List(requestContext(c), principal.UserID, req)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list notifications")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list notifications")
	}

	return utils.SendSuccess(c, "notifications", notifications)
}

func (h *NotificationHandler) unreadCount(c *fiber.Ctx) error {
	principal, ok := currentPrincipal(c)
	if !ok {
		return unauthenticated(c)
	}

	count, err := h.service.UnreadCount(requestContext(c), principal.UserID)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to count notifications")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to count notifications")
	}

	return utils.SendSuccess(c, "unread notifications", fiber.Map{"unread": count})
}

func (h *NotificationHandler) stream(c *fiber.Ctx) error {
	principal, ok := currentPrincipal(c)
	if !ok {
		return unauthenticated(c)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(requestContext(c))
	stream, cleanup := h.service.Subscribe(principal.UserID)
	keepAlive := h.keepAlive
	logger := requestLogger(h.logger, c).With().Uint("user_id", principal.UserID).Logger()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		if err := writeKeepAlive(w); err != nil {
			return
		}

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case notification, ok := <-stream:
				if !ok {
					return
				}
				if err := writeNotificationEvent(w, notification); err != nil {
					logger.Debug().Err(err).Msg("failed to write notification event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					logger.Debug().Err(err).Msg("notification stream closed")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	principal, ok := currentPrincipal(c)
	if !ok {
		return unauthenticated(c)
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid notification id")
	}

	notification, err := h.service.MarkRead(requestContext(c), id, principal.UserID)
	if err != nil {
		return h.fail(c, err, "failed to update notification")
	}

	return utils.SendSuccess(c, "notification updated", notification)
}

func (h *NotificationHandler) markAllRead(c *fiber.Ctx) error {
	principal, ok := currentPrincipal(c)
	if !ok {
		return unauthenticated(c)
	}

	updated, err := h.service.MarkAllRead(requestContext(c), principal.UserID)
	if err != nil {
		return h.fail(c, err, "failed to update notifications")
	}

	return utils.SendSuccess(c, "notifications updated", fiber.Map{"updated": updated})
}

func (h *NotificationHandler) delete(c *fiber.Ctx) error {
	principal, ok := currentPrincipal(c)
	if !ok {
		return unauthenticated(c)
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid notification id")
	}

	if err := h.service.Delete(requestContext(c), id, principal.UserID); err != nil {
		return h.fail(c, err, "failed to delete notification")
	}

	return utils.SendSuccess(c, "notification deleted", nil)
}

func (h *NotificationHandler) fail(c *fiber.Ctx, err error, message string) error {
	if errors.Is(err, service.ErrNotificationNotFound) {
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	}
	requestLogger(h.logger, c).Error().Err(err).Msg(message)
	return utils.SendError(c, fiber.StatusInternalServerError, message)
}

func writeNotificationEvent(w *bufio.Writer, notification dto.NotificationResponse) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "id: %d\nevent: notification\ndata: %s\n\n", notification.ID, payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
