package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/relawan-api/internal/dto"
	"github.com/noah-isme/relawan-api/internal/models"
	"github.com/noah-isme/relawan-api/internal/notification"
	"github.com/noah-isme/relawan-api/internal/observability"
	"github.com/noah-isme/relawan-api/internal/repository"
)

const notificationBufferSize = 16

// NotificationDispatcher persists one notification per event and recipient.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, recipientID uint, event notification.Event) (dto.NotificationResponse, error)
}

// NotificationService dispatches notifications and serves them to their recipients.
type NotificationService interface {
	NotificationDispatcher
	// Broadcast pushes already committed notifications to stream clients and remote channels.
	Broadcast(ctx context.Context, notifications ...dto.NotificationResponse)
	List(ctx context.Context, userID uint, req dto.NotificationListRequest) (dto.NotificationListResponse, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
	Delete(ctx context.Context, id, userID uint) error
	Subscribe(userID uint) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
	WithTx(tx *gorm.DB) NotificationService
}

type notificationService struct {
	repo      repository.NotificationRepository
	renderer  *notification.Renderer
	channels  []NotificationChannel
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
	broker    *notificationBroker
	nodeID    string
}

type notificationEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs a notification service. channels may be empty.
func NewNotificationService(repo repository.NotificationRepository, renderer *notification.Renderer, channels []NotificationChannel, logger zerolog.Logger) NotificationService {
	return &notificationService{
		repo:      repo,
		renderer:  renderer,
		channels:  channels,
		logger:    logger.With().Str("component", "notification_service").Logger(),
		tracer:    observability.Tracer("service/notification"),
		sanitizer: bluemonday.StrictPolicy(),
		broker: &notificationBroker{
			subscribers: make(map[uint]map[chan dto.NotificationResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *notificationService) WithTx(tx *gorm.DB) NotificationService {
	clone := *s
	clone.repo = s.repo.WithTx(tx)
	return &clone
}

func (s *notificationService) Start(ctx context.Context) {
	for _, channel := range s.channels {
		go func(channel NotificationChannel) {
			if err := channel.Consume(ctx, s.handleEvent); err != nil {
				s.logger.Error().Err(err).Str("channel", channel.Name()).Msg("notification subscription closed")
			}
		}(channel)
	}
}

func (s *notificationService) Dispatch(ctx context.Context, recipientID uint, event notification.Event) (dto.NotificationResponse, error) {
	if recipientID == 0 {
		return dto.NotificationResponse{}, errors.New("notification recipient is required")
	}
	if err := notification.Validate(event); err != nil {
		return dto.NotificationResponse{}, err
	}

	kind := string(event.Kind())
	spanCtx, span := s.tracer.Start(ctx, "notifications.dispatch", trace.WithAttributes(
		attribute.Int64("notification.user_id", int64(recipientID)),
		attribute.String("notification.type", kind),
	))
	defer span.End()

	message, err := s.renderer.Message(event)
	if err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	model := models.Notification{
		UserID:      recipientID,
		Type:        kind,
		Message:     plainText(s.sanitizer, message),
		Data:        datatypes.JSONMap(event.Payload()),
		RedirectURL: s.renderer.Link(event),
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		s.logger.Error().Err(err).Str("type", kind).Uint("user_id", recipientID).Msg("failed to persist notification")
		return dto.NotificationResponse{}, fmt.Errorf("%w: notification: %v", ErrPersistence, err)
	}

	observability.NotificationsDispatched().WithLabelValues(kind).Inc()
	return dto.NewNotificationResponse(model), nil
}

func (s *notificationService) Broadcast(ctx context.Context, notifications ...dto.NotificationResponse) {
	for _, item := range notifications {
		s.broker.broadcast(item.UserID, item)
		observability.NotificationsFanout().WithLabelValues("stream", "ok").Inc()

		if len(s.channels) == 0 {
			continue
		}

		payload, err := json.Marshal(notificationEvent{Source: s.nodeID, Notification: item, SentAt: time.Now().UTC()})
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to encode notification event")
			continue
		}

		for _, channel := range s.channels {
			if err := channel.Publish(ctx, payload); err != nil {
				observability.NotificationsFanout().WithLabelValues(channel.Name(), "error").Inc()
				s.logger.Warn().Err(err).Str("channel", channel.Name()).Msg("failed to publish notification")
				continue
			}
			observability.NotificationsFanout().WithLabelValues(channel.Name(), "ok").Inc()
		}
	}
}

func (s *notificationService) List(ctx context.Context, userID uint, req dto.NotificationListRequest) (dto.NotificationListResponse, error) {
	if userID == 0 {
		return dto.NotificationListResponse{}, errors.New("user id is required")
	}

	items, total, err := s.repo.ListByUser(ctx, repository.NotificationFilter{
		UserID:     userID,
		UnreadOnly: req.UnreadOnly,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	return dto.NotificationListResponse{
		Items:  dto.NewNotificationResponseSlice(items),
		Total:  total,
		Unread: unread,
	}, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.Int64("notification.user_id", int64(userID)),
	))
	defer span.End()

	item, err := s.repo.MarkRead(spanCtx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(item), nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *notificationService) Delete(ctx context.Context, id, userID uint) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}

func (s *notificationService) Subscribe(userID uint) (<-chan dto.NotificationResponse, func()) {
	channel := make(chan dto.NotificationResponse, notificationBufferSize)

	s.broker.subscribe(userID, channel)
	observability.StreamClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(userID, channel)
			observability.StreamClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.broker.broadcast(event.Notification.UserID, event.Notification)
}

func (b *notificationBroker) subscribe(userID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
}

func (b *notificationBroker) unsubscribe(userID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[userID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, userID)
		}
	}
}

func (b *notificationBroker) broadcast(userID uint, notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[userID] {
		select {
		case ch <- notification:
		default:
		}
	}
}
