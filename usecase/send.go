package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	domainGuest "github.com/staykit/staywap/domains/guest"
	domainHotel "github.com/staykit/staywap/domains/hotel"
	domainMessage "github.com/staykit/staywap/domains/message"
	"github.com/staykit/staywap/infrastructure/events"
	"github.com/staykit/staywap/infrastructure/greenapi"
	pkgError "github.com/staykit/staywap/pkg/error"
	"github.com/staykit/staywap/pkg/keylock"
	"github.com/staykit/staywap/pkg/metrics"
	"github.com/staykit/staywap/pkg/scheduler"
	"github.com/staykit/staywap/validations"
)

const (
	queueRetryBaseDelay = time.Minute
	scheduledSweepBatch = 50
)

type serviceSend struct {
	hotels        domainHotel.IHotelRepository
	guests        domainGuest.IGuestRepository
	conversations domainGuest.IConversationRepository
	messages      domainMessage.IMessageRepository
	queue         domainMessage.IQueueRepository
	pool          *greenapi.Pool
	tasks         scheduler.Scheduler
	locks         keylock.Locker
	monitor       *metrics.Monitor
	publisher     events.Publisher
}

func NewSendService(
	hotels domainHotel.IHotelRepository,
	guests domainGuest.IGuestRepository,
	conversations domainGuest.IConversationRepository,
	messages domainMessage.IMessageRepository,
	queue domainMessage.IQueueRepository,
	pool *greenapi.Pool,
	tasks scheduler.Scheduler,
	locks keylock.Locker,
	monitor *metrics.Monitor,
	publisher events.Publisher,
) domainMessage.ISendUsecase {
	if monitor == nil {
		monitor = metrics.Default
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &serviceSend{
		hotels:        hotels,
		guests:        guests,
		conversations: conversations,
		messages:      messages,
		queue:         queue,
		pool:          pool,
		tasks:         tasks,
		locks:         locks,
		monitor:       monitor,
		publisher:     publisher,
	}
}

func (s *serviceSend) SendText(ctx context.Context, req domainMessage.SendTextRequest) (*domainMessage.SendResponse, error) {
	if err := validations.ValidateSendText(ctx, req); err != nil {
		return nil, err
	}
	return s.enqueue(ctx, enqueueRequest{
		hotelID:    req.HotelID,
		phone:      req.Phone,
		msgType:    domainMessage.TypeText,
		content:    req.Message,
		priority:   req.Priority,
		scheduleAt: req.ScheduleAt,
	})
}

func (s *serviceSend) SendFile(ctx context.Context, req domainMessage.SendFileRequest) (*domainMessage.SendResponse, error) {
	if err := validations.ValidateSendFile(ctx, req); err != nil {
		return nil, err
	}
	content := req.Caption
	if content == "" {
		content = req.FileName
	}
	return s.enqueue(ctx, enqueueRequest{
		hotelID:    req.HotelID,
		phone:      req.Phone,
		msgType:    domainMessage.TypeDocument,
		content:    content,
		priority:   req.Priority,
		scheduleAt: req.ScheduleAt,
		metadata: map[string]any{
			"file_url":  req.FileURL,
			"file_name": req.FileName,
			"caption":   req.Caption,
		},
	})
}

func (s *serviceSend) SendLocation(ctx context.Context, req domainMessage.SendLocationRequest) (*domainMessage.SendResponse, error) {
	if err := validations.ValidateSendLocation(ctx, req); err != nil {
		return nil, err
	}
	content := fmt.Sprintf("Location: %.6f, %.6f", req.Latitude, req.Longitude)
	if req.Name != "" {
		content = "Location: " + req.Name
	}
	return s.enqueue(ctx, enqueueRequest{
		hotelID:  req.HotelID,
		phone:    req.Phone,
		msgType:  domainMessage.TypeLocation,
		content:  content,
		priority: req.Priority,
		metadata: map[string]any{
			"latitude":  req.Latitude,
			"longitude": req.Longitude,
			"name":      req.Name,
			"address":   req.Address,
		},
	})
}

type enqueueRequest struct {
	hotelID    string
	phone      string
	msgType    string
	content    string
	priority   string
	scheduleAt *time.Time
	metadata   map[string]any
}

// enqueue persists the outgoing message plus its queue row, then either
// dispatches immediately or leaves the row for the scheduled sweep.
func (s *serviceSend) enqueue(ctx context.Context, req enqueueRequest) (*domainMessage.SendResponse, error) {
	h, err := s.hotels.GetByID(ctx, req.hotelID)
	if err != nil {
		return nil, err
	}
	if !h.Enabled {
		return nil, pkgError.ValidationError("hotel is disabled")
	}

	g, err := resolveGuest(ctx, s.locks, s.guests, h.ID, req.phone, "")
	if err != nil {
		return nil, err
	}
	conv, err := resolveConversation(ctx, s.conversations, h.ID, g.ID)
	if err != nil {
		return nil, err
	}

	msg := &domainMessage.Message{
		HotelID:        h.ID,
		ConversationID: conv.ID,
		Direction:      domainMessage.DirectionOutgoing,
		Type:           req.msgType,
		Content:        req.content,
		Metadata:       req.metadata,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	priority := req.priority
	if priority == "" {
		priority = domainMessage.PriorityNormal
	}
	item := &domainMessage.QueueItem{
		HotelID:   h.ID,
		GuestID:   g.ID,
		MessageID: msg.ID,
		Phone:     g.Phone,
		Priority:  priority,
		Status:    domainMessage.QueuePending,
		Content:   req.content,
	}
	if req.scheduleAt != nil && req.scheduleAt.After(time.Now()) {
		item.Status = domainMessage.QueueScheduled
		item.ScheduledAt = req.scheduleAt
	}
	if err := s.queue.Create(ctx, item); err != nil {
		return nil, err
	}

	if item.Status == domainMessage.QueueScheduled {
		logrus.WithFields(logrus.Fields{
			"hotel_id":     h.ID,
			"queue_id":     item.ID,
			"scheduled_at": item.ScheduledAt,
		}).Info("[SEND] message scheduled")
		return &domainMessage.SendResponse{
			QueueID:   item.ID,
			MessageID: msg.ID,
			Status:    domainMessage.QueueScheduled,
		}, nil
	}

	gatewayID, dispatchErr := s.dispatch(ctx, h, item, msg)
	return s.responseFor(ctx, item.ID, msg.ID, gatewayID, dispatchErr), nil
}

// responseFor builds the API response after a dispatch attempt. A failed
// dispatch is not an API error: the row is queued for retry and the caller
// sees the failed status.
func (s *serviceSend) responseFor(ctx context.Context, queueID, messageID, gatewayID string, dispatchErr error) *domainMessage.SendResponse {
	status := domainMessage.QueueSent
	if dispatchErr != nil {
		status = domainMessage.QueueFailed
		if item, err := s.queue.GetByID(ctx, queueID); err == nil {
			status = item.Status
		}
	}
	return &domainMessage.SendResponse{
		QueueID:          queueID,
		MessageID:        messageID,
		Status:           status,
		GatewayMessageID: gatewayID,
	}
}

// dispatch pushes one queue row through the gateway client. On failure the
// row is marked failed and, while retries remain, a delayed retry is
// scheduled at 60s, 120s, 240s.
func (s *serviceSend) dispatch(ctx context.Context, h *domainHotel.Hotel, item *domainMessage.QueueItem, msg *domainMessage.Message) (string, error) {
	now := time.Now().UTC()
	if err := s.queue.MarkSending(ctx, item.ID, now); err != nil {
		return "", err
	}

	result, err := s.callGateway(ctx, h, item, msg)
	if err != nil {
		s.monitor.Record(metrics.Event{
			HotelID: h.ID,
			Stage:   metrics.StageSend,
			Kind:    msg.Type,
			Status:  "error",
			Error:   err.Error(),
		})
		if markErr := s.queue.MarkFailed(ctx, item.ID, err.Error()); markErr != nil {
			logrus.WithError(markErr).Errorf("[SEND] could not mark queue item %s failed", item.ID)
			return "", err
		}
		s.scheduleRetry(h.ID, item.ID, item.RetryCount)
		return "", err
	}

	if err := s.queue.MarkSent(ctx, item.ID, result.IDMessage, time.Now().UTC()); err != nil {
		return result.IDMessage, err
	}
	if err := s.messages.SetGatewayID(ctx, msg.ID, result.IDMessage); err != nil {
		return result.IDMessage, err
	}
	// Outbound deliveries count as guest interactions too.
	if err := s.guests.UpdateLastInteraction(ctx, item.GuestID, time.Now().UTC()); err != nil {
		logrus.WithError(err).Warnf("[SEND] could not stamp last interaction for guest %s", item.GuestID)
	}

	s.monitor.Record(metrics.Event{
		HotelID: h.ID,
		Stage:   metrics.StageSend,
		Kind:    msg.Type,
		Status:  "ok",
	})
	logrus.WithFields(logrus.Fields{
		"hotel_id":   h.ID,
		"queue_id":   item.ID,
		"gateway_id": result.IDMessage,
	}).Info("[SEND] message delivered to gateway")

	_ = s.publisher.Publish(ctx, events.Event{
		Type:    events.TypeMessageSent,
		HotelID: h.ID,
		Payload: map[string]any{
			"message_id": msg.ID,
			"queue_id":   item.ID,
			"gateway_id": result.IDMessage,
		},
	})
	return result.IDMessage, nil
}

func (s *serviceSend) callGateway(ctx context.Context, h *domainHotel.Hotel, item *domainMessage.QueueItem, msg *domainMessage.Message) (*greenapi.SendResult, error) {
	client, err := s.pool.GetForHotel(h)
	if err != nil {
		return nil, err
	}
	chatID := greenapi.ChatID(item.Phone)

	switch msg.Type {
	case domainMessage.TypeText:
		return client.SendText(ctx, greenapi.SendMessageRequest{
			ChatID:  chatID,
			Message: item.Content,
		})
	case domainMessage.TypeImage, domainMessage.TypeVideo, domainMessage.TypeAudio, domainMessage.TypeDocument:
		return client.SendFileByURL(ctx, greenapi.SendFileByURLRequest{
			ChatID:   chatID,
			URLFile:  metadataString(msg.Metadata, "file_url"),
			FileName: metadataString(msg.Metadata, "file_name"),
			Caption:  metadataString(msg.Metadata, "caption"),
		})
	case domainMessage.TypeLocation:
		return client.SendLocation(ctx, greenapi.SendLocationRequest{
			ChatID:       chatID,
			NameLocation: metadataString(msg.Metadata, "name"),
			Address:      metadataString(msg.Metadata, "address"),
			Latitude:     metadataFloat(msg.Metadata, "latitude"),
			Longitude:    metadataFloat(msg.Metadata, "longitude"),
		})
	default:
		return nil, fmt.Errorf("unsupported outgoing message type %q", msg.Type)
	}
}

// scheduleRetry books the delayed retry for a just-failed attempt.
// retryCountBefore is the row's count before MarkFailed incremented it, so
// the first failure waits one minute.
func (s *serviceSend) scheduleRetry(hotelID, queueID string, retryCountBefore int) {
	newCount := retryCountBefore + 1
	if newCount >= domainMessage.MaxQueueRetries {
		logrus.WithFields(logrus.Fields{
			"hotel_id": hotelID,
			"queue_id": queueID,
		}).Warn("[SEND] queue item exhausted automatic retries")
		return
	}

	delay := queueRetryBaseDelay * time.Duration(1<<retryCountBefore)
	name := fmt.Sprintf("queue-retry-%s-%d", queueID, newCount)
	err := s.tasks.Schedule(name, delay, func() {
		bg, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := s.RetryFailed(bg, queueID); err != nil {
			logrus.WithError(err).Warnf("[SEND] automatic retry of queue item %s failed", queueID)
		}
	})
	if err != nil {
		logrus.WithError(err).Errorf("[SEND] could not schedule retry for queue item %s", queueID)
		return
	}

	s.monitor.Record(metrics.Event{
		HotelID:    hotelID,
		Stage:      metrics.StageRetry,
		Kind:       "queue",
		Status:     "scheduled",
		DurationMs: delay.Milliseconds(),
	})
	logrus.WithFields(logrus.Fields{
		"hotel_id": hotelID,
		"queue_id": queueID,
		"attempt":  newCount,
		"delay":    delay,
	}).Info("[SEND] retry scheduled")
}

// RetryFailed re-dispatches a failed queue row. Works for both the
// automatic delayed retries and the manual REST retry endpoint.
func (s *serviceSend) RetryFailed(ctx context.Context, queueID string) (*domainMessage.SendResponse, error) {
	item, err := s.queue.GetByID(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if item.Status != domainMessage.QueueFailed {
		return nil, pkgError.ValidationError(domainMessage.ErrNotRetryable.Error())
	}

	h, err := s.hotels.GetByID(ctx, item.HotelID)
	if err != nil {
		return nil, err
	}
	msg, err := s.messages.GetByID(ctx, item.MessageID)
	if err != nil {
		return nil, err
	}

	gatewayID, dispatchErr := s.dispatch(ctx, h, item, msg)
	return s.responseFor(ctx, item.ID, msg.ID, gatewayID, dispatchErr), nil
}

func (s *serviceSend) GetQueueItem(ctx context.Context, queueID string) (*domainMessage.QueueItem, error) {
	return s.queue.GetByID(ctx, queueID)
}

// DispatchDueScheduled moves due scheduled rows into the send path. Runs on
// a periodic sweep; returns how many rows were attempted.
func (s *serviceSend) DispatchDueScheduled(ctx context.Context) int {
	due, err := s.queue.DueScheduled(ctx, time.Now().UTC(), scheduledSweepBatch)
	if err != nil {
		logrus.WithError(err).Error("[SEND] scheduled sweep query failed")
		return 0
	}

	attempted := 0
	for _, item := range due {
		h, err := s.hotels.GetByID(ctx, item.HotelID)
		if err != nil {
			logrus.WithError(err).Warnf("[SEND] scheduled item %s references unknown hotel", item.ID)
			continue
		}
		msg, err := s.messages.GetByID(ctx, item.MessageID)
		if err != nil {
			logrus.WithError(err).Warnf("[SEND] scheduled item %s references unknown message", item.ID)
			continue
		}
		attempted++
		if _, err := s.dispatch(ctx, h, item, msg); err != nil {
			logrus.WithError(err).Warnf("[SEND] scheduled dispatch of %s failed", item.ID)
		}
	}
	if attempted > 0 {
		logrus.Infof("[SEND] scheduled sweep dispatched %d item(s)", attempted)
	}
	return attempted
}

func metadataString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func metadataFloat(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// resolveGuest serializes the check-then-act on a per-(hotel, phone) key;
// the unique index backstops anything that still races through.
func resolveGuest(ctx context.Context, locks keylock.Locker, guests domainGuest.IGuestRepository, hotelID, phone, name string) (*domainGuest.Guest, error) {
	var out *domainGuest.Guest
	key := fmt.Sprintf("guest:%s:%s", hotelID, phone)

	err := keylock.WithLock(ctx, locks, key, guestLockTTL, func() error {
		g, err := guests.GetByPhone(ctx, hotelID, phone)
		if err == nil {
			out = g
			return nil
		}
		if !errors.Is(err, domainGuest.ErrGuestNotFound) {
			return err
		}

		g = &domainGuest.Guest{
			HotelID: hotelID,
			Phone:   phone,
			Name:    name,
			Preferences: map[string]any{
				"first_contact": time.Now().UTC().Format(time.RFC3339),
			},
		}
		if err := guests.Create(ctx, g); err != nil {
			if errors.Is(err, domainGuest.ErrDuplicateGuest) {
				// Lost the race to another node; re-read.
				out, err = guests.GetByPhone(ctx, hotelID, phone)
				return err
			}
			return err
		}
		logrus.WithFields(logrus.Fields{
			"hotel_id": hotelID,
			"phone":    phone,
		}).Info("[GUEST] new guest created")
		out = g
		return nil
	})
	return out, err
}

func resolveConversation(ctx context.Context, conversations domainGuest.IConversationRepository, hotelID, guestID string) (*domainGuest.Conversation, error) {
	conv, err := conversations.GetActive(ctx, hotelID, guestID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, domainGuest.ErrConversationNotFound) {
		return nil, err
	}

	conv = &domainGuest.Conversation{
		HotelID: hotelID,
		GuestID: guestID,
		Status:  domainGuest.ConversationActive,
	}
	if err := conversations.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}
