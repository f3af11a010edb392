package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	domainGuest "github.com/staykit/staywap/domains/guest"
	domainHotel "github.com/staykit/staywap/domains/hotel"
	domainMessage "github.com/staykit/staywap/domains/message"
	domainNotification "github.com/staykit/staywap/domains/notification"
	domainWebhook "github.com/staykit/staywap/domains/webhook"
	"github.com/staykit/staywap/infrastructure/events"
	"github.com/staykit/staywap/infrastructure/greenapi"
	pkgError "github.com/staykit/staywap/pkg/error"
	"github.com/staykit/staywap/pkg/keylock"
	"github.com/staykit/staywap/pkg/metrics"
	"github.com/staykit/staywap/pkg/scheduler"
)

// Responder is the narrow AI surface the webhook processor consumes.
// The DeepSeek integration implements it; tests stub it.
type Responder interface {
	GenerateReply(ctx context.Context, systemPrompt, model, guestName, text string) (string, error)
}

const (
	hotelCacheTTL = time.Minute
	guestLockTTL  = 5 * time.Second
)

type serviceWebhook struct {
	hotels        domainHotel.IHotelRepository
	guests        domainGuest.IGuestRepository
	conversations domainGuest.IConversationRepository
	messages      domainMessage.IMessageRepository
	notifications domainNotification.INotificationRepository
	sender        domainMessage.ISendUsecase
	responder     Responder
	tasks         scheduler.Scheduler
	locks         keylock.Locker
	monitor       *metrics.Monitor
	publisher     events.Publisher
	hotelCache    *gocache.Cache
}

func NewWebhookService(
	hotels domainHotel.IHotelRepository,
	guests domainGuest.IGuestRepository,
	conversations domainGuest.IConversationRepository,
	messages domainMessage.IMessageRepository,
	notifications domainNotification.INotificationRepository,
	sender domainMessage.ISendUsecase,
	responder Responder,
	tasks scheduler.Scheduler,
	locks keylock.Locker,
	monitor *metrics.Monitor,
	publisher events.Publisher,
) domainWebhook.IWebhookUsecase {
	if monitor == nil {
		monitor = metrics.Default
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &serviceWebhook{
		hotels:        hotels,
		guests:        guests,
		conversations: conversations,
		messages:      messages,
		notifications: notifications,
		sender:        sender,
		responder:     responder,
		tasks:         tasks,
		locks:         locks,
		monitor:       monitor,
		publisher:     publisher,
		hotelCache:    gocache.New(hotelCacheTTL, 5*time.Minute),
	}
}

// ResolveHotel authenticates a webhook delivery. Hotel snapshots are cached
// briefly so message bursts don't turn into one DB read per event.
func (s *serviceWebhook) ResolveHotel(ctx context.Context, hotelID, token string) (*domainHotel.Hotel, error) {
	var h *domainHotel.Hotel
	if cached, ok := s.hotelCache.Get(hotelID); ok {
		h = cached.(*domainHotel.Hotel)
	} else {
		loaded, err := s.hotels.GetByID(ctx, hotelID)
		if err != nil {
			return nil, err
		}
		s.hotelCache.Set(hotelID, loaded, gocache.DefaultExpiration)
		h = loaded
	}

	if h.WebhookToken != "" && h.WebhookToken != token {
		return nil, pkgError.UnauthorizedError("invalid webhook token")
	}
	if !h.Enabled {
		return nil, pkgError.UnauthorizedError("hotel is disabled")
	}
	return h, nil
}

// InvalidateHotel drops the cached snapshot so the next webhook re-reads
// the hotel. Called when settings change outside the webhook path.
func (s *serviceWebhook) InvalidateHotel(hotelID string) {
	s.hotelCache.Delete(hotelID)
}

// Process routes one inbound gateway event. Unknown types are logged and
// dropped without error.
func (s *serviceWebhook) Process(ctx context.Context, h *domainHotel.Hotel, payload domainWebhook.Payload) error {
	s.monitor.Record(metrics.Event{
		HotelID: h.ID,
		Stage:   metrics.StageWebhook,
		Kind:    payload.TypeWebhook,
		Status:  "ok",
	})

	switch payload.TypeWebhook {
	case domainWebhook.TypeIncomingMessage:
		return s.handleIncomingMessage(ctx, h, payload)
	case domainWebhook.TypeOutgoingMessage:
		return s.handleOutgoingMessage(ctx, h, payload)
	case domainWebhook.TypeMessageStatus:
		return s.handleMessageStatus(ctx, h, payload)
	case domainWebhook.TypeStateInstance:
		return s.handleStateInstance(ctx, h, payload)
	case domainWebhook.TypeDeviceInfo:
		return s.handleDeviceInfo(ctx, h, payload)
	default:
		logrus.WithFields(logrus.Fields{
			"hotel_id":     h.ID,
			"type_webhook": payload.TypeWebhook,
		}).Warn("[WEBHOOK] unknown webhook type, dropping")
		return nil
	}
}

func (s *serviceWebhook) handleIncomingMessage(ctx context.Context, h *domainHotel.Hotel, payload domainWebhook.Payload) error {
	if payload.SenderData == nil || payload.MessageData == nil {
		return pkgError.WebhookError("incoming message payload missing senderData or messageData")
	}

	phone := greenapi.PhoneFromChatID(payload.SenderData.ChatID)
	if phone == "" {
		return pkgError.WebhookError("incoming message has empty chat id")
	}

	g, err := resolveGuest(ctx, s.locks, s.guests, h.ID, phone, payload.SenderData.SenderName)
	if err != nil {
		return err
	}
	conv, err := resolveConversation(ctx, s.conversations, h.ID, g.ID)
	if err != nil {
		return err
	}

	msgType, content := extractContent(payload.MessageData)
	now := time.Now().UTC()

	msg := &domainMessage.Message{
		HotelID:          h.ID,
		ConversationID:   conv.ID,
		Direction:        domainMessage.DirectionIncoming,
		Type:             msgType,
		Content:          content,
		GatewayMessageID: payload.IDMessage,
		Metadata:         rawPayloadMetadata(payload),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return err
	}
	if err := s.conversations.TouchLastMessage(ctx, conv.ID, now); err != nil {
		return err
	}
	if err := s.guests.UpdateLastInteraction(ctx, g.ID, now); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"hotel_id":   h.ID,
		"guest":      phone,
		"msg_type":   msgType,
		"gateway_id": payload.IDMessage,
	}).Info("[WEBHOOK] incoming message persisted")

	_ = s.publisher.Publish(ctx, events.Event{
		Type:    events.TypeMessageReceived,
		HotelID: h.ID,
		Payload: map[string]any{
			"message_id": msg.ID,
			"guest_id":   g.ID,
			"type":       msgType,
		},
	})

	// Immediate AI reply; if that path breaks, hand it to the background
	// scheduler instead of failing the webhook.
	if s.responder != nil && h.Settings.AI.AutoResponse && msgType == domainMessage.TypeText {
		if err := s.generateAndSendReply(ctx, h, g, content); err != nil {
			logrus.WithError(err).Warnf("[WEBHOOK] immediate AI reply failed for %s, scheduling async", phone)
			hotelCopy, guestCopy, text := *h, *g, content
			_ = s.tasks.Schedule("ai-reply-"+msg.ID, 30*time.Second, func() {
				bg, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				if err := s.generateAndSendReply(bg, &hotelCopy, &guestCopy, text); err != nil {
					logrus.WithError(err).Errorf("[WEBHOOK] async AI reply failed for %s", guestCopy.Phone)
				}
			})
		}
	}

	return nil
}

func (s *serviceWebhook) generateAndSendReply(ctx context.Context, h *domainHotel.Hotel, g *domainGuest.Guest, text string) error {
	reply, err := s.responder.GenerateReply(ctx, h.Settings.AI.SystemPrompt, h.Settings.AI.Model, g.Name, text)
	if err != nil {
		return err
	}
	if reply == "" {
		return nil
	}
	_, err = s.sender.SendText(ctx, domainMessage.SendTextRequest{
		HotelID:  h.ID,
		Phone:    g.Phone,
		Message:  reply,
		Priority: domainMessage.PriorityHigh,
	})
	return err
}

// handleOutgoingMessage confirms a message this system (or the hotel's
// phone) sent. Confirmations for unknown messages are tolerated.
func (s *serviceWebhook) handleOutgoingMessage(ctx context.Context, h *domainHotel.Hotel, payload domainWebhook.Payload) error {
	msg, err := s.messages.GetByGatewayID(ctx, h.ID, payload.IDMessage)
	if err != nil {
		if errors.Is(err, domainMessage.ErrMessageNotFound) {
			logrus.WithFields(logrus.Fields{
				"hotel_id":   h.ID,
				"gateway_id": payload.IDMessage,
			}).Warn("[WEBHOOK] outgoing confirmation for unknown message")
			return nil
		}
		return err
	}
	return s.messages.MarkConfirmed(ctx, msg.ID, time.Unix(payload.Timestamp, 0).UTC())
}

func (s *serviceWebhook) handleMessageStatus(ctx context.Context, h *domainHotel.Hotel, payload domainWebhook.Payload) error {
	msg, err := s.messages.GetByGatewayID(ctx, h.ID, payload.IDMessage)
	if err != nil {
		if errors.Is(err, domainMessage.ErrMessageNotFound) {
			logrus.WithFields(logrus.Fields{
				"hotel_id":   h.ID,
				"gateway_id": payload.IDMessage,
				"status":     payload.Status,
			}).Warn("[WEBHOOK] status update for unknown message")
			return nil
		}
		return err
	}

	if err := s.messages.UpdateDeliveryStatus(ctx, msg.ID, payload.Status); err != nil {
		return err
	}

	// Status propagation to downstream consumers happens off the webhook
	// path.
	hotelID, messageID, status := h.ID, msg.ID, payload.Status
	_ = s.tasks.Schedule("status-propagation-"+messageID, 0, func() {
		bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.publisher.Publish(bg, events.Event{
			Type:    events.TypeMessageStatus,
			HotelID: hotelID,
			Payload: map[string]any{"message_id": messageID, "status": status},
		})
	})
	return nil
}

func (s *serviceWebhook) handleStateInstance(ctx context.Context, h *domainHotel.Hotel, payload domainWebhook.Payload) error {
	state := payload.StateInstance
	settings := h.Settings
	settings.GatewayState = state
	if err := s.hotels.UpdateSettings(ctx, h.ID, settings); err != nil {
		return err
	}
	s.hotelCache.Delete(h.ID)

	logrus.WithFields(logrus.Fields{
		"hotel_id": h.ID,
		"state":    state,
	}).Info("[WEBHOOK] gateway state changed")

	if isCriticalState(state) {
		if err := s.notifications.Create(ctx, &domainNotification.StaffNotification{
			HotelID:  h.ID,
			Severity: domainNotification.SeverityCritical,
			Title:    "WhatsApp gateway needs attention",
			Message:  fmt.Sprintf("Instance %s changed state to %q", h.InstanceID, state),
		}); err != nil {
			return err
		}
	}

	_ = s.publisher.Publish(ctx, events.Event{
		Type:    events.TypeStateChanged,
		HotelID: h.ID,
		Payload: map[string]any{"state": state},
	})
	return nil
}

func (s *serviceWebhook) handleDeviceInfo(ctx context.Context, h *domainHotel.Hotel, payload domainWebhook.Payload) error {
	settings := h.Settings
	settings.DeviceInfo = payload.DeviceData
	if err := s.hotels.UpdateSettings(ctx, h.ID, settings); err != nil {
		return err
	}
	s.hotelCache.Delete(h.ID)
	return nil
}

func isCriticalState(state string) bool {
	switch state {
	case domainWebhook.StateNotAuthorized, domainWebhook.StateBlocked, domainWebhook.StateSleepMode:
		return true
	}
	return false
}

// extractContent derives the plain-text content from a typed message
// payload: text body, caption-or-filename for media, formatted description
// for locations and contacts.
func extractContent(md *domainWebhook.MessageData) (msgType, content string) {
	switch md.TypeMessage {
	case "textMessage":
		if md.TextMessageData != nil {
			return domainMessage.TypeText, md.TextMessageData.TextMessage
		}
		return domainMessage.TypeText, ""
	case "extendedTextMessage":
		if md.ExtendedTextMessageData != nil {
			return domainMessage.TypeText, md.ExtendedTextMessageData.Text
		}
		return domainMessage.TypeText, ""
	case "imageMessage", "videoMessage", "audioMessage", "documentMessage":
		msgType = mediaType(md.TypeMessage)
		if md.FileMessageData == nil {
			return msgType, ""
		}
		if md.FileMessageData.Caption != "" {
			return msgType, md.FileMessageData.Caption
		}
		return msgType, md.FileMessageData.FileName
	case "locationMessage":
		if md.LocationMessageData == nil {
			return domainMessage.TypeLocation, ""
		}
		loc := md.LocationMessageData
		parts := []string{}
		if loc.NameLocation != "" {
			parts = append(parts, loc.NameLocation)
		}
		if loc.Address != "" {
			parts = append(parts, loc.Address)
		}
		desc := strings.Join(parts, ", ")
		if desc != "" {
			return domainMessage.TypeLocation, fmt.Sprintf("Location: %s (%.6f, %.6f)", desc, loc.Latitude, loc.Longitude)
		}
		return domainMessage.TypeLocation, fmt.Sprintf("Location: %.6f, %.6f", loc.Latitude, loc.Longitude)
	case "contactMessage":
		if md.ContactMessageData != nil {
			return domainMessage.TypeContact, "Contact: " + md.ContactMessageData.DisplayName
		}
		return domainMessage.TypeContact, ""
	default:
		return md.TypeMessage, ""
	}
}

func mediaType(typeMessage string) string {
	switch typeMessage {
	case "imageMessage":
		return domainMessage.TypeImage
	case "videoMessage":
		return domainMessage.TypeVideo
	case "audioMessage":
		return domainMessage.TypeAudio
	default:
		return domainMessage.TypeDocument
	}
}

// rawPayloadMetadata keeps the full gateway payload alongside the message
// for later reconciliation and debugging.
func rawPayloadMetadata(payload domainWebhook.Payload) map[string]any {
	raw, err := json.Marshal(payload)
	if err != nil {
		return map[string]any{"type_webhook": payload.TypeWebhook}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"type_webhook": payload.TypeWebhook}
	}
	return map[string]any{
		"type_webhook": payload.TypeWebhook,
		"timestamp":    payload.Timestamp,
		"raw":          m,
	}
}
