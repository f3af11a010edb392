package webhook

import (
	"context"

	"github.com/staykit/staywap/domains/hotel"
)

// Green API webhook types. Anything else is logged and dropped.
const (
	TypeIncomingMessage = "incomingMessageReceived"
	TypeOutgoingMessage = "outgoingMessageReceived"
	TypeMessageStatus   = "outgoingMessageStatus"
	TypeStateInstance   = "stateInstanceChanged"
	TypeDeviceInfo      = "deviceInfo"
)

// Gateway states that warrant a staff notification.
const (
	StateNotAuthorized = "notAuthorized"
	StateBlocked       = "blocked"
	StateSleepMode     = "sleepMode"
	StateAuthorized    = "authorized"
)

// Payload is the inbound Green API event envelope. Only the fields the
// pipeline consumes are modeled; the raw body is kept in message metadata.
type Payload struct {
	TypeWebhook   string         `json:"typeWebhook"`
	InstanceData  InstanceData   `json:"instanceData"`
	Timestamp     int64          `json:"timestamp"`
	IDMessage     string         `json:"idMessage,omitempty"`
	SenderData    *SenderData    `json:"senderData,omitempty"`
	MessageData   *MessageData   `json:"messageData,omitempty"`
	Status        string         `json:"status,omitempty"`
	ChatID        string         `json:"chatId,omitempty"`
	StateInstance string         `json:"stateInstance,omitempty"`
	DeviceData    map[string]any `json:"deviceData,omitempty"`
}

type InstanceData struct {
	IDInstance   int64  `json:"idInstance"`
	Wid          string `json:"wid"`
	TypeInstance string `json:"typeInstance"`
}

type SenderData struct {
	ChatID     string `json:"chatId"`
	Sender     string `json:"sender"`
	SenderName string `json:"senderName"`
	ChatName   string `json:"chatName,omitempty"`
}

type MessageData struct {
	TypeMessage             string               `json:"typeMessage"`
	TextMessageData         *TextMessageData     `json:"textMessageData,omitempty"`
	ExtendedTextMessageData *ExtendedTextData    `json:"extendedTextMessageData,omitempty"`
	FileMessageData         *FileMessageData     `json:"fileMessageData,omitempty"`
	LocationMessageData     *LocationMessageData `json:"locationMessageData,omitempty"`
	ContactMessageData      *ContactMessageData  `json:"contactMessageData,omitempty"`
}

type TextMessageData struct {
	TextMessage string `json:"textMessage"`
}

type ExtendedTextData struct {
	Text string `json:"text"`
}

type FileMessageData struct {
	DownloadURL string `json:"downloadUrl"`
	Caption     string `json:"caption"`
	FileName    string `json:"fileName"`
	MimeType    string `json:"mimeType"`
}

type LocationMessageData struct {
	NameLocation string  `json:"nameLocation"`
	Address      string  `json:"address"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

type ContactMessageData struct {
	DisplayName string `json:"displayName"`
	Vcard       string `json:"vcard"`
}

type IWebhookUsecase interface {
	// ResolveHotel authenticates a webhook delivery against the per-hotel
	// webhook token before any processing happens.
	ResolveHotel(ctx context.Context, hotelID, token string) (*hotel.Hotel, error)
	Process(ctx context.Context, h *hotel.Hotel, payload Payload) error
	// InvalidateHotel drops the cached hotel snapshot after an
	// out-of-band settings change.
	InvalidateHotel(hotelID string)
}
