package greenapi

import "strings"

// Chat identifier suffixes used by the gateway.
const (
	SuffixUser  = "@c.us"
	SuffixGroup = "@g.us"
)

// ChatID turns a bare phone number into an individual chat identifier.
func ChatID(phone string) string {
	if strings.HasSuffix(phone, SuffixUser) || strings.HasSuffix(phone, SuffixGroup) {
		return phone
	}
	return strings.TrimPrefix(phone, "+") + SuffixUser
}

// PhoneFromChatID strips the chat suffix back off.
func PhoneFromChatID(chatID string) string {
	chatID = strings.TrimSuffix(chatID, SuffixUser)
	return strings.TrimSuffix(chatID, SuffixGroup)
}

// --- Request bodies ---

type SendMessageRequest struct {
	ChatID          string `json:"chatId"`
	Message         string `json:"message"`
	QuotedMessageID string `json:"quotedMessageId,omitempty"`
}

type SendFileByURLRequest struct {
	ChatID   string `json:"chatId"`
	URLFile  string `json:"urlFile"`
	FileName string `json:"fileName"`
	Caption  string `json:"caption,omitempty"`
}

type SendLocationRequest struct {
	ChatID       string  `json:"chatId"`
	NameLocation string  `json:"nameLocation,omitempty"`
	Address      string  `json:"address,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

type Contact struct {
	PhoneContact string `json:"phoneContact"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	Company      string `json:"company,omitempty"`
}

type SendContactRequest struct {
	ChatID  string  `json:"chatId"`
	Contact Contact `json:"contact"`
}

type PollOption struct {
	OptionName string `json:"optionName"`
}

type SendPollRequest struct {
	ChatID          string       `json:"chatId"`
	Message         string       `json:"message"`
	Options         []PollOption `json:"options"`
	MultipleAnswers bool         `json:"multipleAnswers,omitempty"`
}

// --- Typed results ---

type SendResult struct {
	IDMessage string `json:"idMessage"`
}

type InstanceSettings struct {
	WebhookURL                    string `json:"webhookUrl,omitempty"`
	DelaySendMessagesMilliseconds int    `json:"delaySendMessagesMilliseconds,omitempty"`
	MarkIncomingMessagesReaded    string `json:"markIncomingMessagesReaded,omitempty"`
	IncomingWebhook               string `json:"incomingWebhook,omitempty"`
	OutgoingWebhook               string `json:"outgoingWebhook,omitempty"`
	OutgoingMessageWebhook        string `json:"outgoingMessageWebhook,omitempty"`
	StateWebhook                  string `json:"stateWebhook,omitempty"`
	DeviceWebhook                 string `json:"deviceWebhook,omitempty"`
}

type SetSettingsResult struct {
	SaveSettings bool `json:"saveSettings"`
}

type StateInstance struct {
	StateInstance string `json:"stateInstance"`
}

type StatusInstance struct {
	StatusInstance string `json:"statusInstance"`
}

// Notification is one queued inbound event pulled via receiveNotification.
type Notification struct {
	ReceiptID int            `json:"receiptId"`
	Body      map[string]any `json:"body"`
}

type DeleteNotificationResult struct {
	Result bool `json:"result"`
}
