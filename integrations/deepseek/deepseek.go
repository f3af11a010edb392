package deepseek

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://api.deepseek.com"
	DefaultModel   = "deepseek-chat"
)

const defaultSystemPrompt = "You are a friendly hotel concierge assistant. " +
	"Answer guest questions briefly and helpfully. If a request needs staff " +
	"attention, say so politely."

// Responder generates guest-facing replies through the DeepSeek
// chat-completions API, which speaks the OpenAI wire protocol.
type Responder struct {
	client openai.Client
	model  string
}

func NewResponder(apiKey, baseURL, model string) (*Responder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("deepseek api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)
	return &Responder{client: client, model: model}, nil
}

// GenerateReply produces one reply to the guest's message. systemPrompt
// and model may be overridden per hotel; empty values fall back to the
// responder defaults.
func (r *Responder) GenerateReply(ctx context.Context, systemPrompt, model, guestName, text string) (string, error) {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	if model == "" {
		model = r.model
	}

	userText := text
	if guestName != "" {
		userText = fmt.Sprintf("Guest %s writes: %s", guestName, text)
	}

	completion, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userText),
		},
	})
	if err != nil {
		return "", fmt.Errorf("deepseek completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("deepseek returned no choices")
	}

	reply := strings.TrimSpace(completion.Choices[0].Message.Content)
	logrus.WithFields(logrus.Fields{
		"model":        model,
		"reply_length": len(reply),
	}).Debug("[DEEPSEEK] reply generated")
	return reply, nil
}
