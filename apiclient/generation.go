package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-rag-client/routes"
)

const newConversationTitle = "New conversation"

func (c *Client) Generate(ctx context.Context, prompt string) (*GenerateResponse, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, invalid("prompt", "prompt is required")
	}
	var out GenerateResponse
	if err := c.doJSON(ctx, http.MethodPost, routes.Generate, nil, GenerateRequest{Prompt: prompt}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat sends message to the assistant. An empty conversationID starts a new
// conversation server side and is sent as null.
func (c *Client) Chat(ctx context.Context, message, conversationID string) (*ChatResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, invalid("message", "message is required")
	}
	in := ChatRequest{Message: message}
	if conversationID != "" {
		in.ConversationID = &conversationID
	}
	var out ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, routes.Chat, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendMessage is Chat plus the id the conversation continues under: the
// server's id when it returned one, otherwise the one passed in.
func (c *Client) SendMessage(ctx context.Context, message, conversationID string) (*ChatResponse, string, error) {
	out, err := c.Chat(ctx, message, conversationID)
	if err != nil {
		return nil, conversationID, err
	}
	if out.ConversationID != "" {
		conversationID = out.ConversationID
	}
	return out, conversationID, nil
}

func (c *Client) ChatHistory(ctx context.Context, conversationID string) (*ChatHistory, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, invalid("conversation_id", "conversation id is required")
	}
	var out ChatHistory
	if err := c.doJSON(ctx, http.MethodGet, routes.ChatHistoryPath(conversationID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NewConversation creates an empty local conversation. Nothing is sent to the server.
func NewConversation() Conversation {
	now := time.Now()
	return Conversation{
		ID:        fmt.Sprintf("chat_%d_%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:9]),
		Title:     newConversationTitle,
		CreatedAt: now,
		Messages:  []ChatMessage{},
	}
}
