package apiclient

import (
	"time"

	"github.com/jrsteele09/go-rag-client/internal/utils"
	"github.com/jrsteele09/go-rag-client/users"
	"golang.org/x/oauth2"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type ResetPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordConfirm struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// TokenResponse is returned by login, register and refresh. User is only
// present when the server chooses to embed the identity.
type TokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	TokenType    string      `json:"token_type,omitempty"`
	ExpiresIn    int64       `json:"expires_in,omitempty"`
	User         *users.User `json:"user,omitempty"`
}

// Token converts the response into an oauth2 token.
func (t TokenResponse) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
	}
	if t.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return tok
}

// MessageResponse is the {"message": ...} acknowledgement most mutating endpoints return.
type MessageResponse struct {
	Message       string `json:"message"`
	EstimatedTime string `json:"estimated_time,omitempty"`
}

type DocumentStatus string

const (
	DocumentProcessing DocumentStatus = "processing"
	DocumentProcessed  DocumentStatus = "processed"
	DocumentFailed     DocumentStatus = "failed"
)

type Document struct {
	ID          string          `json:"id"`
	Filename    string          `json:"filename"`
	Size        int64           `json:"size"`
	UploadedAt  utils.Timestamp `json:"uploaded_at"`
	Status      DocumentStatus  `json:"status"`
	ContentType string          `json:"content_type"`
}

// ListDocumentsParams are forwarded as query parameters when set.
type ListDocumentsParams struct {
	Skip   int
	Limit  int
	Status DocumentStatus
}

// Upload is one file for a multipart upload.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

type SearchQuery struct {
	Query     string   `json:"query"`
	Limit     *int     `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type SearchResult struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	Content    string         `json:"content"`
	Score      float64        `json:"score"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type Suggestions struct {
	Suggestions []string `json:"suggestions"`
}

type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

type GenerateResponse struct {
	Response string `json:"response"`
}

type ChatRequest struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversation_id"`
}

type ChatResponse struct {
	Response       string         `json:"response"`
	ConversationID string         `json:"conversation_id"`
	Sources        []SearchResult `json:"sources"`
	Confidence     float64        `json:"confidence"`
}

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

type ChatMessage struct {
	Role      ChatRole        `json:"role"`
	Content   string          `json:"content"`
	Timestamp utils.Timestamp `json:"timestamp"`
	Sources   []SearchResult  `json:"sources,omitempty"`
}

type ChatHistory struct {
	ConversationID string        `json:"conversation_id"`
	History        []ChatMessage `json:"history"`
}

type ConversationSummary struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	LastMessage  string          `json:"last_message"`
	MessageCount int             `json:"message_count"`
	CreatedAt    utils.Timestamp `json:"created_at"`
	UpdatedAt    utils.Timestamp `json:"updated_at"`
}

// Conversation is a chat that exists locally until its first message is answered.
type Conversation struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	CreatedAt time.Time     `json:"created_at"`
	Messages  []ChatMessage `json:"messages"`
}

type SystemStatus struct {
	Status         string          `json:"status"`
	Version        string          `json:"version"`
	DocumentsCount int             `json:"documents_count"`
	LastIndexed    utils.Timestamp `json:"last_indexed"`
}

type Health struct {
	Status    string          `json:"status"`
	Timestamp utils.Timestamp `json:"timestamp"`
}

type QueryAnalytics struct {
	Query        string          `json:"query"`
	Timestamp    utils.Timestamp `json:"timestamp"`
	ResponseTime float64         `json:"response_time"`
}

type DocumentAnalytics struct {
	TotalDocuments int            `json:"total_documents"`
	DocumentTypes  map[string]int `json:"document_types"`
	TotalSizeMB    float64        `json:"total_size_mb"`
	Processed      int            `json:"processed"`
}
