// Package routes holds the HTTP paths of the RAG learning-assistant API.
// The client and the mock API both build their URLs and mux patterns from here.
package routes

import "net/url"

const (
	// Auth
	AuthLogin                = "/auth/login"
	AuthRegister             = "/auth/register"
	AuthMe                   = "/auth/me"
	AuthLogout               = "/auth/logout"
	AuthRefreshToken         = "/auth/refresh-token"
	AuthChangePassword       = "/auth/change-password"
	AuthResetPasswordRequest = "/auth/reset-password/request"
	AuthResetPasswordConfirm = "/auth/reset-password/confirm"

	// Documents
	Documents           = "/rag/documents"
	DocumentsUpload     = "/rag/documents/upload"
	DocumentsUploadBulk = "/rag/documents/upload-batch"
	Document            = "/rag/documents/{id}"

	// Search
	Search            = "/rag/search"
	SearchSuggestions = "/rag/search/suggestions"

	// Generation
	Generate    = "/rag/generate"
	Chat        = "/rag/chat"
	ChatHistory = "/rag/chat/{conversationID}/history"

	// Conversations are listed per access token
	Conversations = "/rag/conversations/{token}"

	// System
	Status             = "/rag/status"
	Health             = "/rag/health"
	Reindex            = "/rag/reindex"
	AnalyticsQueries   = "/rag/analytics/queries"
	AnalyticsDocuments = "/rag/analytics/documents"
)

func DocumentPath(id string) string {
	return "/rag/documents/" + url.PathEscape(id)
}

func ChatHistoryPath(conversationID string) string {
	return "/rag/chat/" + url.PathEscape(conversationID) + "/history"
}

func ConversationsPath(accessToken string) string {
	return "/rag/conversations/" + url.PathEscape(accessToken)
}

// Unintercepted lists the endpoints whose 401 means "bad credentials"
// rather than "expired access token", so they never trigger a refresh.
var Unintercepted = map[string]bool{
	AuthLogin:                true,
	AuthRegister:             true,
	AuthRefreshToken:         true,
	AuthLogout:               true,
	AuthResetPasswordRequest: true,
	AuthResetPasswordConfirm: true,
}
