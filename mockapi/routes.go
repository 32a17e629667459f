package mockapi

import (
	"net/http"

	"github.com/jrsteele09/go-rag-client/routes"
)

func (s *Server) initRoutes() {
	public := s.APIMiddleware()
	private := s.APIMiddleware(s.RequireAuth)

	// Preflight for every path
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(func(http.ResponseWriter, *http.Request) {}, public...))

	// AUTH
	s.RegisterRouteHandler("POST "+routes.AuthLogin, ChainMiddleware(s.LoginHandler(), public...))
	s.RegisterRouteHandler("POST "+routes.AuthRegister, ChainMiddleware(s.RegisterHandler(), public...))
	s.RegisterRouteHandler("POST "+routes.AuthLogout, ChainMiddleware(s.LogoutHandler(), public...))
	s.RegisterRouteHandler("POST "+routes.AuthRefreshToken, ChainMiddleware(s.RefreshTokenHandler(), public...))
	s.RegisterRouteHandler("POST "+routes.AuthResetPasswordRequest, ChainMiddleware(s.ResetPasswordRequestHandler(), public...))
	s.RegisterRouteHandler("POST "+routes.AuthResetPasswordConfirm, ChainMiddleware(s.ResetPasswordConfirmHandler(), public...))
	s.RegisterRouteHandler("GET "+routes.AuthMe, ChainMiddleware(s.MeHandler(), private...))
	s.RegisterRouteHandler("POST "+routes.AuthChangePassword, ChainMiddleware(s.ChangePasswordHandler(), private...))

	// DOCUMENTS
	s.RegisterRouteHandler("GET "+routes.Documents, ChainMiddleware(s.ListDocumentsHandler(), private...))
	s.RegisterRouteHandler("POST "+routes.DocumentsUpload, ChainMiddleware(s.UploadDocumentHandler(), private...))
	s.RegisterRouteHandler("POST "+routes.DocumentsUploadBulk, ChainMiddleware(s.UploadDocumentsHandler(), private...))
	s.RegisterRouteHandler("GET "+routes.Document, ChainMiddleware(s.GetDocumentHandler(), private...))
	s.RegisterRouteHandler("DELETE "+routes.Document, ChainMiddleware(s.DeleteDocumentHandler(), private...))

	// SEARCH & GENERATION
	s.RegisterRouteHandler("POST "+routes.Search, ChainMiddleware(s.SearchHandler(), private...))
	s.RegisterRouteHandler("GET "+routes.SearchSuggestions, ChainMiddleware(s.SearchSuggestionsHandler(), private...))
	s.RegisterRouteHandler("POST "+routes.Generate, ChainMiddleware(s.GenerateHandler(), private...))
	s.RegisterRouteHandler("POST "+routes.Chat, ChainMiddleware(s.ChatHandler(), private...))
	s.RegisterRouteHandler("GET "+routes.ChatHistory, ChainMiddleware(s.ChatHistoryHandler(), private...))
	s.RegisterRouteHandler("GET "+routes.Conversations, ChainMiddleware(s.ConversationsHandler(), private...))

	// SYSTEM
	s.RegisterRouteHandler("GET "+routes.Health, ChainMiddleware(s.HealthHandler(), public...))
	s.RegisterRouteHandler("GET "+routes.Status, ChainMiddleware(s.StatusHandler(), private...))
	s.RegisterRouteHandler("POST "+routes.Reindex, ChainMiddleware(s.ReindexHandler(), private...))
	s.RegisterRouteHandler("GET "+routes.AnalyticsQueries, ChainMiddleware(s.QueryAnalyticsHandler(), private...))
	s.RegisterRouteHandler("GET "+routes.AnalyticsDocuments, ChainMiddleware(s.DocumentAnalyticsHandler(), private...))
}
