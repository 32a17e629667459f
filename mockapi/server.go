// Package mockapi is an in-memory stand-in for the RAG learning-assistant API.
// It issues real short-lived access tokens and rotating refresh tokens so
// clients can be exercised end to end without the Python backend.
package mockapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-rag-client/internal/config"
	"github.com/jrsteele09/go-rag-client/token"
	"github.com/jrsteele09/go-rag-client/token/jwt"
	"github.com/jrsteele09/go-rag-client/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-rag-client/token/refresh/repofake"
	"github.com/jrsteele09/go-rag-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Version is reported by /rag/status.
const Version = "1.0.0"

type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	mux    *http.ServeMux
	routes []string
	config config.Config
	log    zerolog.Logger

	users     users.UserRepo
	creator   *jwt.Creator
	inspector *jwt.Inspector
	revoked   token.RevokedTokenCache
	refresh   *refresh.Manager
	resets    *resetTokens
	library   *library
}

type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithRevokedTokenCache replaces the in-memory cache of signed-out access tokens.
func WithRevokedTokenCache(c token.RevokedTokenCache) Option {
	return func(s *Server) { s.revoked = c }
}

// New builds the mock API over userRepo and seeds it with the demo account and documents.
func New(cfg config.Config, userRepo users.UserRepo, opts ...Option) (*Server, error) {
	signer := token.NewHMACSigner(cfg.GetJWTSecret())

	s := &Server{
		mux:     http.NewServeMux(),
		config:  cfg,
		env:     cfg.GetEnv(),
		log:     log.Logger,
		users:   userRepo,
		creator: jwt.NewCreator(signer, cfg.GetAccessTokenExpiry()),
		revoked: token.NewInMemoryRevokedTokenCache(),
		refresh: refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), cfg),
		resets:  newResetTokens(time.Hour),
		library: newLibrary(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.inspector = jwt.NewInspector(signer, s.revoked)

	if err := s.InitialiseSystem(); err != nil {
		return nil, fmt.Errorf("[mockapi New] failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered mux patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	s.log.Info().Msgf("CORS origins: %s", s.config.GetAllowedOrigins())
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	s.log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
