package mockapi

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-rag-client/apiclient"
	"github.com/jrsteele09/go-rag-client/internal/utils"
)

const defaultAnalyticsDays = 7

func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, lastIndexed := s.library.Stats()
		writeJSON(w, http.StatusOK, apiclient.SystemStatus{
			Status:         "healthy",
			Version:        Version,
			DocumentsCount: count,
			LastIndexed:    utils.NewTimestamp(lastIndexed),
		})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, apiclient.Health{
			Status:    "healthy",
			Timestamp: utils.NewTimestamp(time.Now()),
		})
	}
}

// ReindexHandler re-chunks every document synchronously; the reply keeps the
// API's asynchronous wording.
func (s *Server) ReindexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.library.Reindex()
		writeJSON(w, http.StatusOK, apiclient.MessageResponse{
			Message:       "Reindexing started",
			EstimatedTime: "5 minutes",
		})
	}
}

func (s *Server) QueryAnalyticsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := intParam(r.URL.Query().Get("days"), defaultAnalyticsDays)
		if err != nil || days < 1 {
			writeValidationError(w, "days", "days must be a positive integer")
			return
		}
		writeJSON(w, http.StatusOK, s.library.Queries(days))
	}
}

func (s *Server) DocumentAnalyticsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.library.DocumentAnalytics())
	}
}
