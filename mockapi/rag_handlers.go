package mockapi

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-rag-client/apiclient"
	"github.com/jrsteele09/go-rag-client/internal/errors"
	"github.com/jrsteele09/go-rag-client/internal/utils"
)

const (
	maxUploadSize   = 32 << 20
	maxSuggestions  = 5
	noAnswerMessage = "I could not find anything about that in the course materials."
)

var suggestionTopics = []string{
	"What is retrieval-augmented generation?",
	"How are documents split into chunks?",
	"Explain vector embeddings",
	"How does semantic search rank results?",
	"What is a context window?",
	"Summarise the course syllabus",
	"How do I prepare for the final exam?",
}

func (s *Server) ListDocumentsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		skip, err := intParam(q.Get("skip"), 0)
		if err != nil || skip < 0 {
			writeValidationError(w, "skip", "skip must be a non-negative integer")
			return
		}
		limit, err := intParam(q.Get("limit"), 100)
		if err != nil || limit < 1 {
			writeValidationError(w, "limit", "limit must be a positive integer")
			return
		}
		writeJSON(w, http.StatusOK, s.library.List(skip, limit, apiclient.DocumentStatus(q.Get("status"))))
	}
}

func (s *Server) GetDocumentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := s.library.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "Document not found")
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *Server) DeleteDocumentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := s.library.Delete(id); err != nil {
			writeError(w, http.StatusNotFound, "Document not found")
			return
		}
		writeJSON(w, http.StatusOK, apiclient.MessageResponse{Message: fmt.Sprintf("Document %s deleted", id)})
	}
}

func (s *Server) UploadDocumentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, ok := s.parseUpload(w, r, "file")
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, s.storeUpload(files[0]))
	}
}

func (s *Server) UploadDocumentsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, ok := s.parseUpload(w, r, "files")
		if !ok {
			return
		}
		docs := make([]apiclient.Document, 0, len(files))
		for _, fh := range files {
			docs = append(docs, s.storeUpload(fh))
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request, field string) ([]*multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeValidationError(w, field, "multipart form expected")
		return nil, false
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		writeValidationError(w, field, "field required")
		return nil, false
	}
	return files, true
}

func (s *Server) storeUpload(fh *multipart.FileHeader) apiclient.Document {
	content, err := readFile(fh)
	if err != nil {
		s.log.Warn().Err(err).Str("filename", fh.Filename).Msg("read upload")
	}
	doc := s.library.Add("", fh.Filename, fh.Header.Get("Content-Type"), content)
	s.log.Debug().Str("document_id", doc.ID).Str("filename", doc.Filename).Int64("size", doc.Size).Msg("document uploaded")
	return doc
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) SearchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in apiclient.SearchQuery
		if !decodeJSON(w, r, &in) {
			return
		}
		if strings.TrimSpace(in.Query) == "" {
			writeValidationError(w, "query", "query must not be empty")
			return
		}
		start := time.Now()
		results := s.library.Search(in.Query, utils.Value(in.Limit), utils.Value(in.Threshold))
		s.library.RecordQuery(in.Query, time.Since(start))
		writeJSON(w, http.StatusOK, results)
	}
}

func (s *Server) SearchSuggestionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("query")))
		out := []string{}
		for _, topic := range suggestionTopics {
			if len(out) == maxSuggestions {
				break
			}
			if query == "" || strings.Contains(strings.ToLower(topic), query) {
				out = append(out, topic)
			}
		}
		writeJSON(w, http.StatusOK, apiclient.Suggestions{Suggestions: out})
	}
}

func (s *Server) GenerateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in apiclient.GenerateRequest
		if !decodeJSON(w, r, &in) {
			return
		}
		if strings.TrimSpace(in.Prompt) == "" {
			writeValidationError(w, "prompt", "prompt must not be empty")
			return
		}
		answer, _ := compose(s.library.Search(in.Prompt, 1, 0))
		writeJSON(w, http.StatusOK, apiclient.GenerateResponse{Response: answer})
	}
}

func (s *Server) ChatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in apiclient.ChatRequest
		if !decodeJSON(w, r, &in) {
			return
		}
		if strings.TrimSpace(in.Message) == "" {
			writeValidationError(w, "message", "message must not be empty")
			return
		}
		start := time.Now()
		sources := s.library.Search(in.Message, 3, 0)
		answer, confidence := compose(sources)

		user := userFromContext(r.Context())
		id, err := s.library.Converse(user.ID, utils.Value(in.ConversationID), in.Message, answer, sources)
		if errors.Is(err, errors.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		s.library.RecordQuery(in.Message, time.Since(start))
		writeJSON(w, http.StatusOK, apiclient.ChatResponse{
			Response:       answer,
			ConversationID: id,
			Sources:        sources,
			Confidence:     confidence,
		})
	}
}

func (s *Server) ChatHistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("conversationID")
		history, err := s.library.History(userFromContext(r.Context()).ID, id)
		if err != nil {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		writeJSON(w, http.StatusOK, apiclient.ChatHistory{ConversationID: id, History: history})
	}
}

// ConversationsHandler lists the caller's conversations. The path carries the
// access token; the bearer header decides whose conversations are returned so
// a request replayed after a refresh still resolves.
func (s *Server) ConversationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.library.Conversations(userFromContext(r.Context()).ID))
	}
}

// compose builds the canned assistant answer from the best matches.
func compose(sources []apiclient.SearchResult) (string, float64) {
	if len(sources) == 0 {
		return noAnswerMessage, 0
	}
	top := sources[0]
	filename, _ := top.Metadata["filename"].(string)
	return fmt.Sprintf("According to %s: %s", filename, firstSentence(top.Content)), top.Score
}

func firstSentence(text string) string {
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		return text[:i+1]
	}
	return text
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
