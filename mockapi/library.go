package mockapi

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-rag-client/apiclient"
	"github.com/jrsteele09/go-rag-client/internal/errors"
	"github.com/jrsteele09/go-rag-client/internal/utils"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 50
	maxQueryLog        = 1000
)

type storedDocument struct {
	apiclient.Document
	chunks []string
}

type conversation struct {
	id        string
	ownerID   string
	title     string
	createdAt time.Time
	updatedAt time.Time
	messages  []apiclient.ChatMessage
}

// library is the in-memory document index, chat log and query log.
type library struct {
	docs          map[string]*storedDocument
	order         []string // document ids by upload time
	conversations map[string]*conversation
	queries       []apiclient.QueryAnalytics
	lastIndexed   time.Time
	now           func() time.Time
	lock          sync.RWMutex
}

func newLibrary() *library {
	return &library{
		docs:          make(map[string]*storedDocument),
		conversations: make(map[string]*conversation),
		now:           time.Now,
	}
}

// Add indexes content and returns the stored document. A blank id gets a fresh one.
func (l *library) Add(id, filename, contentType string, content []byte) apiclient.Document {
	l.lock.Lock()
	defer l.lock.Unlock()

	if id == "" {
		id = "doc_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(filename)
	}
	now := l.now()
	doc := &storedDocument{
		Document: apiclient.Document{
			ID:          id,
			Filename:    filename,
			Size:        int64(len(content)),
			UploadedAt:  utils.NewTimestamp(now),
			Status:      apiclient.DocumentProcessed,
			ContentType: contentType,
		},
		chunks: chunk(string(content)),
	}
	if len(doc.chunks) == 0 {
		doc.Status = apiclient.DocumentFailed
	}
	if _, exists := l.docs[id]; !exists {
		l.order = append(l.order, id)
	}
	l.docs[id] = doc
	l.lastIndexed = now
	return doc.Document
}

func (l *library) Get(id string) (apiclient.Document, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	doc, ok := l.docs[id]
	if !ok {
		return apiclient.Document{}, errors.ErrNotFound
	}
	return doc.Document, nil
}

func (l *library) Delete(id string) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if _, ok := l.docs[id]; !ok {
		return errors.ErrNotFound
	}
	delete(l.docs, id)
	l.order = slices.DeleteFunc(l.order, func(v string) bool { return v == id })
	return nil
}

// List pages through documents in upload order, optionally filtered by status.
func (l *library) List(skip, limit int, status apiclient.DocumentStatus) []apiclient.Document {
	l.lock.RLock()
	defer l.lock.RUnlock()

	out := []apiclient.Document{}
	for _, id := range l.order {
		doc := l.docs[id]
		if status != "" && doc.Status != status {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, doc.Document)
	}
	return out
}

// Search scores every chunk by the share of query terms it contains.
func (l *library) Search(query string, limit int, threshold float64) []apiclient.SearchResult {
	terms := tokenize(query)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	l.lock.RLock()
	defer l.lock.RUnlock()

	results := []apiclient.SearchResult{}
	if len(terms) == 0 {
		return results
	}
	for _, id := range l.order {
		doc := l.docs[id]
		for i, text := range doc.chunks {
			words := tokenize(text)
			hits := 0
			for _, term := range terms {
				if slices.Contains(words, term) {
					hits++
				}
			}
			score := float64(hits) / float64(len(terms))
			if hits == 0 || score < threshold {
				continue
			}
			results = append(results, apiclient.SearchResult{
				ID:         fmt.Sprintf("%s_chunk_%d", doc.ID, i),
				DocumentID: doc.ID,
				Content:    text,
				Score:      score,
				Metadata: map[string]any{
					"filename":    doc.Filename,
					"chunk_index": i,
				},
			})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Reindex rebuilds every chunk list and stamps the index time.
func (l *library) Reindex() {
	l.lock.Lock()
	defer l.lock.Unlock()

	for _, doc := range l.docs {
		doc.chunks = chunk(strings.Join(doc.chunks, "\n\n"))
	}
	l.lastIndexed = l.now()
}

func (l *library) Stats() (count int, lastIndexed time.Time) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return len(l.docs), l.lastIndexed
}

func (l *library) DocumentAnalytics() apiclient.DocumentAnalytics {
	l.lock.RLock()
	defer l.lock.RUnlock()

	out := apiclient.DocumentAnalytics{DocumentTypes: map[string]int{}}
	var size int64
	for _, doc := range l.docs {
		out.TotalDocuments++
		out.DocumentTypes[documentType(doc.Filename)]++
		size += doc.Size
		if doc.Status == apiclient.DocumentProcessed {
			out.Processed++
		}
	}
	out.TotalSizeMB = float64(size) / (1024 * 1024)
	return out
}

// RecordQuery appends to the bounded query log.
func (l *library) RecordQuery(query string, elapsed time.Duration) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.queries = append(l.queries, apiclient.QueryAnalytics{
		Query:        query,
		Timestamp:    utils.NewTimestamp(l.now()),
		ResponseTime: elapsed.Seconds(),
	})
	if len(l.queries) > maxQueryLog {
		l.queries = l.queries[len(l.queries)-maxQueryLog:]
	}
}

// Queries returns the queries of the last days, newest first.
func (l *library) Queries(days int) []apiclient.QueryAnalytics {
	l.lock.RLock()
	defer l.lock.RUnlock()

	since := l.now().AddDate(0, 0, -days)
	out := []apiclient.QueryAnalytics{}
	for i := len(l.queries) - 1; i >= 0; i-- {
		if l.queries[i].Timestamp.Before(since) {
			break
		}
		out = append(out, l.queries[i])
	}
	return out
}

// Converse appends one exchange to conversationID, creating the conversation
// when the id is empty or unknown. Conversations owned by another user are
// reported as not found.
func (l *library) Converse(ownerID, conversationID, message, answer string, sources []apiclient.SearchResult) (string, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	now := l.now()
	c, ok := l.conversations[conversationID]
	switch {
	case ok && c.ownerID != ownerID:
		return "", errors.ErrNotFound
	case !ok:
		if conversationID == "" {
			conversationID = "conv_" + uuid.NewString()
		}
		c = &conversation{
			id:        conversationID,
			ownerID:   ownerID,
			title:     titleFrom(message),
			createdAt: now,
		}
		l.conversations[conversationID] = c
	}
	c.messages = append(c.messages,
		apiclient.ChatMessage{Role: apiclient.ChatRoleUser, Content: message, Timestamp: utils.NewTimestamp(now)},
		apiclient.ChatMessage{Role: apiclient.ChatRoleAssistant, Content: answer, Timestamp: utils.NewTimestamp(now), Sources: sources},
	)
	c.updatedAt = now
	return c.id, nil
}

func (l *library) History(ownerID, conversationID string) ([]apiclient.ChatMessage, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	c, ok := l.conversations[conversationID]
	if !ok || c.ownerID != ownerID {
		return nil, errors.ErrNotFound
	}
	return slices.Clone(c.messages), nil
}

// Conversations summarises ownerID's conversations, most recently updated first.
func (l *library) Conversations(ownerID string) []apiclient.ConversationSummary {
	l.lock.RLock()
	defer l.lock.RUnlock()

	out := []apiclient.ConversationSummary{}
	for _, c := range l.conversations {
		if c.ownerID != ownerID {
			continue
		}
		summary := apiclient.ConversationSummary{
			ID:           c.id,
			Title:        c.title,
			MessageCount: len(c.messages),
			CreatedAt:    utils.NewTimestamp(c.createdAt),
			UpdatedAt:    utils.NewTimestamp(c.updatedAt),
		}
		if n := len(c.messages); n > 0 {
			summary.LastMessage = c.messages[n-1].Content
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt.Time) })
	return out
}

// chunk splits text into non-empty paragraphs.
func chunk(text string) []string {
	var chunks []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func titleFrom(message string) string {
	const maxTitle = 50
	title := strings.Join(strings.Fields(message), " ")
	if r := []rune(title); len(r) > maxTitle {
		title = string(r[:maxTitle]) + "..."
	}
	return title
}

func documentType(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return "unknown"
	}
	return ext
}

func contentTypeFor(filename string) string {
	switch documentType(filename) {
	case "pdf":
		return "application/pdf"
	case "md":
		return "text/markdown"
	case "json":
		return "application/json"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "text/plain"
}
