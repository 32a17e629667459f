package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-rag-client/routes"
)

func (c *Client) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return nil, invalid("query", "search query is required")
	}
	var results []SearchResult
	if err := c.doJSON(ctx, http.MethodPost, routes.Search, nil, q, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) SearchSuggestions(ctx context.Context, query string) ([]string, error) {
	var s Suggestions
	if err := c.doJSON(ctx, http.MethodGet, routes.SearchSuggestions, url.Values{"query": {query}}, nil, &s); err != nil {
		return nil, err
	}
	return s.Suggestions, nil
}
