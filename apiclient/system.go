package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-rag-client/routes"
)

func (c *Client) Status(ctx context.Context) (*SystemStatus, error) {
	var out SystemStatus
	if err := c.doJSON(ctx, http.MethodGet, routes.Status, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health is the lightweight connectivity probe.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.doJSON(ctx, http.MethodGet, routes.Health, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Reindex(ctx context.Context) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.doJSON(ctx, http.MethodPost, routes.Reindex, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryAnalytics returns recent queries. days <= 0 uses the server default.
func (c *Client) QueryAnalytics(ctx context.Context, days int) ([]QueryAnalytics, error) {
	query := url.Values{}
	if days > 0 {
		query.Set("days", strconv.Itoa(days))
	}
	var out []QueryAnalytics
	if err := c.doJSON(ctx, http.MethodGet, routes.AnalyticsQueries, query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DocumentAnalytics(ctx context.Context) (*DocumentAnalytics, error) {
	var out DocumentAnalytics
	if err := c.doJSON(ctx, http.MethodGet, routes.AnalyticsDocuments, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
