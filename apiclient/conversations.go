package apiclient

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-rag-client/routes"
)

// Conversations lists the signed-in user's conversations. The API identifies
// the user by the access token in the path.
func (c *Client) Conversations(ctx context.Context) ([]ConversationSummary, error) {
	token := c.sessions.Get().AccessToken
	if token == "" {
		return nil, invalid("access_token", "not signed in")
	}
	var out []ConversationSummary
	if err := c.doJSON(ctx, http.MethodGet, routes.ConversationsPath(token), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
