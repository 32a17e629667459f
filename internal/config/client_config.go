package config

import (
	"strings"
	"time"
)

// Client holds the settings of the outbound API client.
type Client struct {
	APIURL     string        `env:"RAG_API_URL" envDefault:"http://localhost:8000"`
	APITimeout time.Duration `env:"RAG_API_TIMEOUT" envDefault:"30s"`
}

var _ ClientConfig = Client{}

func (c Client) GetAPIURL() string {
	return strings.TrimRight(c.APIURL, "/")
}

func (c Client) GetAPITimeout() time.Duration {
	if c.APITimeout <= 0 {
		return 30 * time.Second
	}
	return c.APITimeout
}
