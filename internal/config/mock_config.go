package config

import (
	"fmt"
	"time"
)

type MockServerConfig interface {
	GetPort() string
	GetJWTSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRefreshTokenLength() int
}

type MockServer struct {
	Port               string        `env:"PORT" envDefault:"8000"`
	JWTSecret          string        `env:"MOCK_JWT_SECRET" envDefault:"dev-secret"`
	AccessTokenExpiry  time.Duration `env:"MOCK_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshTokenExpiry time.Duration `env:"MOCK_REFRESH_TOKEN_EXPIRY" envDefault:"168h"`
}

var _ MockServerConfig = MockServer{}

func (m MockServer) GetPort() string {
	port := m.Port
	if port == "" {
		port = "8000"
	}
	if port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (m MockServer) GetJWTSecret() string {
	return m.JWTSecret
}

func (m MockServer) GetAccessTokenExpiry() time.Duration {
	return m.AccessTokenExpiry
}

func (m MockServer) GetRefreshTokenExpiry() time.Duration {
	return m.RefreshTokenExpiry
}

func (MockServer) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}
