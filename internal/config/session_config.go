package config

import (
	"os"
	"path/filepath"
	"time"
)

type SessionConfig interface {
	GetSessionBackend() string
	GetSessionFile() string
	GetSessionSecret() string
	GetRedisURL() string
	GetSessionRedisKey() string
	GetSessionTTL() time.Duration
}

const (
	SessionBackendMemory = "memory"
	SessionBackendFile   = "file"
	SessionBackendRedis  = "redis"
)

type Session struct {
	Backend  string        `env:"SESSION_BACKEND" envDefault:"file"`
	File     string        `env:"SESSION_FILE"`
	Secret   string        `env:"SESSION_SECRET"`
	RedisURL string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisKey string        `env:"SESSION_REDIS_KEY" envDefault:"ragclient:session"`
	TTL      time.Duration `env:"SESSION_TTL" envDefault:"0s"`
}

var _ SessionConfig = Session{}

func (s Session) GetSessionBackend() string {
	switch s.Backend {
	case SessionBackendMemory, SessionBackendRedis:
		return s.Backend
	}
	return SessionBackendFile
}

// GetSessionFile falls back to <user config dir>/ragclient/session.json.
func (s Session) GetSessionFile() string {
	if s.File != "" {
		return s.File
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "ragclient", "session.json")
}

func (s Session) GetSessionSecret() string {
	return s.Secret
}

func (s Session) GetRedisURL() string {
	return s.RedisURL
}

func (s Session) GetSessionRedisKey() string {
	return s.RedisKey
}

func (s Session) GetSessionTTL() time.Duration {
	return s.TTL
}
