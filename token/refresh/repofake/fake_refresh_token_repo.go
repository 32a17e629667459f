package refreshrepofake

import (
	"sort"
	"sync"

	"github.com/jrsteele09/go-rag-client/internal/errors"
	"github.com/jrsteele09/go-rag-client/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

type FakeRefreshTokenRepo struct {
	tokens  map[string]refresh.StoredRefreshToken
	userIDs map[string]string // user ID to token
	lock    sync.RWMutex
}

func NewFakeRefreshTokenRepo() refresh.Repo {
	return &FakeRefreshTokenRepo{
		tokens:  make(map[string]refresh.StoredRefreshToken),
		userIDs: make(map[string]string),
	}
}

func (tr *FakeRefreshTokenRepo) Upsert(refreshToken *refresh.StoredRefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.tokens[refreshToken.Token] = *refreshToken
	tr.userIDs[refreshToken.UserID] = refreshToken.Token
	return nil
}

func (tr *FakeRefreshTokenRepo) Delete(token string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	rt, ok := tr.tokens[token]
	if !ok {
		return errors.ErrNotFound
	}
	if tr.userIDs[rt.UserID] == token {
		delete(tr.userIDs, rt.UserID)
	}
	delete(tr.tokens, token)
	return nil
}

func (tr *FakeRefreshTokenRepo) Get(token string) (*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	rt, ok := tr.tokens[token]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return &rt, nil
}

func (tr *FakeRefreshTokenRepo) GetByUserID(userID string) (*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	token, ok := tr.userIDs[userID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	rt := tr.tokens[token]
	return &rt, nil
}

func (tr *FakeRefreshTokenRepo) List(offset, limit int) ([]*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	tokens := make([]*refresh.StoredRefreshToken, 0, len(tr.tokens))
	for _, v := range tr.tokens {
		rt := v
		tokens = append(tokens, &rt)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Iat.Before(tokens[j].Iat)
	})

	if offset >= len(tokens) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(tokens) {
		end = len(tokens)
	}
	return tokens[offset:end], nil
}
