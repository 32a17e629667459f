package fakeuserrepo

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-rag-client/internal/errors"
	"github.com/jrsteele09/go-rag-client/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() users.UserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	stored := *user
	ur.users[user.ID] = &stored
	ur.emailIds[normalise(user.Email)] = user.ID
	return nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[normalise(email)]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	u := *ur.users[id]
	return &u, nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	stored, ok := ur.users[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	u := *stored
	return &u, nil
}

func (ur *FakeUserRepo) List(offset, limit int) ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userList := make([]*users.User, 0, len(ur.users))
	for _, v := range ur.users {
		u := *v
		userList = append(userList, &u)
	}

	sort.Slice(userList, func(i, j int) bool {
		return userList[i].CreatedAt.Before(userList[j].CreatedAt.Time)
	})

	if offset >= len(userList) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(userList) {
		end = len(userList)
	}
	return userList[offset:end], nil
}

func (ur *FakeUserRepo) SetPasswordHash(email, hash string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	id, ok := ur.emailIds[normalise(email)]
	if !ok {
		return errors.ErrUserNotFound
	}
	ur.users[id].PasswordHash = hash
	return nil
}

func normalise(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
