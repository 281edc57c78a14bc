package fakeuserrepo

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sealantern/go-auth-service/users"
)

var _ users.Directory = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	byID        map[string]*users.User
	usernameIds map[string]string // username to user id
	emailIds    map[string]string // email to user id
	lock        sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		byID:        make(map[string]*users.User),
		usernameIds: make(map[string]string),
		emailIds:    make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now()
	}

	ur.byID[user.ID] = user
	ur.usernameIds[user.Username] = user.ID
	if user.Email != "" {
		ur.emailIds[user.Email] = user.ID
	}
	return nil
}

func (ur *FakeUserRepo) GetByUsername(username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.usernameIds[username]
	if !ok {
		return nil, users.ErrNotFound
	}
	return ur.byID[id], nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if email == "" {
		return nil, users.ErrNotFound
	}
	id, ok := ur.emailIds[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	return ur.byID[id], nil
}

func (ur *FakeUserRepo) ExistsByUsername(username string) (bool, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	_, ok := ur.usernameIds[username]
	return ok, nil
}
