//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(username, email, hashedPassword string) (string, error)
	GetUserByEmail(email string) (User, error)
	GetUserByID(id string) (User, error)
	UpdateStatus(id string, status domain.Status, lastSeen time.Time) error
	SetActive(id string, active bool) error
}

// User is the stored representation of an account. Status and LastSeen are
// the durable mirror of the live presence registry.
type User struct {
	ID           string        `json:"id"`
	Username     string        `json:"username"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"passwordHash"`
	Roles        []string      `json:"roles"`
	Status       domain.Status `json:"status"`
	LastSeen     time.Time     `json:"lastSeen"`
	Active       bool          `json:"active"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// ToDomain projects the stored record onto the domain entity, leaving the
// password hash behind.
func (u User) ToDomain() domain.User {
	return domain.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Roles:     u.Roles,
		Status:    u.Status,
		LastSeen:  u.LastSeen,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// Keys: "user:id:{uuid}" holds the record, "user:email:{email}" holds the
// id, giving a unique secondary index on email.
func userKey(id string) []byte { return []byte("user:id:" + id) }
func emailKey(email string) []byte { return []byte("user:email:" + email) }

// CreateUser persists a new active user and its email index entry.
// The email index lookup and the two writes share one transaction, so two
// concurrent registrations for the same email conflict at commit and the
// loser observes ErrUserAlreadyExists on retry.
func (u UserRepository) CreateUser(username, email, hashedPassword string) (string, error) {
	newID := uuid.NewString()
	user := User{
		ID:           newID,
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		Status:       domain.StatusOffline,
		LastSeen:     time.Now().UTC(),
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = retryOnConflict(func() error {
		return u.db.Update(func(txn *badger.Txn) error {
			if _, err := txn.Get(emailKey(email)); err == nil {
				return errors.ErrUserAlreadyExists
			}
			if err := txn.Set(emailKey(email), []byte(newID)); err != nil {
				return err
			}
			return txn.Set(userKey(newID), data)
		})
	})
	if err != nil {
		return "", err
	}
	return newID, nil
}

func (u UserRepository) GetUserByEmail(email string) (User, error) {
	var id string
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return User{}, err
	}
	return u.GetUserByID(id)
}

func (u UserRepository) GetUserByID(id string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateStatus mirrors a presence change into the durable record.
// Read-modify-write in one transaction; retried on commit conflict so
// interleaved connect/disconnect mirrors never corrupt the record.
func (u UserRepository) UpdateStatus(id string, status domain.Status, lastSeen time.Time) error {
	return retryOnConflict(func() error {
		return u.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(userKey(id))
			if err != nil {
				return err
			}
			var user User
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &user)
			}); err != nil {
				return err
			}
			user.Status = status
			user.LastSeen = lastSeen
			data, err := json.Marshal(user)
			if err != nil {
				return err
			}
			return txn.Set(userKey(id), data)
		})
	})
}

// SetActive flips the account's active flag. A deactivated account keeps
// its record and history but fails every credential check.
func (u UserRepository) SetActive(id string, active bool) error {
	return retryOnConflict(func() error {
		return u.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(userKey(id))
			if err != nil {
				return err
			}
			var user User
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &user)
			}); err != nil {
				return err
			}
			user.Active = active
			data, err := json.Marshal(user)
			if err != nil {
				return err
			}
			return txn.Set(userKey(id), data)
		})
	})
}

const maxTxnRetries = 5

// retryOnConflict re-runs a badger transaction that lost an optimistic
// concurrency race. Any other error is returned as-is.
func retryOnConflict(fn func() error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		if err = fn(); err != badger.ErrConflict {
			return err
		}
	}
	return err
}
