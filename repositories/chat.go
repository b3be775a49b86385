//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IChatRepository interface {
	FindOrCreateByParticipants(a, b string) (domain.Chat, bool, error)
	GetChat(id string) (domain.Chat, error)
	UpdateLastMessage(chatID, messageID string, at time.Time) error
}

type ChatRepository struct {
	db *badger.DB
}

func NewChatRepository(db *badger.DB) IChatRepository {
	return &ChatRepository{db: db}
}

// pairKey is the uniqueness constraint for direct chats: one key per
// canonicalized (sorted) participant pair. The record lives under this key;
// "chatix:{uuid}" maps the chat id back to it.
func pairKey(a, b string) []byte {
	a, b = domain.CanonicalPair(a, b)
	return []byte("chat:pair:" + a + ":" + b)
}

func chatIndexKey(id string) []byte { return []byte("chatix:" + id) }

// FindOrCreateByParticipants returns the unique direct chat for the pair,
// creating it lazily on first contact. The read and the conditional create
// share one transaction: when two first messages race for the same pair,
// one commit wins and the loser retries and finds the winner's record, so
// exactly one Chat ever exists per unordered pair.
func (c ChatRepository) FindOrCreateByParticipants(a, b string) (domain.Chat, bool, error) {
	var chat domain.Chat
	var created bool
	key := pairKey(a, b)

	err := retryOnConflict(func() error {
		created = false
		return c.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if err == nil {
				return item.Value(func(val []byte) error {
					return json.Unmarshal(val, &chat)
				})
			}
			if err != badger.ErrKeyNotFound {
				return err
			}

			p1, p2 := domain.CanonicalPair(a, b)
			chat = domain.Chat{
				ID:           uuid.NewString(),
				Participants: []string{p1, p2},
				LastActivity: time.Now().UTC(),
				CreatedAt:    time.Now().UTC(),
			}
			data, err := json.Marshal(chat)
			if err != nil {
				return err
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
			if err := txn.Set(chatIndexKey(chat.ID), key); err != nil {
				return err
			}
			created = true
			return nil
		})
	})
	if err != nil {
		return domain.Chat{}, false, err
	}
	return chat, created, nil
}

func (c ChatRepository) GetChat(id string) (domain.Chat, error) {
	var chat domain.Chat
	err := c.db.View(func(txn *badger.Txn) error {
		loaded, err := loadChatByIndex(txn, id)
		if err != nil {
			return err
		}
		chat = loaded
		return nil
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

// UpdateLastMessage refreshes the chat's last-message reference and
// activity timestamp. Runs after the message write committed, never before.
func (c ChatRepository) UpdateLastMessage(chatID, messageID string, at time.Time) error {
	return retryOnConflict(func() error {
		return c.db.Update(func(txn *badger.Txn) error {
			chat, err := loadChatByIndex(txn, chatID)
			if err != nil {
				return err
			}
			chat.LastMessageID = messageID
			chat.LastActivity = at
			data, err := json.Marshal(chat)
			if err != nil {
				return err
			}
			if len(chat.Participants) < 2 {
				return fmt.Errorf("chat %s has no participant pair", chatID)
			}
			return txn.Set(pairKey(chat.Participants[0], chat.Participants[1]), data)
		})
	})
}

func loadChatByIndex(txn *badger.Txn, id string) (domain.Chat, error) {
	var chat domain.Chat
	item, err := txn.Get(chatIndexKey(id))
	if err != nil {
		return chat, err
	}
	var primary []byte
	if err := item.Value(func(val []byte) error {
		primary = append([]byte(nil), val...)
		return nil
	}); err != nil {
		return chat, err
	}
	item, err = txn.Get(primary)
	if err != nil {
		return chat, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &chat)
	})
	return chat, err
}
