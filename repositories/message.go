//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

type IMessageRepository interface {
	CreateMessage(m domain.Message) error
	GetMessage(id string) (domain.Message, error)
	UpdateMessage(id string, mutate func(*domain.Message) error) error
	GetConversation(chatID string, cursor *string) ([]domain.Message, *string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) IMessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// messageKey formats the primary key as "msg:{chat_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using the message UUID as a collision disconnector
//     if two messages land on the same nanosecond.
func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.ChatID, m.SentAt.UnixNano(), m.ID))
}

// messageIndexKey maps a message id to its primary key, for point lookups
// (edit, delete, read receipt) that don't know the chat or timestamp.
func messageIndexKey(id string) []byte { return []byte("msgix:" + id) }

// CreateMessage durably records a message and its id index entry.
// Callers must not emit anything to any connection before this returns nil.
func (m MessageRepository) CreateMessage(msg domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	key := messageKey(msg)
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(messageIndexKey(msg.ID), key)
	})
}

// GetMessage resolves a message by id through the index. Soft-deleted
// messages are reported as not found.
func (m MessageRepository) GetMessage(id string) (domain.Message, error) {
	var msg domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		loaded, err := loadByIndex(txn, id)
		if err != nil {
			return err
		}
		msg = loaded
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	if msg.Deleted {
		return domain.Message{}, badger.ErrKeyNotFound
	}
	return msg, nil
}

// UpdateMessage applies a mutation to the stored record in place. The
// primary key embeds the immutable SentAt, so mutations rewrite the same
// key. Retried on commit conflict.
func (m MessageRepository) UpdateMessage(id string, mutate func(*domain.Message) error) error {
	return retryOnConflict(func() error {
		return m.db.Update(func(txn *badger.Txn) error {
			msg, err := loadByIndex(txn, id)
			if err != nil {
				return err
			}
			if err := mutate(&msg); err != nil {
				return err
			}
			data, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			return txn.Set(messageKey(msg), data)
		})
	})
}

// GetConversation retrieves messages for a chat using a reverse prefix scan,
// newest first. Thanks to the padded timestamp in the key, messages are
// naturally sorted by time. Soft-deleted messages are skipped and do not
// count against the limit; the cursor is the key suffix after the prefix.
func (m MessageRepository) GetConversation(chatID string, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string
	exhausted := true
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", chatID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				exhausted = false
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			var msg domain.Message
			if err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &msg)
			}); err != nil {
				return err
			}
			// Soft-deleted rows advance the cursor but never fill the page.
			if msg.Deleted {
				continue
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if exhausted {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

func loadByIndex(txn *badger.Txn, id string) (domain.Message, error) {
	var msg domain.Message
	item, err := txn.Get(messageIndexKey(id))
	if err != nil {
		return msg, err
	}
	var primary []byte
	if err := item.Value(func(val []byte) error {
		primary = append([]byte(nil), val...)
		return nil
	}); err != nil {
		return msg, err
	}
	item, err = txn.Get(primary)
	if err != nil {
		return msg, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &msg)
	})
	return msg, err
}
