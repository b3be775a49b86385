package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/repositories"
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IFanoutService interface {
	Send(ctx context.Context, sender domain.User, cmd SendCommand) (SendResult, error)
	Edit(ctx context.Context, requesterID, messageID, newContent string) (domain.Message, error)
	Delete(ctx context.Context, requesterID, messageID string) error
	MarkRead(ctx context.Context, reader domain.User, messageID, chatID string) error
	History(chatID string, cursor *string) ([]domain.Message, *string, error)
}

// SendCommand is a validated send intent from the gateway.
type SendCommand struct {
	RecipientID string
	Content     string
	Type        domain.MessageType
	ChatID      *string
}

type SendResult struct {
	MessageID string
	ChatID    string
	SentAt    time.Time
}

// FanoutService is the message fan-out engine: it records a message
// durably, resolves the owning chat, and only then emits anything to any
// live connection. Delivery to the recipient is best-effort; the durable
// record is the source of truth.
type FanoutService struct {
	users            repositories.IUserRepository
	messages         repositories.IMessageRepository
	chats            repositories.IChatRepository
	dispatcher       contract.IDispatcher
	censor           *moderation.Censor
	maxContentLength int
}

func NewFanoutService(users repositories.IUserRepository,
	messages repositories.IMessageRepository, chats repositories.IChatRepository,
	dispatcher contract.IDispatcher, censor *moderation.Censor,
	maxContentLength int) *FanoutService {
	return &FanoutService{
		users:            users,
		messages:         messages,
		chats:            chats,
		dispatcher:       dispatcher,
		censor:           censor,
		maxContentLength: maxContentLength,
	}
}

// Send runs the ordered send pipeline. Every step is a hard dependency on
// the previous one succeeding:
//
//  1. reject self-messages
//  2. resolve an existing, active recipient
//  3. resolve the owning chat (verify participants, or find-or-create the
//     canonical pair)
//  4. persist the message — nothing is emitted to anyone if this fails
//  5. refresh the chat's last-message reference
//  6. confirm to the sender
//  7. deliver to the recipient if reachable (best-effort, no queue)
//  8. emit to the chat room for any additional members
//
// The chat is resolved before the message write so a forbidden explicit
// chatId can never leave an orphaned record; the durability-before-delivery
// ordering (persist, then chat update, then any emission) is unchanged.
func (s *FanoutService) Send(ctx context.Context, sender domain.User, cmd SendCommand) (SendResult, error) {
	if sender.ID == cmd.RecipientID {
		return SendResult{}, errors.ErrSelfMessage
	}
	if cmd.Content == "" || len(cmd.Content) > s.maxContentLength {
		return SendResult{}, fmt.Errorf("%w: content length must be 1..%d",
			errors.ErrInvalidPayload, s.maxContentLength)
	}

	recipient, err := s.users.GetUserByID(cmd.RecipientID)
	if err != nil {
		return SendResult{}, mapStoreErr(err, errors.ErrRecipientNotFound)
	}
	if !recipient.Active {
		return SendResult{}, errors.ErrRecipientNotFound
	}

	chat, err := s.resolveChat(sender.ID, cmd.RecipientID, cmd.ChatID)
	if err != nil {
		return SendResult{}, err
	}

	msgType := cmd.Type
	if msgType == "" {
		msgType = domain.MessageText
	}
	// Blocklisted words are masked before the record is written; the
	// durable store never sees the raw content.
	content, _ := s.censor.Apply(cmd.Content)
	msg := domain.Message{
		ID:         uuid.NewString(),
		ChatID:     chat.ID,
		SenderID:   sender.ID,
		ReceiverID: cmd.RecipientID,
		Content:    content,
		Type:       msgType,
		SentAt:     time.Now().UTC(),
	}
	if err := s.messages.CreateMessage(msg); err != nil {
		return SendResult{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	if err := s.chats.UpdateLastMessage(chat.ID, msg.ID, msg.SentAt); err != nil {
		return SendResult{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	s.dispatcher.DeliverTo(ctx, sender.ID, event.MessageSent{
		MessageID: msg.ID,
		ChatID:    chat.ID,
		Timestamp: msg.SentAt,
	})

	incoming := event.NewMessage{
		MessageID:  msg.ID,
		Sender:     sender.ID,
		SenderName: sender.Username,
		Content:    msg.Content,
		Timestamp:  msg.SentAt,
		ChatID:     chat.ID,
	}
	s.dispatcher.DeliverTo(ctx, cmd.RecipientID, incoming)
	s.dispatcher.DeliverRoom(ctx, chat.ID, sender.ID, incoming)

	return SendResult{MessageID: msg.ID, ChatID: chat.ID, SentAt: msg.SentAt}, nil
}

// resolveChat loads and verifies an explicit chat, or finds or creates the
// unique chat for the canonical participant pair.
func (s *FanoutService) resolveChat(senderID, recipientID string, explicitChatID *string) (domain.Chat, error) {
	if explicitChatID != nil && *explicitChatID != "" {
		chat, err := s.chats.GetChat(*explicitChatID)
		if err != nil {
			return domain.Chat{}, mapStoreErr(err, errors.ErrChatNotFoundOrForbidden)
		}
		if !chat.HasParticipant(senderID) || !chat.HasParticipant(recipientID) {
			return domain.Chat{}, errors.ErrChatNotFoundOrForbidden
		}
		return chat, nil
	}

	chat, _, err := s.chats.FindOrCreateByParticipants(senderID, recipientID)
	if err != nil {
		return domain.Chat{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return chat, nil
}

// Edit rewrites a message's content. Only the original sender may edit, and
// only within the edit window measured from the sent timestamp. The checks
// run inside the store mutation so a concurrent delete cannot slip between
// check and write.
func (s *FanoutService) Edit(ctx context.Context, requesterID, messageID, newContent string) (domain.Message, error) {
	if newContent == "" || len(newContent) > s.maxContentLength {
		return domain.Message{}, fmt.Errorf("%w: content length must be 1..%d",
			errors.ErrInvalidPayload, s.maxContentLength)
	}

	censored, _ := s.censor.Apply(newContent)
	var updated domain.Message
	err := s.messages.UpdateMessage(messageID, func(m *domain.Message) error {
		if m.Deleted || m.SenderID != requesterID {
			return errors.ErrNotFoundOrForbidden
		}
		if !m.Editable(time.Now().UTC()) {
			return errors.ErrEditWindowExpired
		}
		now := time.Now().UTC()
		m.Content = censored
		m.Edited = true
		m.EditedAt = &now
		updated = *m
		return nil
	})
	if err != nil {
		return domain.Message{}, mapStoreErr(err, errors.ErrNotFoundOrForbidden)
	}
	return updated, nil
}

// Delete soft-deletes a message. Either participant may delete; the record
// stays in storage but disappears from every read path.
func (s *FanoutService) Delete(ctx context.Context, requesterID, messageID string) error {
	err := s.messages.UpdateMessage(messageID, func(m *domain.Message) error {
		if m.Deleted {
			return errors.ErrNotFoundOrForbidden
		}
		if m.SenderID != requesterID && m.ReceiverID != requesterID {
			return errors.ErrNotFoundOrForbidden
		}
		now := time.Now().UTC()
		m.Deleted = true
		m.DeletedAt = &now
		return nil
	})
	if err != nil {
		return mapStoreErr(err, errors.ErrNotFoundOrForbidden)
	}
	return nil
}

// MarkRead records a read receipt. Only the message's recipient may mark it
// read. Once the mutation lands, the original sender and the chat room are
// notified best-effort; a miss is not an error.
func (s *FanoutService) MarkRead(ctx context.Context, reader domain.User, messageID, chatID string) error {
	var senderID string
	var readAt time.Time
	err := s.messages.UpdateMessage(messageID, func(m *domain.Message) error {
		if m.Deleted || m.ReceiverID != reader.ID || m.ChatID != chatID {
			return errors.ErrNotFoundOrForbidden
		}
		if !m.Read {
			now := time.Now().UTC()
			m.Read = true
			m.ReadAt = &now
		}
		senderID = m.SenderID
		readAt = *m.ReadAt
		return nil
	})
	if err != nil {
		return mapStoreErr(err, errors.ErrNotFoundOrForbidden)
	}

	receipt := event.MessageRead{
		MessageID: messageID,
		ReadAt:    readAt,
		ChatID:    chatID,
		ReaderID:  reader.ID,
	}
	s.dispatcher.DeliverTo(ctx, senderID, receipt)
	s.dispatcher.DeliverRoom(ctx, chatID, reader.ID, receipt)
	return nil
}

// History returns a page of the chat's messages, newest first, soft-deleted
// messages excluded.
func (s *FanoutService) History(chatID string, cursor *string) ([]domain.Message, *string, error) {
	messages, next, err := s.messages.GetConversation(chatID, cursor)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return messages, next, nil
}

// mapStoreErr converts a missing-key store error into the given domain
// sentinel; domain sentinels pass through; anything else is a persistence
// failure.
func mapStoreErr(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case err == badger.ErrKeyNotFound:
		return notFound
	case errors.CodeOf(err) != "INTERNAL":
		return err
	default:
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
}
