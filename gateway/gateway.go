package gateway

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/services"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Options bound the gateway's patience with clients and stores.
type Options struct {
	AuthDeadline         time.Duration
	WriteTimeout         time.Duration
	ConnectionBufferSize int
}

// Gateway upgrades HTTP requests to WebSocket connections and runs one
// read loop per connection. The handshake is authenticate-first: nothing
// is registered until the credential verifies and the account is active,
// so a rejected connection leaves no partial state behind.
type Gateway struct {
	log      *slog.Logger
	upgrader websocket.Upgrader
	registry contract.IRegistry
	rooms    contract.IMembership
	users    repositories.IUserRepository
	chats    repositories.IChatRepository
	tokens   *auth.TokenService
	fanout   services.IFanoutService
	typing   services.ITypingRouter
	presence services.IPresenceBroadcaster
	opts     Options
}

func NewGateway(log *slog.Logger, registry contract.IRegistry, rooms contract.IMembership,
	users repositories.IUserRepository, chats repositories.IChatRepository,
	tokens *auth.TokenService, fanout services.IFanoutService,
	typing services.ITypingRouter, presence services.IPresenceBroadcaster,
	opts Options) *Gateway {
	return &Gateway{
		log:      log,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		registry: registry,
		rooms:    rooms,
		users:    users,
		chats:    chats,
		tokens:   tokens,
		fanout:   fanout,
		typing:   typing,
		presence: presence,
		opts:     opts,
	}
}

// ServeWS is the WebSocket entry point.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn := NewConnection(g.log, ws, g.opts.ConnectionBufferSize, g.opts.WriteTimeout)
	go g.run(conn)
}

// run owns the whole connection lifecycle:
// Unauthenticated -> Authenticated -> Disconnected.
func (g *Gateway) run(conn *Connection) {
	ctx := context.Background()

	if !g.handshake(conn) {
		conn.Close()
		return
	}

	// Registered from here on; teardown must run exactly once.
	defer g.teardown(ctx, conn)

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			g.log.Debug("Read loop ended", "conn_id", conn.id, "user_id", conn.user.ID, "error", err)
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			conn.sendError("INVALID_PAYLOAD", "malformed envelope")
			continue
		}
		g.dispatch(ctx, conn, env)
	}
}

// handshake reads exactly one authenticate frame within the deadline.
// Failures are written synchronously (the write pump is not running yet)
// and leave no observable state: no registration, no broadcast.
func (g *Gateway) handshake(conn *Connection) bool {
	_ = conn.ws.SetReadDeadline(time.Now().Add(g.opts.AuthDeadline))

	_, data, err := conn.ws.ReadMessage()
	if err != nil {
		g.log.Debug("Handshake read failed", "conn_id", conn.id, "error", err)
		return false
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type != TypeAuthenticate {
		g.rejectHandshake(conn, errors.ErrAuthFailed, "first event must be authenticate")
		return false
	}
	payload, err := decodePayload[AuthenticatePayload](env.Payload)
	if err != nil {
		g.rejectHandshake(conn, errors.ErrAuthFailed, "missing credential")
		return false
	}

	claims, err := g.tokens.Verify(payload.Token)
	if err != nil {
		g.rejectHandshake(conn, errors.ErrAuthFailed, "credential rejected")
		return false
	}
	stored, err := g.users.GetUserByID(claims.UserID)
	if err != nil {
		g.rejectHandshake(conn, errors.ErrAuthFailed, "unknown identity")
		return false
	}
	if !stored.Active {
		g.rejectHandshake(conn, errors.ErrAccountDeactivated, "account deactivated")
		return false
	}

	user := stored.ToDomain()
	conn.user = user
	conn.state = StateAuthenticated
	_ = conn.ws.SetReadDeadline(time.Time{})
	go conn.writePump()

	// Newest connection wins: any previous connection for this identity is
	// superseded and closed. Its pending disconnect can no longer touch
	// registry state (Deregister checks the handle).
	if prev := g.registry.Register(user, conn); prev != nil {
		g.log.Info("Connection superseded", "user_id", user.ID, "old_conn", prev.ID(), "new_conn", conn.id)
		if closable, ok := prev.(interface{ Close() }); ok {
			closable.Close()
		}
	}

	_ = conn.Consume(context.Background(), event.Authenticated{User: event.UserView{
		UserID:   user.ID,
		Username: user.Username,
		Status:   string(domain.StatusOnline),
		LastSeen: time.Now().UTC(),
	}})
	g.presence.AnnounceOnline(context.Background(), user)
	g.log.Info("Connection authenticated", "user_id", user.ID, "conn_id", conn.id)
	return true
}

func (g *Gateway) rejectHandshake(conn *Connection, sentinel error, message string) {
	data, err := encodeEvent(event.Error{Message: message, Code: errors.CodeOf(sentinel)})
	if err != nil {
		return
	}
	_ = conn.ws.SetWriteDeadline(time.Now().Add(g.opts.WriteTimeout))
	_ = conn.ws.WriteMessage(websocket.TextMessage, data)
}

// teardown is idempotent and supersession-safe: the registry entry is only
// removed if it still belongs to this connection. A stale disconnect after
// supersession announces nothing.
func (g *Gateway) teardown(ctx context.Context, conn *Connection) {
	conn.Close()
	if conn.state != StateAuthenticated {
		return
	}
	conn.state = StateDisconnected
	if g.registry.Deregister(conn.user.ID, conn.id) {
		g.rooms.LeaveAll(conn.user.ID)
		g.presence.AnnounceOffline(ctx, conn.user)
		g.log.Info("Connection closed", "user_id", conn.user.ID, "conn_id", conn.id)
	} else {
		g.log.Debug("Stale disconnect ignored", "user_id", conn.user.ID, "conn_id", conn.id)
	}
}

// dispatch routes one inbound event. All failures are reported only to the
// originating connection as an error event with a stable code.
func (g *Gateway) dispatch(ctx context.Context, conn *Connection, env Envelope) {
	switch env.Type {
	case TypeAuthenticate:
		conn.sendError("INVALID_PAYLOAD", "already authenticated")

	case TypeJoinChat:
		payload, err := decodePayload[JoinChatPayload](env.Payload)
		if err != nil {
			conn.sendError(errors.CodeOf(err), "invalid join_chat payload")
			return
		}
		g.joinChat(conn, payload.ChatID)

	case TypeSendMessage:
		payload, err := decodePayload[SendMessagePayload](env.Payload)
		if err != nil {
			conn.sendError(errors.CodeOf(err), "invalid send_message payload")
			return
		}
		_, err = g.fanout.Send(ctx, conn.user, services.SendCommand{
			RecipientID: payload.To,
			Content:     payload.Content,
			Type:        domain.MessageType(payload.Type),
			ChatID:      payload.ChatID,
		})
		if err != nil {
			conn.sendError(errors.CodeOf(err), err.Error())
		}

	case TypeTyping:
		payload, err := decodePayload[TypingPayload](env.Payload)
		if err != nil {
			// Typing is lossy by design; a malformed signal is dropped the
			// same way an unreachable recipient is.
			g.log.Debug("Dropping malformed typing payload", "conn_id", conn.id)
			return
		}
		g.typing.Typing(ctx, conn.user, payload.To, payload.IsTyping)

	case TypeReadReceipt:
		payload, err := decodePayload[ReadReceiptPayload](env.Payload)
		if err != nil {
			conn.sendError(errors.CodeOf(err), "invalid read_receipt payload")
			return
		}
		if err := g.fanout.MarkRead(ctx, conn.user, payload.MessageID, payload.ChatID); err != nil {
			conn.sendError(errors.CodeOf(err), err.Error())
		}

	case TypeUpdateStatus:
		payload, err := decodePayload[UpdateStatusPayload](env.Payload)
		if err != nil {
			conn.sendError(errors.CodeOf(err), "invalid update_status payload")
			return
		}
		status := domain.Status(payload.Status)
		g.registry.SetStatus(conn.user.ID, status)
		g.presence.AnnounceStatusChanged(ctx, conn.user, status)

	default:
		conn.sendError("INVALID_PAYLOAD", "unknown event type "+env.Type)
	}
}

// joinChat is a capability check, not a hard error: a malicious or stale
// join attempt is logged and ignored so it cannot crash the connection.
func (g *Gateway) joinChat(conn *Connection, chatID string) {
	chat, err := g.chats.GetChat(chatID)
	if err != nil {
		g.log.Warn("Join rejected, chat not found", "user_id", conn.user.ID, "chat_id", chatID)
		return
	}
	if !chat.HasParticipant(conn.user.ID) {
		g.log.Warn("Join rejected, not a participant", "user_id", conn.user.ID, "chat_id", chatID)
		return
	}
	g.rooms.Join(chat.ID, conn.user.ID)
	g.log.Debug("Joined chat room", "user_id", conn.user.ID, "chat_id", chatID)
}
