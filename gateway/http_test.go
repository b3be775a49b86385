package gateway

import (
	"bytes"
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

const apiTestPassword = "Str0ng&Secret-Pass"

type apiFixture struct {
	server *httptest.Server
	auth   services.IAuthService
	fanout services.IFanoutService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	req := require.New(t)
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	users := repositories.NewUserRepository(db)
	messages := repositories.NewMessageRepository(db, log, nil)
	chats := repositories.NewChatRepository(db)

	registry := runtime.NewRegistry()
	rooms := runtime.NewMembership()
	dispatcher := runtime.NewDispatcher(log, registry, rooms, time.Second)
	mirror := workers.NewStatusMirror(log, users, 16)

	tokens := auth.NewTokenService("test-secret", time.Hour)
	fanout := services.NewFanoutService(users, messages, chats, dispatcher, nil, 4000)
	typing := services.NewTypingRouter(log, dispatcher)
	presence := services.NewPresenceBroadcaster(dispatcher, mirror)
	authService := services.NewAuthService(users, tokens)

	ws := NewGateway(log, registry, rooms, users, chats, tokens, fanout, typing, presence,
		Options{
			AuthDeadline:         2 * time.Second,
			WriteTimeout:         time.Second,
			ConnectionBufferSize: 16,
		})
	api := NewAPI(log, authService, tokens, users, chats, fanout)

	mux := http.NewServeMux()
	api.Mount(mux, ws)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &apiFixture{server: server, auth: authService, fanout: fanout}
}

// signUp registers a user out of band and returns the logged-in record
// plus a bearer token.
func (f *apiFixture) signUp(t *testing.T, username string) (domain.User, string) {
	t.Helper()
	req := require.New(t)
	email := username + "@example.com"
	_, err := f.auth.Register(username, email, apiTestPassword)
	req.NoError(err)
	token, user, err := f.auth.Login(email, apiTestPassword)
	req.NoError(err)
	return user, string(token)
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	request, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.server.Client().Do(request)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func Test_API_Register_And_Login(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	// When a fresh account registers
	resp := f.do(t, http.MethodPost, "/api/register", "",
		map[string]string{"username": "alice", "email": "alice@example.com", "password": apiTestPassword})
	req.Equal(http.StatusCreated, resp.StatusCode)
	created := decodeBody[map[string]string](t, resp)
	req.NotEmpty(created["token"])

	// Then login returns a token and the user record
	resp = f.do(t, http.MethodPost, "/api/login", "",
		map[string]string{"email": "alice@example.com", "password": apiTestPassword})
	req.Equal(http.StatusOK, resp.StatusCode)
	logged := decodeBody[map[string]any](t, resp)
	req.NotEmpty(logged["token"])
	req.Equal("alice", logged["user"].(map[string]any)["username"])

	// And the same email cannot register twice
	resp = f.do(t, http.MethodPost, "/api/register", "",
		map[string]string{"username": "alice2", "email": "alice@example.com", "password": apiTestPassword})
	req.Equal(http.StatusConflict, resp.StatusCode)
	dup := decodeBody[map[string]string](t, resp)
	req.Equal("USER_ALREADY_EXISTS", dup["code"])
}

func Test_API_History_Requires_Participation(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)
	alice, aliceToken := f.signUp(t, "alice")
	bob, _ := f.signUp(t, "bob")
	_, carolToken := f.signUp(t, "carol")

	// Given a message between alice and bob
	result, err := f.fanout.Send(context.Background(), alice,
		services.SendCommand{RecipientID: bob.ID, Content: "hello", Type: domain.MessageText})
	req.NoError(err)

	// A participant reads the history
	resp := f.do(t, http.MethodGet, "/api/chats/"+result.ChatID+"/messages", aliceToken, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	page := decodeBody[struct {
		Messages []messageView `json:"messages"`
	}](t, resp)
	req.Len(page.Messages, 1)
	req.Equal("hello", page.Messages[0].Content)

	// An outsider gets the same answer as a missing chat
	resp = f.do(t, http.MethodGet, "/api/chats/"+result.ChatID+"/messages", carolToken, nil)
	req.Equal(http.StatusNotFound, resp.StatusCode)
	denied := decodeBody[map[string]string](t, resp)
	req.Equal("CHAT_NOT_FOUND_OR_FORBIDDEN", denied["code"])

	// An unknown chat id is indistinguishable from a forbidden one
	resp = f.do(t, http.MethodGet, "/api/chats/nope/messages", aliceToken, nil)
	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func Test_API_Requires_Bearer_Token(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/chats/whatever/messages", "", nil)

	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	req.Equal("AUTH_FAILED", body["code"])
}

func Test_API_Edit_And_Delete(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)
	alice, aliceToken := f.signUp(t, "alice")
	bob, bobToken := f.signUp(t, "bob")

	result, err := f.fanout.Send(context.Background(), alice,
		services.SendCommand{RecipientID: bob.ID, Content: "draft", Type: domain.MessageText})
	req.NoError(err)
	path := fmt.Sprintf("/api/messages/%s", result.MessageID)

	// The sender edits within the window
	resp := f.do(t, http.MethodPatch, path, aliceToken, map[string]string{"content": "final"})
	req.Equal(http.StatusOK, resp.StatusCode)
	edited := decodeBody[messageView](t, resp)
	req.Equal("final", edited.Content)
	req.True(edited.Edited)

	// The recipient cannot edit
	resp = f.do(t, http.MethodPatch, path, bobToken, map[string]string{"content": "hijack"})
	req.Equal(http.StatusNotFound, resp.StatusCode)

	// Either participant can delete
	resp = f.do(t, http.MethodDelete, path, bobToken, nil)
	req.Equal(http.StatusNoContent, resp.StatusCode)

	// A deleted message no longer shows up in history
	resp = f.do(t, http.MethodGet, "/api/chats/"+result.ChatID+"/messages", aliceToken, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	page := decodeBody[struct {
		Messages []messageView `json:"messages"`
	}](t, resp)
	req.Empty(page.Messages)
}

func Test_API_Account_Deactivation(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)
	_, bobToken := f.signUp(t, "bob")

	resp := f.do(t, http.MethodDelete, "/api/account", bobToken, nil)
	req.Equal(http.StatusNoContent, resp.StatusCode)

	// The token stops working immediately
	resp = f.do(t, http.MethodGet, "/api/chats/any/messages", bobToken, nil)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	// And the credentials are refused with a dedicated code
	resp = f.do(t, http.MethodPost, "/api/login", "",
		map[string]string{"email": "bob@example.com", "password": apiTestPassword})
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	req.Equal("ACCOUNT_DEACTIVATED", body["code"])
}
