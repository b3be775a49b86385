package repositories

import (
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_FindOrCreate_Creates_Once_Per_Pair(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openTestDB(t))
	alice := uuid.NewString()
	bob := uuid.NewString()

	// When the pair is resolved for the first time
	chat1, created1, err := repository.FindOrCreateByParticipants(alice, bob)
	req.NoError(err)
	req.True(created1)

	// Then resolving again, in either order, finds the same chat
	chat2, created2, err := repository.FindOrCreateByParticipants(bob, alice)
	req.NoError(err)
	req.False(created2)
	req.Equal(chat1.ID, chat2.ID)
}

func Test_FindOrCreate_Concurrent_First_Contact(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openTestDB(t))
	alice := uuid.NewString()
	bob := uuid.NewString()

	// When many first messages race for the same pair
	var wg sync.WaitGroup
	ids := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chat, _, err := repository.FindOrCreateByParticipants(alice, bob)
			if err == nil {
				ids <- chat.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	// Then every winner and loser observed the same single chat
	var unique map[string]struct{} = map[string]struct{}{}
	for id := range ids {
		unique[id] = struct{}{}
	}
	req.Len(unique, 1)
}

func Test_GetChat_By_ID(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openTestDB(t))
	chat, _, err := repository.FindOrCreateByParticipants(uuid.NewString(), uuid.NewString())
	req.NoError(err)

	fetched, err := repository.GetChat(chat.ID)
	req.NoError(err)
	req.Equal(chat.Participants, fetched.Participants)
}

func Test_GetChat_Unknown_ID(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openTestDB(t))

	_, err := repository.GetChat(uuid.NewString())
	req.ErrorIs(err, badger.ErrKeyNotFound)
}

func Test_UpdateLastMessage_Refreshes_Activity(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openTestDB(t))
	chat, _, err := repository.FindOrCreateByParticipants(uuid.NewString(), uuid.NewString())
	req.NoError(err)

	messageID := uuid.NewString()
	at := time.Now().UTC().Add(1 * time.Hour).Truncate(time.Millisecond)
	req.NoError(repository.UpdateLastMessage(chat.ID, messageID, at))

	fetched, err := repository.GetChat(chat.ID)
	req.NoError(err)
	req.Equal(messageID, fetched.LastMessageID)
	req.Equal(at, fetched.LastActivity.Truncate(time.Millisecond))
}
