package auth

import (
	"chat-relay/errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const complexPassword = "Str0ng&Secret-Pass"

func Test_Token_Generate_And_Verify(t *testing.T) {
	req := require.New(t)
	service := NewTokenService("test-secret", time.Hour)
	userID := uuid.NewString()

	token, err := service.Generate(userID, []string{"user"})
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := service.Verify(token)
	req.NoError(err)
	req.Equal(userID, claims.UserID)
	req.Equal([]string{"user"}, claims.Roles)
	req.Equal("chat-relay", claims.Issuer)
}

func Test_Token_Wrong_Secret_Is_Rejected(t *testing.T) {
	req := require.New(t)
	minting := NewTokenService("secret-a", time.Hour)
	verifying := NewTokenService("secret-b", time.Hour)

	token, err := minting.Generate(uuid.NewString(), nil)
	req.NoError(err)

	_, err = verifying.Verify(token)
	req.Error(err)
}

func Test_Expired_Token_Is_Rejected(t *testing.T) {
	req := require.New(t)
	service := NewTokenService("test-secret", -time.Minute)

	token, err := service.Generate(uuid.NewString(), nil)
	req.NoError(err)

	_, err = service.Verify(token)
	req.Error(err)
}

func Test_Garbage_Token_Is_Rejected(t *testing.T) {
	req := require.New(t)
	service := NewTokenService("test-secret", time.Hour)

	_, err := service.Verify("not.a.token")
	req.Error(err)
}

func Test_Password_Hash_And_Compare(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword(complexPassword)
	req.NoError(err)
	req.Contains(hash, "$argon2id$")

	match, err := ComparePassword(complexPassword, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("wrong-password", hash)
	req.NoError(err)
	req.False(match)
}

func Test_Password_Hashes_Are_Salted(t *testing.T) {
	req := require.New(t)

	hash1, err := HashPassword(complexPassword)
	req.NoError(err)
	hash2, err := HashPassword(complexPassword)
	req.NoError(err)

	req.NotEqual(hash1, hash2)
}

func Test_ValidateRegister(t *testing.T) {
	req := require.New(t)

	valid := RegisterRequest{Username: "alice", Email: "alice@example.com", Password: complexPassword}
	req.NoError(ValidateRegister(valid))

	// Field failures map onto their own sentinel: payload shape problems
	// must not surface as password complaints.
	cases := map[string]struct {
		request RegisterRequest
		want    error
	}{
		"short username": {
			RegisterRequest{Username: "al", Email: "alice@example.com", Password: complexPassword},
			errors.ErrInvalidPayload,
		},
		"bad email": {
			RegisterRequest{Username: "alice", Email: "not-an-email", Password: complexPassword},
			errors.ErrInvalidPayload,
		},
		"short password": {
			RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "Sh0rt&"},
			errors.ErrInvalidPassword,
		},
		"no uppercase": {
			RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "weak&password123"},
			errors.ErrInvalidPassword,
		},
		"no special char": {
			RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "Weakpassword123"},
			errors.ErrInvalidPassword,
		},
	}
	for name, tc := range cases {
		req.ErrorIs(ValidateRegister(tc.request), tc.want, name)
	}
}
