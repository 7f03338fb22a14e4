package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/errors"
)

func TestUserRepository_Create_And_Fetch(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	// When a new account is created
	id, err := repository.CreateUser("alice", "argon2id-hash")
	req.NoError(err)
	req.NotEmpty(id)

	// Then it can be fetched back with its defaults
	user, err := repository.GetUserByUsername("alice")
	req.NoError(err)
	req.Equal(id, user.ID)
	req.Equal("alice", user.Username)
	req.Equal("argon2id-hash", user.PasswordHash)
	req.Equal([]string{"user"}, user.Roles)
	req.False(user.CreatedAt.IsZero())
}

func TestUserRepository_Duplicate_Username_Rejected(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))
	_, err := repository.CreateUser("alice", "hash-1")
	req.NoError(err)

	// When the same username is registered again
	_, err = repository.CreateUser("alice", "hash-2")

	// Then the write is rejected and the original hash survives
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
	user, err := repository.GetUserByUsername("alice")
	req.NoError(err)
	req.Equal("hash-1", user.PasswordHash)
}

func TestUserRepository_Unknown_Username(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.GetUserByUsername("nobody")
	req.Error(err)
}
