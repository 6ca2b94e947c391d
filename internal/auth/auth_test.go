package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Token_Round_Trip(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret", time.Hour)
	userID := uuid.New()

	signed, err := tokens.Issue(userID)
	req.NoError(err)

	got, err := tokens.Verify(signed)
	req.NoError(err)
	req.Equal(userID, got)
}

func Test_Token_Wrong_Secret_Rejected(t *testing.T) {
	req := require.New(t)
	signed, err := NewTokens("secret-a", time.Hour).Issue(uuid.New())
	req.NoError(err)

	_, err = NewTokens("secret-b", time.Hour).Verify(signed)
	req.Error(err)
}

func Test_Token_Expired_Rejected(t *testing.T) {
	req := require.New(t)
	signed, err := NewTokens("test-secret", -time.Minute).Issue(uuid.New())
	req.NoError(err)

	_, err = NewTokens("test-secret", -time.Minute).Verify(signed)
	req.Error(err)
}

func Test_Password_Hash_And_Check(t *testing.T) {
	req := require.New(t)
	hash, err := HashPassword("hunter22")
	req.NoError(err)
	req.NotEqual("hunter22", hash)
	req.True(CheckPassword(hash, "hunter22"))
	req.False(CheckPassword(hash, "hunter23"))
}
