package main

import (
	"testing"

	clientconfig "secure_chat_service/internal/client/config"
	"secure_chat_service/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhoami(t *testing.T) {
	tok, err := token.GenerateJWT("u-1", "alice@example.com", "test")
	require.NoError(t, err)

	cfg = &clientconfig.Client{Token: tok}
	s, err := whoami()
	require.NoError(t, err)
	assert.Equal(t, "u-1", s.UserID)
	assert.Equal(t, "alice@example.com", s.Email)

	cfg = &clientconfig.Client{Token: "not-a-jwt"}
	_, err = whoami()
	assert.Error(t, err)
}

func TestRequireConversation(t *testing.T) {
	assert.Error(t, requireConversation(""))
	assert.NoError(t, requireConversation("c1"))
}
