package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSessionToken(t *testing.T) {
	token1, err := generateSessionToken()
	require.NoError(t, err)
	assert.Len(t, token1, 64)

	token2, err := generateSessionToken()
	require.NoError(t, err)
	assert.NotEqual(t, token1, token2)
}

func TestHashSessionToken(t *testing.T) {
	hash := hashSessionToken("abc123")
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, hashSessionToken("abc123"))
	assert.NotEqual(t, hash, hashSessionToken("abc124"))
	assert.NotEqual(t, "abc123", hash)
}

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"user@example.com",
		"first.last@sub.example.co.uk",
		"u+tag@example.org",
	}
	for _, email := range valid {
		assert.NoError(t, validateEmail(email), email)
	}

	invalid := []string{
		"",
		"no-at-sign.com",
		"two@@example.com",
		"@example.com",
		"user@",
		"user@nodot",
		"user..double@example.com",
	}
	for _, email := range invalid {
		assert.Error(t, validateEmail(email), email)
	}
}

func TestValidatePassword(t *testing.T) {
	assert.Error(t, validatePassword("short"))
	assert.NoError(t, validatePassword("longenough"))
	assert.Error(t, validatePassword(string(make([]byte, 73))))
	assert.NoError(t, validatePassword(string(make([]byte, 72))))
}
