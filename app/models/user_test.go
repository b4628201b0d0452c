package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	u, err := CreateUser("jordan", "jordan@example.com", "s3cret-pass")
	require.NoError(t, err)

	assert.Equal(t, ROLE_USER, u.Role)
	assert.Equal(t, STATUS_INACTIVE, u.Status)

	// The stored password is a bcrypt hash, never the plaintext.
	assert.NotEqual(t, "s3cret-pass", u.Password)
	assert.True(t, CheckPasswordHash("s3cret-pass", u.Password))
	assert.False(t, CheckPasswordHash("wrong-pass", u.Password))
}

func TestCreateUser_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"invalid email", "jordan", "not-an-email", "s3cret-pass"},
		{"short name", "jo", "jordan@example.com", "s3cret-pass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateUser(tt.username, tt.email, tt.password)
			require.Error(t, err)
		})
	}
}

func TestUserValidate_Statuses(t *testing.T) {
	u, err := CreateUser("jordan", "jordan@example.com", "s3cret-pass")
	require.NoError(t, err)

	for _, status := range []string{STATUS_ACTIVE, STATUS_INACTIVE, STATUS_DISABLED} {
		u.Status = status
		assert.NoError(t, u.Validate())
	}

	u.Status = STATUS_ACTIVE
	u.Role = ROLE_ADMIN
	assert.NoError(t, u.Validate())

	u.Status = "banned"
	assert.Error(t, u.Validate())
}
