package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cabinet-backend/internal/models"
)

func TestNormalizeAdminUserIdentity(t *testing.T) {
	tests := []struct {
		name         string
		username     string
		email        string
		wantUsername string
		wantEmail    string
	}{
		{"plain username untouched", "  Cabinet ", "", "Cabinet", ""},
		{"email-shaped username lowercased", " Doc@Cabinet.FR ", "", "doc@cabinet.fr", ""},
		{"email lowercased and trimmed", "admin", " Doc@Cabinet.FR ", "admin", "doc@cabinet.fr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			username, email := normalizeAdminUserIdentity(tt.username, tt.email)
			assert.Equal(t, tt.wantUsername, username)
			assert.Equal(t, tt.wantEmail, email)
		})
	}
}

func TestNewAdminAccount(t *testing.T) {
	now := time.Date(2024, 12, 10, 9, 0, 0, 0, time.UTC)
	user := newAdminAccount("cabinet", "doc@cabinet.fr", "hashed", now)

	require.NotEmpty(t, user.ID)
	assert.Equal(t, models.UserRoleAdmin, user.Role)
	assert.Equal(t, "cabinet", user.Username)
	assert.Equal(t, "hashed", user.PasswordHash)
	assert.Equal(t, now, user.CreatedAt)
	assert.Equal(t, now, user.UpdatedAt)
}
