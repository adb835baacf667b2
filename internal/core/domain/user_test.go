package domain_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole(t *testing.T) {
	tests := []struct {
		role    domain.Role
		valid   bool
		isStaff bool
	}{
		{domain.RoleUser, true, false},
		{domain.RoleTechnician, true, true},
		{domain.RoleAdmin, true, true},
		{domain.Role("guest"), false, false},
		{domain.Role(""), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.role.IsValid())
			assert.Equal(t, tt.isStaff, tt.role.IsStaff())
		})
	}
}

func TestIdentity_Valid(t *testing.T) {
	var missing *domain.Identity
	assert.False(t, missing.Valid())
	assert.False(t, (&domain.Identity{Role: domain.RoleUser}).Valid())
	assert.False(t, (&domain.Identity{UserID: uuid.New(), Role: "guest"}).Valid())
	assert.True(t, (&domain.Identity{UserID: uuid.New(), Role: domain.RoleUser}).Valid())
}

func TestNewUser(t *testing.T) {
	t.Run("valid technician", func(t *testing.T) {
		user, err := domain.NewUser(domain.UserParams{
			FullName: "  Tess Tech ",
			Email:    "Tess@Example.com",
			Role:     domain.RoleTechnician,
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.Equal(t, "Tess Tech", user.FullName)
		assert.Equal(t, "tess@example.com", user.Email)

		info := user.Info()
		assert.Equal(t, user.ID, info.ID)
		assert.Equal(t, "Tess Tech", info.FullName)
	})

	t.Run("keeps a supplied id", func(t *testing.T) {
		id := uuid.New()
		user, err := domain.NewUser(domain.UserParams{ID: id, FullName: "A", Email: "a@example.com", Role: domain.RoleUser})
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
	})

	t.Run("collects every field error", func(t *testing.T) {
		user, err := domain.NewUser(domain.UserParams{
			FullName: strings.Repeat("n", domain.MaxFullNameLength+1),
			Email:    "not-an-email",
			Role:     "guest",
		})
		assert.Nil(t, user)

		var verrs *apperrors.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs.Errors, "fullName")
		assert.Contains(t, verrs.Errors, "email")
		assert.Contains(t, verrs.Errors, "role")
	})
}
