package services_test

import (
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
)

var testEpoch = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func identity(role domain.Role) *domain.Identity {
	return &domain.Identity{UserID: uuid.New(), Role: role}
}

func technician(name string) *domain.User {
	return &domain.User{
		ID:        uuid.New(),
		FullName:  name,
		Email:     name + "@helpdesk.test",
		Role:      domain.RoleTechnician,
		CreatedAt: testEpoch,
	}
}

const validDescription = "The printer on floor two keeps jamming"
