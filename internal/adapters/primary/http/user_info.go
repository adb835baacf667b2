package http

import (
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
)

// UserInfoDTO represents a lightweight user reference in responses.
type UserInfoDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toUserInfoDTO(user *domain.UserInfo) *UserInfoDTO {
	if user == nil {
		return nil
	}
	return &UserInfoDTO{
		ID:    user.ID.String(),
		Name:  user.FullName,
		Email: user.Email,
	}
}
