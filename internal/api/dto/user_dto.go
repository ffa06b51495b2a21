package dto

import (
	"time"

	"github.com/spec-kit/uniticket/internal/domain"
	"github.com/spec-kit/uniticket/internal/service"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	Department  string `json:"department"`
	StudentID   string `json:"studentId"`
	StaffID     string `json:"staffId"`
	PhoneNumber string `json:"phoneNumber"`
}

// ToInput converts the payload for the auth service.
func (r RegisterRequest) ToInput() service.RegisterInput {
	return service.RegisterInput{
		Name:        r.Name,
		Email:       r.Email,
		Password:    r.Password,
		Role:        domain.Role(r.Role),
		Department:  r.Department,
		StudentID:   r.StudentID,
		StaffID:     r.StaffID,
		PhoneNumber: r.PhoneNumber,
	}
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public profile of a user.
type UserResponse struct {
	ID          string      `json:"id"`
	Name        string      `json:"name,omitempty"`
	Email       string      `json:"email,omitempty"`
	Role        domain.Role `json:"role,omitempty"`
	Department  string      `json:"department,omitempty"`
	StudentID   string      `json:"studentId,omitempty"`
	StaffID     string      `json:"staffId,omitempty"`
	PhoneNumber string      `json:"phoneNumber,omitempty"`
}

// NewUserResponse converts a profile.
func NewUserResponse(p domain.UserProfile) UserResponse {
	return UserResponse{
		ID:          p.ID,
		Name:        p.Name,
		Email:       p.Email,
		Role:        p.Role,
		Department:  p.Department,
		StudentID:   p.StudentID,
		StaffID:     p.StaffID,
		PhoneNumber: p.PhoneNumber,
	}
}

func userRef(id string, profile *domain.UserProfile) *UserResponse {
	if profile == nil {
		return &UserResponse{ID: id}
	}
	resp := NewUserResponse(*profile)
	return &resp
}

// AuthResponse is the register/login payload: the profile plus a token.
type AuthResponse struct {
	UserResponse
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewAuthResponse converts an auth result.
func NewAuthResponse(res *service.AuthResult) AuthResponse {
	return AuthResponse{
		UserResponse: NewUserResponse(res.Profile),
		Token:        res.Token,
		ExpiresAt:    res.ExpiresAt,
	}
}
