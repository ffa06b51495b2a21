package domain

import "time"

// Role enumerates the kinds of campus accounts.
type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// IsStaffOrAdmin reports whether r belongs to the helpdesk side.
func (r Role) IsStaffOrAdmin() bool {
	return r == RoleStaff || r == RoleAdmin
}

// User is an account in the identity store.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Department   string
	StudentID    string
	StaffID      string
	PhoneNumber  string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserProfile is the public projection of a User attached to tickets and
// messages.
type UserProfile struct {
	ID          string
	Name        string
	Email       string
	Role        Role
	Department  string
	StudentID   string
	StaffID     string
	PhoneNumber string
}

// Profile returns the public projection of u.
func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Department:  u.Department,
		StudentID:   u.StudentID,
		StaffID:     u.StaffID,
		PhoneNumber: u.PhoneNumber,
	}
}
