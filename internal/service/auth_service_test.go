package service

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/uniticket/internal/clock"
	"github.com/spec-kit/uniticket/internal/config"
	"github.com/spec-kit/uniticket/internal/domain"
	"github.com/spec-kit/uniticket/internal/repository/memstore"
	apperrors "github.com/spec-kit/uniticket/pkg/util"
)

func newAuthService(t *testing.T) (*AuthService, *memstore.Store) {
	t.Helper()
	store := memstore.New(clock.Fake(time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)))
	cfg := config.Config{Auth: config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            bcrypt.MinCost,
	}}
	return NewAuthService(cfg, AuthDependencies{UserRepo: store.Users()}), store
}

func TestRegisterAndLogin(t *testing.T) {
	svc, store := newAuthService(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{
		Name:      "Nora Nguyen",
		Email:     "  Nora@Uni.EDU ",
		Password:  "s3cret!",
		StudentID: "S-1001",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Profile.Role != domain.RoleStudent || res.Profile.Email != "nora@uni.edu" {
		t.Errorf("profile = %+v", res.Profile)
	}
	if res.Token == "" || res.ExpiresAt.IsZero() {
		t.Fatalf("no token issued: %+v", res)
	}
	claims, err := svc.TokenManager().ParseToken(res.Token)
	if err != nil || claims.UserID != res.Profile.ID || claims.Role != domain.RoleStudent {
		t.Errorf("claims = %+v, %v", claims, err)
	}

	stored, err := store.Users().GetByEmail(ctx, "nora@uni.edu")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if stored.PasswordHash == "s3cret!" || stored.PasswordHash == "" {
		t.Error("password stored in clear")
	}

	login, err := svc.Login(ctx, LoginInput{Email: "NORA@uni.edu", Password: "s3cret!"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.Profile.ID != res.Profile.ID {
		t.Errorf("login profile = %+v", login.Profile)
	}

	me, err := svc.Me(ctx, res.Profile.ID)
	if err != nil || me.Name != "Nora Nguyen" {
		t.Errorf("Me = %+v, %v", me, err)
	}
}

func TestRegisterRejects(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{
		Name: "First", Email: "first@uni.edu", Password: "password", StudentID: "S-1", StaffID: "",
	}); err != nil {
		t.Fatalf("seed register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{
		Name: "Staffer", Email: "staffer@uni.edu", Password: "password", Role: domain.RoleStaff, StaffID: "T-1",
	}); err != nil {
		t.Fatalf("seed staff: %v", err)
	}

	tests := []struct {
		name  string
		input RegisterInput
		check func(error) bool
	}{
		{"duplicate email", RegisterInput{Name: "Dup", Email: "FIRST@uni.edu", Password: "password"}, isConflict},
		{"duplicate student id", RegisterInput{Name: "Dup", Email: "dup@uni.edu", Password: "password", StudentID: "S-1"}, isConflict},
		{"duplicate staff id", RegisterInput{Name: "Dup", Email: "dup@uni.edu", Password: "password", Role: domain.RoleStaff, StaffID: "T-1"}, isConflict},
		{"admin", RegisterInput{Name: "Root", Email: "root@uni.edu", Password: "password", Role: domain.RoleAdmin}, apperrors.IsForbidden},
		{"unknown role", RegisterInput{Name: "Odd", Email: "odd@uni.edu", Password: "password", Role: "dean"}, apperrors.IsValidation},
		{"short password", RegisterInput{Name: "Short", Email: "short@uni.edu", Password: "abc"}, apperrors.IsValidation},
		{"bad email", RegisterInput{Name: "Bad", Email: "not-an-email", Password: "password"}, apperrors.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tt.input); !tt.check(err) {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func isConflict(err error) bool {
	return apperrors.HasCode(err, apperrors.CodeConflict)
}

func TestLoginFailures(t *testing.T) {
	svc, store := newAuthService(t)
	ctx := context.Background()
	res, err := svc.Register(ctx, RegisterInput{Name: "Lee", Email: "lee@uni.edu", Password: "password"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, input := range []LoginInput{
		{Email: "lee@uni.edu", Password: "wrong"},
		{Email: "nobody@uni.edu", Password: "password"},
	} {
		_, err := svc.Login(ctx, input)
		if !apperrors.HasCode(err, apperrors.CodeUnauthorized) || err.Error() != invalidCredentials {
			t.Errorf("login %s: err = %v, want %q", input.Email, err, invalidCredentials)
		}
	}

	user, _ := store.Users().GetByID(ctx, res.Profile.ID)
	deactivated := *user
	deactivated.ID = ""
	deactivated.Email = "gone@uni.edu"
	deactivated.Active = false
	if err := store.Users().Create(ctx, &deactivated); err != nil {
		t.Fatalf("create inactive: %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "gone@uni.edu", Password: "password"}); !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Errorf("inactive login: err = %v, want UNAUTHORIZED", err)
	}
}
