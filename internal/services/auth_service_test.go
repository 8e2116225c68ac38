package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/learnsy/backend/internal/models"
	"github.com/learnsy/backend/libs/auth/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type authFixture struct {
	svc    *authService
	users  *mockUserRepository
	tokens *mockUserTokenRepository
	subs   *mockSubscriptionRepository
	tasks  *mockTaskEnqueuer
	tg     *service.TokenGenerator
}

func newAuthFixture(users ...*models.User) *authFixture {
	f := &authFixture{
		users:  newMockUserRepository(users...),
		tokens: newMockUserTokenRepository(),
		subs:   newMockSubscriptionRepository(),
		tasks:  &mockTaskEnqueuer{},
		tg:     service.NewTokenGenerator("test-secret", time.Hour, time.Hour),
	}
	f.svc = NewAuthService(f.users, f.tokens, f.subs, f.tg, f.tasks, zap.NewNop())
	f.svc.now = fixedClock(testNow)
	return f
}

func validRegisterRequest() *models.RegisterRequest {
	return &models.RegisterRequest{
		Name:        "Ada Lovelace",
		Email:       "  Ada@Example.com ",
		Password:    "Password123!",
		Institution: "Analytical U",
		Department:  "Mathematics",
	}
}

func TestNewAuthService(t *testing.T) {
	f := newAuthFixture()

	assert.NotNil(t, f.svc)
	assert.Equal(t, f.users, f.svc.userRepo)
	assert.Equal(t, f.tokens, f.svc.userTokenRepo)
	assert.Equal(t, f.tg, f.svc.tokenGenerator)
}

func TestAuthService_Register(t *testing.T) {
	existing := &models.User{ID: 1, Email: "taken@example.com", Role: models.RoleStudent}

	tests := []struct {
		name          string
		modify        func(req *models.RegisterRequest)
		role          models.Role
		expectedError error
		errorContains string
	}{
		{name: "student", role: models.RoleStudent},
		{name: "faculty", role: models.RoleFaculty},
		{
			name:          "invalid email format",
			modify:        func(req *models.RegisterRequest) { req.Email = "invalid-email" },
			role:          models.RoleStudent,
			expectedError: ErrInvalidInput,
			errorContains: "invalid email format",
		},
		{
			name:          "password without special character",
			modify:        func(req *models.RegisterRequest) { req.Password = "Password123" },
			role:          models.RoleStudent,
			expectedError: ErrInvalidInput,
			errorContains: "password must be at least 8 characters",
		},
		{
			name:          "short password",
			modify:        func(req *models.RegisterRequest) { req.Password = "Pa1!" },
			role:          models.RoleStudent,
			expectedError: ErrInvalidInput,
		},
		{
			name:          "password without uppercase",
			modify:        func(req *models.RegisterRequest) { req.Password = "password123!" },
			role:          models.RoleStudent,
			expectedError: ErrInvalidInput,
		},
		{
			name:          "email already exists",
			modify:        func(req *models.RegisterRequest) { req.Email = "TAKEN@example.com" },
			role:          models.RoleStudent,
			expectedError: ErrConflict,
			errorContains: "email already exists",
		},
		{
			name:          "admin signup is rejected",
			role:          models.RoleAdmin,
			expectedError: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(existing)
			req := validRegisterRequest()
			if tt.modify != nil {
				tt.modify(req)
			}

			resp, err := f.svc.Register(context.Background(), req, tt.role)

			if tt.expectedError != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedError)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
				assert.Nil(t, resp)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, resp.AccessToken)
			assert.NotEmpty(t, resp.RefreshToken)
			assert.True(t, f.tokens.has(resp.RefreshToken))
			assert.Equal(t, "ada@example.com", resp.User.Email)
			assert.Equal(t, tt.role, resp.User.Role)
			assert.NotEqual(t, "Password123!", resp.User.PasswordHash)

			userID, role, err := f.tg.ValidateAccessToken(resp.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, resp.User.ID, userID)
			assert.Equal(t, int(tt.role), role)

			assert.Equal(t, 1, f.tasks.emailCount())
			assert.Equal(t, "ada@example.com", f.tasks.lastEmail().To)
			if tt.role == models.RoleStudent {
				sub, ok := f.subs.get(resp.User.ID)
				require.True(t, ok)
				assert.Equal(t, models.TierFree, sub.Tier)
			} else {
				_, ok := f.subs.get(resp.User.ID)
				assert.False(t, ok)
			}
		})
	}

	t.Run("side effect failures do not fail signup", func(t *testing.T) {
		f := newAuthFixture()
		f.tasks.emailErr = errors.New("redis down")
		f.subs.err = errors.New("db down")

		resp, err := f.svc.Register(context.Background(), validRegisterRequest(), models.RoleStudent)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
	})

	t.Run("repository error", func(t *testing.T) {
		f := newAuthFixture()
		f.users.existsErr = errors.New("db down")

		_, err := f.svc.Register(context.Background(), validRegisterRequest(), models.RoleStudent)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to check email")
	})
}

func TestAuthService_Login(t *testing.T) {
	f := newAuthFixture()
	_, err := f.svc.Register(context.Background(), validRegisterRequest(), models.RoleFaculty)
	require.NoError(t, err)

	tests := []struct {
		name          string
		req           models.LoginRequest
		expectedError error
	}{
		{name: "success", req: models.LoginRequest{Email: "ada@example.com", Password: "Password123!"}},
		{name: "email is case insensitive", req: models.LoginRequest{Email: " ADA@example.com", Password: "Password123!"}},
		{name: "matching role", req: models.LoginRequest{Email: "ada@example.com", Password: "Password123!", Role: "faculty"}},
		{name: "wrong password", req: models.LoginRequest{Email: "ada@example.com", Password: "Password123?"}, expectedError: ErrUnauthorized},
		{name: "unknown email", req: models.LoginRequest{Email: "bob@example.com", Password: "Password123!"}, expectedError: ErrUnauthorized},
		{name: "role mismatch", req: models.LoginRequest{Email: "ada@example.com", Password: "Password123!", Role: "student"}, expectedError: ErrUnauthorized},
		{name: "empty password", req: models.LoginRequest{Email: "ada@example.com"}, expectedError: ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			resp, err := f.svc.Login(context.Background(), &req)

			if tt.expectedError != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Equal(t, "invalid credentials: unauthorized", err.Error())
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, resp.AccessToken)
			assert.Equal(t, models.RoleFaculty, resp.User.Role)
		})
	}
}

func TestAuthService_RegisterThenLogin(t *testing.T) {
	credentials := []struct {
		email    string
		password string
		role     models.Role
	}{
		{email: "s1@uni.edu", password: "Abcdefg1!", role: models.RoleStudent},
		{email: "Prof.X@Uni.Edu", password: "Zz9^zzzzzz", role: models.RoleFaculty},
		{email: "mixed+tag@mail.example.org", password: "Q1w2e3r4|", role: models.RoleStudent},
	}

	for _, c := range credentials {
		t.Run(c.email, func(t *testing.T) {
			f := newAuthFixture()
			_, err := f.svc.Register(context.Background(), &models.RegisterRequest{Name: "User", Email: c.email, Password: c.password}, c.role)
			require.NoError(t, err)

			resp, err := f.svc.Login(context.Background(), &models.LoginRequest{Email: c.email, Password: c.password, Role: c.role.String()})
			require.NoError(t, err)
			assert.NotEmpty(t, resp.AccessToken)
		})
	}
}

func TestAuthService_Refresh(t *testing.T) {
	t.Run("rotates the token", func(t *testing.T) {
		f := newAuthFixture()
		registered, err := f.svc.Register(context.Background(), validRegisterRequest(), models.RoleStudent)
		require.NoError(t, err)

		resp, err := f.svc.Refresh(context.Background(), registered.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, registered.RefreshToken, resp.RefreshToken)
		assert.False(t, f.tokens.has(registered.RefreshToken))
		assert.True(t, f.tokens.has(resp.RefreshToken))

		_, err = f.svc.Refresh(context.Background(), registered.RefreshToken)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newAuthFixture()
		_, refresh, err := f.tg.GenerateTokens(1, int(models.RoleStudent))
		require.NoError(t, err)

		_, err = f.svc.Refresh(context.Background(), refresh)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("invalid signature deletes the stored token", func(t *testing.T) {
		f := newAuthFixture()
		f.tokens.tokens["garbage"] = 1

		_, err := f.svc.Refresh(context.Background(), "garbage")
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.False(t, f.tokens.has("garbage"))
	})

	t.Run("empty token", func(t *testing.T) {
		f := newAuthFixture()
		_, err := f.svc.Refresh(context.Background(), "  ")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestAuthService_LogoutAndMe(t *testing.T) {
	f := newAuthFixture()
	registered, err := f.svc.Register(context.Background(), validRegisterRequest(), models.RoleStudent)
	require.NoError(t, err)

	me, err := f.svc.Me(context.Background(), registered.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", me.Name)

	require.NoError(t, f.svc.Logout(context.Background(), registered.RefreshToken))
	assert.False(t, f.tokens.has(registered.RefreshToken))
	require.NoError(t, f.svc.Logout(context.Background(), ""))

	_, err = f.svc.Me(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
