package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/learnsy/backend/internal/models"
	"github.com/learnsy/backend/internal/tasks"
	"github.com/learnsy/backend/libs/auth/service"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository is the interface that wraps methods for Users table data access
type UserRepository interface {
	// Method Create inserts a new user into the database.
	//
	// "user" parameter is used to create a new user, its ID and timestamps are filled in on success.
	//
	// If the email is taken, a wrapped models.ErrDuplicate is returned.
	Create(ctx context.Context, user *models.User) error
	// Method GetByEmail retrieves a user by lower-cased email.
	//
	// If user with such email does not exist, a wrapped models.ErrNotFound will be returned together with "nil" value.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Method GetByID retrieves a user by ID.
	//
	// If user with such ID does not exist, a wrapped models.ErrNotFound will be returned together with "nil" value.
	GetByID(ctx context.Context, id int) (*models.User, error)
	// Method ExistsByEmail checks if a user with such email exists.
	//
	// If some error occurs during check, the error will be returned together with "false" value.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// UserTokenRepository is the interface that wraps methods for UserTokens table data access
type UserTokenRepository interface {
	// Method Create inserts a new refresh token into the database.
	Create(ctx context.Context, userToken *models.UserToken) error
	// Method GetByToken retrieves a refresh token record by token string.
	//
	// If such token does not exist, a wrapped models.ErrNotFound will be returned together with "nil" value.
	GetByToken(ctx context.Context, token string) (*models.UserToken, error)
	// Method UpdateToken replaces "oldToken" with "newToken" for the user with "userID".
	//
	// If the old token is gone, a wrapped models.ErrNotFound is returned.
	UpdateToken(ctx context.Context, oldToken, newToken string, userID int) error
	// Method DeleteByToken deletes a refresh token. Deleting a missing token is not an error.
	DeleteByToken(ctx context.Context, token string) error
}

// FreeSubscriptionCreator creates the default subscription of a new student
type FreeSubscriptionCreator interface {
	// Method CreateFree inserts a free subscription unless the student already has one.
	CreateFree(ctx context.Context, studentID int, startedAt time.Time) error
}

// authService implements signup, login and token rotation
type authService struct {
	userRepo         UserRepository
	userTokenRepo    UserTokenRepository
	subscriptionRepo FreeSubscriptionCreator
	tokenGenerator   *service.TokenGenerator
	tasks            TaskEnqueuer
	logger           *zap.Logger
	now              Clock
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo UserRepository,
	userTokenRepo UserTokenRepository,
	subscriptionRepo FreeSubscriptionCreator,
	tokenGenerator *service.TokenGenerator,
	tasks TaskEnqueuer,
	logger *zap.Logger,
) *authService {
	return &authService{
		userRepo:         userRepo,
		userTokenRepo:    userTokenRepo,
		subscriptionRepo: subscriptionRepo,
		tokenGenerator:   tokenGenerator,
		tasks:            tasks,
		logger:           logger,
		now:              SystemClock,
	}
}

// emailRegex validates email format
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// passwordRegex validates password: at least 8 chars, uppercase, lowercase, number, special: !_?^&+-=|
var passwordRegex = []*regexp.Regexp{
	regexp.MustCompile(`.{8,}`),
	regexp.MustCompile(`[a-z]`),
	regexp.MustCompile(`[A-Z]`),
	regexp.MustCompile(`[0-9]`),
	regexp.MustCompile(`[!_?^&+\-=|]`),
}

// errInvalidCredentials is returned for every kind of failed login
var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrUnauthorized)

// Register creates a student or faculty account and signs the new user in
func (s *authService) Register(ctx context.Context, req *models.RegisterRequest, role models.Role) (*models.AuthResponse, error) {
	if role != models.RoleStudent && role != models.RoleFaculty {
		return nil, invalidInput("cannot sign up as %s", role)
	}

	email, err := checkRegisterCredentials(ctx, s.userRepo, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(passwordHash),
		Role:         role,
		Institution:  strings.TrimSpace(req.Institution),
		Department:   strings.TrimSpace(req.Department),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, fmt.Errorf("email already exists: %w", ErrConflict)
		}
		return nil, err
	}

	// Side effects must not fail the signup, they are logged instead.
	bg := context.WithoutCancel(ctx)
	if role == models.RoleStudent {
		if err := s.subscriptionRepo.CreateFree(bg, user.ID, now); err != nil {
			s.logger.Warn("failed to create free subscription", zap.Int("userId", user.ID), zap.Error(err))
		}
	}
	if err := s.tasks.EnqueueEmail(bg, tasks.WelcomeEmail(user.Email, user.Name, role.String())); err != nil {
		s.logger.Warn("failed to queue welcome email", zap.Int("userId", user.ID), zap.Error(err))
	}

	return s.issueTokens(ctx, user)
}

// Login authenticates a user. When "role" is set it must match the account's role.
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		return nil, errInvalidCredentials
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	if req.Role != "" {
		role, ok := models.ParseRole(req.Role)
		if !ok || role != user.Role {
			return nil, errInvalidCredentials
		}
	}

	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token
//
// The stored token lookup and the signature check do not depend on each other, so they run in parallel.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required: %w", ErrUnauthorized)
	}

	errorChan := make(chan error, 2)
	userTokenChan := make(chan *models.UserToken, 1)

	go func() {
		userToken, err := s.userTokenRepo.GetByToken(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				err = fmt.Errorf("invalid or expired refresh token: %w", ErrUnauthorized)
			}
			userTokenChan <- nil
			errorChan <- err
			return
		}
		userTokenChan <- userToken
		errorChan <- nil
	}()

	go func() {
		if err := s.tokenGenerator.ValidateRefreshToken(refreshToken); err != nil {
			// Drop the stored copy of a token that no longer validates
			if delErr := s.userTokenRepo.DeleteByToken(ctx, refreshToken); delErr != nil {
				s.logger.Warn("failed to delete invalid refresh token", zap.Error(delErr))
			}
			errorChan <- fmt.Errorf("invalid or expired refresh token: %w", ErrUnauthorized)
			return
		}
		errorChan <- nil
	}()

	for range 2 {
		if err := <-errorChan; err != nil {
			return nil, err
		}
	}
	userToken := <-userTokenChan

	user, err := s.userRepo.GetByID(ctx, userToken.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("user no longer exists: %w", ErrUnauthorized)
		}
		return nil, err
	}

	accessToken, newRefreshToken, err := s.tokenGenerator.GenerateTokens(user.ID, int(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	if err := s.userTokenRepo.UpdateToken(ctx, refreshToken, newRefreshToken, userToken.UserID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("refresh token already used: %w", ErrUnauthorized)
		}
		return nil, err
	}

	return &models.AuthResponse{AccessToken: accessToken, RefreshToken: newRefreshToken, User: user}, nil
}

// Logout revokes a refresh token
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	return s.userTokenRepo.DeleteByToken(ctx, refreshToken)
}

// Me returns the profile of the authenticated user
func (s *authService) Me(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "user")
	}
	return user, nil
}

// issueTokens generates a token pair and stores the refresh token
func (s *authService) issueTokens(ctx context.Context, user *models.User) (*models.AuthResponse, error) {
	accessToken, refreshToken, err := s.tokenGenerator.GenerateTokens(user.ID, int(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	userToken := &models.UserToken{
		UserID: user.ID,
		Token:  refreshToken,
	}
	if err := s.userTokenRepo.Create(ctx, userToken); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return &models.AuthResponse{AccessToken: accessToken, RefreshToken: refreshToken, User: user}, nil
}

// Method that combines all checks for register credentials
//
// The password rules and the email uniqueness check do not wait for each other, so they run in parallel.
// The normalized email is returned.
func checkRegisterCredentials(ctx context.Context, userRepo UserRepository, email, password string) (string, error) {
	validationErrors := make(chan error, 2)
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))

	go func() {
		for _, regex := range passwordRegex {
			if !regex.MatchString(password) {
				validationErrors <- invalidInput("password must be at least 8 characters long and contain at least one uppercase letter, one lowercase letter, one number, and one special character (!_?^&+-=|)")
				return
			}
		}
		validationErrors <- nil
	}()

	go func() {
		if !emailRegex.MatchString(normalizedEmail) {
			validationErrors <- invalidInput("invalid email format")
			return
		}
		emailExists, err := userRepo.ExistsByEmail(ctx, normalizedEmail)
		if err != nil {
			validationErrors <- fmt.Errorf("failed to check email: %w", err)
			return
		}
		if emailExists {
			validationErrors <- fmt.Errorf("email already exists: %w", ErrConflict)
			return
		}
		validationErrors <- nil
	}()

	var firstErr error
	for range 2 {
		if err := <-validationErrors; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return "", firstErr
	}

	return normalizedEmail, nil
}
