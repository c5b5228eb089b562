package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tomlord1122/task-backend/internal/domain"
	"github.com/Tomlord1122/task-backend/internal/errs"
	"github.com/Tomlord1122/task-backend/internal/repository"
)

const (
	minPasswordLength = 6
	maxNameLength     = 50
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of a user; the password hash never leaves the service.
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// TokenIssuer mints bearer credentials for a user.
type TokenIssuer interface {
	Issue(user domain.User) (string, time.Time, error)
}

// AuthService defines registration, login and "who am I".
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	// Login returns errs.ErrUnauthorized for an unknown email and for a wrong
	// password alike.
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (*UserResponse, error)
}

type authService struct {
	users  repository.UserRepository
	tokens TokenIssuer
	log    *zap.Logger
	cost   int
}

func NewAuthService(users repository.UserRepository, tokens TokenIssuer, log *zap.Logger) AuthService {
	return &authService{users: users, tokens: tokens, log: log, cost: bcrypt.DefaultCost}
}

func (s *authService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errs.Validation("name", "Name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, errs.Validation("name", "Name cannot be more than 50 characters")
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, errs.Validation("password", "Password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{Name: name, Email: email, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.Stringer("user", user.ID))
	return s.authResponse(user)
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil || req.Password == "" {
		return nil, errs.Validation("credentials", "Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUnauthorized
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, errs.ErrUnauthorized
	}
	return s.authResponse(user)
}

func (s *authService) Me(ctx context.Context, userID uuid.UUID) (*UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *authService) authResponse(user *domain.User) (*AuthResponse, error) {
	token, exp, err := s.tokens.Issue(*user)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: toUserResponse(user), Token: token, ExpiresAt: exp}, nil
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", errs.Validation("email", "Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errs.Validation("email", "Please enter a valid email")
	}
	return email, nil
}
