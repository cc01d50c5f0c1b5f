package auth

import (
	"context"
	"io"
	"log"
	"time"

	"qkart-backend/internal/domain"
	usersvc "qkart-backend/internal/service/user"
)

const (
	msgBadCredentials = "Incorrect email or password"
	msgAuthenticate   = "Please authenticate"
)

type userService interface {
	Create(ctx context.Context, in usersvc.CreateInput) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	PasswordMatches(u *domain.User, password string) bool
}

// Service handles registration, login and bearer token authentication.
type Service struct {
	users  userService
	tokens *tokenManager
	logger *log.Logger
}

// New creates a Service signing tokens with secret; tokens live for accessTTL.
func New(users userService, secret string, accessTTL time.Duration, logger *log.Logger) (*Service, error) {
	tokens, err := newTokenManager(secret, accessTTL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{users: users, tokens: tokens, logger: logger}, nil
}

// Register creates the user and issues its first access token.
func (s *Service) Register(ctx context.Context, in usersvc.CreateInput) (*domain.User, Tokens, error) {
	u, err := s.users.Create(ctx, in)
	if err != nil {
		return nil, Tokens{}, err
	}
	tokens, err := s.issue(u)
	if err != nil {
		return nil, Tokens{}, err
	}
	return u, tokens, nil
}

// Login checks the credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.User, Tokens, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, Tokens{}, domain.Unauthorized(msgBadCredentials)
		}
		return nil, Tokens{}, err
	}
	if !s.users.PasswordMatches(u, password) {
		s.logger.Printf("auth service: login rejected email=%s", u.Email)
		return nil, Tokens{}, domain.Unauthorized(msgBadCredentials)
	}
	tokens, err := s.issue(u)
	if err != nil {
		return nil, Tokens{}, err
	}
	return u, tokens, nil
}

// Authenticate returns the user bound to a valid access token.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	userID, err := s.tokens.Validate(token)
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindUnauthorized, Message: msgAuthenticate, Err: err}
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if k := domain.KindOf(err); k == domain.KindNotFound || k == domain.KindInvalidRequest {
			return nil, domain.Unauthorized(msgAuthenticate)
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) issue(u *domain.User) (Tokens, error) {
	access, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Tokens{}, domain.Internal("failed to issue token", err)
	}
	return Tokens{Access: access}, nil
}
