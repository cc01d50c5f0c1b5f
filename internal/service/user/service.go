package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"qkart-backend/internal/domain"
	userrepo "qkart-backend/internal/repository/user"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgUserNotFound = "User not found"
	msgInvalidID    = "Invalid userId"
	msgEmailTaken   = "Email already taken"

	passwordMin = 8
	addressMin  = 20
)

// Service handles user records: lookups, registration and the shipping address.
type Service struct {
	repo          userrepo.Repository
	defaultWallet decimal.Decimal
	logger        *log.Logger
}

// New creates a Service. New users start with defaultWallet in their wallet.
func New(repo userrepo.Repository, defaultWallet decimal.Decimal, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{repo: repo, defaultWallet: defaultWallet, logger: logger}
}

// CreateInput captures the fields of a registration.
type CreateInput struct {
	Name     string
	Email    string
	Password string
}

// GetByID returns the user with the given id.
func (s *Service) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.InvalidRequest(msgInvalidID)
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound(msgUserNotFound)
		}
		return nil, domain.Internal("failed to load user", err)
	}
	return u, nil
}

// GetByEmail returns the user registered with email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound(msgUserNotFound)
		}
		return nil, domain.Internal("failed to load user", err)
	}
	return u, nil
}

// Create registers a new user with a hashed password and the default wallet.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, domain.InvalidRequest("email required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.InvalidRequest("name required")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, domain.InvalidRequest(err.Error())
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, domain.InvalidRequest(msgEmailTaken)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Internal("failed to check email", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.Internal("failed to hash password", err)
	}

	u, err := s.repo.Create(ctx, domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
		WalletMoney:  s.defaultWallet,
		Address:      domain.DefaultAddress,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, domain.InvalidRequest(msgEmailTaken)
		}
		return nil, domain.Internal("failed to create user", err)
	}
	s.logger.Printf("user service: registered id=%s email=%s", u.ID, u.Email)
	return u, nil
}

// PasswordMatches reports whether password is the one u registered with.
func (s *Service) PasswordMatches(u *domain.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// GetAddressByID returns the id, email and address of a user.
func (s *Service) GetAddressByID(ctx context.Context, id string) (*domain.UserAddress, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.UserAddress{ID: u.ID, Email: u.Email, Address: u.Address}, nil
}

// SetAddress stores a new shipping address for u and returns it.
// The address is trimmed and must then be at least 20 characters long.
func (s *Service) SetAddress(ctx context.Context, u *domain.User, address string) (string, error) {
	address = strings.TrimSpace(address)
	if utf8.RuneCountInString(address) < addressMin {
		return "", domain.InvalidRequest(fmt.Sprintf("\"address\" length must be at least %d characters long", addressMin))
	}
	next := *u
	next.Address = address
	saved, err := s.repo.Save(ctx, next)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return "", domain.Conflict("User was modified by another request, please retry", err)
		}
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.NotFound(msgUserNotFound)
		}
		return "", domain.Internal("failed to save address", err)
	}
	*u = *saved
	return saved.Address, nil
}

// ValidPassword reports whether p satisfies the registration password rule.
func ValidPassword(p string) bool {
	return validatePassword(p) == nil
}

func validatePassword(p string) error {
	if len(p) < passwordMin {
		return fmt.Errorf("password must be at least %d characters", passwordMin)
	}
	hasLetter := false
	hasDigit := false
	for _, r := range p {
		switch {
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return errors.New("password must contain at least 1 letter and 1 number")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
