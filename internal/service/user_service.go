package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"image-enhancer/internal/domain"
	"image-enhancer/internal/repository"
)

const (
	minPasswordLength = 6
	// bcrypt ignores everything past 72 bytes
	maxPasswordBytes = 72
)

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, email, name, password string) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type userService struct {
	users  repository.UserRepository
	logger logrus.FieldLogger
	cost   int

	dummyOnce sync.Once
	dummyHash []byte
}

func NewUserService(users repository.UserRepository, logger logrus.FieldLogger) UserService {
	return newUserService(users, logger, bcrypt.DefaultCost)
}

func newUserService(users repository.UserRepository, logger logrus.FieldLogger, cost int) *userService {
	if logger == nil {
		logger = logrus.New()
	}
	return &userService{
		users:  users,
		logger: logger,
		cost:   cost,
	}
}

type registration struct {
	Email    string
	Name     string
	Password string
}

func (r registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Name, validation.Required.Error("cannot be empty")),
		validation.Field(&r.Password,
			validation.Required,
			validation.RuneLength(minPasswordLength, 0).Error("must be at least 6 characters"),
			validation.By(maxBytes(maxPasswordBytes)),
		),
	)
}

func maxBytes(n int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > n {
			return fmt.Errorf("must be at most %d bytes", n)
		}
		return nil
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) Register(ctx context.Context, email, name, password string) (*domain.User, error) {
	reg := registration{
		Email:    normalizeEmail(email),
		Name:     strings.TrimSpace(name),
		Password: password,
	}
	if err := reg.Validate(); err != nil {
		return nil, newValidationError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        reg.Email,
		Name:         reg.Name,
		PasswordHash: string(hash),
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		s.logger.WithError(err).Error("create user")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.logger.WithField("user_id", user.ID).Info("user registered")
	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// keep the unknown-email path as slow as a real comparison
			_ = bcrypt.CompareHashAndPassword(s.fallbackHash(), []byte(password))
			return nil, ErrInvalidCredentials
		}
		s.logger.WithError(err).Error("lookup user for login")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !verifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return sanitizeUser(user), nil
}

// verifyPassword treats every bcrypt error, including a corrupt stored hash, as a mismatch.
func verifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *userService) fallbackHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
		if err != nil {
			s.logger.WithError(err).Warn("generate fallback hash")
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	}
}
