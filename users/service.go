package users

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/users-service/apperror"
)

// UserService holds the rules of the users module: payload validation,
// password hashing, id parsing. Persistence is delegated to a Store.
type UserService struct {
	store    Store
	hasher   PasswordHasher
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(store Store, hasher PasswordHasher, logger *zap.Logger) *UserService {
	return &UserService{
		store:    store,
		hasher:   hasher,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		now:      time.Now,
	}
}

// ListUsers returns all users in insertion order.
func (s *UserService) ListUsers(ctx context.Context) ([]UserResponse, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToResponse())
	}
	return out, nil
}

// GetUser looks a user up by the raw path segment. An id that is not a valid
// key (non-numeric, out of range) is reported exactly like a missing row.
func (s *UserService) GetUser(ctx context.Context, rawID string) (*UserResponse, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, apperror.NewNotFoundError(MsgUserNotFound, nil)
	}
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

// CreateUser validates req, hashes the password and stores an active user.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperror.NewValidationError(MsgInvalidPayload, err)
	}

	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperror.NewValidationError(MsgInvalidPayload, err)
		}
		return nil, apperror.NewInternalError("failed to hash password", err)
	}

	user, err := s.store.CreateUser(ctx, &User{
		Username:  req.Username,
		Email:     req.Email,
		Password:  hashed,
		Active:    true,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("email", user.Email))
	resp := user.ToResponse()
	return &resp, nil
}
