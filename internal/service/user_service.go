package service

import (
	"context"
	"strings"

	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const invalidCredentials = "No active account found with the given credentials"

// UserService registers accounts and checks credentials.
type UserService struct {
	userRepo repository.UserRepository
	cost     int
}

// RegisterInput is the registration payload. Email is optional.
type RegisterInput struct {
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"password"`
	Email    string `json:"email" validate:"omitempty,max=254,email"`
}

// NewUserService hashes passwords at bcrypt.DefaultCost.
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo, cost: bcrypt.DefaultCost}
}

// Register creates a non-staff account with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewValidationError("Username already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks a username/password pair.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError(invalidCredentials)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, models.NewUnauthorizedError(invalidCredentials)
	}
	return user, nil
}

// Principal resolves the acting identity, including its staff flag.
func (s *UserService) Principal(ctx context.Context, userID uint) (models.Principal, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return models.Principal{}, err
	}
	return user.Principal(), nil
}

// GetUserByID returns the stored account.
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}
