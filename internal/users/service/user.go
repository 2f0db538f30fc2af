package service

import (
	"context"
	"errors"
	usererrors "slotswapper/internal/users/errors"
	"slotswapper/internal/users/repository"
	"slotswapper/internal/users/validator"
	"slotswapper/pkg/auth"
	"slotswapper/pkg/config"
	apperrors "slotswapper/pkg/errors"
	"slotswapper/pkg/model"
	"slotswapper/pkg/sanitizer"
	"slotswapper/pkg/validation"
)

const msgInvalidCredentials = "Invalid credentials"

type UserService interface {
	Signup(ctx context.Context, req *model.SignupRequest) (*model.AuthResponse, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error)
	Me(ctx context.Context, userID string) (*model.UserSummary, error)
	UpdateMe(ctx context.Context, userID string, updates *model.ProfileUpdate) (*model.UserSummary, error)
}

type userService struct {
	repo      repository.UserRepository
	tokens    *auth.TokenManager
	validator *validator.UserValidator
	cfg       *config.Config
}

func NewUserService(
	repo repository.UserRepository,
	tokens *auth.TokenManager,
	validator *validator.UserValidator,
	cfg *config.Config,
) UserService {
	return &userService{
		repo:      repo,
		tokens:    tokens,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *userService) Signup(ctx context.Context, req *model.SignupRequest) (*model.AuthResponse, error) {
	req.Name = sanitizer.SanitizeName(req.Name)
	req.Email = sanitizer.NormalizeEmail(req.Email)

	if err := s.validator.ValidateSignup(req); err != nil {
		s.cfg.Log.Warn("Signup validation failed", "email", req.Email, "error", err)
		return nil, validation.AppError("Invalid signup", err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Internal("Failed to secure password", err)
	}

	user := &model.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, usererrors.ErrDuplicateEmail) {
			return nil, apperrors.Conflict("Email already in use")
		}
		s.cfg.Log.Error("Failed to create user", "error", err)
		return nil, apperrors.Internal("Failed to create user", err)
	}

	s.cfg.Log.Info("User signed up", "user_id", user.ID)
	return s.authenticated(user)
}

func (s *userService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	req.Email = sanitizer.NormalizeEmail(req.Email)

	if err := s.validator.ValidateLogin(req); err != nil {
		return nil, validation.AppError("Invalid login", err)
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, usererrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(msgInvalidCredentials)
		}
		s.cfg.Log.Error("Failed to load user for login", "error", err)
		return nil, apperrors.Internal("Failed to log in", err)
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.cfg.Log.Warn("Login rejected", "user_id", user.ID)
		return nil, apperrors.Unauthorized(msgInvalidCredentials)
	}

	return s.authenticated(user)
}

func (s *userService) Me(ctx context.Context, userID string) (*model.UserSummary, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Summary(), nil
}

func (s *userService) UpdateMe(ctx context.Context, userID string, updates *model.ProfileUpdate) (*model.UserSummary, error) {
	if updates.Name != nil {
		name := sanitizer.SanitizeName(*updates.Name)
		updates.Name = &name
	}
	if err := s.validator.ValidateProfile(updates); err != nil {
		return nil, validation.AppError("Invalid profile update", err)
	}

	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}

	if updates.Name != nil {
		user.Name = *updates.Name
	}
	if updates.Password != nil {
		hash, err := auth.HashPassword(*updates.Password)
		if err != nil {
			return nil, apperrors.Internal("Failed to secure password", err)
		}
		user.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, usererrors.ErrNotFound) {
			return nil, apperrors.NotFound("User")
		}
		s.cfg.Log.Error("Failed to update user", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to update profile", err)
	}

	s.cfg.Log.Info("User profile updated", "user_id", userID)
	return user.Summary(), nil
}

func (s *userService) find(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, usererrors.ErrNotFound) || errors.Is(err, usererrors.ErrInvalidID) {
			return nil, apperrors.NotFound("User")
		}
		return nil, apperrors.Internal("Failed to retrieve user", err)
	}
	return user, nil
}

func (s *userService) authenticated(user *model.User) (*model.AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue token", err)
	}
	return &model.AuthResponse{Token: token, User: user.Summary()}, nil
}
