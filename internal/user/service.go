package user

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"thepresent-be/internal/errs"
	"thepresent-be/internal/logger"
)

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     Role
}

type Service interface {
	Register(ctx context.Context, in RegisterInput) (string, User, error)
	Login(ctx context.Context, email, password string) (string, User, error)
	GetByID(ctx context.Context, id string) (User, error)
}

type service struct {
	repo   Repository
	issuer *TokenIssuer
}

func NewService(repo Repository, issuer *TokenIssuer) Service {
	return &service{repo: repo, issuer: issuer}
}

func (s *service) Register(ctx context.Context, in RegisterInput) (string, User, error) {
	log := logger.FromCtx(ctx)

	hashed, err := HashPassword(in.Password)
	if err != nil {
		log.Error("failed to hash password", zap.Error(err))
		return "", User{}, errs.Internal("Server error during registration", err)
	}

	role := in.Role
	if role == "" {
		role = RoleCustomer
	}

	u, err := s.repo.Create(ctx, User{
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: hashed,
		Role:     role,
	})
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			log.Info("registration failed: email in use", zap.String("email", in.Email))
			return "", User{}, errs.ValidationFields("Email already in use", map[string]string{
				"email": "Email already in use",
			})
		}
		log.Error("failed to create user", zap.String("email", in.Email), zap.Error(err))
		return "", User{}, errs.Internal("Server error during registration", err)
	}

	token, err := s.issuer.Generate(u)
	if err != nil {
		log.Error("failed to generate token", zap.String("user_id", u.ID), zap.Error(err))
		return "", User{}, errs.Internal("Server error during registration", err)
	}

	log.Info("user registered",
		zap.String("user_id", u.ID),
		zap.String("email", u.Email),
		zap.String("role", string(u.Role)),
	)

	return token, u, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, User, error) {
	log := logger.FromCtx(ctx)

	u, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Info("login failed: user not found", zap.String("email", email))
			return "", User{}, errs.Unauthenticated("Invalid credentials")
		}
		return "", User{}, errs.Internal("Server error during login", err)
	}

	if !CheckPasswordHash(password, u.Password) {
		log.Info("login failed: invalid password", zap.String("email", email))
		return "", User{}, errs.Unauthenticated("Invalid credentials")
	}

	token, err := s.issuer.Generate(u)
	if err != nil {
		return "", User{}, errs.Internal("Server error during login", err)
	}

	log.Info("user logged in", zap.String("email", u.Email), zap.String("role", string(u.Role)))
	return token, u, nil
}

func (s *service) GetByID(ctx context.Context, id string) (User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, errs.NotFound("User not found")
		}
		return User{}, errs.Internal("Server error while fetching user data", err)
	}
	return u, nil
}
