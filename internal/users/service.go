package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/db/models"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
)

// Service exposes user lookup and registration operations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ResolveByQRCode(ctx context.Context, qrCode string) (*models.User, error)
}

// RegisterInput captures the data required to create a user.
type RegisterInput struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required"`
	Role  enums.UserRole
}

type service struct {
	repo Repository
}

// NewService wires a user service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	role := input.Role
	if role == "" {
		role = enums.UserRoleUser
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", role))
	}

	if existing, err := s.repo.FindByEmail(ctx, email); err == nil && existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	} else if err != nil && !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	user := &models.User{
		Email:  email,
		Name:   name,
		QRCode: uuid.NewString(),
		Role:   role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) ResolveByQRCode(ctx context.Context, qrCode string) (*models.User, error) {
	trimmed := strings.TrimSpace(qrCode)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qr code required")
	}
	return s.repo.FindByQRCode(ctx, trimmed)
}
