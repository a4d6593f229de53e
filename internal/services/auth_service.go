package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"github.com/ArowuTest/edunotify-backend/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles operator login and account creation
type AuthService struct {
	operators repositories.OperatorRepository
	tokens    *jwt.TokenService
}

// NewAuthService creates a new AuthService
func NewAuthService(operators repositories.OperatorRepository, tokens *jwt.TokenService) *AuthService {
	return &AuthService{operators: operators, tokens: tokens}
}

// Login handles operator login and returns a signed token
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	op, err := s.operators.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find operator: %w", err)
	}

	// Compare the provided password with the stored hash
	if err := bcrypt.CompareHashAndPassword([]byte(op.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(op.ID.Hex(), op.Name, op.TenantID, op.Role)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{Token: token, Operator: op}, nil
}

// Register creates an operator in the actor's tenant. Only admins may do this.
func (s *AuthService) Register(ctx context.Context, actor models.Identity, req models.RegisterRequest) (*models.Operator, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	return s.CreateOperator(ctx, actor.TenantID, req)
}

// CreateOperator stores a new operator with a bcrypt-hashed password
func (s *AuthService) CreateOperator(ctx context.Context, tenantID string, req models.RegisterRequest) (*models.Operator, error) {
	if tenantID == "" {
		return nil, models.NewValidationError("tenantId", "is required")
	}
	role := req.Role
	if role == "" {
		role = models.RoleOperator
	}
	if role != models.RoleAdmin && role != models.RoleOperator {
		return nil, models.NewValidationError("role", "must be admin or operator")
	}
	if len(req.Password) < 6 {
		return nil, models.NewValidationError("password", "must be at least 6 characters")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	op := &models.Operator{
		TenantID: tenantID,
		Name:     req.Name,
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: string(hashed),
		Role:     role,
	}
	if err := s.operators.Create(ctx, op); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("operator %s: %w", op.Email, err)
		}
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}
	return op, nil
}
