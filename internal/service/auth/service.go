package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/repository"
	"github.com/jwalitptl/clinic-sync/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-sync/pkg/errors"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
	"github.com/jwalitptl/clinic-sync/pkg/security"
)

const (
	MsgMissingCredentials = "Veuillez fournir email et mot de passe"
	MsgInvalidCredentials = "Email ou mot de passe incorrect"
	MsgEmailTaken         = "Un compte existe déjà avec cet email"
	MsgStaffKeyRequired   = "Clé d'accès du personnel invalide"
	MsgPasswordTooShort   = "Le mot de passe doit contenir au moins 8 caractères"
	statusSuccess         = "success"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrStaffKeyRequired   = errors.New("staff access key required")
)

type Service struct {
	users    repository.UserRepository
	jwtSvc   auth.JWTService
	hasher   security.PasswordHasher
	staffKey string
	logger   *logger.Logger
}

func NewService(users repository.UserRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher,
	staffKey string, log *logger.Logger) *Service {
	return &Service{
		users:    users,
		jwtSvc:   jwtSvc,
		hasher:   hasher,
		staffKey: staffKey,
		logger:   log,
	}
}

// Register creates an account. Staff roles require the configured access key.
func (s *Service) Register(ctx context.Context, req model.RegisterRequest, accessKey string) (*model.RegisterResponse, error) {
	role := model.RolePatient
	if req.Role != "" {
		parsed, ok := model.ParseRole(req.Role)
		if !ok {
			return nil, apperrors.BadRequest(fmt.Sprintf("Rôle inconnu: %s", req.Role), nil)
		}
		role = parsed
	}
	if role.IsStaff() && !s.validStaffKey(accessKey) {
		return nil, apperrors.Forbidden(MsgStaffKeyRequired)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.BadRequest(MsgPasswordTooShort, err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to hash password: %w", err))
	}

	user := &model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         role,
		Phone:        req.Phone,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, apperrors.BadRequest(MsgEmailTaken, err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to create user: %w", err))
	}

	token, err := s.jwtSvc.GenerateToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return &model.RegisterResponse{
		Status: statusSuccess,
		Token:  token,
		Data:   model.RegisterUserData{User: user},
	}, nil
}

func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, apperrors.BadRequest(MsgMissingCredentials, nil)
	}

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error(err, "failed to load user for login")
		}
		return nil, apperrors.Unauthorized(MsgInvalidCredentials, ErrInvalidCredentials)
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthorized(MsgInvalidCredentials, ErrInvalidCredentials)
	}

	token, err := s.jwtSvc.GenerateToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &model.LoginResponse{
		Status: statusSuccess,
		Token:  token,
		Role:   user.Role,
		Name:   user.Name,
	}, nil
}

// EnsureUser creates the account unless the email is already registered.
func (s *Service) EnsureUser(ctx context.Context, name, email, password string, role model.Role) error {
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to look up %s: %w", email, err)
	}

	_, err = s.Register(ctx, model.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     string(role),
	}, s.staffKey)
	return err
}

func (s *Service) ValidateToken(token string) (*model.TokenClaims, error) {
	return s.jwtSvc.ValidateToken(token)
}

func (s *Service) validStaffKey(key string) bool {
	if s.staffKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.staffKey)) == 1
}
