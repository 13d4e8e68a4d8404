package service

import (
	"context"
	"strings"
	"time"

	"fleetbook/internal/auth"
	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService exchanges account credentials for access tokens.
type AuthService struct {
	store  repository.Store
	jwt    *auth.JWTManager
	logger *zap.Logger
}

func NewAuthService(store repository.Store, jwt *auth.JWTManager, logger *zap.Logger) *AuthService {
	return &AuthService{store: store, jwt: jwt, logger: logger}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, auth.Actor, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", auth.Actor{}, apperrors.Validation("email and password are required")
	}

	var account *db.Account
	err := s.store.View(ctx, func(repo repository.Repository) error {
		var err error
		account, err = repo.GetAccountByEmail(ctx, email)
		return err
	})
	if apperrors.IsNotFound(err) {
		return "", auth.Actor{}, apperrors.Unauthorized("invalid credentials")
	}
	if err != nil {
		return "", auth.Actor{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		s.logger.Info("failed login", zap.String("email", email))
		return "", auth.Actor{}, apperrors.Unauthorized("invalid credentials")
	}

	actor := auth.Actor{ID: account.ID, Role: account.Role, ShopID: account.ShopID}
	token, err := s.jwt.GenerateToken(actor)
	if err != nil {
		return "", auth.Actor{}, apperrors.Internal("could not issue token", err)
	}
	return token, actor, nil
}

type CreateAccountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	ShopID   string `json:"shop_id"`
}

// CreateAccount registers a login. Only admins create shop and admin accounts.
func (s *AuthService) CreateAccount(ctx context.Context, req CreateAccountRequest, actor auth.Actor) (*db.Account, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || len(req.Password) < 8 {
		return nil, apperrors.Validation("email and a password of at least 8 characters are required")
	}
	switch req.Role {
	case "", auth.RoleCustomer:
		req.Role = auth.RoleCustomer
	case auth.RoleShop:
		if req.ShopID == "" {
			return nil, apperrors.Validation("shop accounts need a shop_id")
		}
		fallthrough
	case auth.RoleAdmin:
		if !actor.IsAdmin() {
			return nil, apperrors.Forbidden("only admins can create privileged accounts")
		}
	default:
		return nil, apperrors.Validation("unknown role " + req.Role)
	}

	account := &db.Account{
		ID:        uuid.New().String(),
		Email:     email,
		Role:      req.Role,
		ShopID:    req.ShopID,
		CreatedAt: time.Now().UTC(),
	}
	err := s.store.Update(ctx, func(repo repository.Repository) error {
		return repo.InsertAccount(ctx, account, req.Password)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}
