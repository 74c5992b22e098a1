package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"invoicecore/internal/domain"
	"invoicecore/internal/logger"
	"invoicecore/internal/store"
)

const tokenIssuer = "invoicecore"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	errInvalidToken       = errors.New("invalid or expired token")
)

// UserStore is the slice of the repository that authentication reads and
// writes. Accounts are looked up on every login, so accounts created by
// another process are visible immediately.
type UserStore interface {
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// AuthManager signs and verifies HS256 access tokens, checks passwords
// against the user store and guards invoice cancellation with the manager PIN.
type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	pinHash  []byte
	users    UserStore
	now      func() time.Time
	log      zerolog.Logger
}

type accessClaims struct {
	jwtlib.RegisteredClaims
	Role domain.Role `json:"role"`
}

// NewAuthManager hashes managerPIN once. An empty PIN disables clerk
// cancellations: no input validates against it.
func NewAuthManager(secret string, tokenTTL time.Duration, managerPIN string, users UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	a := &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.WithComponent("auth"),
	}
	if pin := strings.TrimSpace(managerPIN); pin != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
		if err != nil {
			a.log.Error().Err(err).Msg("manager pin could not be hashed; clerk cancellations disabled")
		} else {
			a.pinHash = hash
		}
	}
	return a
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	account, err := a.users.GetUser(ctx, req.Username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("load user: %w", err)
	}
	if !a.checkPassword(ctx, account, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if !account.Active || !account.Role.CanSignIn() {
		return domain.LoginResponse{}, ErrAccountInactive
	}

	expiresAt := a.now().Add(a.tokenTTL)
	token, err := a.issue(domain.Actor{Username: account.Username, Role: account.Role}, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		Role:        account.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// checkPassword accepts bcrypt hashes. Accounts imported with a plain-text
// password are compared in constant time and rehashed on first success.
func (a *AuthManager) checkPassword(ctx context.Context, account *domain.UserAccount, input string) bool {
	if strings.TrimSpace(input) == "" || account.Password == "" {
		return false
	}
	if isPasswordHash(account.Password) {
		return bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(input)) == nil
	}
	if subtle.ConstantTimeCompare([]byte(account.Password), []byte(input)) != 1 {
		return false
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input), bcrypt.DefaultCost)
	if err == nil {
		err = a.users.UpdateUserPassword(ctx, account.Username, string(hash))
	}
	if err != nil {
		a.log.Warn().Err(err).Str("username", account.Username).Msg("legacy password not rehashed")
	}
	return true
}

func (a *AuthManager) issue(actor domain.Actor, expiresAt time.Time) (string, error) {
	claims := accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.Username,
			Issuer:    tokenIssuer,
			IssuedAt:  jwtlib.NewNumericDate(a.now()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
		Role: actor.Role,
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) ParseToken(raw string) (domain.Actor, error) {
	var claims accessClaims
	_, err := jwtlib.ParseWithClaims(raw, &claims, func(*jwtlib.Token) (any, error) {
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil {
		return domain.Actor{}, errInvalidToken
	}
	if claims.Subject == "" || !claims.Role.CanSignIn() {
		return domain.Actor{}, errInvalidToken
	}
	return domain.Actor{Username: claims.Subject, Role: claims.Role}, nil
}

func (a *AuthManager) ValidateManagerPIN(pin string) bool {
	pin = strings.TrimSpace(pin)
	if len(a.pinHash) == 0 || pin == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.pinHash, []byte(pin)) == nil
}

// CreateClerk adds an active clerk account. Usernames are lower-cased;
// a taken username yields store.ErrConflict.
func (a *AuthManager) CreateClerk(ctx context.Context, req domain.UserCreateRequest) (domain.User, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	switch {
	case len(username) < 4:
		return domain.User{}, fmt.Errorf("username must be at least 4 characters: %w", store.ErrInvalidInput)
	case strings.ContainsAny(username, " \t\r\n"):
		return domain.User{}, fmt.Errorf("username must not contain spaces: %w", store.ErrInvalidInput)
	case len(strings.TrimSpace(req.Password)) < 6:
		return domain.User{}, fmt.Errorf("password must be at least 6 characters: %w", store.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	account := domain.UserAccount{
		Username:  username,
		Password:  string(hash),
		Role:      domain.RoleClerk,
		Active:    true,
		CreatedAt: a.now(),
	}
	if err := a.users.CreateUser(ctx, account); err != nil {
		return domain.User{}, fmt.Errorf("create user %s: %w", username, err)
	}
	return publicUser(account), nil
}

func (a *AuthManager) ListClerks(ctx context.Context) ([]domain.User, error) {
	accounts, err := a.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	clerks := make([]domain.User, 0, len(accounts))
	for _, account := range accounts {
		if account.Role == domain.RoleClerk {
			clerks = append(clerks, publicUser(account))
		}
	}
	return clerks, nil
}

func publicUser(account domain.UserAccount) domain.User {
	return domain.User{
		Username:  account.Username,
		Role:      account.Role,
		Active:    account.Active,
		CreatedAt: account.CreatedAt,
	}
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
