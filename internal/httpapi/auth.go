package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/oguz-kara/pos-app-sub001/internal/domain"
)

const (
	tokenIssuer       = "pos-app"
	minUsernameLength = 4
	minPasswordLength = 6
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUsernameTaken      = errors.New("username already exists")
)

// UserStore persists register and back-office accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// AuthManager signs HS256 bearer tokens for cashiers and admins and checks the
// manager PIN that guards refunds. Accounts are cached in memory and reloaded
// from the UserStore on every login.
type AuthManager struct {
	secret     []byte
	tokenTTL   time.Duration
	managerPIN []byte
	store      UserStore
	logger     *slog.Logger

	mu       sync.RWMutex
	accounts map[string]domain.UserAccount
}

type tokenClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, managerPIN string, store UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	a := &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		store:    store,
		logger:   slog.Default(),
		accounts: make(map[string]domain.UserAccount),
	}
	// An unset PIN leaves managerPIN empty and every refund is refused.
	if pin := strings.TrimSpace(managerPIN); pin != "" {
		hashed, err := hashPassword(pin)
		if err != nil {
			a.logger.Error("manager pin hash failed, refunds disabled", "error", err)
		} else {
			a.managerPIN = []byte(hashed)
		}
	}
	a.reload(context.Background())
	return a
}

func normalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	a.reload(ctx)
	username := normalizeUsername(req.Username)

	a.mu.RLock()
	account, ok := a.accounts[username]
	a.mu.RUnlock()
	if !ok || !verifyPassword(account.Password, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if !account.Active {
		return domain.LoginResponse{}, ErrInactiveAccount
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.issue(username, account.Role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("sign token: %w", err)
	}
	return domain.LoginResponse{
		AccessToken: token,
		Role:        account.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) issue(username string, role string, expiresAt time.Time) (string, error) {
	claims := tokenClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			Issuer:    tokenIssuer,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
		Role: role,
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken returns the actor a bearer token was issued to.
func (a *AuthManager) ParseToken(raw string) (domain.Actor, error) {
	var claims tokenClaims
	_, err := jwtlib.ParseWithClaims(raw, &claims,
		func(*jwtlib.Token) (any, error) { return a.secret, nil },
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(tokenIssuer),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Actor{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Role == "" {
		return domain.Actor{}, ErrInvalidToken
	}
	return domain.Actor{Username: claims.Subject, Role: claims.Role}, nil
}

func (a *AuthManager) ValidateManagerPIN(pin string) bool {
	pin = strings.TrimSpace(pin)
	if pin == "" || len(a.managerPIN) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.managerPIN, []byte(pin)) == nil
}

func validateCashier(username string, password string) error {
	switch {
	case len(username) < minUsernameLength:
		return fmt.Errorf("username must be at least %d characters", minUsernameLength)
	case strings.ContainsAny(username, " \t\r\n"):
		return errors.New("username must not contain spaces")
	case len(strings.TrimSpace(password)) < minPasswordLength:
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

func (a *AuthManager) CreateCashier(ctx context.Context, req domain.CashierCreateRequest) (domain.CashierUser, error) {
	a.reload(ctx)
	username := normalizeUsername(req.Username)
	if err := validateCashier(username, req.Password); err != nil {
		return domain.CashierUser{}, err
	}

	a.mu.RLock()
	_, taken := a.accounts[username]
	a.mu.RUnlock()
	if taken {
		return domain.CashierUser{}, ErrUsernameTaken
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return domain.CashierUser{}, fmt.Errorf("hash password: %w", err)
	}
	account := domain.UserAccount{
		Username:  username,
		Password:  hashed,
		Role:      domain.RoleCashier,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if a.store != nil {
		if err := a.store.CreateUser(ctx, account); err != nil {
			return domain.CashierUser{}, err
		}
	}

	a.mu.Lock()
	a.accounts[username] = account
	a.mu.Unlock()
	a.logger.Info("cashier created", "username", username)
	return toCashier(account), nil
}

func (a *AuthManager) ListCashiers(ctx context.Context) []domain.CashierUser {
	a.reload(ctx)
	a.mu.RLock()
	defer a.mu.RUnlock()

	cashiers := make([]domain.CashierUser, 0, len(a.accounts))
	for _, account := range a.accounts {
		if account.Role == domain.RoleCashier {
			cashiers = append(cashiers, toCashier(account))
		}
	}
	slices.SortFunc(cashiers, func(x, y domain.CashierUser) int {
		return strings.Compare(x.Username, y.Username)
	})
	return cashiers
}

func toCashier(account domain.UserAccount) domain.CashierUser {
	return domain.CashierUser{
		Username:  account.Username,
		Role:      account.Role,
		Active:    account.Active,
		CreatedAt: account.CreatedAt,
	}
}

// reload refreshes the account cache from the store. Plain-text passwords left
// by older seed data are rehashed and written back.
func (a *AuthManager) reload(ctx context.Context) {
	if a.store == nil {
		return
	}
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		a.logger.Warn("user reload failed, using cached accounts", "error", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, user := range users {
		username := normalizeUsername(user.Username)
		if username == "" {
			continue
		}
		if !isPasswordHash(user.Password) {
			hashed, err := hashPassword(user.Password)
			if err != nil {
				continue
			}
			if err := a.store.UpdateUserPassword(ctx, username, hashed); err != nil {
				a.logger.Warn("legacy password upgrade failed", "username", username, "error", err)
			}
			user.Password = hashed
		}
		user.Username = username
		a.accounts[username] = user
	}
}

func verifyPassword(stored string, input string) bool {
	if strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func isPasswordHash(value string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
