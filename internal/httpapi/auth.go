package httpapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"dapurlima/backend/internal/domain"
	"dapurlima/backend/internal/xid"
	"golang.org/x/crypto/bcrypt"
)

type AuthManager struct {
	mu        sync.RWMutex
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
	users     map[string]credential
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type credential struct {
	staffID    string
	password   string
	role       string
	outletID   string
	shiftStart string
	shiftEnd   string
	active     bool
	created    time.Time
}

type shiftCustomClaims struct {
	jwtlib.RegisteredClaims
	Role       string `json:"role"`
	StaffID    string `json:"staff_id"`
	OutletID   string `json:"outlet_id"`
	ShiftStart string `json:"shift_start,omitempty"`
	ShiftEnd   string `json:"shift_end,omitempty"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	manager := &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		users:     make(map[string]credential),
	}
	// context.Background() is appropriate here because this is a startup
	// operation that runs before any request context exists.
	manager.bootstrapUsers(context.Background())
	return manager
}

func (a *AuthManager) Login(req domain.LoginRequest) (domain.LoginResponse, error) {
	// TODO: bootstrapUsers is called on every login to pick up users added
	// outside this process. Acceptable for low-traffic outlet deployments but
	// should use a bounded context rather than context.Background().
	a.bootstrapUsers(context.Background())
	username := strings.ToLower(strings.TrimSpace(req.Username))
	a.mu.RLock()
	cred, ok := a.users[username]
	a.mu.RUnlock()
	if !ok {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}

	if !verifyPassword(cred.password, req.Password) {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if !cred.active {
		return domain.LoginResponse{}, errors.New("account is inactive")
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(username, cred, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        cred.role,
		OutletID:    cred.outletID,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// VerifyCredential re-checks a username/password pair without issuing a
// token. The shift-close approval flow calls this with the manager's or
// owner's credentials typed in at the cashier's terminal.
func (a *AuthManager) VerifyCredential(ctx context.Context, username string, password string) (domain.Actor, error) {
	a.bootstrapUsers(ctx)
	username = strings.ToLower(strings.TrimSpace(username))
	a.mu.RLock()
	cred, ok := a.users[username]
	a.mu.RUnlock()
	if !ok || !cred.active || !verifyPassword(cred.password, password) {
		return domain.Actor{}, errors.New("invalid credentials")
	}

	return domain.Actor{
		StaffID:    cred.staffID,
		Username:   username,
		Role:       cred.role,
		OutletID:   cred.outletID,
		ShiftStart: cred.shiftStart,
		ShiftEnd:   cred.shiftEnd,
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &shiftCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{
		StaffID:    claims.StaffID,
		Username:   sub,
		Role:       claims.Role,
		OutletID:   claims.OutletID,
		ShiftStart: claims.ShiftStart,
		ShiftEnd:   claims.ShiftEnd,
	}, nil
}

func (a *AuthManager) sign(username string, cred credential, expiresAt time.Time) (string, error) {
	claims := shiftCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "dapurlima",
		},
		Role:       cred.role,
		StaffID:    cred.staffID,
		OutletID:   cred.outletID,
		ShiftStart: cred.shiftStart,
		ShiftEnd:   cred.shiftEnd,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) CreateStaff(req domain.StaffCreateRequest) (domain.StaffUser, error) {
	a.bootstrapUsers(context.Background())
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || len(username) < 4 {
		return domain.StaffUser{}, fmt.Errorf("username must be at least 4 characters")
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.StaffUser{}, fmt.Errorf("username must not contain spaces")
	}
	if strings.TrimSpace(req.Password) == "" || len(req.Password) < 6 {
		return domain.StaffUser{}, fmt.Errorf("password must be at least 6 characters")
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = domain.RoleCashier
	}
	if role != domain.RoleCashier && role != domain.RoleManager && role != domain.RoleOwner {
		return domain.StaffUser{}, fmt.Errorf("unknown role %q", role)
	}
	if !isValidClock(req.ShiftStart) || !isValidClock(req.ShiftEnd) {
		return domain.StaffUser{}, fmt.Errorf("shift hours must be HH:MM")
	}

	a.mu.RLock()
	_, exists := a.users[username]
	a.mu.RUnlock()
	if exists {
		return domain.StaffUser{}, fmt.Errorf("username already exists")
	}

	now := time.Now().UTC()
	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.StaffUser{}, fmt.Errorf("failed to hash password")
	}

	staffID := xid.New("staff")
	if a.userStore != nil {
		err := a.userStore.CreateUser(context.Background(), domain.UserAccount{
			StaffID:    staffID,
			Username:   username,
			Password:   passwordHash,
			Role:       role,
			OutletID:   strings.TrimSpace(req.OutletID),
			ShiftStart: req.ShiftStart,
			ShiftEnd:   req.ShiftEnd,
			Active:     true,
			CreatedAt:  now,
		})
		if err != nil {
			return domain.StaffUser{}, err
		}
	}

	a.mu.Lock()
	a.users[username] = credential{
		staffID:    staffID,
		password:   passwordHash,
		role:       role,
		outletID:   strings.TrimSpace(req.OutletID),
		shiftStart: req.ShiftStart,
		shiftEnd:   req.ShiftEnd,
		active:     true,
		created:    now,
	}
	a.mu.Unlock()

	return domain.StaffUser{
		StaffID:    staffID,
		Username:   username,
		Role:       role,
		OutletID:   strings.TrimSpace(req.OutletID),
		ShiftStart: req.ShiftStart,
		ShiftEnd:   req.ShiftEnd,
		Active:     true,
		CreatedAt:  now,
	}, nil
}

func (a *AuthManager) ListStaff() []domain.StaffUser {
	a.bootstrapUsers(context.Background())
	a.mu.RLock()
	result := make([]domain.StaffUser, 0, len(a.users))
	for username, user := range a.users {
		result = append(result, domain.StaffUser{
			StaffID:    user.staffID,
			Username:   username,
			Role:       user.role,
			OutletID:   user.outletID,
			ShiftStart: user.shiftStart,
			ShiftEnd:   user.shiftEnd,
			Active:     user.active,
			CreatedAt:  user.created,
		})
	}
	a.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})
	return result
}

// bootstrapUsers loads user accounts from the user store into the in-memory
// credential cache. It also upgrades any legacy plain-text passwords to
// bcrypt hashes in the store.
func (a *AuthManager) bootstrapUsers(ctx context.Context) {
	if a.userStore == nil {
		return
	}

	users, err := a.userStore.ListUsers(ctx)
	if err != nil || len(users) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, user := range users {
		username := strings.ToLower(strings.TrimSpace(user.Username))
		if username == "" {
			continue
		}
		password := user.Password
		if !isPasswordHash(password) {
			hashed, err := hashPassword(password)
			if err == nil {
				password = hashed
				_ = a.userStore.UpdateUserPassword(ctx, username, hashed)
			}
		}
		a.users[username] = credential{
			staffID:    user.StaffID,
			password:   password,
			role:       user.Role,
			outletID:   user.OutletID,
			shiftStart: user.ShiftStart,
			shiftEnd:   user.ShiftEnd,
			active:     user.Active,
			created:    user.CreatedAt,
		}
	}
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

func isValidClock(value string) bool {
	if strings.TrimSpace(value) == "" {
		return true
	}
	_, err := time.Parse("15:04", value)
	return err == nil
}
