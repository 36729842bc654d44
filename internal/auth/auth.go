package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository"
)

const (
	CookieName    = "elections_session"
	SessionExpiry = 24 * time.Hour
)

// Login errors
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrTokenRevoked       = errors.New("session token revoked")
)

// Election-themed words for password generation
var passwordWords = []string{
	"ballot", "poll", "nominee", "quorum", "motion",
	"second", "tally", "vote", "caucus", "term",
	"seat", "chair", "board", "panel", "moderator",
	"forum", "topic", "reply", "badge",
}

// Claims are the session token claims
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Auth issues and checks session tokens. Every seeded account shares one
// login password.
type Auth struct {
	secret   []byte
	password string
	users    repository.UserRepository
	now      func() time.Time

	revoked map[string]time.Time
	mu      sync.RWMutex
}

// New creates a new Auth instance. An empty secret gets a random one, which
// invalidates sessions on restart.
func New(secret, password string, users repository.UserRepository) *Auth {
	if secret == "" {
		secret = generateSecret()
	}
	return &Auth{
		secret:   []byte(secret),
		password: password,
		users:    users,
		now:      time.Now,
		revoked:  make(map[string]time.Time),
	}
}

// GeneratePassword creates a random 3-word password
func GeneratePassword() string {
	words := make([]string, 3)
	for i := range words {
		words[i] = passwordWords[randomInt(len(passwordWords))]
	}
	return strings.Join(words, "-")
}

// Login checks the password for a username and returns a signed session token
func (a *Auth) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	if password == "" || password != a.password {
		return "", nil, ErrInvalidCredentials
	}

	user, err := a.users.GetUserByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	token, err := a.Issue(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Issue signs a session token for a user
func (a *Auth) Issue(user *models.User) (string, error) {
	now := a.now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken validates a token and returns its claims
func (a *Auth) ParseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if a.isRevoked(claims.ID) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Logout revokes a token until it would have expired anyway
func (a *Auth) Logout(token string) {
	claims, err := a.ParseToken(token)
	if err != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	for id, expiry := range a.revoked {
		if now.After(expiry) {
			delete(a.revoked, id)
		}
	}
	a.revoked[claims.ID] = claims.ExpiresAt.Time
}

func (a *Auth) isRevoked(id string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.revoked[id]
	return ok
}

// TokenFromRequest returns the bearer token, falling back to the session
// cookie
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// UserFromRequest resolves the user behind a request's session, or nil
func (a *Auth) UserFromRequest(r *http.Request) *models.User {
	token := TokenFromRequest(r)
	if token == "" {
		return nil
	}
	claims, err := a.ParseToken(token)
	if err != nil {
		return nil
	}
	user, err := a.users.GetUser(r.Context(), claims.UserID)
	if err != nil {
		return nil
	}
	return user
}

// SetSessionCookie sets the session cookie on the response
func SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionExpiry.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func generateSecret() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// randomInt returns a random int in [0, max)
func randomInt(max int) int {
	bytes := make([]byte, 1)
	rand.Read(bytes)
	return int(bytes[0]) % max
}
