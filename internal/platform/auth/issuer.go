package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by SignIn for rejected credentials.
var ErrInvalidCredentials = errors.New("invalid credentials")

// User is the signed-in account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Issuer signs users in and mints HS256 session tokens. Every sign-in maps
// to the single demo account; when a bcrypt password hash is configured
// the password must match it.
type Issuer struct {
	issuer       string
	signingKey   []byte
	passwordHash []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewIssuer(issuer string, signingKey []byte, passwordHash string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{
		issuer:       issuer,
		signingKey:   signingKey,
		passwordHash: []byte(passwordHash),
		ttl:          ttl,
		now:          time.Now,
	}
}

// Config returns the middleware configuration that accepts this issuer's
// tokens.
func (i *Issuer) Config() JWTConfig {
	return JWTConfig{Issuer: i.issuer, SigningKey: i.signingKey, Skipper: AuthSkipper}
}

// SignIn checks the credentials and returns the user with a bearer token.
func (i *Issuer) SignIn(email, password string) (User, string, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") || password == "" {
		return User{}, "", ErrInvalidCredentials
	}
	if len(i.passwordHash) > 0 {
		if err := bcrypt.CompareHashAndPassword(i.passwordHash, []byte(password)); err != nil {
			return User{}, "", ErrInvalidCredentials
		}
	}

	user := User{ID: "user123", Name: "Test User", Email: email}
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    i.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Name:  user.Name,
		Email: user.Email,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return User{}, "", err
	}
	return user, token, nil
}

// HashPassword returns the bcrypt hash to configure as AUTH_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Handler exposes sign-in and the current user.
type Handler struct {
	issuer *Issuer
}

func NewHandler(issuer *Issuer) *Handler {
	return &Handler{issuer: issuer}
}

func (h *Handler) RegisterRoutes(api *echo.Group, _ *echo.Group) {
	api.POST("/auth/sign-in", h.SignIn)
	api.GET("/auth/me", h.Me)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	User      User   `json:"user"`
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
}

func (h *Handler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	user, token, err := h.issuer.SignIn(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue token")
	}
	return c.JSON(http.StatusOK, signInResponse{User: user, Token: token, TokenType: "Bearer"})
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	uid := UserIDFromContext(ctx)
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	return c.JSON(http.StatusOK, map[string]string{"id": uid, "email": EmailFromContext(ctx)})
}
