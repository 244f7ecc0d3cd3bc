package auth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ksred/auction-api/pkg/response"
)

var (
	ErrInvalidCredentials = errors.New("invalid API credentials")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

// Identity is the authenticated caller as the rest of the system sees it.
// The bidding core treats Verified and Admin as opaque truth supplied here.
type Identity struct {
	UserID   string
	UserName string
	Verified bool
	Admin    bool
}

// Account couples API credentials with the identity they authenticate.
// In a real deployment this would live in a user store; registration and
// email verification flows are external to this service.
type Account struct {
	APIKey    string
	APISecret string
	Identity  Identity
}

// Credentials represents the API authentication credentials
type Credentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// TokenResponse represents the JWT token response
type TokenResponse struct {
	Token      string    `json:"jwt_token"`
	Expiration time.Time `json:"expiration"`
}

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Verified bool   `json:"verified"`
	Admin    bool   `json:"is_admin"`
}

// Service handles authentication and authorization operations
type Service struct {
	jwtSecret []byte
	tokenTTL  time.Duration
	accounts  map[string]Account // map[APIKey]Account
}

// NewService creates a new authentication service with the given JWT secret
func NewService(jwtSecret string, tokenTTL time.Duration) *Service {
	return &Service{
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		accounts:  make(map[string]Account),
	}
}

// Register adds an account to the in-memory credential registry
// (for demo and testing; production would back this with a database)
func (s *Service) Register(account Account) {
	s.accounts[account.APIKey] = account
}

// GenerateToken generates a JWT token for valid API credentials.
// The token embeds the caller's identity claims with a bounded expiration.
func (s *Service) GenerateToken(creds Credentials) (*TokenResponse, error) {
	account, ok := s.accounts[creds.APIKey]
	if !ok || account.APISecret != creds.APISecret {
		return nil, ErrInvalidCredentials
	}

	expiration := time.Now().Add(s.tokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		UserID:   account.Identity.UserID,
		UserName: account.Identity.UserName,
		Verified: account.Identity.Verified,
		Admin:    account.Identity.Admin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &TokenResponse{
		Token:      tokenString,
		Expiration: expiration,
	}, nil
}

// ValidateToken validates a JWT token and returns the embedded identity.
// Verifies token signature and expiration.
func (s *Service) ValidateToken(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return &Identity{
		UserID:   claims.UserID,
		UserName: claims.UserName,
		Verified: claims.Verified,
		Admin:    claims.Admin,
	}, nil
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GenerateTokenHandler handles POST requests to generate JWT tokens
// Request body should contain API credentials
func (h *GinHandlers) GenerateTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.GenerateToken(creds)
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}

// IdentityFromContext extracts the authenticated identity placed in the
// gin context by the JWT middleware. The second return is false when the
// request was not authenticated.
func IdentityFromContext(c *gin.Context) (Identity, bool) {
	value, exists := c.Get("identity")
	if !exists {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	return identity, ok
}
