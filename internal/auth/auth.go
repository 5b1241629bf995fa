package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/ksred/klear-profitshare/internal/config"
	"github.com/ksred/klear-profitshare/pkg/response"
)

var (
	ErrInvalidCredentials = errors.New("invalid operator credentials")
	ErrTokenGeneration    = errors.New("failed to generate token")
	ErrMissingSecret      = errors.New("jwt secret is not configured")
)

// Credentials represents the operator authentication credentials
type Credentials struct {
	APIKey    string `json:"api_key" binding:"required"`
	APISecret string `json:"api_secret" binding:"required"`
}

// TokenResponse represents the JWT token response
type TokenResponse struct {
	Token      string    `json:"jwt_token"`
	Expiration time.Time `json:"expiration"`
}

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	OperatorID string   `json:"operator_id"`
	Scopes     []string `json:"scopes"`
}

// Service issues tokens to back-office operators listed in configuration
type Service struct {
	jwtSecret []byte
	tokenTTL  time.Duration
	operators map[string]string // map[APIKey]APISecret
}

func NewService(cfg config.AuthConfig) (*Service, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	s := &Service{
		jwtSecret: []byte(cfg.JWTSecret),
		tokenTTL:  ttl,
		operators: make(map[string]string, len(cfg.Operators)),
	}
	for _, op := range cfg.Operators {
		if op.Key == "" || op.Secret == "" {
			log.Warn().Str("component", "auth").Msg("ignoring operator with empty key or secret")
			continue
		}
		s.operators[op.Key] = op.Secret
	}
	return s, nil
}

// Secret is shared with the JWT middleware
func (s *Service) Secret() []byte {
	return s.jwtSecret
}

// GenerateToken generates a JWT token for valid operator credentials
func (s *Service) GenerateToken(creds Credentials) (*TokenResponse, error) {
	if !s.validateCredentials(creds) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	expiration := now.Add(s.tokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   creds.APIKey,
		},
		OperatorID: creds.APIKey,
		Scopes:     []string{"profitsharing", "jobs"},
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

// ValidateToken verifies signature and expiry and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

func (s *Service) validateCredentials(creds Credentials) bool {
	secret, exists := s.operators[creds.APIKey]
	if !exists {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(creds.APISecret)) == 1
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GenerateTokenHandler exchanges operator credentials for a JWT
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
