package jwtutil

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/suteetoe/geoprofile/pkg/config"
)

// Token types carried in the token_type claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrTokenType is returned when a token of the wrong type is presented
var ErrTokenType = errors.New("token has wrong type")

// UserClaims represents the JWT claims for user authentication
type UserClaims struct {
	Email     string `json:"email"`
	UserID    uint   `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// JWTUtil is a utility for JWT token operations
type JWTUtil struct {
	config *config.JWTConfig
	now    func() time.Time
}

// NewJWTUtil creates a new JWT utility with the given configuration
func NewJWTUtil(cfg *config.JWTConfig) *JWTUtil {
	return &JWTUtil{
		config: cfg,
		now:    time.Now,
	}
}

// GenerateAccessToken creates a short-lived token used on API requests
func (j *JWTUtil) GenerateAccessToken(email string, userID uint) (string, error) {
	return j.generate(email, userID, TokenTypeAccess, j.config.AccessTTL)
}

// GenerateRefreshToken creates a long-lived token exchangeable for access tokens
func (j *JWTUtil) GenerateRefreshToken(email string, userID uint) (string, error) {
	return j.generate(email, userID, TokenTypeRefresh, j.config.RefreshTTL)
}

func (j *JWTUtil) generate(email string, userID uint, tokenType string, ttl time.Duration) (string, error) {
	if j.config == nil {
		return "", errors.New("JWT configuration not provided")
	}

	now := j.now()
	claims := UserClaims{
		Email:     email,
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.config.SigningKey))
}

// ValidateToken validates and parses the JWT token, requiring the given token type
func (j *JWTUtil) ValidateToken(tokenString, tokenType string) (*UserClaims, error) {
	if j.config == nil {
		return nil, errors.New("JWT configuration not provided")
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&UserClaims{},
		func(token *jwt.Token) (interface{}, error) {
			// Validate the signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(j.config.SigningKey), nil
		},
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TokenType != tokenType {
		return nil, ErrTokenType
	}
	return claims, nil
}

// RemainingTTL returns how long the token stays valid, used to expire blacklist entries
func (j *JWTUtil) RemainingTTL(claims *UserClaims) time.Duration {
	if claims.ExpiresAt == nil {
		return j.config.RefreshTTL
	}
	ttl := claims.ExpiresAt.Time.Sub(j.now())
	if ttl < 0 {
		return 0
	}
	return ttl
}
