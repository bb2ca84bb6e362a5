package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/geoprofile/internal/blacklist"
	"github.com/suteetoe/geoprofile/internal/model"
	"github.com/suteetoe/geoprofile/internal/password"
	"github.com/suteetoe/geoprofile/internal/repository"
	"github.com/suteetoe/geoprofile/internal/serializer"
	"github.com/suteetoe/geoprofile/pkg/jwtutil"
	"github.com/suteetoe/geoprofile/pkg/logger"
	"github.com/suteetoe/geoprofile/prometheus"
	"go.uber.org/zap"
)

const (
	msgNoActiveAccount = "No active account found with the given credentials"
	msgTokenInvalid    = "Token is invalid or expired"
)

// TokenAccounts is the account access the token endpoints need
type TokenAccounts interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

// TokenHandler issues, refreshes and revokes JWT pairs
type TokenHandler struct {
	users   TokenAccounts
	jwt     *jwtutil.JWTUtil
	revoked blacklist.Store
}

// NewTokenHandler creates the token handler
func NewTokenHandler(users TokenAccounts, jwtUtil *jwtutil.JWTUtil, revoked blacklist.Store) *TokenHandler {
	return &TokenHandler{users: users, jwt: jwtUtil, revoked: revoked}
}

type obtainRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// Obtain exchanges credentials for an access and refresh token pair
func (h *TokenHandler) Obtain(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	var req obtainRequest
	if err := serializer.Bind(c, &req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return writeError(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	user, err := h.users.GetByEmail(ctx, serializer.NormalizeEmail(req.Email))
	if errors.Is(err, repository.ErrNotFound) {
		log.Info("Login for unknown email", zap.String("email", req.Email))
		return h.badCredentials(c)
	}
	if err != nil {
		return writeError(c, err)
	}
	if !password.Check(user.Password, req.Password) {
		log.Info("Invalid password", zap.String("email", req.Email))
		return h.badCredentials(c)
	}
	if !user.IsActive {
		log.Info("Login for inactive account", zap.String("email", req.Email))
		return h.badCredentials(c)
	}

	access, err := h.jwt.GenerateAccessToken(user.Email, user.ID)
	if err != nil {
		log.Error("Failed to generate access token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}
	refresh, err := h.jwt.GenerateRefreshToken(user.Email, user.ID)
	if err != nil {
		log.Error("Failed to generate refresh token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	if err := h.users.TouchLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		log.Warn("Failed to update last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	prometheus.RecordLogin(true)
	log.Info("User logged in", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"access": access, "refresh": refresh})
}

// Refresh issues a new access token for a valid, unrevoked refresh token
func (h *TokenHandler) Refresh(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	claims, err := h.refreshClaims(c)
	if err != nil {
		return h.refreshFailed(c, err)
	}

	user, err := h.users.GetByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		prometheus.RecordAuthError("refresh_unknown_user")
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": msgNoActiveAccount})
	}

	access, err := h.jwt.GenerateAccessToken(user.Email, user.ID)
	if err != nil {
		log.Error("Failed to generate access token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"access": access})
}

// Blacklist revokes a refresh token until it expires
func (h *TokenHandler) Blacklist(c echo.Context) error {
	log := logger.FromContext(c)

	claims, err := h.refreshClaims(c)
	if err != nil {
		return h.refreshFailed(c, err)
	}

	if err := h.revoked.Revoke(c.Request().Context(), claims.ID, h.jwt.RemainingTTL(claims)); err != nil {
		log.Error("Failed to blacklist token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to blacklist token"})
	}

	log.Info("Refresh token blacklisted", zap.Uint("user_id", claims.UserID))
	return c.JSON(http.StatusOK, echo.Map{})
}

// tokenError is answered as 401 {"detail": ..., "code": "token_not_valid"}
type tokenError string

func (e tokenError) Error() string { return string(e) }

// refreshClaims binds and validates the refresh token of the request
func (h *TokenHandler) refreshClaims(c echo.Context) (*jwtutil.UserClaims, error) {
	var req refreshRequest
	if err := serializer.Bind(c, &req); err != nil {
		return nil, err
	}

	claims, err := h.jwt.ValidateToken(req.Refresh, jwtutil.TokenTypeRefresh)
	if err != nil {
		prometheus.RecordAuthError("invalid_refresh_token")
		return nil, tokenError(msgTokenInvalid)
	}

	revoked, err := h.revoked.IsRevoked(c.Request().Context(), claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		prometheus.RecordAuthError("blacklisted_token")
		return nil, tokenError("Token is blacklisted")
	}
	return claims, nil
}

func (h *TokenHandler) refreshFailed(c echo.Context, err error) error {
	var te tokenError
	if errors.As(err, &te) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": string(te), "code": "token_not_valid"})
	}
	return writeError(c, err)
}

func (h *TokenHandler) badCredentials(c echo.Context) error {
	prometheus.RecordLogin(false)
	prometheus.RecordAuthError("bad_credentials")
	return c.JSON(http.StatusUnauthorized, echo.Map{"detail": msgNoActiveAccount})
}
