package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/geoprofile/internal/model"
	"github.com/suteetoe/geoprofile/internal/policy"
	"github.com/suteetoe/geoprofile/internal/repository"
	"github.com/suteetoe/geoprofile/pkg/jwtutil"
	"github.com/suteetoe/geoprofile/pkg/logger"
	"github.com/suteetoe/geoprofile/prometheus"
	"go.uber.org/zap"
)

const principalKey = "principal"

// PrincipalLoader loads the account behind a token and its effective permissions
type PrincipalLoader interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	PermissionNames(ctx context.Context, userID uint) ([]string, error)
}

// AuthMiddleware validates the access token from the Authorization header and
// stores the caller's principal in the context
func AuthMiddleware(jwtUtil *jwtutil.JWTUtil, users PrincipalLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			// Get the Authorization header
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Authentication credentials were not provided."})
			}

			// Check if it's a Bearer token
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Warn("Invalid Authorization header format")
				prometheus.RecordAuthError("invalid_header")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			claims, err := jwtUtil.ValidateToken(parts[1], jwtutil.TokenTypeAccess)
			if err != nil {
				log.Warn("Invalid JWT token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Given token not valid for any token type"})
			}

			ctx := c.Request().Context()
			user, err := users.GetByID(ctx, claims.UserID)
			if errors.Is(err, repository.ErrNotFound) {
				prometheus.RecordAuthError("unknown_user")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
			}
			if err != nil {
				log.Error("Failed to load token user", zap.Uint("user_id", claims.UserID), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to authenticate"})
			}
			if !user.IsActive {
				prometheus.RecordAuthError("inactive_user")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User is inactive"})
			}

			perms, err := users.PermissionNames(ctx, user.ID)
			if err != nil {
				log.Error("Failed to load permissions", zap.Uint("user_id", user.ID), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to authenticate"})
			}

			c.Set(principalKey, policy.NewPrincipal(user, perms))
			c.Set("user_id", user.ID)
			c.Set(logger.LoggerKey, log.With(zap.Uint("user_id", user.ID)))

			return next(c)
		}
	}
}

// CurrentPrincipal returns the principal set by AuthMiddleware, or nil
func CurrentPrincipal(c echo.Context) *policy.Principal {
	p, _ := c.Get(principalKey).(*policy.Principal)
	return p
}
