package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/geoprofile/internal/middleware"
	"github.com/suteetoe/geoprofile/internal/password"
	"github.com/suteetoe/geoprofile/internal/policy"
	"github.com/suteetoe/geoprofile/internal/repository"
	"github.com/suteetoe/geoprofile/internal/serializer"
	"github.com/suteetoe/geoprofile/pkg/logger"
	"github.com/suteetoe/geoprofile/prometheus"
	"go.uber.org/zap"
)

// Plain text 404 bodies
const (
	MsgNotFound     = "Not found."
	MsgUserNotFound = "User not found"
)

// errNotFound carries the plain text body of a 404
type errNotFound string

func (e errNotFound) Error() string { return string(e) }

// writeError maps a handler error onto the response:
// validation failures are 400 field maps, denials are 403 with no body,
// missing records are plain text 404s and anything else is a logged 500.
func writeError(c echo.Context, err error) error {
	var (
		verrs    serializer.ValidationErrors
		pwErr    *password.ValidationError
		notFound errNotFound
	)
	switch {
	case errors.As(err, &verrs):
		return c.JSON(http.StatusBadRequest, verrs)
	case errors.As(err, &pwErr):
		return c.JSON(http.StatusBadRequest, serializer.ValidationErrors{"password": pwErr.Messages})
	case errors.Is(err, policy.ErrForbidden):
		return c.NoContent(http.StatusForbidden)
	case errors.As(err, &errInvalidPage{}):
		return invalidPage(c)
	case errors.As(err, &notFound):
		return c.String(http.StatusNotFound, string(notFound))
	case errors.Is(err, repository.ErrNotFound):
		return c.String(http.StatusNotFound, MsgNotFound)
	case errors.Is(err, repository.ErrDuplicateEmail):
		return c.JSON(http.StatusBadRequest, serializer.FieldError("email", serializer.MsgEmailTaken))
	case errors.Is(err, repository.ErrUnknownGroup):
		return c.JSON(http.StatusBadRequest, serializer.FieldError("groups", "Invalid pk - object does not exist."))
	case errors.Is(err, repository.ErrUnknownPermission):
		return c.JSON(http.StatusBadRequest, serializer.FieldError("user_permissions", "Invalid pk - object does not exist."))
	case errors.Is(err, repository.ErrUnknownOwner):
		return c.JSON(http.StatusBadRequest, serializer.FieldError("user", "Invalid pk - object does not exist."))
	}

	logger.FromContext(c).Error("Request failed", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}

// authorize runs the rule for an existing record and records denials
func authorize[T any](c echo.Context, rule policy.Rule[T], action policy.Action, obj T) error {
	if err := rule.Authorize(middleware.CurrentPrincipal(c), action, obj); err != nil {
		return denied(c, rule.Resource, action)
	}
	return nil
}

// authorizeOwner runs the rule against an owner id and records denials
func authorizeOwner[T any](c echo.Context, rule policy.Rule[T], action policy.Action, ownerID uint) error {
	if err := rule.AuthorizeOwner(middleware.CurrentPrincipal(c), action, ownerID); err != nil {
		return denied(c, rule.Resource, action)
	}
	return nil
}

func denied(c echo.Context, resource string, action policy.Action) error {
	prometheus.RecordDenied(resource, string(action))
	var userID uint
	if p := middleware.CurrentPrincipal(c); p != nil {
		userID = p.UserID
	}
	logger.FromContext(c).Warn("Permission denied",
		zap.String("resource", resource),
		zap.String("action", string(action)),
		zap.Uint("user_id", userID))
	return policy.ErrForbidden
}

// parseID reads the :id path parameter; an invalid id can match no record
func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errNotFound(MsgNotFound)
	}
	return uint(id), nil
}
