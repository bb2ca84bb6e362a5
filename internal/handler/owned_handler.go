package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/geoprofile/internal/middleware"
	"github.com/suteetoe/geoprofile/internal/policy"
	"github.com/suteetoe/geoprofile/internal/repository"
	"github.com/suteetoe/geoprofile/internal/serializer"
	"github.com/suteetoe/geoprofile/pkg/logger"
	"github.com/suteetoe/geoprofile/prometheus"
	"go.uber.org/zap"
)

// AccountChecker reports whether an account exists
type AccountChecker interface {
	Exists(ctx context.Context, id uint) (bool, error)
}

// ownedInput is a decoded create or update payload for a record of type T
type ownedInput[T any] interface {
	Owner() uint
	Apply(rec *T)
}

// OwnedHandler serves list, create, retrieve, update and delete for records owned by one account.
// Every operation runs the resource's permission-or-ownership rule.
type OwnedHandler[T any] struct {
	store  repository.OwnedStore[T]
	users  AccountChecker
	rule   policy.Rule[*T]
	decode func(c echo.Context, partial bool) (ownedInput[T], error)
	render func(rec *T) interface{}
}

// List returns the records of ?user=<id>, defaulting to the caller
func (h *OwnedHandler[T]) List(c echo.Context) error {
	ctx := c.Request().Context()
	ownerID := middleware.CurrentPrincipal(c).UserID
	if raw := c.QueryParam("user"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.String(http.StatusNotFound, MsgUserNotFound)
		}
		ownerID = uint(id)
	}

	exists, err := h.users.Exists(ctx, ownerID)
	if err != nil {
		return writeError(c, err)
	}
	if !exists {
		return c.String(http.StatusNotFound, MsgUserNotFound)
	}
	if err := authorizeOwner(c, h.rule, policy.ActionView, ownerID); err != nil {
		return writeError(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	recs, err := h.store.ListByUser(ctx, ownerID)
	if err != nil {
		return writeError(c, err)
	}

	out := make([]interface{}, 0, len(recs))
	for i := range recs {
		out = append(out, h.render(&recs[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// Create adds a record for the owner named in the payload
func (h *OwnedHandler[T]) Create(c echo.Context) error {
	in, err := h.decode(c, false)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.checkOwner(c, policy.ActionAdd, in.Owner()); err != nil {
		return writeError(c, err)
	}

	rec := new(T)
	in.Apply(rec)

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.store.Create(c.Request().Context(), rec); err != nil {
		return writeError(c, err)
	}

	prometheus.RecordResourceOperation(h.rule.Resource, "create")
	return c.JSON(http.StatusCreated, h.render(rec))
}

// Retrieve returns one record
func (h *OwnedHandler[T]) Retrieve(c echo.Context) error {
	rec, err := h.load(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := authorize(c, h.rule, policy.ActionView, rec); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, h.render(rec))
}

// Update replaces a record
func (h *OwnedHandler[T]) Update(c echo.Context) error {
	return h.update(c, false)
}

// Patch changes the supplied fields of a record
func (h *OwnedHandler[T]) Patch(c echo.Context) error {
	return h.update(c, true)
}

func (h *OwnedHandler[T]) update(c echo.Context, partial bool) error {
	rec, err := h.load(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := authorize(c, h.rule, policy.ActionChange, rec); err != nil {
		return writeError(c, err)
	}

	in, err := h.decode(c, partial)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.checkTransfer(c, rec, in.Owner()); err != nil {
		return writeError(c, err)
	}
	in.Apply(rec)

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.store.Save(c.Request().Context(), rec); err != nil {
		return writeError(c, err)
	}

	prometheus.RecordResourceOperation(h.rule.Resource, "update")
	return c.JSON(http.StatusOK, h.render(rec))
}

// Delete removes a record
func (h *OwnedHandler[T]) Delete(c echo.Context) error {
	if _, err := h.remove(c); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *OwnedHandler[T]) remove(c echo.Context) (*T, error) {
	rec, err := h.load(c)
	if err != nil {
		return nil, err
	}
	if err := authorize(c, h.rule, policy.ActionDelete, rec); err != nil {
		return nil, err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.store.Delete(c.Request().Context(), rec); err != nil {
		return nil, err
	}

	prometheus.RecordResourceOperation(h.rule.Resource, "delete")
	logger.FromContext(c).Info("Record deleted",
		zap.String("resource", h.rule.Resource),
		zap.Uint("owner_id", h.rule.Owner(rec)))
	return rec, nil
}

func (h *OwnedHandler[T]) load(c echo.Context) (*T, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	return h.store.Get(c.Request().Context(), id)
}

// checkOwner authorizes action for ownerID, then requires the account to exist
func (h *OwnedHandler[T]) checkOwner(c echo.Context, action policy.Action, ownerID uint) error {
	if err := authorizeOwner(c, h.rule, action, ownerID); err != nil {
		return err
	}
	exists, err := h.users.Exists(c.Request().Context(), ownerID)
	if err != nil {
		return err
	}
	if !exists {
		return serializer.FieldError("user", "Invalid pk \""+strconv.FormatUint(uint64(ownerID), 10)+"\" - object does not exist.")
	}
	return nil
}

// checkTransfer applies checkOwner when an update moves rec to another account
func (h *OwnedHandler[T]) checkTransfer(c echo.Context, rec *T, newOwner uint) error {
	if newOwner == 0 || newOwner == h.rule.Owner(rec) {
		return nil
	}
	return h.checkOwner(c, policy.ActionChange, newOwner)
}
