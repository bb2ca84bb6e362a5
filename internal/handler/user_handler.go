package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/geoprofile/internal/middleware"
	"github.com/suteetoe/geoprofile/internal/model"
	"github.com/suteetoe/geoprofile/internal/password"
	"github.com/suteetoe/geoprofile/internal/policy"
	"github.com/suteetoe/geoprofile/internal/repository"
	"github.com/suteetoe/geoprofile/internal/serializer"
	"github.com/suteetoe/geoprofile/internal/storage"
	"github.com/suteetoe/geoprofile/pkg/logger"
	"github.com/suteetoe/geoprofile/prometheus"
	"go.uber.org/zap"
)

// ProximityRadius is the search radius of the find endpoint, in metres
const ProximityRadius = 10000.0

// UserHandler serves the account endpoints
type UserHandler struct {
	users     repository.UserRepository
	documents repository.OwnedStore[model.Document]
	files     storage.Storage
	passwords *password.Validator
}

// NewUserHandler creates the account handler. documents and files are used to
// remove uploaded files when an account is deleted.
func NewUserHandler(users repository.UserRepository, documents repository.OwnedStore[model.Document], files storage.Storage, passwords *password.Validator) *UserHandler {
	return &UserHandler{
		users:     users,
		documents: documents,
		files:     files,
		passwords: passwords,
	}
}

// List returns one page of accounts in the public view
func (h *UserHandler) List(c echo.Context) error {
	page, err := parsePage(c)
	if err != nil {
		return writeError(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	users, total, err := h.users.List(c.Request().Context(), page.offset(), page.size)
	if err != nil {
		return writeError(c, err)
	}

	resp, err := newPage(c, page, total, serializer.PublicList(users))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Create adds an account with any field set; requires add_user
func (h *UserHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	if err := authorizeOwner(c, policy.Users, policy.ActionAdd, 0); err != nil {
		return writeError(c, err)
	}

	var req serializer.AdminCreateRequest
	if err := serializer.Bind(c, &req); err != nil {
		return writeError(c, err)
	}

	u, err := h.newAccount(c.Request().Context(), &req.SignupRequest)
	if err != nil {
		return writeError(c, err)
	}
	req.AdminFields.Apply(u)

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.users.CreateWithAccess(c.Request().Context(), u, req.Groups, req.UserPermissions); err != nil {
		return writeError(c, err)
	}

	prometheus.RecordResourceOperation(model.ResourceUser, "create")
	log.Info("Account created", zap.Uint("id", u.ID), zap.String("email", u.Email))
	return c.JSON(http.StatusCreated, serializer.Admin(u))
}

// Signup registers a new active account without privileges
func (h *UserHandler) Signup(c echo.Context) error {
	log := logger.FromContext(c)

	var req serializer.SignupRequest
	if err := serializer.Bind(c, &req); err != nil {
		return writeError(c, err)
	}

	u, err := h.newAccount(c.Request().Context(), &req)
	if err != nil {
		return writeError(c, err)
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.users.Create(c.Request().Context(), u); err != nil {
		return writeError(c, err)
	}

	prometheus.SignupCounter.Inc()
	log.Info("Account registered", zap.Uint("id", u.ID), zap.String("email", u.Email))
	return c.JSON(http.StatusCreated, serializer.Public(u))
}

// newAccount validates the password and email of a registration and builds the
// account with a hashed password. Nothing is written.
func (h *UserHandler) newAccount(ctx context.Context, req *serializer.SignupRequest) (*model.User, error) {
	if err := h.passwords.Validate(req.Password, req.Email, req.FirstName, req.LastName); err != nil {
		return nil, err
	}

	u := req.Build()
	taken, err := h.users.EmailTaken(ctx, u.Email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, repository.ErrDuplicateEmail
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	u.Password = hashed
	return u, nil
}

// Retrieve returns one account: the admin view for admins and superusers, the public view otherwise
func (h *UserHandler) Retrieve(c echo.Context) error {
	u, err := h.load(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := authorize(c, policy.Users, policy.ActionView, u); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, serializer.ForCaller(u, middleware.CurrentPrincipal(c).IsPrivileged()))
}

// Update replaces the writable fields of an account
func (h *UserHandler) Update(c echo.Context) error {
	return h.update(c, false)
}

// Patch changes only the supplied fields of an account
func (h *UserHandler) Patch(c echo.Context) error {
	return h.update(c, true)
}

func (h *UserHandler) update(c echo.Context, partial bool) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	u, err := h.load(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := authorize(c, policy.Users, policy.ActionChange, u); err != nil {
		return writeError(c, err)
	}

	var req serializer.UserUpdateRequest
	if err := serializer.Bind(c, &req); err != nil {
		return writeError(c, err)
	}
	if !partial {
		if errs := serializer.RequireAll(req.Presence()); len(errs) > 0 {
			return writeError(c, errs)
		}
	}

	admin := middleware.CurrentPrincipal(c).IsPrivileged()
	req.Apply(u, admin)

	if req.Email != nil {
		taken, err := h.users.EmailTaken(ctx, u.Email, u.ID)
		if err != nil {
			return writeError(c, err)
		}
		if taken {
			return writeError(c, repository.ErrDuplicateEmail)
		}
	}

	if req.Password != nil {
		if err := h.passwords.Validate(*req.Password, u.Email, u.FirstName, u.LastName); err != nil {
			return writeError(c, err)
		}
		hashed, err := password.Hash(*req.Password)
		if err != nil {
			return writeError(c, err)
		}
		u.Password = hashed
	}

	var groupIDs, permissionIDs *[]uint
	if admin {
		groupIDs, permissionIDs = req.Groups, req.UserPermissions
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.users.UpdateWithAccess(ctx, u, groupIDs, permissionIDs); err != nil {
		return writeError(c, err)
	}

	prometheus.RecordResourceOperation(model.ResourceUser, "update")
	log.Info("Account updated", zap.Uint("id", u.ID), zap.Bool("password_changed", req.Password != nil))
	return c.JSON(http.StatusOK, serializer.ForCaller(u, admin))
}

// Delete removes an account together with every record it owns
func (h *UserHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	u, err := h.load(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := authorize(c, policy.Users, policy.ActionDelete, u); err != nil {
		return writeError(c, err)
	}

	docs, err := h.documents.ListByUser(ctx, u.ID)
	if err != nil {
		return writeError(c, err)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.users.Delete(ctx, u.ID); err != nil {
		return writeError(c, err)
	}

	for _, d := range docs {
		if err := h.files.Delete(ctx, d.Path); err != nil {
			log.Warn("Failed to remove document file", zap.String("path", d.Path), zap.Error(err))
		}
	}

	prometheus.RecordResourceOperation(model.ResourceUser, "delete")
	log.Info("Account deleted", zap.Uint("id", u.ID), zap.Int("documents", len(docs)))
	return c.NoContent(http.StatusNoContent)
}

// Find returns the accounts whose home address lies within ProximityRadius of the given point
func (h *UserHandler) Find(c echo.Context) error {
	req, err := serializer.ParseCoordinates(c)
	if err != nil {
		return writeError(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	users, err := h.users.FindNear(c.Request().Context(), req.Point(), ProximityRadius)
	if err != nil {
		return writeError(c, err)
	}

	prometheus.ProximitySearchCounter.Inc()
	return c.JSON(http.StatusOK, serializer.PublicList(users))
}

func (h *UserHandler) load(c echo.Context) (*model.User, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	return h.users.GetByID(c.Request().Context(), id)
}
