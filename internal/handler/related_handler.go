package handler

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/geoprofile/internal/model"
	"github.com/suteetoe/geoprofile/internal/policy"
	"github.com/suteetoe/geoprofile/internal/repository"
	"github.com/suteetoe/geoprofile/internal/serializer"
	"github.com/suteetoe/geoprofile/internal/storage"
	"github.com/suteetoe/geoprofile/pkg/logger"
	"github.com/suteetoe/geoprofile/prometheus"
	"go.uber.org/zap"
)

// NewInterestHandler serves /api/user/area-interest/
func NewInterestHandler(store repository.OwnedStore[model.AreaOfInterest], users AccountChecker) *OwnedHandler[model.AreaOfInterest] {
	return &OwnedHandler[model.AreaOfInterest]{
		store:  store,
		users:  users,
		rule:   policy.Interests,
		decode: decodeInterest,
		render: func(rec *model.AreaOfInterest) interface{} { return rec },
	}
}

func decodeInterest(c echo.Context, partial bool) (ownedInput[model.AreaOfInterest], error) {
	req := &serializer.InterestRequest{}
	if err := serializer.Bind(c, req); err != nil {
		return nil, err
	}
	if !partial {
		if errs := serializer.RequireAll(req.Presence()); len(errs) > 0 {
			return nil, errs
		}
	}
	return req, nil
}

// NewWorkDistanceHandler serves /api/user/work-distance/
func NewWorkDistanceHandler(store repository.OwnedStore[model.WorkDistance], users AccountChecker) *OwnedHandler[model.WorkDistance] {
	return &OwnedHandler[model.WorkDistance]{
		store:  store,
		users:  users,
		rule:   policy.WorkDistances,
		decode: decodeWorkDistance,
		render: func(rec *model.WorkDistance) interface{} { return rec },
	}
}

func decodeWorkDistance(c echo.Context, partial bool) (ownedInput[model.WorkDistance], error) {
	req := &serializer.WorkDistanceRequest{}
	if err := serializer.Bind(c, req); err != nil {
		return nil, err
	}
	if !partial {
		if errs := serializer.RequireAll(req.Presence()); len(errs) > 0 {
			return nil, errs
		}
	}
	return req, nil
}

// DocumentHandler serves /api/user/document/ with multipart uploads
type DocumentHandler struct {
	*OwnedHandler[model.Document]
	files storage.Storage
}

// NewDocumentHandler creates the document handler; uploads are kept in files
func NewDocumentHandler(store repository.OwnedStore[model.Document], users AccountChecker, files storage.Storage) *DocumentHandler {
	return &DocumentHandler{
		OwnedHandler: &OwnedHandler[model.Document]{
			store: store,
			users: users,
			rule:  policy.Documents,
			decode: func(c echo.Context, partial bool) (ownedInput[model.Document], error) {
				return parseDocument(c, partial)
			},
			render: func(rec *model.Document) interface{} { return serializer.Document(rec) },
		},
		files: files,
	}
}

func parseDocument(c echo.Context, partial bool) (*serializer.DocumentForm, error) {
	form, err := serializer.ParseDocumentForm(c)
	if err != nil {
		return nil, err
	}
	if !partial {
		if errs := serializer.RequireAll(form.Presence()); len(errs) > 0 {
			return nil, errs
		}
	}
	return form, nil
}

// Create stores the upload and records it for the owner named in the form
func (h *DocumentHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	ctx := c.Request().Context()

	form, err := parseDocument(c, false)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.checkOwner(c, policy.ActionAdd, form.Owner()); err != nil {
		return writeError(c, err)
	}

	stored, err := h.files.Save(ctx, storage.DocumentsDir, form.File)
	if err != nil {
		return writeError(c, err)
	}
	rec := &model.Document{Path: stored}
	form.Apply(rec)

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.store.Create(ctx, rec); err != nil {
		h.discard(c, stored)
		return writeError(c, err)
	}

	prometheus.RecordResourceOperation(h.rule.Resource, "create")
	log.Info("Document uploaded", zap.Uint("id", rec.ID), zap.Uint("user_id", rec.UserID), zap.String("type", rec.DocumentType))
	return c.JSON(http.StatusCreated, h.render(rec))
}

// Update replaces a document, swapping the stored file when a new one is uploaded
func (h *DocumentHandler) Update(c echo.Context) error {
	return h.update(c, false)
}

// Patch changes the supplied parts of a document
func (h *DocumentHandler) Patch(c echo.Context) error {
	return h.update(c, true)
}

func (h *DocumentHandler) update(c echo.Context, partial bool) error {
	ctx := c.Request().Context()

	rec, err := h.load(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := authorize(c, h.rule, policy.ActionChange, rec); err != nil {
		return writeError(c, err)
	}

	form, err := parseDocument(c, partial)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.checkTransfer(c, rec, form.Owner()); err != nil {
		return writeError(c, err)
	}
	form.Apply(rec)

	oldPath := rec.Path
	if form.File != nil {
		stored, err := h.files.Save(ctx, storage.DocumentsDir, form.File)
		if err != nil {
			return writeError(c, err)
		}
		rec.Path = stored
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.store.Save(ctx, rec); err != nil {
		if rec.Path != oldPath {
			h.discard(c, rec.Path)
		}
		return writeError(c, err)
	}
	if rec.Path != oldPath {
		h.discard(c, oldPath)
	}

	prometheus.RecordResourceOperation(h.rule.Resource, "update")
	return c.JSON(http.StatusOK, h.render(rec))
}

// File streams the stored upload to a caller allowed to view the document
func (h *DocumentHandler) File(c echo.Context) error {
	rec, err := h.load(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := authorize(c, h.rule, policy.ActionView, rec); err != nil {
		return writeError(c, err)
	}

	f, err := h.files.Open(c.Request().Context(), rec.Path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.FromContext(c).Warn("Document file missing", zap.Uint("id", rec.ID), zap.String("path", rec.Path))
		return writeError(c, errNotFound(MsgNotFound))
	}
	if err != nil {
		return writeError(c, err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(path.Ext(rec.Path))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", path.Base(rec.Path)))
	return c.Stream(http.StatusOK, contentType, f)
}

// Delete removes the document record and its stored file
func (h *DocumentHandler) Delete(c echo.Context) error {
	rec, err := h.remove(c)
	if err != nil {
		return writeError(c, err)
	}
	h.discard(c, rec.Path)
	return c.NoContent(http.StatusNoContent)
}

func (h *DocumentHandler) discard(c echo.Context, name string) {
	if err := h.files.Delete(c.Request().Context(), name); err != nil {
		logger.FromContext(c).Warn("Failed to remove document file", zap.String("path", name), zap.Error(err))
	}
}
