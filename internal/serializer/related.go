package serializer

import (
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/geoprofile/internal/model"
)

// InterestRequest is the payload for an area of interest
type InterestRequest struct {
	User     *uint   `json:"user"`
	Interest *string `json:"interest" validate:"omitempty,max=150"`
}

// Presence lists the fields a create or full update must carry
func (r *InterestRequest) Presence() Presence {
	return Presence{"user": r.User != nil, "interest": r.Interest != nil}
}

func (r *InterestRequest) checkFields(errs ValidationErrors) {
	if r.Interest != nil && strings.TrimSpace(*r.Interest) == "" {
		errs.Add("interest", "This field may not be blank.")
	}
}

// Owner returns the owner id the request names, or 0 when absent
func (r *InterestRequest) Owner() uint { return deref(r.User) }

// Apply copies the supplied fields onto a
func (r *InterestRequest) Apply(a *model.AreaOfInterest) {
	if r.User != nil {
		a.UserID = *r.User
	}
	if r.Interest != nil {
		a.Interest = *r.Interest
	}
}

// WorkDistanceRequest is the payload for a work distance
type WorkDistanceRequest struct {
	User           *uint           `json:"user"`
	Label          *string         `json:"label" validate:"omitempty,max=100"`
	Distance       *float64        `json:"distance" validate:"omitempty,min=0"`
	Unit           *string         `json:"unit" validate:"omitempty,oneof=km mi"`
	ReferencePoint *model.GeoPoint `json:"reference_point"`
}

// Presence lists the fields a create or full update must carry
func (r *WorkDistanceRequest) Presence() Presence {
	return Presence{"user": r.User != nil, "distance": r.Distance != nil}
}

func (r *WorkDistanceRequest) checkFields(errs ValidationErrors) {
	checkPoint(errs, "reference_point", r.ReferencePoint)
}

// Owner returns the owner id the request names, or 0 when absent
func (r *WorkDistanceRequest) Owner() uint { return deref(r.User) }

// Apply copies the supplied fields onto w
func (r *WorkDistanceRequest) Apply(w *model.WorkDistance) {
	if r.User != nil {
		w.UserID = *r.User
	}
	if r.Label != nil {
		w.Label = *r.Label
	}
	if r.Distance != nil {
		w.Distance = *r.Distance
	}
	if r.Unit != nil {
		w.Unit = *r.Unit
	}
	if r.ReferencePoint != nil {
		w.ReferencePoint = *r.ReferencePoint
	}
	if w.Unit == "" {
		w.Unit = model.UnitKilometre
	}
}

// DocumentForm is the multipart payload for a document upload
type DocumentForm struct {
	User         *uint
	DocumentType *string
	File         *multipart.FileHeader
}

// ParseDocumentForm reads the user, document_type and document parts of a multipart request
func ParseDocumentForm(c echo.Context) (*DocumentForm, error) {
	form := &DocumentForm{}
	errs := ValidationErrors{}

	if raw := c.FormValue("user"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			errs.Add("user", "Incorrect type. Expected pk value, received str.")
		} else {
			v := uint(id)
			form.User = &v
		}
	}
	if raw := c.FormValue("document_type"); raw != "" {
		if !model.IsDocumentType(raw) {
			errs.Add("document_type", strconv.Quote(raw)+" is not a valid choice.")
		} else {
			form.DocumentType = &raw
		}
	}
	if fh, err := c.FormFile("document"); err == nil {
		if fh.Size == 0 {
			errs.Add("document", "The submitted file is empty.")
		} else {
			form.File = fh
		}
	}
	return form, errs.OrNil()
}

// Presence lists the parts a create or full update must carry
func (f *DocumentForm) Presence() Presence {
	return Presence{"user": f.User != nil, "document_type": f.DocumentType != nil, "document": f.File != nil}
}

// Owner returns the owner id the form names, or 0 when absent
func (f *DocumentForm) Owner() uint { return deref(f.User) }

// Apply copies the supplied fields onto d. The stored path is set by the caller after the upload.
func (f *DocumentForm) Apply(d *model.Document) {
	if f.User != nil {
		d.UserID = *f.User
	}
	if f.DocumentType != nil {
		d.DocumentType = *f.DocumentType
	}
}

// DocumentView is a document with its file rendered as a URL
type DocumentView struct {
	ID           uint   `json:"id"`
	UserID       uint   `json:"user"`
	DocumentType string `json:"document_type"`
	Document     string `json:"document"`
}

// DocumentFileURL is the authenticated download route of a document's file
func DocumentFileURL(id uint) string {
	return fmt.Sprintf("/api/user/document/%d/file/", id)
}

// Document renders d with its file as the download URL
func Document(d *model.Document) DocumentView {
	return DocumentView{
		ID:           d.ID,
		UserID:       d.UserID,
		DocumentType: d.DocumentType,
		Document:     DocumentFileURL(d.ID),
	}
}

func deref(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}
