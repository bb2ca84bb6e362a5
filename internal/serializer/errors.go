package serializer

import (
	"sort"
	"strings"
)

// Shared error messages
const (
	MsgRequired    = "This field is required."
	MsgInvalidDate = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
	MsgEmailTaken  = "user with this email address already exists."
	MsgNonField    = "non_field_errors"
)

// ValidationErrors maps a JSON field name to the messages it failed with.
// It is written to the client as the 400 response body.
type ValidationErrors map[string][]string

// Add appends a message for field
func (e ValidationErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// OrNil returns nil when nothing was recorded, so the result can be returned as an error
func (e ValidationErrors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e ValidationErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e[field], " "))
	}
	return strings.Join(parts, "; ")
}

// FieldError builds a single-field ValidationErrors
func FieldError(field, msg string) ValidationErrors {
	return ValidationErrors{field: {msg}}
}

// Presence reports which fields were supplied in a request
type Presence map[string]bool

// RequireAll returns a "required" error for every field that is absent
func RequireAll(p Presence) ValidationErrors {
	errs := ValidationErrors{}
	for field, present := range p {
		if !present {
			errs.Add(field, MsgRequired)
		}
	}
	return errs
}
