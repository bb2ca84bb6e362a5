package serializer

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/geoprofile/internal/model"
)

// fieldChecker is implemented by requests with rules the struct tags cannot express
type fieldChecker interface {
	checkFields(errs ValidationErrors)
}

// Validator plugs go-playground/validator into echo and reports failures as ValidationErrors
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates the request validator with the custom tags registered
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("country", func(fl validator.FieldLevel) bool {
		return model.IsCountry(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Validate implements echo.Validator
func (cv *Validator) Validate(i interface{}) error {
	errs := ValidationErrors{}
	if err := cv.validate.Struct(i); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs.Add(fe.Field(), message(fe))
		}
	}
	if fc, ok := i.(fieldChecker); ok {
		fc.checkFields(errs)
	}
	return errs.OrNil()
}

func message(fe validator.FieldError) string {
	numeric := false
	switch fe.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		numeric = true
	}

	switch fe.Tag() {
	case "required":
		return MsgRequired
	case "email":
		return "Enter a valid email address."
	case "max":
		if numeric {
			return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
		}
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min", "gte":
		if numeric {
			return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
		}
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "country", "oneof":
		return fmt.Sprintf("%q is not a valid choice.", fmt.Sprint(fe.Value()))
	case "datetime":
		return MsgInvalidDate
	}
	return "Invalid value."
}

// Bind decodes the request body into dst and runs the echo validator on it.
// Decoding failures are reported per field where the field is known.
func Bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return bindError(err)
	}
	return c.Validate(dst)
}

func bindError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		field := typeErr.Field
		if i := strings.LastIndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		return FieldError(field, fmt.Sprintf("Incorrect type. Expected %s, but got %s.", typeErr.Type.Kind(), typeErr.Value))
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return FieldError("detail", "JSON parse error - "+syntaxErr.Error())
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil {
			return FieldError(MsgNonField, he.Internal.Error())
		}
		return FieldError(MsgNonField, fmt.Sprint(he.Message))
	}
	return FieldError(MsgNonField, err.Error())
}

func checkPoint(errs ValidationErrors, field string, p *model.GeoPoint) {
	if p != nil && !p.Valid() {
		errs.Add(field, "Coordinates are out of range.")
	}
}
