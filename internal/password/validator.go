package password

import (
	"fmt"
	"strings"
	"unicode"

	passwordvalidator "github.com/wagslane/go-password-validator"
	"golang.org/x/crypto/bcrypt"
)

// ValidationError carries every rule a password failed
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, " ")
}

// MaxBytes is the longest password bcrypt accepts
const MaxBytes = 72

// Validator checks password strength before a password is hashed
type Validator struct {
	MinLength  int
	MinEntropy float64
}

// NewValidator creates a validator with the given thresholds
func NewValidator(minLength int, minEntropy float64) *Validator {
	return &Validator{MinLength: minLength, MinEntropy: minEntropy}
}

// Validate returns a *ValidationError listing every failed rule, or nil.
// attributes are user values (email, names) the password must not resemble.
func (v *Validator) Validate(password string, attributes ...string) error {
	var msgs []string

	if len([]rune(password)) < v.MinLength {
		msgs = append(msgs, fmt.Sprintf(
			"This password is too short. It must contain at least %d characters.", v.MinLength))
	}
	if len(password) > MaxBytes {
		msgs = append(msgs, fmt.Sprintf(
			"This password is too long. It must contain at most %d bytes.", MaxBytes))
	}
	if isCommon(password) {
		msgs = append(msgs, "This password is too common.")
	}
	if password != "" && isNumeric(password) {
		msgs = append(msgs, "This password is entirely numeric.")
	}
	if attr, ok := similarAttribute(password, attributes); ok {
		msgs = append(msgs, fmt.Sprintf("The password is too similar to the %s.", attr))
	}
	if v.MinEntropy > 0 {
		if err := passwordvalidator.Validate(password, v.MinEntropy); err != nil {
			msgs = append(msgs, err.Error())
		}
	}

	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}

// Hash returns the bcrypt hash of password
func Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Check reports whether password matches the bcrypt hash
func Check(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func similarAttribute(password string, attributes []string) (string, bool) {
	lowered := strings.ToLower(password)
	if len(lowered) < 3 {
		return "", false
	}
	for _, attr := range attributes {
		value := strings.ToLower(strings.TrimSpace(attr))
		if value == "" {
			continue
		}
		name := "user attributes"
		if at := strings.IndexByte(value, '@'); at > 0 {
			name = "email address"
			value = value[:at]
		}
		if len(value) < 3 {
			continue
		}
		if strings.Contains(lowered, value) || strings.Contains(value, lowered) {
			return name, true
		}
	}
	return "", false
}
