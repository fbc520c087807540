package intake

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"leadgen/internal/model"
)

// ErrInvalidInput is returned for any submission that fails validation.
var ErrInvalidInput = errors.New("invalid input")

// emailShape only requires an "@" followed later by a ".".
var emailShape = regexp.MustCompile(`.+@.+\..+`)

// Request is the JSON body of a lead submission. Company is optional
// and defaults to the empty string.
type Request struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// Validate checks req and returns the normalized lead fields: trimmed,
// truncated to their limits, with the email lower-cased. ID, CreatedAt
// and SourceIP are left for the caller.
func Validate(req Request) (model.Lead, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)

	if name == "" {
		return model.Lead{}, errors.Wrap(ErrInvalidInput, "name is required")
	}
	if email == "" {
		return model.Lead{}, errors.Wrap(ErrInvalidInput, "email is required")
	}
	if !IsValidEmail(email) {
		return model.Lead{}, errors.Wrap(ErrInvalidInput, "email is malformed")
	}

	return model.Lead{
		Name:    truncate(name, model.MaxNameLength),
		Email:   truncate(strings.ToLower(email), model.MaxEmailLength),
		Company: truncate(strings.TrimSpace(req.Company), model.MaxCompanyLength),
		Phone:   truncate(strings.TrimSpace(req.Phone), model.MaxPhoneLength),
		Message: truncate(strings.TrimSpace(req.Message), model.MaxMessageLength),
	}, nil
}

// IsValidEmail reports whether email has the accepted address shape.
func IsValidEmail(email string) bool {
	return emailShape.MatchString(email)
}

// truncate cuts s to at most max characters.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
