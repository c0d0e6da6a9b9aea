// Package validation checks and normalizes credential input before it reaches
// storage. Nothing here performs I/O.
package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/dto"
)

const (
	MsgName            = "Name must be 2-50 characters long and contain only letters and spaces"
	MsgEmail           = "Please provide a valid email address"
	MsgPassword        = "Password must be at least 8 characters long and contain at least one number and one letter"
	MsgPasswordMatch   = "Passwords do not match"
	MsgPasswordMissing = "Password is required"
)

const (
	nameMinLen     = 2
	nameMaxLen     = 50
	passwordMinLen = 8
	emailMaxLen    = 254
)

var (
	namePattern  = regexp.MustCompile(`^[\p{L}\s]+$`)
	emailPattern = regexp.MustCompile(
		"^[A-Za-z0-9.!#$%&'*+/=?^_`{|}~-]+@" +
			`(?:[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?\.)+[A-Za-z]{2,}$`)
)

// Errors is the ordered list of human-readable failures for one submission.
type Errors []string

func (e Errors) Error() string {
	return "validation failed: " + strings.Join(e, "; ")
}

// NormalizeName trims surrounding whitespace.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// NormalizeEmail trims and lowercases.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidName expects an already normalized name.
func ValidName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= nameMinLen && n <= nameMaxLen && namePattern.MatchString(name)
}

// ValidEmail expects an already normalized email.
func ValidEmail(email string) bool {
	return len(email) <= emailMaxLen && emailPattern.MatchString(email)
}

// ValidPassword applies the registration password policy.
func ValidPassword(password string) bool {
	if utf8.RuneCountInString(password) < passwordMinLen {
		return false
	}
	var hasDigit, hasLetter bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			hasLetter = true
		}
	}
	return hasDigit && hasLetter
}

// Registration normalizes name and email and checks every field, collecting
// all failures. The returned request is normalized even when errs is non-empty.
func Registration(req dto.RegisterRequest) (dto.RegisterRequest, Errors) {
	var errs Errors
	req.Name = NormalizeName(req.Name)
	req.Email = NormalizeEmail(req.Email)

	if !ValidName(req.Name) {
		errs = append(errs, MsgName)
	}
	if !ValidEmail(req.Email) {
		errs = append(errs, MsgEmail)
	}
	if !ValidPassword(req.Password) {
		errs = append(errs, MsgPassword)
	}
	if req.Password != req.ConfirmPassword {
		errs = append(errs, MsgPasswordMatch)
	}
	return req, errs
}

// Login only requires a well-formed email and a non-blank password. The
// password policy is intentionally not re-applied so that an account created
// under an older policy can always log in.
func Login(req dto.LoginRequest) (dto.LoginRequest, Errors) {
	var errs Errors
	req.Email = NormalizeEmail(req.Email)

	if !ValidEmail(req.Email) {
		errs = append(errs, MsgEmail)
	}
	if strings.TrimSpace(req.Password) == "" {
		errs = append(errs, MsgPasswordMissing)
	}
	return req, errs
}
