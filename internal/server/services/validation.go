package services

import (
	"regexp"
	"strings"
)

var (
	usernameRe = regexp.MustCompile(`^\w{3,32}$`)
	passwordRe = regexp.MustCompile(`[\w!@#$%^&]`)
	emailRe    = regexp.MustCompile(`^[\w.+-]+@[\w-]+\.[\w.]+$`)
	phoneRe    = regexp.MustCompile(`^\+?[0-9()\- ]*[0-9][0-9()\- ]*$`)
)

func validateUsername(username string) *ValidationError {
	if !usernameRe.MatchString(username) {
		return &ValidationError{Field: "username", Reason: "must be 3-32 word characters"}
	}
	return nil
}

// validatePassword applies a containment rule, not a whitelist: the
// password must be 8-128 characters and contain at least one character
// from the allowed class. Other characters (hyphens, spaces, unicode) are
// acceptable alongside them.
func validatePassword(password string) *ValidationError {
	if len(password) < 8 || len(password) > 128 {
		return &ValidationError{Field: "password", Reason: "must be 8-128 characters"}
	}
	if !passwordRe.MatchString(password) {
		return &ValidationError{Field: "password", Reason: "must contain letters, digits or !@#$%^&"}
	}
	return nil
}

func validateEmail(email string) *ValidationError {
	if email != "" && !emailRe.MatchString(email) {
		return &ValidationError{Field: "email", Reason: "not a valid email address"}
	}
	return nil
}

func validatePhone(phone string) *ValidationError {
	if phone != "" && !phoneRe.MatchString(phone) {
		return &ValidationError{Field: "phone", Reason: "not a valid phone number"}
	}
	return nil
}

// normalizePhone strips the accepted separators (+ - ( ) space) so that only
// digits are stored.
func normalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
}
