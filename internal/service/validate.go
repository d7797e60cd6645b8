package service

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/Shivanand-hulikatti/sauna-signup/internal/model"
)

const (
	maxUsernameLen = 100
	maxContactLen  = 254
	minPhoneDigits = 6
	maxCapacity    = 100_000
)

// stripMarkup removes every HTML tag. Usernames end up in the admin review
// list, so nothing markup-like is stored.
var stripMarkup = bluemonday.StrictPolicy()

// maxStripPasses bounds how many layers of entity encoding are peeled off.
const maxStripPasses = 4

// plainText strips tags and decodes entities until the value no longer
// changes, so entity-encoded markup cannot come back to life on unescape.
func plainText(raw string) (string, bool) {
	s := raw
	for range maxStripPasses {
		next := html.UnescapeString(stripMarkup.Sanitize(s))
		if next == s {
			return s, true
		}
		s = next
	}
	return s, false
}

func cleanUsername(raw string) (string, error) {
	name, ok := plainText(raw)
	if !ok {
		return "", model.NewValidationError("username", "contains markup")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", model.NewValidationError("username", "is required")
	}
	if utf8.RuneCountInString(name) > maxUsernameLen {
		return "", model.NewValidationError("username", "is too long")
	}
	return name, nil
}

// cleanContact accepts an email address or a phone number. Anything with an
// "@" or a letter in it is treated as an email and only checked structurally.
func cleanContact(raw string) (string, error) {
	contact := strings.TrimSpace(raw)
	if contact == "" {
		return "", model.NewValidationError("contact", "is required")
	}
	if len(contact) > maxContactLen {
		return "", model.NewValidationError("contact", "is too long")
	}
	if looksLikeEmail(contact) {
		if !isValidEmail(contact) {
			return "", model.NewValidationError("contact", "is not a valid email address")
		}
		return contact, nil
	}
	if !isValidPhone(contact) {
		return "", model.NewValidationError("contact", "is not a valid phone number")
	}
	return contact, nil
}

func looksLikeEmail(s string) bool {
	return strings.ContainsFunc(s, func(r rune) bool { return r == '@' || unicode.IsLetter(r) })
}

// isValidEmail does a basic structural check only.
func isValidEmail(email string) bool {
	if strings.ContainsFunc(email, unicode.IsSpace) {
		return false
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && len(parts[1]) > 0
}

func isValidPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ', r == '+', r == '-', r == '(', r == ')':
		default:
			return false
		}
	}
	return digits >= minPhoneDigits
}
