package service

import (
	"regexp"
	"strings"

	"secure-voting/encryption"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return newError(KindValidation, "email is required")
	}
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return newError(KindValidation, "email is not valid")
	}
	return nil
}

func validateID(name string, id uint) error {
	if id == 0 {
		return newError(KindValidation, name+" is required")
	}
	return nil
}

// validateKey rejects empty keys as a validation error and malformed ones as invalid keys.
func validateKey(name, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return newError(KindValidation, name+" is required")
	}
	if !encryption.VerifyKeyFormat(key) {
		return newError(KindInvalidKey, "invalid "+name)
	}
	return nil
}
