package validator

import (
	"errors"
	"strings"
)

var ErrMalformedAddress = errors.New("malformed address")

// SplitAddress breaks an address into local part and lower-cased domain.
// Anything without exactly one @ or with an empty side is malformed.
func SplitAddress(address string) (local, domain string, err error) {
	parts := strings.Split(address, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrMalformedAddress
	}
	return parts[0], strings.ToLower(parts[1]), nil
}

// IsValidEmail reports whether an address is structurally usable as a
// mailbox address for user creation.
func IsValidEmail(address string) error {
	_, domain, err := SplitAddress(address)
	if err != nil {
		return err
	}
	if !strings.Contains(domain, ".") {
		return ErrMalformedAddress
	}
	return nil
}
