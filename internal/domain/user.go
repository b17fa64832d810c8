// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxIdentityLen = 36
	SystemIdentity = Identity("System")
)

var (
	ErrIdentityTooLong = errors.New("identity too long")
	ErrIdentityEmpty   = errors.New("identity empty")
)

// Identity is a display name. It is unique only inside one room and carries
// no authentication.
type Identity string

// NewIdentity trims the raw name and checks its length.
func NewIdentity(raw string) (Identity, error) {
	name := strings.TrimSpace(raw)
	if len(name) == 0 {
		return "", ErrIdentityEmpty
	}
	if len(name) > MaxIdentityLen {
		return "", ErrIdentityTooLong
	}
	return Identity(name), nil
}
