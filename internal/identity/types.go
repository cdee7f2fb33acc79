package identity

import (
	"errors"
	"time"
)

// Info describes a registered participant. FullID is the immutable credential
// identifier presented by the gateway; Alias is the unique short name used
// everywhere else in the system.
type Info struct {
	FullID       string    `json:"fullId"`
	Alias        string    `json:"alias"`
	Organization string    `json:"organization,omitempty"`
	Roles        []string  `json:"roles"`
	IsAdmin      bool      `json:"isAdmin"`
	RegisteredBy string    `json:"registeredBy,omitempty"`
	RegisteredAt time.Time `json:"registeredAt"`
	LastUpdated  time.Time `json:"lastUpdatedAt"`

	// PasswordHash is persisted but never exposed through the API.
	PasswordHash string `json:"passwordHash,omitempty"`
}

// HasRole reports whether the identity carries the given role. Admins do not
// implicitly hold stage roles; lifecycle operations check roles explicitly.
func (i Info) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleCounts summarizes registry membership per role.
type RoleCounts struct {
	Counts     map[string]int `json:"counts"`
	TotalUsers int            `json:"totalUsers"`
}

// ValidRoles enumerates the supply-chain roles a participant may hold.
var ValidRoles = map[string]bool{
	"farmer":      true,
	"certifier":   true,
	"processor":   true,
	"distributor": true,
	"retailer":    true,
}

var (
	ErrNotFound          = errors.New("identity not found")
	ErrAlreadyRegistered = errors.New("identity already registered")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInput      = errors.New("invalid input")
)
