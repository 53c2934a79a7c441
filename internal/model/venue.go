package model

import (
	"strings"
	"time"
)

// Origin tags whether a record came from the imported reference dataset or was
// discovered by the AI research engine.
type Origin string

const (
	OriginReference    Origin = "reference"
	OriginAIDiscovered Origin = "ai_discovered"
)

// Venue represents a licensed gambling establishment in one jurisdiction.
type Venue struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	State         string    `json:"state"`
	StateName     string    `json:"state_name"`
	Website       string    `json:"website,omitempty"`
	LicenseNumber string    `json:"license_number,omitempty"`
	City          string    `json:"city,omitempty"`
	Origin        Origin    `json:"origin"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IdentityKey returns the dedup key for a venue: lower-cased, trimmed name plus
// state code. At most one stored venue may exist per identity key.
func (v Venue) IdentityKey() string {
	return VenueIdentityKey(v.Name, v.State)
}

// VenueIdentityKey builds the identity key from raw name and state values.
func VenueIdentityKey(name, state string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + state
}
