package model

import (
	"strings"
	"time"
)

// OfferType classifies a promotional offer.
type OfferType string

const (
	OfferTypeWelcome      OfferType = "welcome"
	OfferTypeDepositMatch OfferType = "deposit-match"
	OfferTypeLossback     OfferType = "lossback"
	OfferTypeFreeSpins    OfferType = "free-spins"
	OfferTypeReload       OfferType = "reload"
	OfferTypeLoyalty      OfferType = "loyalty"
	OfferTypeUnknown      OfferType = "unknown"
)

// ParseOfferType maps free-text offer type strings onto the enum, falling back
// to OfferTypeUnknown for anything unrecognized.
func ParseOfferType(s string) OfferType {
	switch OfferType(normalizeType(s)) {
	case OfferTypeWelcome, OfferTypeDepositMatch, OfferTypeLossback,
		OfferTypeFreeSpins, OfferTypeReload, OfferTypeLoyalty:
		return OfferType(normalizeType(s))
	default:
		return OfferTypeUnknown
	}
}

func normalizeType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "-")
	return strings.ReplaceAll(s, " ", "-")
}

// Offer represents a promotional offer tied to a venue.
type Offer struct {
	ID              string    `json:"id"`
	VenueID         string    `json:"venue_id"`
	VenueName       string    `json:"venue_name"`
	State           string    `json:"state"`
	Name            string    `json:"name"`
	Type            OfferType `json:"type"`
	ExpectedDeposit float64   `json:"expected_deposit"`
	ExpectedBonus   float64   `json:"expected_bonus"`
	Description     string    `json:"description,omitempty"`
	Terms           string    `json:"terms,omitempty"`
	Origin          Origin    `json:"origin"`
	Verified        bool      `json:"verified"`
	DiscoveredAt    time.Time `json:"discovered_at"`
}
