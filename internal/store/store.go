// Package store persists venues, offers and research run records.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/promo-scout/internal/model"
)

// ErrRunNotFound is returned when a run ID has no stored record.
var ErrRunNotFound = eris.New("run not found")

// VenueFilter specifies criteria for listing venues.
type VenueFilter struct {
	State  string       `json:"state,omitempty"`
	Origin model.Origin `json:"origin,omitempty"`
}

// OfferFilter specifies criteria for listing offers.
type OfferFilter struct {
	VenueID string       `json:"venue_id,omitempty"`
	State   string       `json:"state,omitempty"`
	Origin  model.Origin `json:"origin,omitempty"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the research engine.
//
// Venue identity (normalized name + state) is unique: UpsertVenue is keyed on
// it, CreateVenue relies on the caller having checked it, and a unique index
// backs both. Offers carry no uniqueness constraint: CreateOffer always inserts
// a fresh row, so repeated runs against unchanged data accumulate ai-discovered
// offers; reconciliation is what keeps true duplicates from being classified
// new within a run.
type Store interface {
	// Venues
	UpsertVenue(ctx context.Context, v model.Venue) (*model.Venue, error)
	CreateVenue(ctx context.Context, v model.Venue) (*model.Venue, error)
	ListVenues(ctx context.Context, filter VenueFilter) ([]model.Venue, error)
	ImportVenues(ctx context.Context, venues []model.Venue) (int, error)

	// Offers
	CreateOffer(ctx context.Context, o model.Offer) (*model.Offer, error)
	ListOffers(ctx context.Context, filter OfferFilter) ([]model.Offer, error)
	ImportOffers(ctx context.Context, offers []model.Offer) (int, error)

	// Runs
	CreateRun(ctx context.Context) (*model.Run, error)
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
