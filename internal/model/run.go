package model

import "time"

// RunStatus represents the current state of a research run.
type RunStatus string

const (
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// Terminal reports whether the status is a final state. A run in a terminal
// state is never mutated again.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// LogEntry is one timestamped progress message in a run's append-only log.
type LogEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// MissingVenues lists venue names discovered in one jurisdiction that were not
// present in the reference dataset.
type MissingVenues struct {
	State     string   `json:"state"`
	StateName string   `json:"state_name"`
	Casinos   []string `json:"casinos"`
}

// OfferSummary is the compact offer view embedded in comparison entries.
type OfferSummary struct {
	Name          string    `json:"name"`
	Type          OfferType `json:"type"`
	ExpectedBonus float64   `json:"expected_bonus"`
}

// DiscoveredOffer is a candidate offer as returned by the offer research stage.
type DiscoveredOffer struct {
	OfferName       string  `json:"offerName"`
	OfferType       string  `json:"offerType"`
	ExpectedDeposit float64 `json:"expectedDeposit"`
	ExpectedBonus   float64 `json:"expectedBonus"`
	Description     string  `json:"description"`
	Terms           string  `json:"terms"`
}

// OfferComparison records, for one venue, the reference offers that existed at
// research time, everything the AI reported, and the subset classified as new.
type OfferComparison struct {
	VenueID          string            `json:"venue_id"`
	VenueName        string            `json:"venue_name"`
	State            string            `json:"state"`
	CurrentOffers    []OfferSummary    `json:"current_offers"`
	DiscoveredOffers []DiscoveredOffer `json:"discovered_offers"`
	NewOffers        []DiscoveredOffer `json:"new_offers"`
}

// RunSummary is the final rollup computed when a run completes.
type RunSummary struct {
	TotalMissingCasinos int      `json:"total_missing_casinos"`
	TotalNewOffers      int      `json:"total_new_offers"`
	StatesProcessed     []string `json:"states_processed"`
}

// Run is the audit record of one research orchestration execution. It is owned
// and mutated exclusively by the engine for the run's lifetime; all other
// callers read snapshots.
type Run struct {
	ID              string            `json:"id"`
	Status          RunStatus         `json:"status"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CurrentState    string            `json:"current_state,omitempty"`
	CurrentVenue    string            `json:"current_venue,omitempty"`
	VenuesProcessed int               `json:"venues_processed"`
	OffersProcessed int               `json:"offers_processed"`
	Log             []LogEntry        `json:"log"`
	MissingVenues   []MissingVenues   `json:"missing_venues,omitempty"`
	Comparisons     []OfferComparison `json:"comparisons,omitempty"`
	Summary         *RunSummary       `json:"summary,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// AppendLog adds a timestamped message to the run's progress log.
func (r *Run) AppendLog(msg string) {
	r.Log = append(r.Log, LogEntry{At: time.Now().UTC(), Message: msg})
}
