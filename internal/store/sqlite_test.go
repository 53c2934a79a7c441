package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/promo-scout/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteVenueUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.UpsertVenue(ctx, model.Venue{
		Name:   "Borgata Casino",
		State:  "NJ",
		Origin: model.OriginReference,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	// Same identity with different casing updates in place.
	updated, err := s.UpsertVenue(ctx, model.Venue{
		Name:    "  borgata casino ",
		State:   "NJ",
		Website: "https://casino.borgataonline.com",
		Origin:  model.OriginAIDiscovered,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	venues, err := s.ListVenues(ctx, VenueFilter{State: "NJ"})
	require.NoError(t, err)
	require.Len(t, venues, 1)
	assert.Equal(t, "https://casino.borgataonline.com", venues[0].Website)

	// Same name in a different state is a distinct venue.
	other, err := s.UpsertVenue(ctx, model.Venue{
		Name:   "Borgata Casino",
		State:  "PA",
		Origin: model.OriginReference,
	})
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, other.ID)
}

func TestSQLiteListVenuesFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, v := range []model.Venue{
		{Name: "Alpha Casino", State: "NJ", Origin: model.OriginReference},
		{Name: "Beta Casino", State: "NJ", Origin: model.OriginAIDiscovered},
		{Name: "Gamma Casino", State: "MI", Origin: model.OriginReference},
	} {
		_, err := s.UpsertVenue(ctx, v)
		require.NoError(t, err)
	}

	all, err := s.ListVenues(ctx, VenueFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	nj, err := s.ListVenues(ctx, VenueFilter{State: "NJ"})
	require.NoError(t, err)
	assert.Len(t, nj, 2)

	discovered, err := s.ListVenues(ctx, VenueFilter{Origin: model.OriginAIDiscovered})
	require.NoError(t, err)
	require.Len(t, discovered, 1)
	assert.Equal(t, "Beta Casino", discovered[0].Name)
}

func TestSQLiteOffersAlwaysInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	venue, err := s.UpsertVenue(ctx, model.Venue{Name: "Alpha Casino", State: "NJ", Origin: model.OriginReference})
	require.NoError(t, err)

	offer := model.Offer{
		VenueID:       venue.ID,
		VenueName:     venue.Name,
		State:         "NJ",
		Name:          "Welcome Bonus",
		Type:          model.OfferTypeWelcome,
		ExpectedBonus: 100,
		Origin:        model.OriginAIDiscovered,
	}
	_, err = s.CreateOffer(ctx, offer)
	require.NoError(t, err)
	_, err = s.CreateOffer(ctx, offer)
	require.NoError(t, err)

	// No uniqueness on offers. Repeated discovery accumulates.
	offers, err := s.ListOffers(ctx, OfferFilter{VenueID: venue.ID})
	require.NoError(t, err)
	assert.Len(t, offers, 2)
}

func TestSQLiteImportOffersReplacesReference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	venue, err := s.UpsertVenue(ctx, model.Venue{Name: "Alpha Casino", State: "NJ", Origin: model.OriginReference})
	require.NoError(t, err)

	_, err = s.ImportOffers(ctx, []model.Offer{
		{VenueID: venue.ID, VenueName: venue.Name, State: "NJ", Name: "Old Offer", Type: model.OfferTypeWelcome},
	})
	require.NoError(t, err)

	// Discovered offers must survive a reference re-import.
	_, err = s.CreateOffer(ctx, model.Offer{
		VenueID: venue.ID, VenueName: venue.Name, State: "NJ",
		Name: "Found Offer", Type: model.OfferTypeLossback, Origin: model.OriginAIDiscovered,
	})
	require.NoError(t, err)

	n, err := s.ImportOffers(ctx, []model.Offer{
		{VenueID: venue.ID, VenueName: venue.Name, State: "NJ", Name: "New Offer", Type: model.OfferTypeDepositMatch},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	offers, err := s.ListOffers(ctx, OfferFilter{VenueID: venue.ID})
	require.NoError(t, err)
	require.Len(t, offers, 2)

	names := []string{offers[0].Name, offers[1].Name}
	assert.Contains(t, names, "New Offer")
	assert.Contains(t, names, "Found Offer")
	assert.NotContains(t, names, "Old Offer")
}

func TestSQLiteImportVenues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.ImportVenues(ctx, []model.Venue{
		{Name: "Alpha Casino", State: "NJ", Origin: model.OriginReference},
		{Name: "Beta Casino", State: "NJ", Origin: model.OriginReference},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-import is idempotent on identity.
	n, err = s.ImportVenues(ctx, []model.Venue{
		{Name: "alpha casino", State: "NJ", Website: "https://alpha.example.com", Origin: model.OriginReference},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	venues, err := s.ListVenues(ctx, VenueFilter{State: "NJ"})
	require.NoError(t, err)
	assert.Len(t, venues, 2)
}

func TestSQLiteRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusInProgress, run.Status)
	assert.NotEmpty(t, run.ID)

	run.CurrentState = "NJ"
	run.AppendLog("Researching New Jersey")
	run.MissingVenues = append(run.MissingVenues, model.MissingVenues{
		State: "NJ", StateName: "New Jersey", Casinos: []string{"Ghost Casino"},
	})
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "NJ", got.CurrentState)
	require.Len(t, got.Log, 1)
	assert.Equal(t, "Researching New Jersey", got.Log[0].Message)
	require.Len(t, got.MissingVenues, 1)
	assert.Equal(t, []string{"Ghost Casino"}, got.MissingVenues[0].Casinos)
}

func TestSQLiteGetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLiteSaveRunUnknownID(t *testing.T) {
	s := newTestStore(t)

	err := s.SaveRun(context.Background(), &model.Run{ID: "missing", Status: model.RunStatusCompleted})
	assert.Error(t, err)
}

func TestSQLiteListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateRun(ctx)
	require.NoError(t, err)
	second, err := s.CreateRun(ctx)
	require.NoError(t, err)

	first.Status = model.RunStatusCompleted
	require.NoError(t, s.SaveRun(ctx, first))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	completed, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, first.ID, completed[0].ID)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	_ = second
}
