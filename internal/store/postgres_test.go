package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/promo-scout/internal/model"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresUpsertVenue(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO venues .* ON CONFLICT \(name_key, state\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "Borgata Casino", "borgata casino", "NJ", "New Jersey",
			"", "", "", "reference", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("existing-id", now))

	v, err := s.UpsertVenue(context.Background(), model.Venue{
		Name: "Borgata Casino", State: "NJ", StateName: "New Jersey", Origin: model.OriginReference,
	})
	require.NoError(t, err)
	assert.Equal(t, "existing-id", v.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListVenues(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .* FROM venues WHERE true AND state = \$1 ORDER BY name_key`).
		WithArgs("NJ").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "state", "state_name", "website", "license_number", "city", "origin", "created_at", "updated_at",
		}).AddRow("v1", "Alpha Casino", "NJ", "New Jersey", "", "", "", "reference", now, now))

	venues, err := s.ListVenues(context.Background(), VenueFilter{State: "NJ"})
	require.NoError(t, err)
	require.Len(t, venues, 1)
	assert.Equal(t, "Alpha Casino", venues[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateOffer(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO offers`).
		WithArgs(pgxmock.AnyArg(), "v1", "Alpha Casino", "NJ", "Welcome Bonus", "welcome",
			100.0, 200.0, "", "", "ai_discovered", false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	o, err := s.CreateOffer(context.Background(), model.Offer{
		VenueID: "v1", VenueName: "Alpha Casino", State: "NJ",
		Name: "Welcome Bonus", Type: model.OfferTypeWelcome,
		ExpectedDeposit: 100, ExpectedBonus: 200,
		Origin: model.OriginAIDiscovered,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresImportOffers(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM offers WHERE venue_id = ANY\(\$1\) AND origin = \$2`).
		WithArgs(pgxmock.AnyArg(), "reference").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCopyFrom(pgx.Identifier{"offers"}, []string{
		"id", "venue_id", "venue_name", "state", "name", "type",
		"expected_deposit", "expected_bonus", "description", "terms",
		"origin", "verified", "discovered_at",
	}).WillReturnResult(1)
	mock.ExpectCommit()

	n, err := s.ImportOffers(context.Background(), []model.Offer{
		{VenueID: "v1", VenueName: "Alpha Casino", State: "NJ", Name: "Welcome Bonus", Type: model.OfferTypeWelcome},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunRoundTrip(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "in_progress", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusInProgress, run.Status)

	run.Status = model.RunStatusCompleted
	mock.ExpectExec(`UPDATE runs SET status = \$1, record = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs("completed", pgxmock.AnyArg(), pgxmock.AnyArg(), run.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.SaveRun(context.Background(), run))

	recordJSON, err := json.Marshal(run)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT record FROM runs WHERE id = \$1`).
		WithArgs(run.ID).
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(recordJSON))

	got, err := s.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRunNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT record FROM runs WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestPostgresSaveRunUnknownID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs`).
		WithArgs("failed", pgxmock.AnyArg(), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SaveRun(context.Background(), &model.Run{ID: "missing", Status: model.RunStatusFailed})
	assert.Error(t, err)
}
