package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/promo-scout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS venues (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	name_key       TEXT NOT NULL,
	state          TEXT NOT NULL,
	state_name     TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	license_number TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	origin         TEXT NOT NULL,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_venues_identity ON venues(name_key, state);
CREATE INDEX IF NOT EXISTS idx_venues_state ON venues(state);

CREATE TABLE IF NOT EXISTS offers (
	id               TEXT PRIMARY KEY,
	venue_id         TEXT NOT NULL REFERENCES venues(id),
	venue_name       TEXT NOT NULL,
	state            TEXT NOT NULL,
	name             TEXT NOT NULL,
	type             TEXT NOT NULL,
	expected_deposit REAL NOT NULL DEFAULT 0,
	expected_bonus   REAL NOT NULL DEFAULT 0,
	description      TEXT NOT NULL DEFAULT '',
	terms            TEXT NOT NULL DEFAULT '',
	origin           TEXT NOT NULL,
	verified         INTEGER NOT NULL DEFAULT 0,
	discovered_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_offers_venue ON offers(venue_id);
CREATE INDEX IF NOT EXISTS idx_offers_state ON offers(state);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	record     TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Venues ---

func (s *SQLiteStore) UpsertVenue(ctx context.Context, v model.Venue) (*model.Venue, error) {
	now := time.Now().UTC()
	nameKey := normalizedName(v.Name)

	var existingID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM venues WHERE name_key = ? AND state = ?`,
		nameKey, v.State,
	).Scan(&existingID)

	switch {
	case err == sql.ErrNoRows:
		v.ID = uuid.New().String()
		v.CreatedAt = now
		v.UpdatedAt = now
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO venues (id, name, name_key, state, state_name, website, license_number, city, origin, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID, v.Name, nameKey, v.State, v.StateName, v.Website, v.LicenseNumber, v.City, string(v.Origin), v.CreatedAt, v.UpdatedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: insert venue")
		}
		return &v, nil
	case err != nil:
		return nil, eris.Wrap(err, "sqlite: find venue by identity")
	}

	v.ID = existingID
	v.UpdatedAt = now
	_, err = s.db.ExecContext(ctx,
		`UPDATE venues SET name = ?, state_name = ?, website = ?, license_number = ?, city = ?, origin = ?, updated_at = ?
		 WHERE id = ?`,
		v.Name, v.StateName, v.Website, v.LicenseNumber, v.City, string(v.Origin), v.UpdatedAt, existingID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update venue %s", existingID)
	}
	return &v, nil
}

func (s *SQLiteStore) CreateVenue(ctx context.Context, v model.Venue) (*model.Venue, error) {
	now := time.Now().UTC()
	v.ID = uuid.New().String()
	v.CreatedAt = now
	v.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO venues (id, name, name_key, state, state_name, website, license_number, city, origin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, normalizedName(v.Name), v.State, v.StateName, v.Website, v.LicenseNumber, v.City, string(v.Origin), v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert venue")
	}
	return &v, nil
}

func (s *SQLiteStore) ListVenues(ctx context.Context, filter VenueFilter) ([]model.Venue, error) {
	query := `SELECT id, name, state, state_name, website, license_number, city, origin, created_at, updated_at
	          FROM venues WHERE 1=1`
	var args []any

	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	if filter.Origin != "" {
		query += ` AND origin = ?`
		args = append(args, string(filter.Origin))
	}
	query += ` ORDER BY name_key`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list venues")
	}
	defer rows.Close()

	var venues []model.Venue
	for rows.Next() {
		var v model.Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.State, &v.StateName, &v.Website, &v.LicenseNumber, &v.City, &v.Origin, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan venue")
		}
		venues = append(venues, v)
	}
	return venues, eris.Wrap(rows.Err(), "sqlite: list venues iterate")
}

func (s *SQLiteStore) ImportVenues(ctx context.Context, venues []model.Venue) (int, error) {
	count := 0
	for _, v := range venues {
		if _, err := s.UpsertVenue(ctx, v); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// --- Offers ---

func (s *SQLiteStore) CreateOffer(ctx context.Context, o model.Offer) (*model.Offer, error) {
	o.ID = uuid.New().String()
	if o.DiscoveredAt.IsZero() {
		o.DiscoveredAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO offers (id, venue_id, venue_name, state, name, type, expected_deposit, expected_bonus, description, terms, origin, verified, discovered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.VenueID, o.VenueName, o.State, o.Name, string(o.Type), o.ExpectedDeposit, o.ExpectedBonus,
		o.Description, o.Terms, string(o.Origin), boolToInt(o.Verified), o.DiscoveredAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert offer")
	}
	return &o, nil
}

func (s *SQLiteStore) ListOffers(ctx context.Context, filter OfferFilter) ([]model.Offer, error) {
	query := `SELECT id, venue_id, venue_name, state, name, type, expected_deposit, expected_bonus, description, terms, origin, verified, discovered_at
	          FROM offers WHERE 1=1`
	var args []any

	if filter.VenueID != "" {
		query += ` AND venue_id = ?`
		args = append(args, filter.VenueID)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	if filter.Origin != "" {
		query += ` AND origin = ?`
		args = append(args, string(filter.Origin))
	}
	query += ` ORDER BY discovered_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list offers")
	}
	defer rows.Close()

	var offers []model.Offer
	for rows.Next() {
		var o model.Offer
		var verified int
		if err := rows.Scan(&o.ID, &o.VenueID, &o.VenueName, &o.State, &o.Name, &o.Type, &o.ExpectedDeposit, &o.ExpectedBonus, &o.Description, &o.Terms, &o.Origin, &verified, &o.DiscoveredAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan offer")
		}
		o.Verified = verified != 0
		offers = append(offers, o)
	}
	return offers, eris.Wrap(rows.Err(), "sqlite: list offers iterate")
}

// ImportOffers replaces the reference offers of every venue present in the
// batch, then inserts the batch. AI-discovered rows are never touched.
func (s *SQLiteStore) ImportOffers(ctx context.Context, offers []model.Offer) (int, error) {
	if len(offers) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import offers begin")
	}
	defer tx.Rollback() //nolint:errcheck

	venueIDs := make(map[string]bool)
	for _, o := range offers {
		venueIDs[o.VenueID] = true
	}
	for venueID := range venueIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM offers WHERE venue_id = ? AND origin = ?`,
			venueID, string(model.OriginReference),
		); err != nil {
			return 0, eris.Wrap(err, "sqlite: clear reference offers")
		}
	}

	now := time.Now().UTC()
	for _, o := range offers {
		id := uuid.New().String()
		discoveredAt := o.DiscoveredAt
		if discoveredAt.IsZero() {
			discoveredAt = now
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO offers (id, venue_id, venue_name, state, name, type, expected_deposit, expected_bonus, description, terms, origin, verified, discovered_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, o.VenueID, o.VenueName, o.State, o.Name, string(o.Type), o.ExpectedDeposit, o.ExpectedBonus,
			o.Description, o.Terms, string(model.OriginReference), boolToInt(o.Verified), discoveredAt,
		); err != nil {
			return 0, eris.Wrap(err, "sqlite: import offer")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import offers commit")
	}
	return len(offers), nil
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context) (*model.Run, error) {
	now := time.Now().UTC()
	run := &model.Run{
		ID:        uuid.New().String(),
		Status:    model.RunStatusInProgress,
		StartedAt: now,
	}

	recordJSON, err := json.Marshal(run)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal run")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, record, started_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), string(recordJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

// SaveRun replaces the whole stored run document so pollers always read a
// consistent snapshot.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	recordJSON, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, record = ?, updated_at = ? WHERE id = ?`,
		string(run.Status), string(recordJSON), time.Now().UTC(), run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save run %s", run.ID)
	}
	return checkRowsAffected(res, run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var recordJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM runs WHERE id = ?`,
		runID,
	).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	var run model.Run
	if err := json.Unmarshal([]byte(recordJSON), &run); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run")
	}
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT record FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		var run model.Run
		if err := json.Unmarshal([]byte(recordJSON), &run); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run")
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func normalizedName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("run not found: %s", id)
	}
	return nil
}
