package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/promo-scout/internal/db"
	"github.com/sells-group/promo-scout/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection for the
// hottest store operations (the run loop hits these constantly).
var preparedStatements = map[string]string{
	"insert_venue": `INSERT INTO venues (id, name, name_key, state, state_name, website, license_number, city, origin, created_at, updated_at)
	                 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"insert_offer": `INSERT INTO offers (id, venue_id, venue_name, state, name, type, expected_deposit, expected_bonus, description, terms, origin, verified, discovered_at)
	                 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
	"save_run": `UPDATE runs SET status = $1, record = $2, updated_at = $3 WHERE id = $4`,
	"get_run":  `SELECT record FROM runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	if minConns <= 0 {
		minConns = 2
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
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
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
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
	expected_deposit DOUBLE PRECISION NOT NULL DEFAULT 0,
	expected_bonus   DOUBLE PRECISION NOT NULL DEFAULT 0,
	description      TEXT NOT NULL DEFAULT '',
	terms            TEXT NOT NULL DEFAULT '',
	origin           TEXT NOT NULL,
	verified         BOOLEAN NOT NULL DEFAULT false,
	discovered_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_offers_venue ON offers(venue_id);
CREATE INDEX IF NOT EXISTS idx_offers_state ON offers(state);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	record     JSONB NOT NULL,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Venues ---

func (s *PostgresStore) UpsertVenue(ctx context.Context, v model.Venue) (*model.Venue, error) {
	now := time.Now().UTC()
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	v.CreatedAt = now
	v.UpdatedAt = now

	// Re-read the id so the caller always sees the stored row's identity.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO venues (id, name, name_key, state, state_name, website, license_number, city, origin, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (name_key, state) DO UPDATE SET
		   name = EXCLUDED.name, state_name = EXCLUDED.state_name, website = EXCLUDED.website,
		   license_number = EXCLUDED.license_number, city = EXCLUDED.city, origin = EXCLUDED.origin,
		   updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at`,
		v.ID, v.Name, normalizedName(v.Name), v.State, v.StateName, v.Website, v.LicenseNumber, v.City, string(v.Origin), now, now,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: upsert venue")
	}
	return &v, nil
}

func (s *PostgresStore) CreateVenue(ctx context.Context, v model.Venue) (*model.Venue, error) {
	now := time.Now().UTC()
	v.ID = uuid.New().String()
	v.CreatedAt = now
	v.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO venues (id, name, name_key, state, state_name, website, license_number, city, origin, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		v.ID, v.Name, normalizedName(v.Name), v.State, v.StateName, v.Website, v.LicenseNumber, v.City, string(v.Origin), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert venue")
	}
	return &v, nil
}

func (s *PostgresStore) ListVenues(ctx context.Context, filter VenueFilter) ([]model.Venue, error) {
	query := `SELECT id, name, state, state_name, website, license_number, city, origin, created_at, updated_at
	          FROM venues WHERE true`
	args := []any{}
	argIdx := 1

	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, filter.State)
		argIdx++
	}
	if filter.Origin != "" {
		query += fmt.Sprintf(` AND origin = $%d`, argIdx)
		args = append(args, string(filter.Origin))
	}
	query += ` ORDER BY name_key`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list venues")
	}
	defer rows.Close()

	var venues []model.Venue
	for rows.Next() {
		var v model.Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.State, &v.StateName, &v.Website, &v.LicenseNumber, &v.City, &v.Origin, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan venue")
		}
		venues = append(venues, v)
	}
	return venues, eris.Wrap(rows.Err(), "postgres: list venues iterate")
}

// ImportVenues bulk-upserts reference venues keyed on their identity.
func (s *PostgresStore) ImportVenues(ctx context.Context, venues []model.Venue) (int, error) {
	if len(venues) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, len(venues))
	for i, v := range venues {
		id := v.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows[i] = []any{
			id, v.Name, normalizedName(v.Name), v.State, v.StateName,
			v.Website, v.LicenseNumber, v.City, string(v.Origin), now, now,
		}
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "venues",
		Columns: []string{
			"id", "name", "name_key", "state", "state_name",
			"website", "license_number", "city", "origin", "created_at", "updated_at",
		},
		ConflictKeys: []string{"name_key", "state"},
		UpdateCols: []string{
			"name", "state_name", "website", "license_number", "city", "origin", "updated_at",
		},
	}, rows)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// --- Offers ---

func (s *PostgresStore) CreateOffer(ctx context.Context, o model.Offer) (*model.Offer, error) {
	o.ID = uuid.New().String()
	if o.DiscoveredAt.IsZero() {
		o.DiscoveredAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO offers (id, venue_id, venue_name, state, name, type, expected_deposit, expected_bonus, description, terms, origin, verified, discovered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.VenueID, o.VenueName, o.State, o.Name, string(o.Type), o.ExpectedDeposit, o.ExpectedBonus,
		o.Description, o.Terms, string(o.Origin), o.Verified, o.DiscoveredAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert offer")
	}
	return &o, nil
}

func (s *PostgresStore) ListOffers(ctx context.Context, filter OfferFilter) ([]model.Offer, error) {
	query := `SELECT id, venue_id, venue_name, state, name, type, expected_deposit, expected_bonus, description, terms, origin, verified, discovered_at
	          FROM offers WHERE true`
	args := []any{}
	argIdx := 1

	if filter.VenueID != "" {
		query += fmt.Sprintf(` AND venue_id = $%d`, argIdx)
		args = append(args, filter.VenueID)
		argIdx++
	}
	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, filter.State)
		argIdx++
	}
	if filter.Origin != "" {
		query += fmt.Sprintf(` AND origin = $%d`, argIdx)
		args = append(args, string(filter.Origin))
	}
	query += ` ORDER BY discovered_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list offers")
	}
	defer rows.Close()

	var offers []model.Offer
	for rows.Next() {
		var o model.Offer
		if err := rows.Scan(&o.ID, &o.VenueID, &o.VenueName, &o.State, &o.Name, &o.Type, &o.ExpectedDeposit, &o.ExpectedBonus, &o.Description, &o.Terms, &o.Origin, &o.Verified, &o.DiscoveredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan offer")
		}
		offers = append(offers, o)
	}
	return offers, eris.Wrap(rows.Err(), "postgres: list offers iterate")
}

// ImportOffers replaces the reference offers of every venue present in the
// batch, then bulk-inserts the batch via COPY.
func (s *PostgresStore) ImportOffers(ctx context.Context, offers []model.Offer) (int, error) {
	if len(offers) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import offers begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	venueIDs := make(map[string]bool)
	for _, o := range offers {
		venueIDs[o.VenueID] = true
	}
	ids := make([]string, 0, len(venueIDs))
	for id := range venueIDs {
		ids = append(ids, id)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM offers WHERE venue_id = ANY($1) AND origin = $2`,
		ids, string(model.OriginReference),
	); err != nil {
		return 0, eris.Wrap(err, "postgres: clear reference offers")
	}

	now := time.Now().UTC()
	rows := make([][]any, len(offers))
	for i, o := range offers {
		discoveredAt := o.DiscoveredAt
		if discoveredAt.IsZero() {
			discoveredAt = now
		}
		rows[i] = []any{
			uuid.New().String(), o.VenueID, o.VenueName, o.State, o.Name, string(o.Type),
			o.ExpectedDeposit, o.ExpectedBonus, o.Description, o.Terms,
			string(model.OriginReference), o.Verified, discoveredAt,
		}
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"offers"},
		[]string{"id", "venue_id", "venue_name", "state", "name", "type", "expected_deposit", "expected_bonus", "description", "terms", "origin", "verified", "discovered_at"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return 0, eris.Wrap(err, "postgres: COPY offers")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: import offers commit")
	}
	return len(offers), nil
}

// --- Runs ---

func (s *PostgresStore) CreateRun(ctx context.Context) (*model.Run, error) {
	now := time.Now().UTC()
	run := &model.Run{
		ID:        uuid.New().String(),
		Status:    model.RunStatusInProgress,
		StartedAt: now,
	}

	recordJSON, err := json.Marshal(run)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal run")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, record, started_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, string(run.Status), recordJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	recordJSON, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, record = $2, updated_at = $3 WHERE id = $4`,
		string(run.Status), recordJSON, time.Now().UTC(), run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var recordJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM runs WHERE id = $1`,
		runID,
	).Scan(&recordJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	var run model.Run
	if err := json.Unmarshal(recordJSON, &run); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run")
	}
	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT record FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var recordJSON []byte
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		var run model.Run
		if err := json.Unmarshal(recordJSON, &run); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run")
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
