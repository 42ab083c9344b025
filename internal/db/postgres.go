package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/adcasthq/adcast/internal/models"
)

// Postgres wraps the booking database connection. The allocation engine
// only reads through it; writes belong to the booking subsystem.
type Postgres struct {
	DB *sql.DB
}

var _ models.InventoryStore = (*Postgres)(nil)

// schemaSQL sets up the necessary tables if they don't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS shows (
    id SERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    publisher_id INT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    placement_types TEXT[]
);

CREATE TABLE IF NOT EXISTS episodes (
    id SERIAL PRIMARY KEY,
    show_id INT REFERENCES shows(id),
    air_date DATE NOT NULL,
    status TEXT NOT NULL DEFAULT 'scheduled',
    UNIQUE (show_id, air_date)
);

CREATE TABLE IF NOT EXISTS episode_inventory (
    episode_id INT PRIMARY KEY REFERENCES episodes(id),
    pre_roll_total INT NOT NULL DEFAULT 0,
    pre_roll_available INT NOT NULL DEFAULT 0,
    pre_roll_reserved INT NOT NULL DEFAULT 0,
    pre_roll_booked INT NOT NULL DEFAULT 0,
    mid_roll_total INT NOT NULL DEFAULT 0,
    mid_roll_available INT NOT NULL DEFAULT 0,
    mid_roll_reserved INT NOT NULL DEFAULT 0,
    mid_roll_booked INT NOT NULL DEFAULT 0,
    post_roll_total INT NOT NULL DEFAULT 0,
    post_roll_available INT NOT NULL DEFAULT 0,
    post_roll_reserved INT NOT NULL DEFAULT 0,
    post_roll_booked INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS reservations (
    id SERIAL PRIMARY KEY,
    campaign_id INT,
    advertiser_id INT,
    holder_name TEXT,
    status TEXT NOT NULL,
    expires_at TIMESTAMP NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS reservation_items (
    id SERIAL PRIMARY KEY,
    reservation_id INT REFERENCES reservations(id),
    episode_id INT REFERENCES episodes(id),
    placement_type TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scheduled_spots (
    id SERIAL PRIMARY KEY,
    show_id INT REFERENCES shows(id),
    episode_id INT REFERENCES episodes(id),
    air_date DATE NOT NULL,
    placement_type TEXT NOT NULL,
    campaign_id INT
);

CREATE TABLE IF NOT EXISTS rate_cards (
    id SERIAL PRIMARY KEY,
    show_id INT REFERENCES shows(id),
    effective_date DATE NOT NULL,
    pre_roll_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    mid_roll_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    post_roll_rate DOUBLE PRECISION NOT NULL DEFAULT 0
);

-- Indexes for the resolver's hot lookups
CREATE INDEX IF NOT EXISTS idx_episodes_show_date ON episodes (show_id, air_date);
CREATE INDEX IF NOT EXISTS idx_reservation_items_episode ON reservation_items (episode_id, placement_type);
CREATE INDEX IF NOT EXISTS idx_scheduled_spots_show_date ON scheduled_spots (show_id, air_date);
CREATE INDEX IF NOT EXISTS idx_rate_cards_show_date ON rate_cards (show_id, effective_date);
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	// Register the otelsql wrapper for postgres
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.connection_string", dsn),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

// ensureSchema creates the required tables if they do not exist.
func (p *Postgres) ensureSchema() error {
	if _, err := p.DB.ExecContext(context.Background(), schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// GetShow fetches one show by ID.
func (p *Postgres) GetShow(ctx context.Context, showID int) (*models.Show, error) {
	var s models.Show
	var rawTypes []string
	err := p.DB.QueryRowContext(ctx,
		`SELECT id, name, publisher_id, active, placement_types FROM shows WHERE id=$1`,
		showID).Scan(&s.ID, &s.Name, &s.PublisherID, &s.Active, pq.Array(&rawTypes))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query show %d: %w", showID, err)
	}
	types, err := models.ParsePlacementTypes(rawTypes)
	if err != nil {
		return nil, fmt.Errorf("show %d placement types: %w", showID, err)
	}
	s.PlacementTypes = types
	return &s, nil
}

// LoadShows fetches all active shows.
func (p *Postgres) LoadShows(ctx context.Context) ([]models.Show, error) {
	rows, err := p.DB.QueryContext(ctx,
		`SELECT id, name, publisher_id, active, placement_types FROM shows WHERE active`)
	if err != nil {
		return nil, fmt.Errorf("query shows: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var shows []models.Show
	for rows.Next() {
		var s models.Show
		var rawTypes []string
		if err := rows.Scan(&s.ID, &s.Name, &s.PublisherID, &s.Active, pq.Array(&rawTypes)); err != nil {
			return nil, fmt.Errorf("scan show: %w", err)
		}
		types, err := models.ParsePlacementTypes(rawTypes)
		if err != nil {
			return nil, fmt.Errorf("show %d placement types: %w", s.ID, err)
		}
		s.PlacementTypes = types
		shows = append(shows, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return shows, nil
}

// GetEpisode resolves the episode for a show and air date.
func (p *Postgres) GetEpisode(ctx context.Context, showID int, airDate time.Time) (*models.Episode, error) {
	var ep models.Episode
	err := p.DB.QueryRowContext(ctx,
		`SELECT id, show_id, air_date, status FROM episodes WHERE show_id=$1 AND air_date=$2`,
		showID, models.DateOnly(airDate)).Scan(&ep.ID, &ep.ShowID, &ep.AirDate, &ep.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query episode: %w", err)
	}
	ep.AirDate = models.DateOnly(ep.AirDate)
	return &ep, nil
}

// GetEpisodeInventory fetches the slot ledger for an episode.
func (p *Postgres) GetEpisodeInventory(ctx context.Context, episodeID int) (*models.EpisodeInventory, error) {
	inv := models.EpisodeInventory{EpisodeID: episodeID}
	err := p.DB.QueryRowContext(ctx,
		`SELECT pre_roll_total, pre_roll_available, pre_roll_reserved, pre_roll_booked,
		        mid_roll_total, mid_roll_available, mid_roll_reserved, mid_roll_booked,
		        post_roll_total, post_roll_available, post_roll_reserved, post_roll_booked
		 FROM episode_inventory WHERE episode_id=$1`, episodeID).Scan(
		&inv.PreRoll.Total, &inv.PreRoll.Available, &inv.PreRoll.Reserved, &inv.PreRoll.Booked,
		&inv.MidRoll.Total, &inv.MidRoll.Available, &inv.MidRoll.Reserved, &inv.MidRoll.Booked,
		&inv.PostRoll.Total, &inv.PostRoll.Available, &inv.PostRoll.Reserved, &inv.PostRoll.Booked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query episode inventory %d: %w", episodeID, err)
	}
	return &inv, nil
}

// GetActiveReservation finds a non-expired hold covering the episode and
// placement type. The oldest active hold wins when several overlap.
func (p *Postgres) GetActiveReservation(ctx context.Context, episodeID int, pt models.PlacementType, now time.Time) (*models.ReservationHold, error) {
	var h models.ReservationHold
	var holder sql.NullString
	var expires sql.NullTime
	var campaignID, advertiserID sql.NullInt64
	err := p.DB.QueryRowContext(ctx,
		`SELECT r.id, ri.episode_id, ri.placement_type, r.campaign_id, r.advertiser_id,
		        r.holder_name, r.status, r.expires_at
		 FROM reservation_items ri
		 JOIN reservations r ON r.id = ri.reservation_id
		 WHERE ri.episode_id=$1 AND ri.placement_type=$2
		   AND r.status IN ('held','pending','confirmed')
		   AND (r.expires_at IS NULL OR r.expires_at > $3)
		 ORDER BY r.created_at
		 LIMIT 1`, episodeID, string(pt), now).Scan(
		&h.ReservationID, &h.EpisodeID, &h.PlacementType, &campaignID, &advertiserID,
		&holder, &h.Status, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query reservation: %w", err)
	}
	if campaignID.Valid {
		h.CampaignID = int(campaignID.Int64)
	}
	if advertiserID.Valid {
		h.AdvertiserID = int(advertiserID.Int64)
	}
	if holder.Valid {
		h.HolderName = holder.String
	}
	if expires.Valid {
		t := expires.Time
		h.ExpiresAt = &t
	}
	return &h, nil
}

// CountScheduledSpots counts committed spots for a show/day across all
// placement types.
func (p *Postgres) CountScheduledSpots(ctx context.Context, showID int, airDate time.Time) (int, error) {
	var n int
	err := p.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scheduled_spots WHERE show_id=$1 AND air_date=$2`,
		showID, models.DateOnly(airDate)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count scheduled spots: %w", err)
	}
	return n, nil
}

// CountScheduledSpotsByType counts committed spots for a show/day and one
// placement type.
func (p *Postgres) CountScheduledSpotsByType(ctx context.Context, showID int, airDate time.Time, pt models.PlacementType) (int, error) {
	var n int
	err := p.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scheduled_spots WHERE show_id=$1 AND air_date=$2 AND placement_type=$3`,
		showID, models.DateOnly(airDate), string(pt)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count scheduled spots by type: %w", err)
	}
	return n, nil
}

// GetRateCard returns the rate card entry effective at onDate.
func (p *Postgres) GetRateCard(ctx context.Context, showID int, onDate time.Time) (*models.RateCard, error) {
	var rc models.RateCard
	err := p.DB.QueryRowContext(ctx,
		`SELECT id, show_id, effective_date, pre_roll_rate, mid_roll_rate, post_roll_rate
		 FROM rate_cards WHERE show_id=$1 AND effective_date <= $2
		 ORDER BY effective_date DESC LIMIT 1`,
		showID, models.DateOnly(onDate)).Scan(
		&rc.ID, &rc.ShowID, &rc.EffectiveDate, &rc.PreRollRate, &rc.MidRollRate, &rc.PostRollRate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query rate card: %w", err)
	}
	rc.EffectiveDate = models.DateOnly(rc.EffectiveDate)
	return &rc, nil
}
