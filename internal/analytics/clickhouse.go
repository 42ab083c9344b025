package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/adcasthq/adcast/internal/models"
)

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = fmt.Errorf("analytics unavailable")

// AnalyticsService records allocation engine events for reporting.
// Implementations should return ErrUnavailable when the underlying storage
// is not configured rather than failing the calling request.
type AnalyticsService interface {
	// RecordAllocationRun records the outcome of one bulk allocation run.
	RecordAllocationRun(ctx context.Context, runID string, input models.BulkAllocationInput, result *models.AllocationResult) error
	// RecordAvailabilityCheck records a single availability check outcome.
	RecordAvailabilityCheck(ctx context.Context, showID int, date time.Time, pt models.PlacementType, status models.AvailabilityStatus) error
}

// Analytics wraps a ClickHouse DB connection.
type Analytics struct {
	DB *sql.DB
}

var _ AnalyticsService = (*Analytics)(nil)

// InitClickHouse connects to ClickHouse and ensures the event tables exist.
func InitClickHouse(dsn string) (*Analytics, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(25)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	create := `CREATE TABLE IF NOT EXISTS allocation_events (
       timestamp     DateTime,
       event_type    String,
       run_id        String,
       advertiser_id Int32,
       campaign_id   Int32,
       strategy      String,
       show_id       Nullable(Int32),
       air_date      Nullable(Date),
       placement_type Nullable(String),
       requested     Int32,
       placed        Int32,
       conflicts     Int32,
       available     UInt8,
       conflict_kind Nullable(String)
   ) ENGINE=MergeTree() ORDER BY (event_type, timestamp)`
	if _, err := db.ExecContext(context.Background(), create); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	return &Analytics{DB: db}, nil
}

// RecordAllocationRun inserts one summary row per allocation run.
func (a *Analytics) RecordAllocationRun(ctx context.Context, runID string, input models.BulkAllocationInput, result *models.AllocationResult) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	_, err := a.DB.ExecContext(ctx,
		`INSERT INTO allocation_events
		 (timestamp, event_type, run_id, advertiser_id, campaign_id, strategy, requested, placed, conflicts, available)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now(), "allocation_run", runID,
		int32(input.AdvertiserID), int32(input.CampaignID), string(input.Fallback),
		int32(input.SpotsRequested), int32(result.Summary.Placeable), int32(len(result.Conflicts)), uint8(0))
	if err != nil {
		return fmt.Errorf("insert allocation run event: %w", err)
	}
	return nil
}

// RecordAvailabilityCheck inserts one row per availability check.
func (a *Analytics) RecordAvailabilityCheck(ctx context.Context, showID int, date time.Time, pt models.PlacementType, status models.AvailabilityStatus) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	var kind sql.NullString
	if status.Conflict != nil {
		kind.String = string(status.Conflict.Kind)
		kind.Valid = true
	}
	available := uint8(0)
	if status.Available {
		available = 1
	}
	_, err := a.DB.ExecContext(ctx,
		`INSERT INTO allocation_events
		 (timestamp, event_type, run_id, advertiser_id, campaign_id, strategy, show_id, air_date, placement_type, requested, placed, conflicts, available, conflict_kind)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now(), "availability_check", "", int32(0), int32(0), "",
		int32(showID), models.DateOnly(date), string(pt),
		int32(0), int32(0), int32(0), available, kind)
	if err != nil {
		return fmt.Errorf("insert availability check event: %w", err)
	}
	return nil
}
