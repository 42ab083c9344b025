package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/adcasthq/adcast/internal/allocation"
	"github.com/adcasthq/adcast/internal/db"
	"github.com/adcasthq/adcast/internal/models"
)

// CheckAvailabilityInput asks whether one show/date/placement slot can be
// sold. campaign_id and advertiser_id mark the caller's own holds as
// available rather than conflicting.
type CheckAvailabilityInput struct {
	ShowID        int    `json:"show_id"`
	Date          string `json:"date"`
	PlacementType string `json:"placement_type"`
	CampaignID    int    `json:"campaign_id,omitempty"`
	AdvertiserID  int    `json:"advertiser_id,omitempty"`
}

type AllocateSpotsInput struct {
	AdvertiserID               int      `json:"advertiser_id"`
	CampaignID                 int      `json:"campaign_id"`
	ShowIDs                    []int    `json:"show_ids"`
	StartDate                  string   `json:"start_date"`
	EndDate                    string   `json:"end_date"`
	Weekdays                   []int    `json:"weekdays,omitempty"`
	PlacementTypes             []string `json:"placement_types"`
	SpotsRequested             int      `json:"spots_requested"`
	SpotsPerWeek               int      `json:"spots_per_week,omitempty"`
	AllowMultiplePerShowPerDay bool     `json:"allow_multiple_per_show_per_day,omitempty"`
	MaxPerShowPerDay           int      `json:"max_per_show_per_day,omitempty"`
	FallbackStrategy           string   `json:"fallback_strategy,omitempty"`
}

// InventoryServer holds the tool dependencies.
type InventoryServer struct {
	store     models.InventoryStore
	resolver  *allocation.Resolver
	allocator *allocation.Allocator
	logger    *zap.Logger
}

// CheckAvailability implements the check_availability tool.
func (s *InventoryServer) CheckAvailability(ctx context.Context, req *mcp.CallToolRequest, input CheckAvailabilityInput) (*mcp.CallToolResult, models.AvailabilityStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	date, err := time.Parse("2006-01-02", input.Date)
	if err != nil {
		return nil, models.AvailabilityStatus{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", input.Date)
	}
	pt, err := models.ParsePlacementType(input.PlacementType)
	if err != nil {
		return nil, models.AvailabilityStatus{}, err
	}

	status, err := s.resolver.CheckAvailability(ctx, input.ShowID, date, pt, allocation.CheckOptions{
		CampaignID:   input.CampaignID,
		AdvertiserID: input.AdvertiserID,
	})
	if err != nil {
		return nil, models.AvailabilityStatus{}, err
	}

	s.logger.Info("check_availability served",
		zap.Int("show_id", input.ShowID),
		zap.String("date", input.Date),
		zap.String("placement_type", string(pt)),
		zap.Bool("available", status.Available))
	return nil, status, nil
}

// AllocateSpots implements the allocate_spots tool. The result is a preview
// plan; nothing is booked.
func (s *InventoryServer) AllocateSpots(ctx context.Context, req *mcp.CallToolRequest, input AllocateSpotsInput) (*mcp.CallToolResult, *models.AllocationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if len(input.ShowIDs) == 0 {
		return nil, nil, fmt.Errorf("show_ids is required")
	}
	if input.SpotsRequested <= 0 {
		return nil, nil, fmt.Errorf("spots_requested must be positive")
	}
	start, err := time.Parse("2006-01-02", input.StartDate)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid start_date %q, expected YYYY-MM-DD", input.StartDate)
	}
	end, err := time.Parse("2006-01-02", input.EndDate)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid end_date %q, expected YYYY-MM-DD", input.EndDate)
	}
	types, err := models.ParsePlacementTypes(input.PlacementTypes)
	if err != nil {
		return nil, nil, err
	}
	strategy, err := models.ParseFallbackStrategy(input.FallbackStrategy)
	if err != nil {
		return nil, nil, err
	}
	weekdays := make([]time.Weekday, 0, len(input.Weekdays))
	for _, wd := range input.Weekdays {
		if wd < 0 || wd > 6 {
			return nil, nil, fmt.Errorf("invalid weekday %d, must be 0-6", wd)
		}
		weekdays = append(weekdays, time.Weekday(wd))
	}
	if len(weekdays) == 0 {
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			weekdays = append(weekdays, wd)
		}
	}

	shows := make(map[int]models.Show, len(input.ShowIDs))
	for _, showID := range input.ShowIDs {
		show, err := s.store.GetShow(ctx, showID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, nil, fmt.Errorf("show lookup failed: %w", err)
		}
		shows[showID] = *show
	}

	result, err := s.allocator.AllocateBulkSpots(ctx, models.BulkAllocationInput{
		AdvertiserID:               input.AdvertiserID,
		CampaignID:                 input.CampaignID,
		ShowIDs:                    input.ShowIDs,
		StartDate:                  start,
		EndDate:                    end,
		Weekdays:                   weekdays,
		PlacementTypes:             types,
		SpotsRequested:             input.SpotsRequested,
		SpotsPerWeek:               input.SpotsPerWeek,
		AllowMultiplePerShowPerDay: input.AllowMultiplePerShowPerDay,
		MaxPerShowPerDay:           input.MaxPerShowPerDay,
		Fallback:                   strategy,
	}, shows)
	if err != nil {
		return nil, nil, err
	}
	result.RunID = uuid.New().String()

	s.logger.Info("allocate_spots served",
		zap.String("run_id", result.RunID),
		zap.Int("requested", input.SpotsRequested),
		zap.Int("placed", result.Summary.Placeable))
	return nil, result, nil
}

func main() {
	// Logs must stay off stdout, which carries the MCP stdio protocol.
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.NameKey = "logger"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"

	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("adcast-mcp").With(zap.String("service", "adcast-mcp"))

	logger.Info("Starting AdCast MCP Server")

	// With POSTGRES_DSN set we serve live inventory. Without it we run in
	// offline mode against a seeded demo catalog, which is enough to
	// exercise the tools from an MCP client.
	var store models.InventoryStore
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		pg, err := db.InitPostgres(dsn, 10, 5, 30*time.Minute, time.Minute)
		if err != nil {
			logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		defer pg.Close()
		shows, err := pg.LoadShows(context.Background())
		if err != nil {
			logger.Fatal("Failed to load show catalog", zap.Error(err))
		}
		logger.Info("Connected to PostgreSQL", zap.Int("shows", len(shows)))
		store = pg
	} else {
		logger.Info("POSTGRES_DSN not set, running offline with demo inventory")
		store = demoInventory()
	}

	resolver := allocation.NewResolver(store, logger)
	srv := &InventoryServer{
		store:     store,
		resolver:  resolver,
		allocator: allocation.NewAllocator(resolver, logger),
		logger:    logger,
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "adcast",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_availability",
		Description: "Check whether a podcast ad slot is available for a show, date, and placement type",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"show_id": map[string]interface{}{
					"type":        "integer",
					"description": "Show ID to check",
				},
				"date": map[string]interface{}{
					"type":        "string",
					"format":      "date",
					"description": "Air date (YYYY-MM-DD)",
				},
				"placement_type": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"pre_roll", "mid_roll", "post_roll"},
					"description": "Placement type within the episode",
				},
				"campaign_id": map[string]interface{}{
					"type":        "integer",
					"description": "Campaign whose own holds count as available (optional)",
				},
				"advertiser_id": map[string]interface{}{
					"type":        "integer",
					"description": "Advertiser whose own holds count as available (optional)",
				},
			},
			"required": []string{"show_id", "date", "placement_type"},
		},
	}, srv.CheckAvailability)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "allocate_spots",
		Description: "Preview a bulk spot allocation across shows, dates, and placement types",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"advertiser_id": map[string]interface{}{
					"type":        "integer",
					"description": "Advertiser the spots are for",
				},
				"campaign_id": map[string]interface{}{
					"type":        "integer",
					"description": "Campaign the spots are for",
				},
				"show_ids": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "integer"},
					"description": "Candidate shows, in priority order",
				},
				"start_date": map[string]interface{}{
					"type":        "string",
					"format":      "date",
					"description": "First candidate air date (YYYY-MM-DD)",
				},
				"end_date": map[string]interface{}{
					"type":        "string",
					"format":      "date",
					"description": "Last candidate air date (YYYY-MM-DD)",
				},
				"weekdays": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 6},
					"description": "Weekday filter, 0=Sunday through 6=Saturday (optional, all days if omitted)",
				},
				"placement_types": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string", "enum": []string{"pre_roll", "mid_roll", "post_roll"}},
					"description": "Placement types to spread spots across",
				},
				"spots_requested": map[string]interface{}{
					"type":        "integer",
					"minimum":     1,
					"description": "Total number of spots to place",
				},
				"spots_per_week": map[string]interface{}{
					"type":        "integer",
					"description": "Weekly pacing cap (optional, derived from the date range if omitted)",
				},
				"allow_multiple_per_show_per_day": map[string]interface{}{
					"type":        "boolean",
					"description": "Allow more than one spot on the same show and day",
				},
				"max_per_show_per_day": map[string]interface{}{
					"type":        "integer",
					"description": "Per-show daily cap when multiples are allowed",
				},
				"fallback_strategy": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"strict", "relaxed", "fill_anywhere"},
					"description": "How to handle quota overflow (optional, defaults to relaxed)",
				},
			},
			"required": []string{"show_ids", "start_date", "end_date", "placement_types", "spots_requested"},
		},
	}, srv.AllocateSpots)

	stdioTransport := &mcp.StdioTransport{}

	var logBuffer bytes.Buffer
	loggingTransport := &mcp.LoggingTransport{
		Transport: stdioTransport,
		Writer:    &logBuffer,
	}

	logger.Info("MCP Server running via stdio")

	if err := server.Run(context.Background(), loggingTransport); err != nil {
		logger.Fatal("Server error", zap.Error(err), zap.String("mcp_logs", logBuffer.String()))
	}
}

// demoInventory seeds two shows with four weeks of weekday episodes so the
// tools work without a database.
func demoInventory() *models.InMemoryInventoryStore {
	store := models.NewInMemoryInventoryStore()

	store.AddShow(models.Show{
		ID: 1, Name: "Morning Signal", PublisherID: 1, Active: true,
		PlacementTypes: models.AllPlacementTypes(),
	})
	store.AddShow(models.Show{
		ID: 2, Name: "The Deep Dive", PublisherID: 1, Active: true,
		PlacementTypes: models.AllPlacementTypes(),
	})

	slots := func(total int) models.SlotCounts {
		return models.SlotCounts{Total: total, Available: total}
	}

	epID := 1
	start := models.DateOnly(time.Now().UTC())
	for day := 0; day < 28; day++ {
		date := start.AddDate(0, 0, day)
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		for showID := 1; showID <= 2; showID++ {
			store.AddEpisode(
				models.Episode{ID: epID, ShowID: showID, AirDate: date, Status: "scheduled"},
				models.EpisodeInventory{PreRoll: slots(1), MidRoll: slots(2), PostRoll: slots(1)},
			)
			epID++
		}
	}

	store.AddRateCard(models.RateCard{
		ID: 1, ShowID: 1, EffectiveDate: start.AddDate(0, -1, 0),
		PreRollRate: 250, MidRollRate: 400, PostRollRate: 150,
	})
	store.AddRateCard(models.RateCard{
		ID: 2, ShowID: 2, EffectiveDate: start.AddDate(0, -1, 0),
		PreRollRate: 500, MidRollRate: 750, PostRollRate: 300,
	})

	return store
}
