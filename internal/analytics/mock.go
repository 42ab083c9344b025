package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/adcasthq/adcast/internal/models"
)

var _ AnalyticsService = (*MockAnalytics)(nil)

// MockAnalytics records events in memory for testing.
type MockAnalytics struct {
	mu                 sync.Mutex
	AllocationRuns     []string
	AvailabilityChecks int
}

// NewMockAnalytics creates a new mock analytics instance
func NewMockAnalytics() *MockAnalytics {
	return &MockAnalytics{}
}

func (m *MockAnalytics) RecordAllocationRun(ctx context.Context, runID string, input models.BulkAllocationInput, result *models.AllocationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AllocationRuns = append(m.AllocationRuns, runID)
	return nil
}

func (m *MockAnalytics) RecordAvailabilityCheck(ctx context.Context, showID int, date time.Time, pt models.PlacementType, status models.AvailabilityStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AvailabilityChecks++
	return nil
}
