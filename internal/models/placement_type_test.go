package models

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParsePlacementType(t *testing.T) {
	cases := []struct {
		in      string
		want    PlacementType
		wantErr bool
	}{
		{"pre_roll", PlacementPreRoll, false},
		{"pre-roll", PlacementPreRoll, false},
		{"preroll", PlacementPreRoll, false},
		{"Pre Roll", PlacementPreRoll, false},
		{"PRE", PlacementPreRoll, false},
		{"mid_roll", PlacementMidRoll, false},
		{"MidRoll", PlacementMidRoll, false},
		{"mid", PlacementMidRoll, false},
		{"post-roll", PlacementPostRoll, false},
		{"  post_roll  ", PlacementPostRoll, false},
		{"banner", "", true},
		{"", "", true},
		{"prerolls", "", true},
	}

	for _, tc := range cases {
		got, err := ParsePlacementType(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrUnknownPlacementType) {
				t.Errorf("ParsePlacementType(%q): expected ErrUnknownPlacementType, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePlacementType(%q): unexpected error %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParsePlacementType(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseFallbackStrategy(t *testing.T) {
	cases := []struct {
		in      string
		want    FallbackStrategy
		wantErr bool
	}{
		{"", FallbackRelaxed, false},
		{"strict", FallbackStrict, false},
		{"Relaxed", FallbackRelaxed, false},
		{"fill_anywhere", FallbackFillAnywhere, false},
		{"fill-anywhere", FallbackFillAnywhere, false},
		{"FillAnywhere", FallbackFillAnywhere, false},
		{"greedy", "", true},
	}

	for _, tc := range cases {
		got, err := ParseFallbackStrategy(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrUnknownFallbackStrategy) {
				t.Errorf("ParseFallbackStrategy(%q): expected ErrUnknownFallbackStrategy, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFallbackStrategy(%q): unexpected error %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseFallbackStrategy(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSlotCountsRemaining(t *testing.T) {
	cases := []struct {
		counts SlotCounts
		want   int
	}{
		{SlotCounts{Total: 3}, 3},
		{SlotCounts{Total: 3, Booked: 1, Reserved: 1}, 1},
		{SlotCounts{Total: 2, Booked: 2}, 0},
		{SlotCounts{Total: 1, Booked: 1, Reserved: 1}, 0}, // over-committed counters clamp
	}
	for _, tc := range cases {
		if got := tc.counts.Remaining(); got != tc.want {
			t.Errorf("%+v.Remaining() = %d, want %d", tc.counts, got, tc.want)
		}
	}
}

func TestReservationHoldActiveAt(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	cases := []struct {
		name string
		hold ReservationHold
		want bool
	}{
		{"held without expiry", ReservationHold{Status: ReservationHeld}, true},
		{"confirmed with future expiry", ReservationHold{Status: ReservationConfirmed, ExpiresAt: &future}, true},
		{"held but expired", ReservationHold{Status: ReservationHeld, ExpiresAt: &past}, false},
		{"released", ReservationHold{Status: ReservationReleased}, false},
		{"expired status", ReservationHold{Status: ReservationExpired, ExpiresAt: &future}, false},
	}
	for _, tc := range cases {
		if got := tc.hold.ActiveAt(now); got != tc.want {
			t.Errorf("%s: ActiveAt = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestInMemoryRateCardLookup(t *testing.T) {
	store := NewInMemoryInventoryStore()
	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store.AddRateCard(RateCard{ID: 1, ShowID: 1, EffectiveDate: jan, PreRollRate: 100})
	store.AddRateCard(RateCard{ID: 2, ShowID: 1, EffectiveDate: mar, PreRollRate: 150})

	rc, err := store.GetRateCard(context.Background(), 1, mar.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rc.ID != 1 {
		t.Errorf("expected the january card the day before march, got card %d", rc.ID)
	}

	rc, err = store.GetRateCard(context.Background(), 1, mar)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rc.ID != 2 {
		t.Errorf("expected the march card on its effective date, got card %d", rc.ID)
	}

	if _, err := store.GetRateCard(context.Background(), 1, jan.AddDate(0, 0, -1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound before the first effective date, got %v", err)
	}
	if _, err := store.GetRateCard(context.Background(), 99, mar); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unknown show, got %v", err)
	}
}
