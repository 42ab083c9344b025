package models

import (
	"errors"
	"fmt"
	"strings"
)

// PlacementType identifies one of the three per-episode inventory pools.
type PlacementType string

const (
	PlacementPreRoll  PlacementType = "pre_roll"
	PlacementMidRoll  PlacementType = "mid_roll"
	PlacementPostRoll PlacementType = "post_roll"
)

// ErrUnknownPlacementType is returned by ParsePlacementType for input that
// does not map to a known placement type.
var ErrUnknownPlacementType = errors.New("unknown placement type")

var placementNormalizer = strings.NewReplacer("-", "", "_", "", " ", "")

// ParsePlacementType normalizes user-supplied placement type strings
// ("pre-roll", "preroll", "Pre_Roll", ...) into the canonical enum.
// Unrecognized input is a hard error, not a conflict.
func ParsePlacementType(s string) (PlacementType, error) {
	switch placementNormalizer.Replace(strings.ToLower(strings.TrimSpace(s))) {
	case "preroll", "pre":
		return PlacementPreRoll, nil
	case "midroll", "mid":
		return PlacementMidRoll, nil
	case "postroll", "post":
		return PlacementPostRoll, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlacementType, s)
}

// ParsePlacementTypes parses a list of placement type strings, failing on
// the first unrecognized entry.
func ParsePlacementTypes(in []string) ([]PlacementType, error) {
	out := make([]PlacementType, 0, len(in))
	for _, s := range in {
		pt, err := ParsePlacementType(s)
		if err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, nil
}

// AllPlacementTypes returns the placement types in canonical order.
func AllPlacementTypes() []PlacementType {
	return []PlacementType{PlacementPreRoll, PlacementMidRoll, PlacementPostRoll}
}

func (p PlacementType) String() string { return string(p) }

// Valid reports whether p is one of the canonical placement types.
func (p PlacementType) Valid() bool {
	switch p {
	case PlacementPreRoll, PlacementMidRoll, PlacementPostRoll:
		return true
	}
	return false
}
