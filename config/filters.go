package config

import (
	"fmt"
	"strings"

	"github.com/aptscout/aptscout/models"
)

// Filters are the caller's screening criteria. A nil/empty field imposes no
// constraint; set fields are AND-combined.
type Filters struct {
	MinBedrooms   *int
	MaxRent       *int
	Neighborhoods []string
}

// Validate rejects incoherent thresholds before any extraction runs.
func (f Filters) Validate() error {
	if f.MinBedrooms != nil && *f.MinBedrooms < 0 {
		return fmt.Errorf("min bedrooms cannot be negative (got %d)", *f.MinBedrooms)
	}
	if f.MaxRent != nil && *f.MaxRent < 0 {
		return fmt.Errorf("max rent cannot be negative (got %d)", *f.MaxRent)
	}
	for _, n := range f.Neighborhoods {
		if strings.TrimSpace(n) == "" {
			return fmt.Errorf("neighborhood filter entries cannot be blank")
		}
	}
	return nil
}

// Match reports whether the listing passes every set filter. A listing with
// a nil value for a filtered field fails that filter: unknown never passes
// a threshold.
func (f Filters) Match(l *models.Listing) bool {
	if f.MinBedrooms != nil {
		if l.Bedrooms == nil || *l.Bedrooms < *f.MinBedrooms {
			return false
		}
	}
	if f.MaxRent != nil {
		if l.Rent == nil || *l.Rent > *f.MaxRent {
			return false
		}
	}
	if len(f.Neighborhoods) > 0 {
		if l.Neighborhood == "" {
			return false
		}
		match := false
		for _, want := range f.Neighborhoods {
			if strings.EqualFold(strings.TrimSpace(want), l.Neighborhood) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}
