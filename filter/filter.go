package filter

import (
	"time"

	"freshdeal/availability"
	"freshdeal/geo"
	"freshdeal/models"
)

// IDSet holds restaurant ids returned by a free-text search.
type IDSet map[int64]struct{}

// NewIDSet builds a set from ids. The result is never nil, so an empty search
// still restricts the list to nothing.
func NewIDSet(ids ...int64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Criteria are the UI-selected filters for one list render.
type Criteria struct {
	// SelectedCategory is models.AllCategories (or empty) to match everything,
	// otherwise an exact, case-sensitive category label.
	SelectedCategory      string
	ShowClosedRestaurants bool
	// SearchResultIDs is nil when no search is active.
	SearchResultIDs IDSet
	// Origin, when set, recomputes distance_km for restaurants with coordinates.
	Origin *geo.Point
}

// Apply returns the restaurants to display for c at now, in input order, each
// annotated with its availability. Closed restaurants are dropped unless
// ShowClosedRestaurants is set; out-of-stock ones stay and are marked disabled.
// restaurants is not modified.
func Apply(restaurants []models.Restaurant, c Criteria, now time.Time) []models.RestaurantView {
	out := make([]models.RestaurantView, 0, len(restaurants))
	for _, r := range restaurants {
		if !matchesCategory(r, c.SelectedCategory) {
			continue
		}
		if c.SearchResultIDs != nil && !c.SearchResultIDs.Has(r.ID) {
			continue
		}

		st := availability.Evaluate(r, now)
		if !c.ShowClosedRestaurants && !st.IsOpen {
			continue
		}

		if c.Origin != nil {
			if km, ok := geo.DistanceFrom(r, *c.Origin); ok {
				r.DistanceKm = &km
			}
		}

		out = append(out, models.RestaurantView{
			Restaurant:     r,
			IsOpen:         st.IsOpen,
			HasStock:       st.HasStock,
			IsDisabled:     st.IsDisabled,
			OverlayMessage: st.OverlayMessage,
		})
	}
	return out
}

func matchesCategory(r models.Restaurant, selected string) bool {
	if selected == "" || selected == models.AllCategories {
		return true
	}
	return r.Category == selected || r.CategoryName == selected
}
