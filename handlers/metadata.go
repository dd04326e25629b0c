package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"freshdeal/filter"
	"freshdeal/geo"
	"freshdeal/models"
	"freshdeal/respond"
)

// FilterRequest lets the client filter snapshots it already holds.
type FilterRequest struct {
	Restaurants []models.Restaurant `json:"restaurants"`
	Criteria    struct {
		SelectedCategory      string     `json:"selectedCategory"`
		ShowClosedRestaurants bool       `json:"showClosedRestaurants"`
		SearchResultIDs       *[]int64   `json:"searchResultIds"`
		Origin                *geo.Point `json:"origin"`
	} `json:"criteria"`
	// Now overrides the evaluation time; the server clock is used when absent.
	Now *time.Time `json:"now"`
}

const maxFilterBody = 1 << 20

// FilterHandler applies the availability and category filter to a posted snapshot list.
func (h *Handler) FilterHandler(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFilterBody))
	if err := dec.Decode(&req); err != nil {
		respond.BadRequest(w, "invalid JSON body")
		return
	}

	c := filter.Criteria{
		SelectedCategory:      req.Criteria.SelectedCategory,
		ShowClosedRestaurants: req.Criteria.ShowClosedRestaurants,
		Origin:                req.Criteria.Origin,
	}
	if req.Criteria.SearchResultIDs != nil {
		c.SearchResultIDs = filter.NewIDSet(*req.Criteria.SearchResultIDs...)
	}

	now := h.now()
	if req.Now != nil {
		now = *req.Now
	}

	views := filter.Apply(req.Restaurants, c, now)
	respond.WriteJSON(w, http.StatusOK, listResponse{Restaurants: views, Count: len(views)})
}

// CategoriesHandler lists categories for the filter dropdown, led by the
// "All Categories" entry.
func (h *Handler) CategoriesHandler(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Source.Categories(r.Context())
	if err != nil {
		h.Log.Error("categories query failed", "err", err)
		respond.InternalError(w)
		return
	}

	total := 0
	for _, c := range cats {
		total += c.Count
	}
	out := append([]models.Category{{Name: models.AllCategories, Count: total}}, cats...)
	respond.WriteJSON(w, http.StatusOK, out)
}

func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Register mounts every storefront route on mux.
func Register(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/restaurants/nearby", h.NearbyHandler)
	mux.HandleFunc("GET /api/restaurants/recent", h.ListByIDsHandler("recent"))
	mux.HandleFunc("GET /api/restaurants/favorites", h.ListByIDsHandler("favorites"))
	mux.HandleFunc("POST /api/restaurants/filter", h.FilterHandler)
	mux.HandleFunc("GET /api/categories", h.CategoriesHandler)
	mux.HandleFunc("GET /healthz", HealthHandler)
}
