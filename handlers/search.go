package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"freshdeal/filter"
	"freshdeal/geo"
	"freshdeal/models"
	"freshdeal/respond"
)

// RestaurantSource is the data-fetching side of the storefront.
type RestaurantSource interface {
	NearbyRestaurants(ctx context.Context, origin geo.Point, radiusKm float64) ([]models.Restaurant, error)
	RestaurantsByIDs(ctx context.Context, ids []int64) ([]models.Restaurant, error)
	SearchRestaurantIDs(ctx context.Context, q string) ([]int64, error)
	Categories(ctx context.Context) ([]models.Category, error)
}

// SnapshotCache caches proximity query results.
type SnapshotCache interface {
	GetNearby(ctx context.Context, origin geo.Point, radiusKm float64) (rs []models.Restaurant, version int64, ok bool, err error)
	SetNearby(ctx context.Context, version int64, origin geo.Point, radiusKm float64, rs []models.Restaurant) error
}

type Handler struct {
	Source RestaurantSource
	// Cache is optional.
	Cache           SnapshotCache
	Log             *slog.Logger
	Now             func() time.Time
	DefaultRadiusKm float64
	MaxRadiusKm     float64
}

// ListParams are the query parameters shared by the restaurant list endpoints.
type ListParams struct {
	Category   string
	ShowClosed bool
	Query      string
	Origin     *geo.Point
	RadiusKm   float64
	IDs        []int64
}

type listResponse struct {
	Restaurants []models.RestaurantView `json:"restaurants"`
	Count       int                     `json:"count"`
}

// ParseListParams extracts list filters from the URL query. Only malformed values
// are errors; absent ones keep their zero value.
func ParseListParams(query url.Values) (ListParams, error) {
	p := ListParams{
		Category: strings.TrimSpace(query.Get("category")),
		Query:    strings.TrimSpace(query.Get("q")),
	}
	if p.Category == "" {
		p.Category = models.AllCategories
	}
	p.ShowClosed, _ = strconv.ParseBool(query.Get("show_closed"))

	latStr, lonStr := query.Get("lat"), query.Get("lon")
	if latStr != "" || lonStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lon, errLon := strconv.ParseFloat(lonStr, 64)
		origin := geo.Point{Lat: lat, Lon: lon}
		if errLat != nil || errLon != nil || !geo.Valid(origin) {
			return p, errors.New("lat and lon must be valid coordinates")
		}
		p.Origin = &origin
	}

	if v := query.Get("radius"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(r) || math.IsInf(r, 0) {
			return p, fmt.Errorf("invalid radius %q", v)
		}
		p.RadiusKm = r
	}

	if v := strings.TrimSpace(query.Get("ids")); v != "" {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return p, fmt.Errorf("invalid restaurant id %q", part)
			}
			p.IDs = append(p.IDs, id)
		}
	}
	return p, nil
}

// NearbyHandler serves the restaurant list around the user's address.
func (h *Handler) NearbyHandler(w http.ResponseWriter, r *http.Request) {
	p, err := ParseListParams(r.URL.Query())
	if err != nil {
		respond.BadRequest(w, err.Error())
		return
	}
	if p.Origin == nil {
		respond.BadRequest(w, "lat and lon are required")
		return
	}

	snapshots, err := h.nearby(r.Context(), *p.Origin, h.radius(p.RadiusKm))
	if err != nil {
		h.Log.Error("nearby query failed", "err", err, "lat", p.Origin.Lat, "lon", p.Origin.Lon)
		respond.InternalError(w)
		return
	}
	h.writeFiltered(w, r, snapshots, p)
}

// ListByIDsHandler serves the recent and favorites lists: the client sends the ids
// it remembers and gets them back, filtered like the nearby list.
func (h *Handler) ListByIDsHandler(list string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := ParseListParams(r.URL.Query())
		if err != nil {
			respond.BadRequest(w, err.Error())
			return
		}

		snapshots, err := h.Source.RestaurantsByIDs(r.Context(), p.IDs)
		if err != nil {
			h.Log.Error("restaurants by ids failed", "list", list, "err", err)
			respond.InternalError(w)
			return
		}
		h.writeFiltered(w, r, snapshots, p)
	}
}

func (h *Handler) writeFiltered(w http.ResponseWriter, r *http.Request, snapshots []models.Restaurant, p ListParams) {
	c := filter.Criteria{
		SelectedCategory:      p.Category,
		ShowClosedRestaurants: p.ShowClosed,
		Origin:                p.Origin,
	}
	if p.Query != "" {
		ids, err := h.Source.SearchRestaurantIDs(r.Context(), p.Query)
		if err != nil {
			h.Log.Error("search failed", "q", p.Query, "err", err)
			respond.InternalError(w)
			return
		}
		c.SearchResultIDs = filter.NewIDSet(ids...)
	}

	views := filter.Apply(snapshots, c, h.now())
	respond.WriteJSON(w, http.StatusOK, listResponse{Restaurants: views, Count: len(views)})
}

// nearby reads through the snapshot cache. Cache errors only cost a database query.
// Entries are shared by every origin in a geohash cell, so a hit is re-sorted by
// distance from this origin.
func (h *Handler) nearby(ctx context.Context, origin geo.Point, radiusKm float64) ([]models.Restaurant, error) {
	cacheable := false
	var version int64
	if h.Cache != nil {
		rs, v, ok, err := h.Cache.GetNearby(ctx, origin, radiusKm)
		switch {
		case err != nil:
			h.Log.Warn("snapshot cache read failed", "err", err)
		case ok:
			sortByDistance(rs, origin)
			return rs, nil
		default:
			cacheable, version = true, v
		}
	}

	rs, err := h.Source.NearbyRestaurants(ctx, origin, radiusKm)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := h.Cache.SetNearby(ctx, version, origin, radiusKm, rs); err != nil {
			h.Log.Warn("snapshot cache write failed", "err", err)
		}
	}
	return rs, nil
}

// sortByDistance orders rs the way the proximity query does: nearest first, ties
// by id. Restaurants without coordinates go last.
func sortByDistance(rs []models.Restaurant, origin geo.Point) {
	dist := make(map[int64]float64, len(rs))
	for _, r := range rs {
		if km, ok := geo.DistanceFrom(r, origin); ok {
			dist[r.ID] = km
		}
	}
	sort.SliceStable(rs, func(i, j int) bool {
		di, iok := dist[rs[i].ID]
		dj, jok := dist[rs[j].ID]
		if iok != jok {
			return iok
		}
		if iok && di != dj {
			return di < dj
		}
		return rs[i].ID < rs[j].ID
	})
}

func (h *Handler) radius(requested float64) float64 {
	if requested <= 0 {
		return h.DefaultRadiusKm
	}
	if requested > h.MaxRadiusKm {
		return h.MaxRadiusKm
	}
	return requested
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
