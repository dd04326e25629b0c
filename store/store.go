package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/lib/pq"

	"freshdeal/geo"
	"freshdeal/models"
)

var ErrInvalidRadius = errors.New("radius must be positive")

// GeocodeTarget is a restaurant whose coordinates are still unresolved.
type GeocodeTarget struct {
	ID      int64
	Name    string
	Address string
}

// Store reads restaurant snapshots from PostgreSQL (PostGIS).
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store { return &Store{db: db} }

// selectRestaurant lists the snapshot columns in the order scanRestaurant reads them;
// the caller appends the distance expression and FROM clause.
const selectRestaurant = `
	SELECT r.id, r.restaurant_name,
	       COALESCE(r.category, ''), COALESCE(r.category_name, ''),
	       COALESCE(r.working_days, '{}'),
	       COALESCE(r.working_hours_start, ''), COALESCE(r.working_hours_end, ''),
	       (SELECT COUNT(*) FROM listings l WHERE l.restaurant_id = r.id AND l.stock > 0) AS listings,
	       r.latitude, r.longitude, COALESCE(r.rating, 0),
	       COALESCE(r.image_url, ''), COALESCE(r.address, '')`

// NearbyRestaurants runs the proximity query: restaurants within radiusKm of origin,
// nearest first.
func (s *Store) NearbyRestaurants(ctx context.Context, origin geo.Point, radiusKm float64) ([]models.Restaurant, error) {
	if !(radiusKm > 0) || math.IsInf(radiusKm, 1) {
		return nil, ErrInvalidRadius
	}

	query := selectRestaurant + `,
	       ST_Distance(r.geo, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) / 1000.0 AS distance_km
	FROM restaurants r
	WHERE r.geo IS NOT NULL
	  AND ST_DWithin(r.geo, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
	ORDER BY distance_km ASC, r.id ASC`

	rows, err := s.db.QueryContext(ctx, query, origin.Lon, origin.Lat, radiusKm*1000)
	if err != nil {
		return nil, fmt.Errorf("nearby query: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

// RestaurantsByIDs returns snapshots for ids in the order given. Unknown ids are
// skipped and repeated ids appear once.
func (s *Store) RestaurantsByIDs(ctx context.Context, ids []int64) ([]models.Restaurant, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []models.Restaurant{}, nil
	}

	query := selectRestaurant + `,
	       NULL::double precision AS distance_km
	FROM restaurants r
	WHERE r.id = ANY($1)`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("restaurants by ids: %w", err)
	}
	defer rows.Close()

	found, err := collect(rows)
	if err != nil {
		return nil, err
	}
	return orderByIDs(found, ids), nil
}

// SearchRestaurantIDs returns ids of restaurants whose name, category or any listing
// title contains q, ignoring case.
func (s *Store) SearchRestaurantIDs(ctx context.Context, q string) ([]int64, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []int64{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT r.id
		FROM restaurants r
		LEFT JOIN listings l ON l.restaurant_id = r.id
		WHERE r.restaurant_name ILIKE $1
		   OR r.category ILIKE $1
		   OR r.category_name ILIKE $1
		   OR l.title ILIKE $1
		ORDER BY r.id ASC
	`, likePattern(q))
	if err != nil {
		return nil, fmt.Errorf("search ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan search id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Categories lists distinct category labels with their restaurant counts.
func (s *Store) Categories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, COUNT(*) FROM (
			SELECT COALESCE(NULLIF(r.category, ''), r.category_name) AS name
			FROM restaurants r
		) c
		WHERE name IS NOT NULL AND name <> ''
		GROUP BY name
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("categories query: %w", err)
	}
	defer rows.Close()

	out := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PendingGeocoding returns up to limit restaurants waiting for coordinates.
func (s *Store) PendingGeocoding(ctx context.Context, limit int) ([]GeocodeTarget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, restaurant_name, COALESCE(address, '')
		FROM restaurants
		WHERE geo_status = 'PENDING'
		ORDER BY id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending geocoding: %w", err)
	}
	defer rows.Close()

	var out []GeocodeTarget
	for rows.Next() {
		var t GeocodeTarget
		if err := rows.Scan(&t.ID, &t.Name, &t.Address); err != nil {
			return nil, fmt.Errorf("scan geocode target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ResolveCoordinates stores coordinates for a restaurant and marks it resolved.
func (s *Store) ResolveCoordinates(ctx context.Context, id int64, lat, lon float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE restaurants
		SET latitude = $1, longitude = $2,
		    geo = ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography,
		    geo_status = 'RESOLVED'
		WHERE id = $3
	`, lat, lon, id)
	if err != nil {
		return fmt.Errorf("resolve coordinates %d: %w", id, err)
	}
	return nil
}

// MarkGeocodeFailed stops the worker from retrying an address that cannot be resolved.
func (s *Store) MarkGeocodeFailed(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE restaurants SET geo_status = 'FAILED' WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark geocode failed %d: %w", id, err)
	}
	return nil
}

func collect(rows *sql.Rows) ([]models.Restaurant, error) {
	out := []models.Restaurant{}
	for rows.Next() {
		r, err := scanRestaurant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate restaurants: %w", err)
	}
	return out, nil
}

func scanRestaurant(rows *sql.Rows) (models.Restaurant, error) {
	var (
		r        models.Restaurant
		days     pq.StringArray
		lat, lon sql.NullFloat64
		distance sql.NullFloat64
	)
	err := rows.Scan(&r.ID, &r.RestaurantName, &r.Category, &r.CategoryName, &days,
		&r.WorkingHoursStart, &r.WorkingHoursEnd, &r.Listings, &lat, &lon, &r.Rating,
		&r.ImageURL, &r.Address, &distance)
	if err != nil {
		return r, fmt.Errorf("scan restaurant: %w", err)
	}

	r.WorkingDays = []string(days)
	if lat.Valid && lon.Valid {
		r.Latitude, r.Longitude = &lat.Float64, &lon.Float64
	}
	if distance.Valid {
		r.DistanceKm = &distance.Float64
	}
	return r, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func orderByIDs(rs []models.Restaurant, ids []int64) []models.Restaurant {
	byID := make(map[int64]models.Restaurant, len(rs))
	for _, r := range rs {
		byID[r.ID] = r
	}
	out := make([]models.Restaurant, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// likePattern wraps q for a substring ILIKE, escaping the pattern metacharacters.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
