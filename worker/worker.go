package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"freshdeal/store"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// ErrNoResults means the geocoder answered but knows no such address.
var ErrNoResults = errors.New("no geocoding results")

// Backlog is the storage side of geocoding.
type Backlog interface {
	PendingGeocoding(ctx context.Context, limit int) ([]store.GeocodeTarget, error)
	ResolveCoordinates(ctx context.Context, id int64, lat, lon float64) error
	MarkGeocodeFailed(ctx context.Context, id int64) error
}

// Geocoder resolves a free-form address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lon float64, err error)
}

// GeocodingWorker fills in coordinates for restaurants created without them so
// they become visible to proximity queries.
type GeocodingWorker struct {
	Backlog     Backlog
	Geocoder    Geocoder
	Log         *slog.Logger
	BatchSize   int
	Concurrency int
	Interval    time.Duration
	// OnResolved is called after at least one restaurant got coordinates in a batch.
	OnResolved func(ctx context.Context)
}

// Run processes a batch every Interval until ctx is cancelled.
func (w *GeocodingWorker) Run(ctx context.Context) {
	w.Log.Info("geocoding worker started", "batch", w.BatchSize, "concurrency", w.Concurrency, "interval", w.Interval)
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Log.Info("geocoding worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.Log.Error("geocoding batch failed", "err", err)
			}
		}
	}
}

// RunOnce geocodes one batch and returns how many restaurants were resolved.
func (w *GeocodingWorker) RunOnce(ctx context.Context) (int, error) {
	targets, err := w.Backlog.PendingGeocoding(ctx, w.BatchSize)
	if err != nil {
		return 0, err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		resolved int
	)
	semaphore := make(chan struct{}, max(w.Concurrency, 1))

	for _, t := range targets {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(t store.GeocodeTarget) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if w.resolve(ctx, t) {
				mu.Lock()
				resolved++
				mu.Unlock()
			}
		}(t)
	}
	wg.Wait()

	if resolved > 0 && w.OnResolved != nil {
		w.OnResolved(ctx)
	}
	return resolved, nil
}

func (w *GeocodingWorker) resolve(ctx context.Context, t store.GeocodeTarget) bool {
	address := t.Address
	if address == "" {
		address = t.Name
	}

	lat, lon, err := w.Geocoder.Geocode(ctx, address)
	if errors.Is(err, ErrNoResults) {
		w.Log.Warn("address not found", "restaurant_id", t.ID, "address", address)
		if err := w.Backlog.MarkGeocodeFailed(ctx, t.ID); err != nil {
			w.Log.Error("mark geocode failed", "restaurant_id", t.ID, "err", err)
		}
		return false
	}
	if err != nil {
		w.Log.Warn("geocoding failed", "restaurant_id", t.ID, "err", err)
		return false
	}

	if err := w.Backlog.ResolveCoordinates(ctx, t.ID, lat, lon); err != nil {
		w.Log.Error("store coordinates", "restaurant_id", t.ID, "err", err)
		return false
	}
	w.Log.Debug("resolved", "restaurant_id", t.ID, "lat", lat, "lon", lon)
	return true
}

// GoogleGeocoder calls the Google Maps Geocoding API.
type GoogleGeocoder struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{
		APIKey:  apiKey,
		BaseURL: googleGeocodeURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (float64, float64, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("key", g.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("geocoding http status %d", resp.StatusCode)
	}

	var result struct {
		Results []struct {
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, 0, fmt.Errorf("decode geocoding response: %w", err)
	}

	switch result.Status {
	case "OK":
	case "ZERO_RESULTS":
		return 0, 0, ErrNoResults
	default:
		return 0, 0, fmt.Errorf("geocoding api status: %s", result.Status)
	}
	if len(result.Results) == 0 {
		return 0, 0, ErrNoResults
	}

	loc := result.Results[0].Geometry.Location
	return loc.Lat, loc.Lng, nil
}
