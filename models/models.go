package models

// AllCategories is the category sentinel that matches every restaurant.
const AllCategories = "All Categories"

// Restaurant is a point-in-time snapshot of a restaurant as returned by a proximity
// query. Optional fields are pointers or empty values; nothing here is validated.
type Restaurant struct {
	ID                int64    `json:"id"`
	RestaurantName    string   `json:"restaurantName"`
	Category          string   `json:"category,omitempty"`
	CategoryName      string   `json:"categoryName,omitempty"`
	WorkingDays       []string `json:"workingDays"`
	WorkingHoursStart string   `json:"workingHoursStart,omitempty"`
	WorkingHoursEnd   string   `json:"workingHoursEnd,omitempty"`
	Listings          int      `json:"listings"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	Rating            float64  `json:"rating"`
	DistanceKm        *float64 `json:"distance_km,omitempty"`
	ImageURL          string   `json:"image_url,omitempty"`
	Address           string   `json:"address,omitempty"`
}

// RestaurantView is a snapshot annotated with availability computed at filter time.
// The computed fields depend on the evaluation time and must not be cached.
type RestaurantView struct {
	Restaurant
	IsOpen         bool   `json:"isOpen"`
	HasStock       bool   `json:"hasStock"`
	IsDisabled     bool   `json:"isDisabled"`
	OverlayMessage string `json:"overlayMessage,omitempty"`
}

// Category is a distinct restaurant category label.
type Category struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
