// Package listings provides read-only access to the property catalogue.
package listings

// Listing is a single property project. The conversation core never mutates
// listings; they are written by the CSV importer outside this service.
type Listing struct {
	ID               int64    `json:"id"`
	ProjectName      string   `json:"project_name"`
	City             string   `json:"city"`
	Country          string   `json:"country"`
	PropertyType     string   `json:"property_type,omitempty"`
	Bedrooms         *int     `json:"bedrooms,omitempty"`
	Bathrooms        *int     `json:"bathrooms,omitempty"`
	PriceUSD         *float64 `json:"price_usd,omitempty"`
	AreaSqm          *float64 `json:"area_sqm,omitempty"`
	CompletionStatus string   `json:"completion_status,omitempty"`
	Features         []string `json:"features,omitempty"`
	Description      string   `json:"description,omitempty"`
}

// Filter narrows a catalogue search. Zero values mean "unconstrained".
// Bedrooms is a set so callers can express relaxed ranges like {4,5,6}.
type Filter struct {
	City         string
	Country      string
	ExcludeCity  string
	Bedrooms     []int
	PriceMin     *float64
	PriceMax     *float64
	PropertyType string
	Limit        int
}
