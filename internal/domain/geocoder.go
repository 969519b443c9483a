package domain

import "context"

// MinQueryLength is the shortest free-text query sent to a geocoder.
const MinQueryLength = 3

// AddressCandidate is a geocoded address suggestion.
type AddressCandidate struct {
	Label      string     `json:"label"`
	Coordinate Coordinate `json:"coordinate"`
	City       string     `json:"city"`
	PostalCode string     `json:"postal_code"`
	Context    string     `json:"context"`
}

// Commune identifies the municipality containing a coordinate.
type Commune struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Geocoder resolves addresses from text and communes from coordinates.
type Geocoder interface {
	// Search returns candidates in upstream relevance order. Failures and
	// queries shorter than MinQueryLength yield an empty slice.
	Search(ctx context.Context, query string) []AddressCandidate

	// Reverse returns the commune containing the coordinate. A zero Commune
	// with a nil error means the upstream had no match.
	Reverse(ctx context.Context, c Coordinate) (Commune, error)
}
