// Package geo resolves the coordinates of a named place through the
// Google Geocoding API.
package geo

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/forecast-ledger/internal/forecast"
)

var errNoAPIKey = errors.New("geocoder api key is empty")

// geocoder keeps its key in a package variable.
var keyMu sync.Mutex

// lookup is replaced in tests.
var lookup = geocoder.Geocoding

// Resolve looks up city/country and returns a Location named after city.
func Resolve(apiKey, city, country string) (forecast.Location, error) {
	if apiKey == "" {
		return forecast.Location{}, errNoAPIKey
	}

	keyMu.Lock()
	geocoder.ApiKey = apiKey
	loc, err := lookup(geocoder.Address{City: city, Country: country})
	keyMu.Unlock()
	if err != nil {
		return forecast.Location{}, fmt.Errorf("geocode %s, %s: %w", city, country, err)
	}

	if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		return forecast.Location{}, fmt.Errorf("geocode %s, %s: coordinates out of range", city, country)
	}

	return forecast.Location{Name: city, Latitude: loc.Latitude, Longitude: loc.Longitude}, nil
}
