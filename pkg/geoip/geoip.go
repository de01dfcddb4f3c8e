// Package geoip looks up an approximate position for this machine
// from its public IP, with an elevation lookup on top. It backs the
// position tool when the device has no GPS fix.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	// DefaultGeoURL is the IP geolocation endpoint.
	DefaultGeoURL = "http://ip-api.com/json/"
	// DefaultElevationURL is the Open-Elevation lookup endpoint.
	DefaultElevationURL = "https://api.open-elevation.com/api/v1/lookup"
)

// Location is a resolved approximate position.
type Location struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	City     string  `json:"city,omitempty"`
	Region   string  `json:"regionName,omitempty"`
	Country  string  `json:"country,omitempty"`
	Altitude int     `json:"altitude,omitempty"`

	// AltitudeErr records a failed elevation lookup; the position
	// itself is still usable.
	AltitudeErr string `json:"altitude_error,omitempty"`
}

// Client resolves IP-based locations.
type Client struct {
	geoURL       string
	elevationURL string
	httpClient   *http.Client
}

// Option configures the client.
type Option func(*Client)

// New creates a new geolocation client.
func New(opts ...Option) *Client {
	c := &Client{
		geoURL:       DefaultGeoURL,
		elevationURL: DefaultElevationURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithGeoURL overrides the geolocation endpoint.
func WithGeoURL(url string) Option {
	return func(c *Client) {
		c.geoURL = url
	}
}

// WithElevationURL overrides the elevation endpoint.
func WithElevationURL(url string) Option {
	return func(c *Client) {
		c.elevationURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Locate resolves the requester's IP to a position and annotates it
// with the elevation at those coordinates. An elevation failure is
// recorded on the result instead of failing the lookup.
func (c *Client) Locate(ctx context.Context) (*Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.geoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build geolocation request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ip geolocation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ip geolocation: unexpected status %d", resp.StatusCode)
	}

	var loc Location
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return nil, fmt.Errorf("parse geolocation response: %w", err)
	}

	if alt, err := c.elevation(ctx, loc.Lat, loc.Lon); err != nil {
		loc.AltitudeErr = err.Error()
	} else {
		loc.Altitude = alt
	}
	return &loc, nil
}

type elevationResponse struct {
	Results []struct {
		Elevation float64 `json:"elevation"`
	} `json:"results"`
}

func (c *Client) elevation(ctx context.Context, lat, lon float64) (int, error) {
	url := fmt.Sprintf("%s?locations=%f,%f", c.elevationURL, lat, lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build elevation request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("elevation lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("elevation lookup: unexpected status %d", resp.StatusCode)
	}

	var er elevationResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return 0, fmt.Errorf("parse elevation response: %w", err)
	}
	if len(er.Results) == 0 {
		return 0, fmt.Errorf("elevation lookup: empty result")
	}
	return int(er.Results[0].Elevation), nil
}
