// Package geo resolves a client IP to a country name. Two implementations:
// an HTTP lookup service and a local GeoLite2 database. Callers treat any
// failure as non-fatal and fall back to FallbackCountry.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/oschwald/geoip2-golang"
)

// FallbackCountry is recorded when the lookup fails for any reason.
const FallbackCountry = "Other"

type Resolver interface {
	Country(ctx context.Context, ip string) (string, error)
}

var ErrInvalidIP = errors.New("invalid ip address")

// HTTPResolver calls an ip-api style JSON endpoint: GET {base}/json/{ip}
// returns a body with a "country" field.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 3 * time.Second},
	}
}

func (r *HTTPResolver) Country(ctx context.Context, ip string) (string, error) {
	if net.ParseIP(ip) == nil {
		return "", ErrInvalidIP
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/json/"+ip, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geolocation lookup returned status %d", resp.StatusCode)
	}

	var body struct {
		Country string `json:"country"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Country == "" {
		return "", errors.New("geolocation response missing country")
	}
	return body.Country, nil
}

// MMDBResolver reads a local GeoLite2 database instead of calling out.
type MMDBResolver struct {
	reader *geoip2.Reader
}

func NewMMDBResolver(path string) (*MMDBResolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &MMDBResolver{reader: reader}, nil
}

func (r *MMDBResolver) Country(_ context.Context, ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", ErrInvalidIP
	}
	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", err
	}
	name, ok := record.Country.Names["en"]
	if !ok || name == "" {
		return "", errors.New("country not found in database")
	}
	return name, nil
}

func (r *MMDBResolver) Close() error {
	return r.reader.Close()
}
