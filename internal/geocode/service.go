// Package geocode resolves property addresses to coordinates through a
// Nominatim compatible search endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"searchahouse/internal/domain"
	"searchahouse/platform/config"
	"searchahouse/platform/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const cacheTTL = 30 * 24 * time.Hour

type Service struct {
	endpoint  string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	cache     *redis.Client
	prefix    string
	log       *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// WithCache stores resolved addresses in Redis under prefix.
func WithCache(rdb *redis.Client, prefix string) Option {
	return func(s *Service) {
		s.cache = rdb
		s.prefix = prefix
	}
}

// WithRateLimit overrides the request rate. Public Nominatim allows one
// request per second.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(s *Service) { s.limiter = rate.NewLimiter(r, burst) }
}

func NewService(cfg config.GeocoderConfig, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		endpoint:  strings.TrimRight(cfg.GetGeocoderURL(), "/"),
		userAgent: cfg.GetGeocoderUserAgent(),
		client:    &http.Client{Timeout: 5 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Geocode returns the best match for address. ok is false when nothing matched.
func (s *Service) Geocode(ctx context.Context, address string) (domain.GeoPoint, bool, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.GeoPoint{}, false, nil
	}

	if point, ok := s.cached(ctx, address); ok {
		return point, true, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return domain.GeoPoint{}, false, err
	}

	params := url.Values{}
	params.Add("q", address)
	params.Add("format", "json")
	params.Add("addressdetails", "1")
	params.Add("limit", "1")

	reqURL := fmt.Sprintf("%s?%s", s.endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.GeoPoint{}, false, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.log.UpstreamCall("geocoder", http.MethodGet, s.endpoint, 0, time.Since(start), err)
		return domain.GeoPoint{}, false, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("upstream api error: %d", resp.StatusCode)
		s.log.UpstreamCall("geocoder", http.MethodGet, s.endpoint, resp.StatusCode, time.Since(start), err)
		return domain.GeoPoint{}, false, err
	}
	s.log.UpstreamCall("geocoder", http.MethodGet, s.endpoint, resp.StatusCode, time.Since(start), nil)

	var rawResults []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&rawResults); err != nil {
		return domain.GeoPoint{}, false, fmt.Errorf("decode geocoder payload: %w", err)
	}

	for _, raw := range rawResults {
		point, ok := parsePoint(raw)
		if !ok {
			continue
		}
		s.store(ctx, address, point)
		return point, true, nil
	}
	return domain.GeoPoint{}, false, nil
}

func parsePoint(raw nominatimResponse) (domain.GeoPoint, bool) {
	lat, err := strconv.ParseFloat(raw.Lat, 64)
	if err != nil {
		return domain.GeoPoint{}, false
	}
	lon, err := strconv.ParseFloat(raw.Lon, 64)
	if err != nil {
		return domain.GeoPoint{}, false
	}
	point := domain.GeoPoint{Lat: lat, Lon: lon}
	return point, point.Valid()
}

func (s *Service) cacheKey(address string) string {
	return s.prefix + ":geocode:" + strings.ToLower(address)
}

func (s *Service) cached(ctx context.Context, address string) (domain.GeoPoint, bool) {
	if s.cache == nil {
		return domain.GeoPoint{}, false
	}
	raw, err := s.cache.Get(ctx, s.cacheKey(address)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("geocode cache read failed", "error", err)
		}
		return domain.GeoPoint{}, false
	}
	var point domain.GeoPoint
	if err := json.Unmarshal(raw, &point); err != nil {
		return domain.GeoPoint{}, false
	}
	return point, true
}

func (s *Service) store(ctx context.Context, address string, point domain.GeoPoint) {
	if s.cache == nil {
		return
	}
	raw, _ := json.Marshal(point)
	if err := s.cache.Set(ctx, s.cacheKey(address), raw, cacheTTL).Err(); err != nil {
		s.log.Warn("geocode cache write failed", "error", err)
	}
}
