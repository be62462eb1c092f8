package suntimes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solarprep/pkg/common"
	"github.com/raterudder/solarprep/pkg/log"
	"github.com/raterudder/solarprep/pkg/types"
)

// SunriseSunsetAPI resolves daylight windows with the sunrise-sunset.org
// JSON API.
type SunriseSunsetAPI struct {
	apiURL  string
	client  *http.Client
	retries int

	// newBackOff builds the delay policy between attempts
	newBackOff func() backoff.BackOff
}

// configuredAPI sets up flags for the API provider and returns the instance.
func configuredAPI() *SunriseSunsetAPI {
	a := &SunriseSunsetAPI{
		newBackOff: defaultBackOff,
	}
	apiURL := lflag.String("sunrise-api-url", "https://api.sunrise-sunset.org/json", "URL for the sunrise-sunset.org API")
	timeout := lflag.Duration("sunrise-api-timeout", 10*time.Second, "Timeout for a single sunrise-sunset.org request")
	retries := lflag.String("sunrise-api-retries", "3", "Number of retries for a failed sunrise-sunset.org request")

	lflag.Do(func() {
		a.apiURL = *apiURL
		a.client = common.JSONClient(*timeout)
		n, err := strconv.Atoi(*retries)
		if err != nil || n < 0 {
			panic(fmt.Sprintf("invalid sunrise-api-retries: %q", *retries))
		}
		a.retries = n
	})

	return a
}

// NewSunriseSunsetAPI returns an API provider that doesn't depend on flags.
func NewSunriseSunsetAPI(apiURL string, client *http.Client, retries int) *SunriseSunsetAPI {
	return &SunriseSunsetAPI{
		apiURL:     apiURL,
		client:     client,
		retries:    retries,
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// Validate ensures the configuration is valid.
func (a *SunriseSunsetAPI) Validate() error {
	if a.apiURL == "" {
		return fmt.Errorf("sunrise-api-url is required")
	}
	if _, err := url.Parse(a.apiURL); err != nil {
		return fmt.Errorf("failed to parse sunrise api url (%s): %w", a.apiURL, err)
	}
	if a.retries < 0 {
		return fmt.Errorf("sunrise-api-retries cannot be negative")
	}
	return nil
}

type apiResults struct {
	Sunrise string `json:"sunrise"`
	Sunset  string `json:"sunset"`
}

type apiResponse struct {
	Results *apiResults `json:"results"`
	Status  string      `json:"status"`
}

// SunriseSunset implements Resolver.
func (a *SunriseSunsetAPI) SunriseSunset(ctx context.Context, date types.Date, loc *time.Location, coord types.Coordinate) (types.DayWindow, error) {
	var window types.DayWindow
	attempt := 0
	op := func() error {
		attempt++
		w, err := a.fetch(ctx, date, coord)
		if err != nil {
			log.Ctx(ctx).WarnContext(
				ctx,
				"sunrise-sunset request failed",
				slog.String("date", date.String()),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			return err
		}
		window = w
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(a.newBackOff(), uint64(a.retries)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return types.DayWindow{Date: date}, fmt.Errorf("%w: %s at %s: %w", types.ErrServiceUnavailable, date, coord, err)
	}
	return window.In(loc), nil
}

var errMalformedResponse = errors.New("malformed sunrise-sunset response")

// fetch performs a single request and returns the window in UTC.
func (a *SunriseSunsetAPI) fetch(ctx context.Context, date types.Date, coord types.Coordinate) (types.DayWindow, error) {
	u, err := url.Parse(a.apiURL)
	if err != nil {
		return types.DayWindow{}, backoff.Permanent(fmt.Errorf("invalid api url: %w", err))
	}

	params := u.Query()
	params.Set("lat", strconv.FormatFloat(coord.Latitude, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(coord.Longitude, 'f', -1, 64))
	params.Set("date", date.String())
	params.Set("formatted", "0")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return types.DayWindow{}, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	log.Ctx(ctx).DebugContext(ctx, "fetching sunrise/sunset", slog.String("url", u.String()))

	resp, err := a.client.Do(req)
	if err != nil {
		return types.DayWindow{}, fmt.Errorf("failed to fetch sunrise/sunset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("sunrise-sunset api returned status: %d", resp.StatusCode)
		// client errors won't go away by retrying
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return types.DayWindow{}, backoff.Permanent(err)
		}
		return types.DayWindow{}, err
	}

	var data apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return types.DayWindow{}, backoff.Permanent(fmt.Errorf("%w: %w", errMalformedResponse, err))
	}
	if data.Status != "" && data.Status != "OK" {
		return types.DayWindow{}, backoff.Permanent(fmt.Errorf("%w: status %s", errMalformedResponse, data.Status))
	}
	if data.Results == nil || data.Results.Sunrise == "" || data.Results.Sunset == "" {
		return types.DayWindow{}, backoff.Permanent(fmt.Errorf("%w: missing results", errMalformedResponse))
	}

	sunrise, err := time.Parse(time.RFC3339, data.Results.Sunrise)
	if err != nil {
		return types.DayWindow{}, backoff.Permanent(fmt.Errorf("%w: sunrise: %w", errMalformedResponse, err))
	}
	sunset, err := time.Parse(time.RFC3339, data.Results.Sunset)
	if err != nil {
		return types.DayWindow{}, backoff.Permanent(fmt.Errorf("%w: sunset: %w", errMalformedResponse, err))
	}

	window := types.DayWindow{
		Date:    date,
		Sunrise: sunrise.UTC(),
		Sunset:  sunset.UTC(),
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched sunrise/sunset",
		slog.String("date", date.String()),
		slog.Time("sunrise", window.Sunrise),
		slog.Time("sunset", window.Sunset),
	)
	return window, nil
}
