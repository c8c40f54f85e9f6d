// Package api provides a client for the Google Maps Directions API and converts
// its responses into route segments for fuel stop planning.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	ApiResultOK    = "OK"
	DefaultTimeout = 30 * time.Second
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/directions/json"

	maxAttempts    = 4
	initialBackoff = 200 * time.Millisecond
)

// StatusError is returned when the Directions API answers with a status other than OK.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("directions API status %s", e.Status)
	}
	return fmt.Sprintf("directions API status %s: %s", e.Status, e.Message)
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Body)
}

// DirectionsAPI fetches driving routes from Google Maps.
type DirectionsAPI struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewDirectionsAPI creates a DirectionsAPI client with default settings.
func NewDirectionsAPI(apiKey string) *DirectionsAPI {
	return NewDirectionsAPIWithURL(DefaultBaseURL, apiKey)
}

// NewDirectionsAPIWithURL creates a client against a different endpoint, such as a proxy or test server.
func NewDirectionsAPIWithURL(baseURL, apiKey string) *DirectionsAPI {
	return &DirectionsAPI{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// FetchRoute fetches the driving route between origin and destination.
func (api *DirectionsAPI) FetchRoute(ctx context.Context, origin, destination string) (*DirectionsResponse, error) {
	if strings.TrimSpace(origin) == "" || strings.TrimSpace(destination) == "" {
		return nil, errors.New("origin and destination are required")
	}

	q := url.Values{}
	q.Set("origin", origin)
	q.Set("destination", destination)
	q.Set("key", api.apiKey)
	reqURL := api.baseURL + "?" + q.Encode()

	resp, err := api.doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching route: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	var directions DirectionsResponse
	if err := json.Unmarshal(body, &directions); err != nil {
		return nil, fmt.Errorf("error unmarshaling JSON: %w", err)
	}

	if directions.Status != ApiResultOK {
		return nil, &StatusError{Status: directions.Status, Message: directions.ErrorMessage}
	}

	return &directions, nil
}

func (api *DirectionsAPI) do(req *http.Request) (*http.Response, error) {
	resp, err := api.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

// doWithRetry retries network errors, 429 and 5xx responses with exponential
// backoff until maxAttempts or ctx is done.
func (api *DirectionsAPI) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("error creating request: %w", err)
		}

		resp, err := api.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable(err) || attempt == maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}

	return nil, lastErr
}

func retryable(err error) bool {
	var he *httpStatusError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
