package garmin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yapay-ai/garmin-downloader/pkg/model"
	"github.com/yapay-ai/garmin-downloader/pkg/session"
)

// DefaultBaseURL is the Garmin Connect API host.
const DefaultBaseURL = "https://connectapi.garmin.com"

const dateLayout = "2006-01-02"

// Client fetches one month of a metric per call from Garmin Connect.
type Client struct {
	baseURL   string
	http      *http.Client
	endpoints *Endpoints
	now       func() time.Time
	logger    *slog.Logger
}

// NewClient creates a client that issues requests through the given session.
func NewClient(baseURL string, s *session.Session, endpoints *Endpoints, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if endpoints == nil {
		endpoints = DefaultEndpoints()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      s.Client(),
		endpoints: endpoints,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock overrides the clock used to stop at today's date.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Fetch returns every sample of kind recorded during month, in the order
// the service returned them. Body battery is requested as a single date
// range; heart rate is only served per day, so one request is made for each
// day of month. Days after today are never requested. Failures are returned
// as *model.FetchError and are not retried.
func (c *Client) Fetch(ctx context.Context, month model.DateMonth, kind model.MetricKind) ([]model.Sample, error) {
	path, err := c.endpoints.Path(kind)
	if err != nil {
		return nil, &model.FetchError{Kind: kind, Month: month, Err: err}
	}

	days := month.Days(c.now())
	if len(days) == 0 {
		c.logger.Debug("month lies in the future, nothing to fetch", "kind", kind, "month", month.String())
		return nil, nil
	}

	var samples []model.Sample
	switch kind {
	case model.BodyBattery:
		samples, err = c.fetchBodyBattery(ctx, path, days[0], days[len(days)-1])
	case model.HeartRate:
		samples, err = c.fetchHeartRate(ctx, path, days)
	}
	if err != nil {
		return nil, &model.FetchError{Kind: kind, Month: month, Err: err}
	}

	c.logger.Debug("fetched samples", "kind", kind, "month", month.String(), "samples", len(samples))
	return samples, nil
}

func (c *Client) fetchBodyBattery(ctx context.Context, path string, from, to time.Time) ([]model.Sample, error) {
	q := url.Values{}
	q.Set("startDate", from.Format(dateLayout))
	q.Set("endDate", to.Format(dateLayout))

	var reports []bodyBatteryReport
	if err := c.getJSON(ctx, path, q, &reports); err != nil {
		return nil, err
	}
	return adaptBodyBattery(reports)
}

func (c *Client) fetchHeartRate(ctx context.Context, path string, days []time.Time) ([]model.Sample, error) {
	var samples []model.Sample
	for _, day := range days {
		q := url.Values{}
		q.Set("date", day.Format(dateLayout))

		var resp heartRateResponse
		if err := c.getJSON(ctx, path, q, &resp); err != nil {
			return nil, fmt.Errorf("day %s: %w", day.Format(dateLayout), err)
		}

		daySamples, err := adaptHeartRate(resp)
		if err != nil {
			return nil, fmt.Errorf("day %s: %w", day.Format(dateLayout), err)
		}
		samples = append(samples, daySamples...)
	}
	return samples, nil
}

// getJSON performs a single GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "garmin-downloader/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &model.AuthenticationError{Err: fmt.Errorf("token rejected with status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
