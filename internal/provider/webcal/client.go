// Package webcal is a calendar provider backed by a remote JSON calendar API.
// Reads are retried a bounded number of times on transient failures; writes
// are attempted once, so a create or delete fault always surfaces to the
// reconciliation pass that issued it.
package webcal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"

	"busymirror/internal/provider"
	"busymirror/models"
)

// Config holds client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout per HTTP request. Defaults to 15s.
	Timeout time.Duration
	// ReadAttempts bounds retries on GET calls. Defaults to 3.
	ReadAttempts uint
}

// Client talks to the remote calendar API.
type Client struct {
	httpClient   *http.Client
	log          *slog.Logger
	baseURL      string
	apiKey       string
	readAttempts uint
}

// New creates a webcal client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	attempts := cfg.ReadAttempts
	if attempts == 0 {
		attempts = 3
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		log:          slog.Default().With("component", "webcal"),
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		readAttempts: attempts,
	}
}

type calendarInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type createEventRequest struct {
	Title string            `json:"title"`
	Start time.Time         `json:"start"`
	End   time.Time         `json:"end"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// Calendar resolves the calendar server-side and returns a handle to it.
func (c *Client) Calendar(id string) (provider.Calendar, error) {
	var info calendarInfo
	if err := c.getJSON(fmt.Sprintf("/calendars/%s", url.PathEscape(id)), &info); err != nil {
		return nil, err
	}
	return &calendar{client: c, id: info.ID}, nil
}

type calendar struct {
	client *Client
	id     string
}

func (cal *calendar) ID() string { return cal.id }

func (cal *calendar) Events(start, end time.Time) ([]models.Event, error) {
	path := fmt.Sprintf("/calendars/%s/events?start=%s&end=%s",
		url.PathEscape(cal.id),
		url.QueryEscape(start.UTC().Format(time.RFC3339)),
		url.QueryEscape(end.UTC().Format(time.RFC3339)))

	var events []models.Event
	if err := cal.client.getJSON(path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (cal *calendar) CreateEvent(title string, start, end time.Time, tags map[string]string) (models.Event, error) {
	body, err := json.Marshal(createEventRequest{Title: title, Start: start.UTC(), End: end.UTC(), Tags: tags})
	if err != nil {
		return models.Event{}, fmt.Errorf("encode event: %w", err)
	}

	req, err := cal.client.newRequest(http.MethodPost, fmt.Sprintf("/calendars/%s/events", url.PathEscape(cal.id)), bytes.NewReader(body))
	if err != nil {
		return models.Event{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cal.client.httpClient.Do(req)
	if err != nil {
		return models.Event{}, fmt.Errorf("create event in %s: %w", cal.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.Event{}, fmt.Errorf("calendar %s: %w", cal.id, provider.ErrCalendarNotFound)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return models.Event{}, fmt.Errorf("create event in %s: unexpected status %d", cal.id, resp.StatusCode)
	}

	var created models.Event
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return models.Event{}, fmt.Errorf("decode created event: %w", err)
	}
	return created, nil
}

func (cal *calendar) DeleteEvent(eventID string) error {
	req, err := cal.client.newRequest(http.MethodDelete,
		fmt.Sprintf("/calendars/%s/events/%s", url.PathEscape(cal.id), url.PathEscape(eventID)), nil)
	if err != nil {
		return err
	}

	resp, err := cal.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete event %s in %s: %w", eventID, cal.id, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("event %s in %s: %w", eventID, cal.id, provider.ErrEventNotFound)
	default:
		return fmt.Errorf("delete event %s in %s: unexpected status %d", eventID, cal.id, resp.StatusCode)
	}
}

func (c *Client) newRequest(method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// getJSON issues a GET and decodes the response, retrying transient failures
// (network errors and 5xx responses). A 404 is terminal and maps to
// ErrCalendarNotFound.
func (c *Client) getJSON(path string, out any) error {
	return retry.Do(
		func() error {
			req, err := c.newRequest(http.MethodGet, path, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("get %s: %w", path, err)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusOK:
				if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
					return retry.Unrecoverable(fmt.Errorf("decode %s: %w", path, err))
				}
				return nil
			case resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(provider.ErrCalendarNotFound)
			case resp.StatusCode >= 500:
				return fmt.Errorf("get %s: server status %d", path, resp.StatusCode)
			default:
				return retry.Unrecoverable(fmt.Errorf("get %s: unexpected status %d", path, resp.StatusCode))
			}
		},
		retry.Attempts(c.readAttempts),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn("retrying read", "attempt", n+1, "path", path, "error", err)
		}),
	)
}
