// Package hub provides a client for the Home Assistant REST API.
// All fetch operations return explicit errors at this boundary; callers
// decide whether to keep previously cached data.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds every hub request.
	DefaultTimeout = 10 * time.Second

	// DefaultPort is the standard Home Assistant port.
	DefaultPort = 8123
)

// Config holds hub connection settings.
type Config struct {
	URL     string
	Token   string
	Timeout time.Duration // Override for testing
}

// Client is an authenticated Home Assistant REST API client.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a new hub client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("hub URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("hub access token is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	c.client.CloseIdleConnections()
	return nil
}

// HostPort extracts the probe address from a hub URL.
// Defaults to port 8123, or 443 for https URLs.
func HostPort(hubURL string) (string, int) {
	parsed, err := url.Parse(hubURL)
	if err != nil || parsed.Hostname() == "" {
		return "localhost", DefaultPort
	}
	host := parsed.Hostname()
	if p := parsed.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err == nil {
			return host, port
		}
	}
	if parsed.Scheme == "https" {
		return host, 443
	}
	return host, DefaultPort
}

// doRequest performs an authenticated API request.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	return c.client.Do(req)
}

// TestConnection reports whether the hub API is up and responding.
func (c *Client) TestConnection(ctx context.Context) bool {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/", nil)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var status struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false
	}
	return status.Message == "API running."
}

// GetEntityState returns the raw state of a single entity.
// Returns nil without error when the entity does not exist.
func (c *Client) GetEntityState(ctx context.Context, entityID string) (*EntityState, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/states/"+entityID, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("authentication failed: invalid access token")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get state for %s: status %d", entityID, resp.StatusCode)
	}

	var state EntityState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetWeather returns current conditions from a weather entity.
func (c *Client) GetWeather(ctx context.Context, entityID string) (*Weather, error) {
	state, err := c.GetEntityState(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	attrs := state.Attributes

	// Normalize the unit so it always carries the degree sign.
	tempUnit := attrStr(attrs, "temperature_unit", "°F")
	if !strings.Contains(tempUnit, "°") {
		tempUnit = "°" + tempUnit
	}

	return &Weather{
		State:           state.State,
		Temperature:     attrFloat(attrs, "temperature"),
		TemperatureUnit: tempUnit,
		Humidity:        attrFloat(attrs, "humidity"),
		WindSpeed:       attrFloat(attrs, "wind_speed"),
		WindSpeedUnit:   attrStr(attrs, "wind_speed_unit", "mph"),
		Pressure:        attrFloat(attrs, "pressure"),
		CloudCoverage:   attrFloat(attrs, "cloud_coverage"),
		FriendlyName:    attrStr(attrs, "friendly_name", "Weather"),
	}, nil
}

// GetForecast returns up to six days of daily forecast for a weather entity.
func (c *Client) GetForecast(ctx context.Context, entityID string) ([]ForecastDay, error) {
	payload := map[string]string{
		"entity_id": entityID,
		"type":      "daily",
	}

	resp, err := c.doRequest(ctx, http.MethodPost,
		"/api/services/weather/get_forecasts?return_response=true", payload)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get forecast: status %d", resp.StatusCode)
	}

	var result struct {
		ServiceResponse map[string]struct {
			Forecast []struct {
				Datetime                 string   `json:"datetime"`
				Condition                string   `json:"condition"`
				Temperature              *float64 `json:"temperature"`
				Templow                  *float64 `json:"templow"`
				PrecipitationProbability *float64 `json:"precipitation_probability"`
				Humidity                 *float64 `json:"humidity"`
				WindSpeed                *float64 `json:"wind_speed"`
			} `json:"forecast"`
		} `json:"service_response"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	raw := result.ServiceResponse[entityID].Forecast
	if len(raw) > 6 {
		raw = raw[:6]
	}

	days := make([]ForecastDay, len(raw))
	for i, f := range raw {
		date := f.Datetime
		if len(date) > 10 {
			date = date[:10]
		}
		days[i] = ForecastDay{
			Date:              date,
			Condition:         f.Condition,
			TempHigh:          f.Temperature,
			TempLow:           f.Templow,
			PrecipProbability: f.PrecipitationProbability,
			Humidity:          f.Humidity,
			WindSpeed:         f.WindSpeed,
		}
	}
	return days, nil
}

// GetTodoItems returns the items of a todo list entity that still need action.
func (c *Client) GetTodoItems(ctx context.Context, entityID string) ([]TodoItem, error) {
	payload := map[string]string{
		"entity_id": entityID,
		"status":    StatusNeedsAction,
	}

	resp, err := c.doRequest(ctx, http.MethodPost,
		"/api/services/todo/get_items?return_response=true", payload)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get todo items: status %d", resp.StatusCode)
	}

	var result struct {
		ServiceResponse map[string]struct {
			Items []TodoItem `json:"items"`
		} `json:"service_response"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return result.ServiceResponse[entityID].Items, nil
}

// CompleteTodoItem marks a todo item as completed.
func (c *Client) CompleteTodoItem(ctx context.Context, entityID, itemUID string) error {
	payload := map[string]string{
		"entity_id": entityID,
		"item":      itemUID,
		"status":    StatusCompleted,
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/services/todo/update_item", payload)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to complete item %s: status %d", itemUID, resp.StatusCode)
	}
	return nil
}

// TurnOffSwitch turns off a switch or input_boolean entity. The service
// domain is derived from the entity ID prefix.
func (c *Client) TurnOffSwitch(ctx context.Context, entityID string) error {
	domain := "input_boolean"
	if i := strings.Index(entityID, "."); i > 0 {
		domain = entityID[:i]
	}

	payload := map[string]string{"entity_id": entityID}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/services/"+domain+"/turn_off", payload)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to turn off %s: status %d", entityID, resp.StatusCode)
	}
	return nil
}

// GetCalendarEvents returns events for a calendar entity within the next
// windowDays days. Event start is either a full timestamp or a date-only
// string for all-day events.
func (c *Client) GetCalendarEvents(ctx context.Context, entityID string, windowDays int) ([]CalendarEvent, error) {
	now := time.Now().UTC()
	start := now.Format("2006-01-02") + "T00:00:00Z"
	end := now.AddDate(0, 0, windowDays).Format("2006-01-02") + "T23:59:59Z"

	path := fmt.Sprintf("/api/calendars/%s?start=%s&end=%s", entityID, start, end)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get calendar events: status %d", resp.StatusCode)
	}

	var raw []struct {
		Summary string `json:"summary"`
		Start   struct {
			DateTime string `json:"dateTime"`
			Date     string `json:"date"`
		} `json:"start"`
		Location    string `json:"location"`
		Description string `json:"description"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	events := make([]CalendarEvent, len(raw))
	for i, e := range raw {
		start := e.Start.DateTime
		if start == "" {
			start = e.Start.Date
		}
		summary := e.Summary
		if summary == "" {
			summary = "No Title"
		}
		events[i] = CalendarEvent{
			Summary:     summary,
			Start:       start,
			Location:    e.Location,
			Description: e.Description,
		}
	}
	return events, nil
}

// GetBinarySensor returns a binary sensor state with its last-changed timestamp.
func (c *Client) GetBinarySensor(ctx context.Context, entityID string) (*BinarySensor, error) {
	state, err := c.GetEntityState(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	return &BinarySensor{
		State:        state.State,
		LastChanged:  state.LastChanged,
		FriendlyName: attrStr(state.Attributes, "friendly_name", entityID),
	}, nil
}

// GetSun returns sun position data for the given sun entity.
func (c *Client) GetSun(ctx context.Context, entityID string) (*Sun, error) {
	state, err := c.GetEntityState(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	attrs := state.Attributes
	sun := &Sun{
		State:       state.State,
		NextRising:  attrStr(attrs, "next_rising", ""),
		NextSetting: attrStr(attrs, "next_setting", ""),
	}
	if e := attrFloat(attrs, "elevation"); e != nil {
		sun.Elevation = *e
	}
	if rising, ok := attrs["rising"].(bool); ok {
		sun.Rising = rising
	}
	return sun, nil
}

// GetHistoryFirstOccurrence scans today's history of an entity and returns
// the last-changed timestamp of the first entry matching targetState, or ""
// when the state never occurred today.
func (c *Client) GetHistoryFirstOccurrence(ctx context.Context, entityID, targetState string) (string, error) {
	today := time.Now().UTC().Format("2006-01-02") + "T00:00:00"
	path := fmt.Sprintf("/api/history/period/%s?filter_entity_id=%s", today, entityID)

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to get history: status %d", resp.StatusCode)
	}

	// History returns a list of lists; the first element holds the
	// requested entity's entries.
	var history [][]struct {
		State       string `json:"state"`
		LastChanged string `json:"last_changed"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", nil
	}

	for _, entry := range history[0] {
		if entry.State == targetState {
			return entry.LastChanged, nil
		}
	}
	return "", nil
}

// attrStr reads a string attribute with a fallback.
func attrStr(attrs map[string]interface{}, key, fallback string) string {
	if v, ok := attrs[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// attrFloat reads a numeric attribute, returning nil when absent or not a number.
func attrFloat(attrs map[string]interface{}, key string) *float64 {
	switch v := attrs[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	default:
		return nil
	}
}
