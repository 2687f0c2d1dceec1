package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// EventTimeZone is the fixed zone the portal schedules in. Multi-timezone
// normalization is out of scope.
const EventTimeZone = "Europe/Amsterdam"

// Event is the payload for a remote calendar event create.
type Event struct {
	Subject   string
	Body      string
	StartTime time.Time
	EndTime   time.Time
	Location  string
}

// EventPatch carries partial updates. Nil fields are left untouched remotely.
type EventPatch struct {
	Subject   *string
	Body      *string
	StartTime *time.Time
	EndTime   *time.Time
	Location  *string
}

// TokenGrant is the result of a refresh-token exchange.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// EventsAPI is the remote calendar surface the mirror depends on. DeleteEvent
// reports whether the remote side confirmed the delete.
type EventsAPI interface {
	CreateEvent(ctx context.Context, accessToken string, ev Event) (string, error)
	UpdateEvent(ctx context.Context, accessToken, eventID string, patch EventPatch) error
	DeleteEvent(ctx context.Context, accessToken, eventID string) (bool, error)
}

// TokenExchanger exchanges a refresh token for a fresh grant.
type TokenExchanger interface {
	Refresh(ctx context.Context, refreshToken string) (TokenGrant, error)
}

// GraphClient talks to a Microsoft-Graph-style calendar API.
type GraphClient struct {
	httpClient   *http.Client
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
}

type GraphConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

func NewGraphClient(cfg GraphConfig) *GraphClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://graph.microsoft.com/v1.0"
	}
	return &GraphClient{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphLocation struct {
	DisplayName string `json:"displayName"`
}

type graphEvent struct {
	Subject  string         `json:"subject,omitempty"`
	Body     *graphBody     `json:"body,omitempty"`
	Start    *graphDateTime `json:"start,omitempty"`
	End      *graphDateTime `json:"end,omitempty"`
	Location *graphLocation `json:"location,omitempty"`
}

func toGraphDateTime(t time.Time) *graphDateTime {
	return &graphDateTime{DateTime: t.Format(time.RFC3339), TimeZone: EventTimeZone}
}

func (c *GraphClient) CreateEvent(ctx context.Context, accessToken string, ev Event) (string, error) {
	payload := graphEvent{
		Subject:  ev.Subject,
		Body:     &graphBody{ContentType: "text", Content: ev.Body},
		Start:    toGraphDateTime(ev.StartTime),
		End:      toGraphDateTime(ev.EndTime),
		Location: &graphLocation{DisplayName: ev.Location},
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/me/events", accessToken, payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("create event: empty event id in response")
	}
	return out.ID, nil
}

func (c *GraphClient) UpdateEvent(ctx context.Context, accessToken, eventID string, patch EventPatch) error {
	payload := graphEvent{}
	if patch.Subject != nil {
		payload.Subject = *patch.Subject
	}
	if patch.Body != nil {
		payload.Body = &graphBody{ContentType: "text", Content: *patch.Body}
	}
	if patch.StartTime != nil {
		payload.Start = toGraphDateTime(*patch.StartTime)
	}
	if patch.EndTime != nil {
		payload.End = toGraphDateTime(*patch.EndTime)
	}
	if patch.Location != nil {
		payload.Location = &graphLocation{DisplayName: *patch.Location}
	}

	return c.do(ctx, http.MethodPatch, c.baseURL+"/me/events/"+url.PathEscape(eventID), accessToken, payload, nil)
}

func (c *GraphClient) DeleteEvent(ctx context.Context, accessToken, eventID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/me/events/"+url.PathEscape(eventID), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

func (c *GraphClient) Refresh(ctx context.Context, refreshToken string) (TokenGrant, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenGrant{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenGrant{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return TokenGrant{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TokenGrant{}, fmt.Errorf("token refresh: status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return TokenGrant{}, err
	}
	if out.AccessToken == "" {
		return TokenGrant{}, fmt.Errorf("token refresh: empty access token in response")
	}
	return TokenGrant{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    out.ExpiresIn,
	}, nil
}

func (c *GraphClient) do(ctx context.Context, method, endpoint, accessToken string, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, endpoint, resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(body, out)
	}
	return nil
}
