// Package rest reaches the hosted backend: a PostgREST-style table and RPC
// API plus a password grant token endpoint.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"fanliga/internal/core"
	"fanliga/internal/gateway"
)

const (
	restPrefix = "/rest/v1"
	authPath   = "/auth/v1/token"
)

type Config struct {
	BaseURL string
	APIKey  string
	// Timeout is disabled when zero.
	Timeout time.Duration
}

type Client struct {
	http   *resty.Client
	apiKey string
}

var _ gateway.Gateway = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid backend url %q", cfg.BaseURL)
	}
	if cfg.APIKey == "" {
		return nil, errors.New("backend api key is required")
	}

	hc := resty.New().
		SetBaseURL(base).
		SetHeader("apikey", cfg.APIKey).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if cfg.Timeout > 0 {
		hc.SetTimeout(cfg.Timeout)
	}
	return &Client{http: hc, apiKey: cfg.APIKey}, nil
}

// request prepares a call carrying the caller's token, or the anonymous key.
func (c *Client) request(ctx context.Context) *resty.Request {
	bearer := c.apiKey
	if tok, ok := gateway.AccessToken(ctx); ok {
		bearer = tok
	}
	return c.http.R().SetContext(ctx).SetAuthToken(bearer)
}

func (c *Client) ListParticipants(ctx context.Context) ([]core.Participant, error) {
	resp, err := c.request(ctx).
		SetQueryParams(map[string]string{"select": "id,name,team,photo_url", "order": "name.asc"}).
		Get(restPrefix + "/participants")
	if err := check(resp, err, "list participants"); err != nil {
		return nil, err
	}
	return decodeAll(resp.Body(), participantRecord.toDomain)
}

func (c *Client) ListPenalties(ctx context.Context) ([]core.PenaltyEntry, error) {
	resp, err := c.request(ctx).
		SetQueryParams(map[string]string{"select": "id,participant_id,amount,reason,date,created_by", "order": "date.desc"}).
		Get(restPrefix + "/penalties")
	if err := check(resp, err, "list penalties"); err != nil {
		return nil, err
	}
	return decodeAll(resp.Body(), penaltyRecord.toDomain)
}

func (c *Client) Standings(ctx context.Context, matchday int) ([]core.StandingRow, error) {
	return c.matchdayRPC(ctx, "compute_standings", matchday)
}

func (c *Client) Comparison(ctx context.Context, matchday int) ([]core.StandingRow, error) {
	return c.matchdayRPC(ctx, "compute_comparison", matchday)
}

func (c *Client) matchdayRPC(ctx context.Context, fn string, matchday int) ([]core.StandingRow, error) {
	if err := core.ValidateMatchday(matchday); err != nil {
		return nil, err
	}
	resp, err := c.request(ctx).
		SetBody(map[string]int{"p_matchday": matchday}).
		Post(restPrefix + "/rpc/" + fn)
	if err := check(resp, err, fn); err != nil {
		return nil, err
	}
	return decodeAll(resp.Body(), func(r standingRecord) (core.StandingRow, error) { return r.toDomain(matchday) })
}

func (c *Client) RankHistory(ctx context.Context, participantID string) ([]core.PositionSample, error) {
	if strings.TrimSpace(participantID) == "" {
		return nil, gateway.ErrNotFound
	}
	resp, err := c.request(ctx).
		SetBody(map[string]string{"p_participant_id": participantID}).
		Post(restPrefix + "/rpc/rank_history")
	if err := check(resp, err, "rank_history"); err != nil {
		return nil, err
	}
	return decodeAll(resp.Body(), positionRecord.toDomain)
}

func (c *Client) Matchdays(ctx context.Context) ([]int, error) {
	resp, err := c.request(ctx).
		SetBody(map[string]any{}).
		Post(restPrefix + "/rpc/list_matchdays")
	if err := check(resp, err, "list_matchdays"); err != nil {
		return nil, err
	}
	var out []int
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("%w: matchdays: %v", gateway.ErrMalformed, err)
	}
	return out, nil
}

func (c *Client) InsertPenalty(ctx context.Context, in core.PenaltyInput) (core.PenaltyEntry, error) {
	if err := in.Validate(); err != nil {
		return core.PenaltyEntry{}, err
	}
	resp, err := c.request(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(newPenaltyPayload(in)).
		Post(restPrefix + "/penalties")
	if err := check(resp, err, "insert penalty"); err != nil {
		return core.PenaltyEntry{}, err
	}
	return single(resp.Body(), penaltyRecord.toDomain)
}

func (c *Client) UpdatePenalty(ctx context.Context, id string, in core.PenaltyInput) (core.PenaltyEntry, error) {
	if err := in.Validate(); err != nil {
		return core.PenaltyEntry{}, err
	}
	resp, err := c.request(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+id).
		SetBody(newPenaltyPayload(in)).
		Patch(restPrefix + "/penalties")
	if err := check(resp, err, "update penalty"); err != nil {
		return core.PenaltyEntry{}, err
	}
	return single(resp.Body(), penaltyRecord.toDomain)
}

func (c *Client) DeletePenalty(ctx context.Context, id string) error {
	resp, err := c.request(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+id).
		Delete(restPrefix + "/penalties")
	if err := check(resp, err, "delete penalty"); err != nil {
		return err
	}
	_, err = single(resp.Body(), penaltyRecord.toDomain)
	return err
}

func (c *Client) UpdateParticipant(ctx context.Context, id string, in core.ParticipantUpdate) (core.Participant, error) {
	if err := in.Validate(); err != nil {
		return core.Participant{}, err
	}
	resp, err := c.request(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+id).
		SetBody(participantPayload{Team: in.Team, PhotoURL: in.PhotoURL}).
		Patch(restPrefix + "/participants")
	if err := check(resp, err, "update participant"); err != nil {
		return core.Participant{}, err
	}
	return single(resp.Body(), participantRecord.toDomain)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (core.Profile, gateway.Token, error) {
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		Post(authPath)
	if resp != nil && (resp.StatusCode() == http.StatusBadRequest || resp.StatusCode() == http.StatusUnprocessableEntity) {
		// invalid_grant
		return core.Profile{}, gateway.Token{}, gateway.ErrUnauthorized
	}
	if err := check(resp, err, "sign in"); err != nil {
		return core.Profile{}, gateway.Token{}, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body(), &tr); err != nil || tr.AccessToken == "" {
		return core.Profile{}, gateway.Token{}, fmt.Errorf("%w: token response", gateway.ErrMalformed)
	}
	tok := gateway.Token{AccessToken: tr.AccessToken}
	if tr.ExpiresIn > 0 {
		tok.ExpiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	profile := core.Profile{
		UserID:      string(tr.User.ID),
		Email:       tr.User.Email,
		DisplayName: tr.User.UserMetadata.DisplayName,
		Admin:       tr.User.AppMetadata.Role == "admin",
	}
	if profile.DisplayName == "" {
		profile.DisplayName = profile.Email
	}
	return profile, tok, nil
}

// check maps transport failures and HTTP status codes onto gateway errors.
func check(resp *resty.Response, err error, op string) error {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%s: %w: %v", op, gateway.ErrUnavailable, err)
	}
	if !resp.IsError() {
		return nil
	}
	var cause error
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		cause = gateway.ErrUnauthorized
	case code == http.StatusNotFound:
		cause = gateway.ErrNotFound
	case code >= 500:
		cause = gateway.ErrUnavailable
	default:
		return fmt.Errorf("%s: backend rejected request (%d): %s", op, code, strings.TrimSpace(resp.String()))
	}
	slog.Debug("Backend call failed", "op", op, "status", resp.StatusCode())
	return fmt.Errorf("%s: %w", op, cause)
}

// single decodes a representation that must contain exactly one row.
func single[R any, T any](body []byte, convert func(R) (T, error)) (T, error) {
	var zero T
	rows, err := decodeAll(body, convert)
	if err != nil {
		return zero, err
	}
	switch len(rows) {
	case 0:
		return zero, gateway.ErrNotFound
	case 1:
		return rows[0], nil
	default:
		return zero, fmt.Errorf("%w: expected one row, got %d", gateway.ErrMalformed, len(rows))
	}
}
