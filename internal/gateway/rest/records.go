package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"fanliga/internal/core"
	"fanliga/internal/gateway"
)

// flexID accepts identifiers encoded as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("identifier %s: %w", b, err)
	}
	*f = flexID(n.String())
	return nil
}

// flexAmount decodes any JSON value; anything that is not a finite number or
// a numeric string becomes 0.
type flexAmount float64

func (f *flexAmount) UnmarshalJSON(b []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		*f = 0
		return nil
	}
	if n, ok := v.(json.Number); ok {
		parsed, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			*f = 0
			return nil
		}
		v = parsed
	}
	*f = flexAmount(core.CoerceAmount(v))
	return nil
}

type participantRecord struct {
	ID       flexID  `json:"id"`
	Name     *string `json:"name"`
	Team     *string `json:"team"`
	PhotoURL *string `json:"photo_url"`
}

func (r participantRecord) toDomain() (core.Participant, error) {
	p := core.Participant{ID: string(r.ID), Name: deref(r.Name), Team: deref(r.Team), PhotoURL: deref(r.PhotoURL)}
	if err := p.Validate(); err != nil {
		return core.Participant{}, fmt.Errorf("%w: participant %q: %v", gateway.ErrMalformed, r.ID, err)
	}
	return p, nil
}

type penaltyRecord struct {
	ID            flexID     `json:"id"`
	ParticipantID flexID     `json:"participant_id"`
	Amount        flexAmount `json:"amount"`
	Reason        *string    `json:"reason"`
	Date          *string    `json:"date"`
	CreatedBy     flexID     `json:"created_by"`
}

func (r penaltyRecord) toDomain() (core.PenaltyEntry, error) {
	if r.ID == "" || r.ParticipantID == "" {
		return core.PenaltyEntry{}, fmt.Errorf("%w: penalty %q without id or participant_id", gateway.ErrMalformed, r.ID)
	}
	return core.PenaltyEntry{
		ID:            string(r.ID),
		ParticipantID: string(r.ParticipantID),
		Amount:        float64(r.Amount),
		Reason:        deref(r.Reason),
		Date:          strings.TrimSpace(deref(r.Date)),
		CreatedBy:     string(r.CreatedBy),
	}, nil
}

type penaltyPayload struct {
	ParticipantID string  `json:"participant_id"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason"`
	Date          string  `json:"date"`
	CreatedBy     string  `json:"created_by,omitempty"`
}

func newPenaltyPayload(in core.PenaltyInput) penaltyPayload {
	return penaltyPayload{
		ParticipantID: in.ParticipantID,
		Amount:        in.Amount,
		Reason:        in.Reason,
		Date:          in.Date,
		CreatedBy:     in.CreatedBy,
	}
}

type participantPayload struct {
	Team     string `json:"team"`
	PhotoURL string `json:"photo_url"`
}

type standingRecord struct {
	Matchday       int        `json:"matchday"`
	ParticipantID  flexID     `json:"participant_id"`
	Name           *string    `json:"name"`
	Team           *string    `json:"team"`
	ExternalRank   int        `json:"external_rank"`
	AdjustedRank   int        `json:"adjusted_rank"`
	ExternalPoints flexAmount `json:"external_points"`
	AdjustedPoints flexAmount `json:"adjusted_points"`
}

func (r standingRecord) toDomain(matchday int) (core.StandingRow, error) {
	if r.ParticipantID == "" {
		return core.StandingRow{}, fmt.Errorf("%w: standing row without participant_id", gateway.ErrMalformed)
	}
	if r.ExternalRank < 1 || r.AdjustedRank < 1 {
		return core.StandingRow{}, fmt.Errorf("%w: standing row %q with rank below 1", gateway.ErrMalformed, r.ParticipantID)
	}
	md := r.Matchday
	if md == 0 {
		md = matchday
	}
	return core.StandingRow{
		Matchday:       md,
		ParticipantID:  string(r.ParticipantID),
		Name:           deref(r.Name),
		Team:           deref(r.Team),
		ExternalRank:   r.ExternalRank,
		AdjustedRank:   r.AdjustedRank,
		ExternalPoints: float64(r.ExternalPoints),
		AdjustedPoints: float64(r.AdjustedPoints),
	}, nil
}

type positionRecord struct {
	Matchday int `json:"matchday"`
	Rank     int `json:"rank"`
}

func (r positionRecord) toDomain() (core.PositionSample, error) {
	if r.Matchday < 1 || r.Rank < 1 {
		return core.PositionSample{}, fmt.Errorf("%w: rank sample %d/%d", gateway.ErrMalformed, r.Matchday, r.Rank)
	}
	return core.PositionSample{Matchday: r.Matchday, Rank: r.Rank}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	User        struct {
		ID           flexID `json:"id"`
		Email        string `json:"email"`
		UserMetadata struct {
			DisplayName string `json:"display_name"`
		} `json:"user_metadata"`
		AppMetadata struct {
			Role string `json:"role"`
		} `json:"app_metadata"`
	} `json:"user"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// decodeAll validates every record; a single malformed row rejects the response.
func decodeAll[R any, T any](body []byte, convert func(R) (T, error)) ([]T, error) {
	var records []R
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrMalformed, err)
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		v, err := convert(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
