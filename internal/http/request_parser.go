// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Admin forms decode through gorilla/schema; query strings map onto ledger
// queries and matchday selections.

package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/schema"

	"fanliga/internal/aggregate"
	"fanliga/internal/core"
)

// maxFormBytes caps admin form bodies.
const maxFormBytes = 64 << 10

var formDecoder = newFormDecoder()

func newFormDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.ZeroEmpty(true)
	return d
}

// PenaltyForm is the admin form for creating or editing a ledger entry.
// Amount stays text so both decimal separators are accepted.
type PenaltyForm struct {
	ParticipantID string `schema:"participant_id"`
	Amount        string `schema:"amount"`
	Reason        string `schema:"reason"`
	Date          string `schema:"date"`
}

// Input converts the form to a validated PenaltyInput. An empty date means
// today. A missing participant is reported before any other field.
func (f PenaltyForm) Input(createdBy string, today time.Time) (core.PenaltyInput, error) {
	participantID := sanitizeInput(f.ParticipantID)
	if participantID == "" {
		return core.PenaltyInput{}, core.ErrNoParticipant
	}
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return core.PenaltyInput{}, err
	}
	date := sanitizeInput(f.Date)
	if date == "" {
		date = today.Format(core.DateLayout)
	}
	in := core.PenaltyInput{
		ParticipantID: participantID,
		Amount:        amount,
		Reason:        sanitizeInput(f.Reason),
		Date:          date,
		CreatedBy:     createdBy,
	}
	if err := in.Validate(); err != nil {
		return core.PenaltyInput{}, err
	}
	return in, nil
}

// ParticipantForm is the admin form for a participant's editable fields.
type ParticipantForm struct {
	Team     string `schema:"team"`
	PhotoURL string `schema:"photo_url"`
}

func (f ParticipantForm) Update() (core.ParticipantUpdate, error) {
	u := core.ParticipantUpdate{
		Team:     sanitizeInput(f.Team),
		PhotoURL: sanitizeInput(f.PhotoURL),
	}
	if err := u.Validate(); err != nil {
		return core.ParticipantUpdate{}, err
	}
	return u, nil
}

// LoginForm carries sign-in credentials.
type LoginForm struct {
	Email    string `schema:"email"`
	Password string `schema:"password"`
}

// decodeForm parses the request body and decodes it into dst.
func decodeForm(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("parse form: %w", err)
	}
	if err := formDecoder.Decode(dst, r.PostForm); err != nil {
		return fmt.Errorf("decode form: %w", err)
	}
	return nil
}

// ParseLedgerQuery reads sort, dir and participant from query values.
// Unknown or missing values fall back to def.
func ParseLedgerQuery(query url.Values, def aggregate.LedgerQuery) aggregate.LedgerQuery {
	q := aggregate.LedgerQuery{
		SortKey:   aggregate.ParseSortKey(query.Get("sort"), def.SortKey),
		Direction: aggregate.ParseDirection(query.Get("dir"), def.Direction),
		Filter:    aggregate.FilterAll,
	}
	if f := sanitizeInput(query.Get("participant")); f != "" {
		q.Filter = f
	}
	return q
}

// ParseMatchday returns the requested matchday, or 0 (latest) when the
// parameter is missing or not a positive number.
func ParseMatchday(query url.Values) int {
	md, err := strconv.Atoi(strings.TrimSpace(query.Get("matchday")))
	if err != nil || core.ValidateMatchday(md) != nil {
		return 0
	}
	return md
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
