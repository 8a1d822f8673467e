package core

import (
	"errors"
	"math"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the calendar date format used by the backend for penalty entries.
const DateLayout = "2006-01-02"

// MaxReasonLength caps the free-text reason of a penalty entry.
const MaxReasonLength = 200

type (
	Participant struct {
		ID       string
		Name     string
		Team     string // optional
		PhotoURL string // optional
	}

	PenaltyEntry struct {
		ID            string
		ParticipantID string
		Amount        float64 // positive = bonus, negative = penalty
		Reason        string
		Date          string // calendar date as stored remotely, may be malformed
		CreatedBy     string
	}

	// PenaltyInput is the payload for creating or updating a penalty entry.
	PenaltyInput struct {
		ParticipantID string
		Amount        float64
		Reason        string
		Date          string
		CreatedBy     string
	}

	// ParticipantUpdate carries the participant fields an administrator may edit.
	ParticipantUpdate struct {
		Team     string
		PhotoURL string
	}

	// Profile identifies an authenticated user of the backend.
	Profile struct {
		UserID      string
		Email       string
		DisplayName string
		Admin       bool
	}
)

var (
	ErrNoParticipant   = errors.New("no participant selected")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrReasonTooLong   = errors.New("reason too long (max 200 characters)")
	ErrInvalidPhoto    = errors.New("invalid photo url")
	ErrTeamTooLong     = errors.New("team name too long (max 80 characters)")
	ErrEmptyID         = errors.New("empty identifier")
	ErrEmptyName       = errors.New("empty participant name")
	ErrInvalidMatchday = errors.New("invalid matchday")
)

// Instant returns the chronological instant of the entry date.
// Unparseable or missing dates map to the zero time, the earliest possible instant.
func (e PenaltyEntry) Instant() time.Time {
	t, err := ParseDate(e.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Validate checks the participant record as received from a backend.
func (p Participant) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// DisplayTeam returns the team name or the given placeholder when empty.
func (p Participant) DisplayTeam(placeholder string) string {
	if strings.TrimSpace(p.Team) == "" {
		return placeholder
	}
	return p.Team
}

// Validate runs before any remote call; a missing participant aborts the submission.
func (in PenaltyInput) Validate() error {
	if strings.TrimSpace(in.ParticipantID) == "" {
		return ErrNoParticipant
	}
	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		return ErrInvalidAmount
	}
	if _, err := ParseDate(in.Date); err != nil {
		return err
	}
	if utf8.RuneCountInString(in.Reason) > MaxReasonLength {
		return ErrReasonTooLong
	}
	return nil
}

func (u ParticipantUpdate) Validate() error {
	if utf8.RuneCountInString(u.Team) > 80 {
		return ErrTeamTooLong
	}
	photo := strings.TrimSpace(u.PhotoURL)
	if photo == "" {
		return nil
	}
	parsed, err := url.Parse(photo)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return ErrInvalidPhoto
	}
	return nil
}

// ParseDate parses a calendar date in YYYY-MM-DD format.
// Timestamps with a time component (RFC 3339) are accepted too.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, ErrInvalidDate
}

// ValidateMatchday rejects non-positive matchday indexes.
func ValidateMatchday(matchday int) error {
	if matchday < 1 {
		return ErrInvalidMatchday
	}
	return nil
}
