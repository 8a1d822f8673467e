// Package memory is an in-process gateway backed by a seed snapshot. It is
// used for local development and tests; standings are served exactly as
// imported and never recomputed.
package memory

import (
	"cmp"
	"context"
	"crypto/subtle"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"fanliga/internal/core"
	"fanliga/internal/gateway"
	"fanliga/internal/seed"
)

const tokenTTL = 12 * time.Hour

// Credentials of the single administrator account a local store accepts.
type Credentials struct {
	Email    string
	Password string
}

type Store struct {
	mu           sync.Mutex
	participants []core.Participant
	penalties    []core.PenaltyEntry
	standings    []core.StandingRow
	admin        Credentials
	tokens       map[string]time.Time
	now          func() time.Time
}

var _ gateway.Gateway = (*Store)(nil)

func New(data seed.Data, admin Credentials) *Store {
	return &Store{
		participants: slices.Clone(data.Participants),
		penalties:    slices.Clone(data.Penalties),
		standings:    slices.Clone(data.Standings),
		admin:        admin,
		tokens:       map[string]time.Time{},
		now:          time.Now,
	}
}

// NewFromFiles seeds the store from the CSV files in base, falling back to
// demo data when none are present.
func NewFromFiles(base string, admin Credentials) (*Store, error) {
	data, err := seed.LoadDir(base)
	if err != nil {
		return nil, err
	}
	return New(data, admin), nil
}

func (s *Store) ListParticipants(ctx context.Context) ([]core.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	out := slices.Clone(s.participants)
	s.mu.Unlock()

	coll := collate.New(language.Spanish, collate.IgnoreCase)
	slices.SortStableFunc(out, func(a, b core.Participant) int { return coll.CompareString(a.Name, b.Name) })
	return out, nil
}

func (s *Store) ListPenalties(ctx context.Context) ([]core.PenaltyEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	out := slices.Clone(s.penalties)
	s.mu.Unlock()

	slices.SortStableFunc(out, func(a, b core.PenaltyEntry) int { return b.Instant().Compare(a.Instant()) })
	return out, nil
}

// Standings returns the snapshot of a matchday ordered by adjusted rank.
func (s *Store) Standings(ctx context.Context, matchday int) ([]core.StandingRow, error) {
	rows, err := s.matchday(ctx, matchday)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(rows, func(a, b core.StandingRow) int { return cmp.Compare(a.AdjustedRank, b.AdjustedRank) })
	return rows, nil
}

// Comparison returns the snapshot of a matchday ordered by external rank.
func (s *Store) Comparison(ctx context.Context, matchday int) ([]core.StandingRow, error) {
	rows, err := s.matchday(ctx, matchday)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(rows, func(a, b core.StandingRow) int { return cmp.Compare(a.ExternalRank, b.ExternalRank) })
	return rows, nil
}

func (s *Store) matchday(ctx context.Context, matchday int) ([]core.StandingRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := core.ValidateMatchday(matchday); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[string]core.Participant, len(s.participants))
	for _, p := range s.participants {
		byID[p.ID] = p
	}
	var rows []core.StandingRow
	for _, r := range s.standings {
		if r.Matchday != matchday {
			continue
		}
		if p, ok := byID[r.ParticipantID]; ok {
			r.Name, r.Team = p.Name, p.Team
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func (s *Store) RankHistory(ctx context.Context, participantID string) ([]core.PositionSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findParticipant(participantID); !ok {
		return nil, gateway.ErrNotFound
	}
	var out []core.PositionSample
	for _, r := range s.standings {
		if r.ParticipantID == participantID {
			out = append(out, core.PositionSample{Matchday: r.Matchday, Rank: r.AdjustedRank})
		}
	}
	slices.SortStableFunc(out, func(a, b core.PositionSample) int { return cmp.Compare(a.Matchday, b.Matchday) })
	return out, nil
}

func (s *Store) Matchdays(ctx context.Context) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, r := range s.standings {
		out = append(out, r.Matchday)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (s *Store) InsertPenalty(ctx context.Context, in core.PenaltyInput) (core.PenaltyEntry, error) {
	if err := in.Validate(); err != nil {
		return core.PenaltyEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorize(ctx); err != nil {
		return core.PenaltyEntry{}, err
	}
	if _, ok := s.findParticipant(in.ParticipantID); !ok {
		return core.PenaltyEntry{}, core.ErrNoParticipant
	}
	e := entryFromInput(uuid.NewString(), in)
	s.penalties = append(s.penalties, e)
	return e, nil
}

func (s *Store) UpdatePenalty(ctx context.Context, id string, in core.PenaltyInput) (core.PenaltyEntry, error) {
	if err := in.Validate(); err != nil {
		return core.PenaltyEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorize(ctx); err != nil {
		return core.PenaltyEntry{}, err
	}
	if _, ok := s.findParticipant(in.ParticipantID); !ok {
		return core.PenaltyEntry{}, core.ErrNoParticipant
	}
	i := slices.IndexFunc(s.penalties, func(e core.PenaltyEntry) bool { return e.ID == id })
	if i < 0 {
		return core.PenaltyEntry{}, gateway.ErrNotFound
	}
	e := entryFromInput(id, in)
	if e.CreatedBy == "" {
		e.CreatedBy = s.penalties[i].CreatedBy
	}
	s.penalties[i] = e
	return e, nil
}

func (s *Store) DeletePenalty(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorize(ctx); err != nil {
		return err
	}
	i := slices.IndexFunc(s.penalties, func(e core.PenaltyEntry) bool { return e.ID == id })
	if i < 0 {
		return gateway.ErrNotFound
	}
	s.penalties = slices.Delete(s.penalties, i, i+1)
	return nil
}

func (s *Store) UpdateParticipant(ctx context.Context, id string, in core.ParticipantUpdate) (core.Participant, error) {
	if err := in.Validate(); err != nil {
		return core.Participant{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorize(ctx); err != nil {
		return core.Participant{}, err
	}
	i := slices.IndexFunc(s.participants, func(p core.Participant) bool { return p.ID == id })
	if i < 0 {
		return core.Participant{}, gateway.ErrNotFound
	}
	s.participants[i].Team = in.Team
	s.participants[i].PhotoURL = in.PhotoURL
	return s.participants[i], nil
}

// SignIn accepts only the configured administrator.
func (s *Store) SignIn(ctx context.Context, email, password string) (core.Profile, gateway.Token, error) {
	if err := ctx.Err(); err != nil {
		return core.Profile{}, gateway.Token{}, err
	}
	if s.admin.Email == "" || s.admin.Password == "" ||
		subtle.ConstantTimeCompare([]byte(email), []byte(s.admin.Email)) != 1 ||
		subtle.ConstantTimeCompare([]byte(password), []byte(s.admin.Password)) != 1 {
		return core.Profile{}, gateway.Token{}, gateway.ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tok := gateway.Token{AccessToken: uuid.NewString(), ExpiresAt: s.now().Add(tokenTTL)}
	s.tokens[tok.AccessToken] = tok.ExpiresAt
	profile := core.Profile{UserID: "admin", Email: s.admin.Email, DisplayName: "Administrador", Admin: true}
	return profile, tok, nil
}

// authorize must be called with s.mu held.
func (s *Store) authorize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tok, ok := gateway.AccessToken(ctx)
	if !ok {
		return gateway.ErrUnauthorized
	}
	exp, ok := s.tokens[tok]
	if !ok || !s.now().Before(exp) {
		delete(s.tokens, tok)
		return gateway.ErrUnauthorized
	}
	return nil
}

// findParticipant must be called with s.mu held.
func (s *Store) findParticipant(id string) (core.Participant, bool) {
	for _, p := range s.participants {
		if p.ID == id {
			return p, true
		}
	}
	return core.Participant{}, false
}

func entryFromInput(id string, in core.PenaltyInput) core.PenaltyEntry {
	return core.PenaltyEntry{
		ID:            id,
		ParticipantID: in.ParticipantID,
		Amount:        in.Amount,
		Reason:        in.Reason,
		Date:          in.Date,
		CreatedBy:     in.CreatedBy,
	}
}
