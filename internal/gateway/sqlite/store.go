// Package sqlite is a local mirror of the league kept in a SQLite file.
// Standings are imported snapshots; the store never ranks anything itself.
package sqlite

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"fanliga/internal/core"
	"fanliga/internal/gateway"
	"fanliga/internal/seed"

	_ "modernc.org/sqlite"
)

const tokenTTL = 12 * time.Hour

// Credentials of the administrator allowed to sign in locally.
type Credentials struct {
	Email    string
	Password string
}

type Store struct {
	db    *sql.DB
	admin Credentials
	now   func() time.Time
}

var _ gateway.Gateway = (*Store)(nil)

func NewStore(dbPath string, admin Credentials) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, admin: admin, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Import upserts a snapshot. Standings for the imported matchdays are
// replaced as a whole; penalties already present are left untouched.
func (s *Store) Import(ctx context.Context, data seed.Data) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for _, p := range data.Participants {
		if _, err := tx.ExecContext(ctx, `INSERT INTO participants (id, name, team, photo_url) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, team = excluded.team, photo_url = excluded.photo_url`,
			p.ID, p.Name, p.Team, p.PhotoURL); err != nil {
			return fmt.Errorf("import participant %s: %w", p.ID, err)
		}
	}
	for _, e := range data.Penalties {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO penalties (id, participant_id, amount, reason, date, created_by)
			VALUES (?, ?, ?, ?, ?, ?)`, e.ID, e.ParticipantID, e.Amount, e.Reason, e.Date, e.CreatedBy); err != nil {
			return fmt.Errorf("import penalty %s: %w", e.ID, err)
		}
	}

	replaced := map[int]bool{}
	for _, r := range data.Standings {
		if !replaced[r.Matchday] {
			if _, err := tx.ExecContext(ctx, `DELETE FROM standings WHERE matchday = ?`, r.Matchday); err != nil {
				return fmt.Errorf("clear matchday %d: %w", r.Matchday, err)
			}
			replaced[r.Matchday] = true
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO standings (matchday, participant_id, external_rank, adjusted_rank, external_points, adjusted_points)
			VALUES (?, ?, ?, ?, ?, ?)`, r.Matchday, r.ParticipantID, r.ExternalRank, r.AdjustedRank, r.ExternalPoints, r.AdjustedPoints); err != nil {
			return fmt.Errorf("import standing %d/%s: %w", r.Matchday, r.ParticipantID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	slog.InfoContext(ctx, "Snapshot imported",
		"participants", len(data.Participants),
		"penalties", len(data.Penalties),
		"standings", len(data.Standings))
	return nil
}

// SeedIfEmpty imports the snapshot in dir when the database has no participants.
func (s *Store) SeedIfEmpty(ctx context.Context, dir string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM participants`).Scan(&n); err != nil {
		return fmt.Errorf("count participants: %w", err)
	}
	if n > 0 {
		return nil
	}
	data, err := seed.LoadDir(dir)
	if err != nil {
		return err
	}
	return s.Import(ctx, data)
}

func (s *Store) ListParticipants(ctx context.Context) ([]core.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, team, photo_url FROM participants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []core.Participant
	for rows.Next() {
		var p core.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.Team, &p.PhotoURL); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	coll := collate.New(language.Spanish, collate.IgnoreCase)
	slices.SortStableFunc(out, func(a, b core.Participant) int { return coll.CompareString(a.Name, b.Name) })
	return out, nil
}

func (s *Store) ListPenalties(ctx context.Context) ([]core.PenaltyEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, participant_id, amount, reason, date, created_by FROM penalties ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list penalties: %w", err)
	}
	defer rows.Close()

	var out []core.PenaltyEntry
	for rows.Next() {
		var e core.PenaltyEntry
		if err := rows.Scan(&e.ID, &e.ParticipantID, &e.Amount, &e.Reason, &e.Date, &e.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan penalty: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list penalties: %w", err)
	}

	// Stored dates may be malformed, so order by parsed instant rather than text.
	slices.SortStableFunc(out, func(a, b core.PenaltyEntry) int { return b.Instant().Compare(a.Instant()) })
	return out, nil
}

func (s *Store) Standings(ctx context.Context, matchday int) ([]core.StandingRow, error) {
	return s.snapshot(ctx, matchday, "s.adjusted_rank")
}

func (s *Store) Comparison(ctx context.Context, matchday int) ([]core.StandingRow, error) {
	return s.snapshot(ctx, matchday, "s.external_rank")
}

func (s *Store) snapshot(ctx context.Context, matchday int, orderBy string) ([]core.StandingRow, error) {
	if err := core.ValidateMatchday(matchday); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT s.matchday, s.participant_id, COALESCE(p.name, ''), COALESCE(p.team, ''),
			s.external_rank, s.adjusted_rank, s.external_points, s.adjusted_points
		FROM standings s LEFT JOIN participants p ON p.id = s.participant_id
		WHERE s.matchday = ? ORDER BY `+orderBy, matchday)
	if err != nil {
		return nil, fmt.Errorf("query standings: %w", err)
	}
	defer rows.Close()

	var out []core.StandingRow
	for rows.Next() {
		var r core.StandingRow
		if err := rows.Scan(&r.Matchday, &r.ParticipantID, &r.Name, &r.Team,
			&r.ExternalRank, &r.AdjustedRank, &r.ExternalPoints, &r.AdjustedPoints); err != nil {
			return nil, fmt.Errorf("scan standing: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) RankHistory(ctx context.Context, participantID string) ([]core.PositionSample, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM participants WHERE id = ?`, participantID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gateway.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup participant: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT matchday, adjusted_rank FROM standings WHERE participant_id = ? ORDER BY matchday`, participantID)
	if err != nil {
		return nil, fmt.Errorf("query rank history: %w", err)
	}
	defer rows.Close()

	var out []core.PositionSample
	for rows.Next() {
		var ps core.PositionSample
		if err := rows.Scan(&ps.Matchday, &ps.Rank); err != nil {
			return nil, fmt.Errorf("scan rank sample: %w", err)
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

func (s *Store) Matchdays(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT matchday FROM standings ORDER BY matchday`)
	if err != nil {
		return nil, fmt.Errorf("query matchdays: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var md int
		if err := rows.Scan(&md); err != nil {
			return nil, fmt.Errorf("scan matchday: %w", err)
		}
		out = append(out, md)
	}
	return out, rows.Err()
}

func (s *Store) InsertPenalty(ctx context.Context, in core.PenaltyInput) (core.PenaltyEntry, error) {
	if err := in.Validate(); err != nil {
		return core.PenaltyEntry{}, err
	}
	if err := s.authorize(ctx); err != nil {
		return core.PenaltyEntry{}, err
	}
	if err := s.requireParticipant(ctx, in.ParticipantID); err != nil {
		return core.PenaltyEntry{}, err
	}

	e := core.PenaltyEntry{
		ID:            uuid.NewString(),
		ParticipantID: in.ParticipantID,
		Amount:        in.Amount,
		Reason:        in.Reason,
		Date:          in.Date,
		CreatedBy:     in.CreatedBy,
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO penalties (id, participant_id, amount, reason, date, created_by) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.ParticipantID, e.Amount, e.Reason, e.Date, e.CreatedBy); err != nil {
		return core.PenaltyEntry{}, fmt.Errorf("insert penalty: %w", err)
	}

	slog.InfoContext(ctx, "Penalty saved to SQLite",
		"id", e.ID,
		"participant_id", e.ParticipantID,
		"amount", e.Amount,
		"date", e.Date)
	return e, nil
}

func (s *Store) UpdatePenalty(ctx context.Context, id string, in core.PenaltyInput) (core.PenaltyEntry, error) {
	if err := in.Validate(); err != nil {
		return core.PenaltyEntry{}, err
	}
	if err := s.authorize(ctx); err != nil {
		return core.PenaltyEntry{}, err
	}
	if err := s.requireParticipant(ctx, in.ParticipantID); err != nil {
		return core.PenaltyEntry{}, err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE penalties SET participant_id = ?, amount = ?, reason = ?, date = ?,
		created_by = CASE WHEN ? = '' THEN created_by ELSE ? END WHERE id = ?`,
		in.ParticipantID, in.Amount, in.Reason, in.Date, in.CreatedBy, in.CreatedBy, id)
	if err != nil {
		return core.PenaltyEntry{}, fmt.Errorf("update penalty: %w", err)
	}
	if err := expectOne(res); err != nil {
		return core.PenaltyEntry{}, err
	}

	var e core.PenaltyEntry
	err = s.db.QueryRowContext(ctx, `SELECT id, participant_id, amount, reason, date, created_by FROM penalties WHERE id = ?`, id).
		Scan(&e.ID, &e.ParticipantID, &e.Amount, &e.Reason, &e.Date, &e.CreatedBy)
	if err != nil {
		return core.PenaltyEntry{}, fmt.Errorf("reload penalty: %w", err)
	}
	return e, nil
}

func (s *Store) DeletePenalty(ctx context.Context, id string) error {
	if err := s.authorize(ctx); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM penalties WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete penalty: %w", err)
	}
	return expectOne(res)
}

func (s *Store) UpdateParticipant(ctx context.Context, id string, in core.ParticipantUpdate) (core.Participant, error) {
	if err := in.Validate(); err != nil {
		return core.Participant{}, err
	}
	if err := s.authorize(ctx); err != nil {
		return core.Participant{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE participants SET team = ?, photo_url = ? WHERE id = ?`, in.Team, in.PhotoURL, id)
	if err != nil {
		return core.Participant{}, fmt.Errorf("update participant: %w", err)
	}
	if err := expectOne(res); err != nil {
		return core.Participant{}, err
	}

	var p core.Participant
	err = s.db.QueryRowContext(ctx, `SELECT id, name, team, photo_url FROM participants WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Team, &p.PhotoURL)
	if err != nil {
		return core.Participant{}, fmt.Errorf("reload participant: %w", err)
	}
	return p, nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) (core.Profile, gateway.Token, error) {
	if s.admin.Email == "" || s.admin.Password == "" ||
		subtle.ConstantTimeCompare([]byte(email), []byte(s.admin.Email)) != 1 ||
		subtle.ConstantTimeCompare([]byte(password), []byte(s.admin.Password)) != 1 {
		return core.Profile{}, gateway.Token{}, gateway.ErrUnauthorized
	}

	tok := gateway.Token{AccessToken: uuid.NewString(), ExpiresAt: s.now().Add(tokenTTL).UTC()}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO access_tokens (token, email, expires_at) VALUES (?, ?, ?)`,
		tok.AccessToken, email, tok.ExpiresAt); err != nil {
		return core.Profile{}, gateway.Token{}, fmt.Errorf("store token: %w", err)
	}
	profile := core.Profile{UserID: "admin", Email: s.admin.Email, DisplayName: "Administrador", Admin: true}
	return profile, tok, nil
}

func (s *Store) authorize(ctx context.Context) error {
	tok, ok := gateway.AccessToken(ctx)
	if !ok {
		return gateway.ErrUnauthorized
	}
	var expires time.Time
	err := s.db.QueryRowContext(ctx, `SELECT expires_at FROM access_tokens WHERE token = ?`, tok).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return gateway.ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("lookup token: %w", err)
	}
	if !s.now().Before(expires) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE token = ?`, tok)
		return gateway.ErrUnauthorized
	}
	return nil
}

func (s *Store) requireParticipant(ctx context.Context, id string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM participants WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNoParticipant
	}
	if err != nil {
		return fmt.Errorf("lookup participant: %w", err)
	}
	return nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return gateway.ErrNotFound
	}
	return nil
}
