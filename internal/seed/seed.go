// Package seed reads and writes the CSV snapshots used to populate local
// backends: participants.csv, penalties.csv and standings.csv.
package seed

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"fanliga/internal/core"
)

const (
	ParticipantsFile = "participants.csv"
	PenaltiesFile    = "penalties.csv"
	StandingsFile    = "standings.csv"
)

// Data is one complete snapshot of the league.
type Data struct {
	Participants []core.Participant
	Penalties    []core.PenaltyEntry
	Standings    []core.StandingRow
}

type participantRow struct {
	ID       string `csv:"id"`
	Name     string `csv:"name"`
	Team     string `csv:"team"`
	PhotoURL string `csv:"photo_url"`
}

type penaltyRow struct {
	ID            string `csv:"id"`
	ParticipantID string `csv:"participant_id"`
	Amount        string `csv:"amount"`
	Reason        string `csv:"reason"`
	Date          string `csv:"date"`
	CreatedBy     string `csv:"created_by"`
}

type standingRow struct {
	Matchday       int    `csv:"matchday"`
	ParticipantID  string `csv:"participant_id"`
	ExternalRank   int    `csv:"external_rank"`
	AdjustedRank   int    `csv:"adjusted_rank"`
	ExternalPoints string `csv:"external_points"`
	AdjustedPoints string `csv:"adjusted_points"`
}

// LoadDir reads the snapshot files found in dir. Missing files are skipped;
// when no participants are found the demo data is returned instead.
func LoadDir(dir string) (Data, error) {
	var data Data
	var err error
	if data.Participants, err = readFile(filepath.Join(dir, ParticipantsFile), ReadParticipants); err != nil {
		return Data{}, err
	}
	if len(data.Participants) == 0 {
		return Demo(), nil
	}
	if data.Penalties, err = readFile(filepath.Join(dir, PenaltiesFile), ReadPenalties); err != nil {
		return Data{}, err
	}
	if data.Standings, err = readFile(filepath.Join(dir, StandingsFile), ReadStandings); err != nil {
		return Data{}, err
	}
	return data, nil
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	out, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// ReadParticipants decodes participants, rejecting rows without id or name.
func ReadParticipants(r io.Reader) ([]core.Participant, error) {
	var rows []participantRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, err
	}
	out := make([]core.Participant, 0, len(rows))
	for i, row := range rows {
		p := core.Participant{
			ID:       strings.TrimSpace(row.ID),
			Name:     strings.TrimSpace(row.Name),
			Team:     strings.TrimSpace(row.Team),
			PhotoURL: strings.TrimSpace(row.PhotoURL),
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ReadPenalties decodes ledger entries. Blank or non-numeric amounts become 0.
func ReadPenalties(r io.Reader) ([]core.PenaltyEntry, error) {
	var rows []penaltyRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, err
	}
	out := make([]core.PenaltyEntry, 0, len(rows))
	for i, row := range rows {
		if strings.TrimSpace(row.ID) == "" || strings.TrimSpace(row.ParticipantID) == "" {
			return nil, fmt.Errorf("row %d: %w", i+2, core.ErrEmptyID)
		}
		out = append(out, core.PenaltyEntry{
			ID:            strings.TrimSpace(row.ID),
			ParticipantID: strings.TrimSpace(row.ParticipantID),
			Amount:        core.CoerceAmount(row.Amount),
			Reason:        row.Reason,
			Date:          strings.TrimSpace(row.Date),
			CreatedBy:     row.CreatedBy,
		})
	}
	return out, nil
}

// ReadStandings decodes an imported standings snapshot.
func ReadStandings(r io.Reader) ([]core.StandingRow, error) {
	var rows []standingRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, err
	}
	out := make([]core.StandingRow, 0, len(rows))
	for i, row := range rows {
		if err := core.ValidateMatchday(row.Matchday); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if strings.TrimSpace(row.ParticipantID) == "" {
			return nil, fmt.Errorf("row %d: %w", i+2, core.ErrEmptyID)
		}
		out = append(out, core.StandingRow{
			Matchday:       row.Matchday,
			ParticipantID:  strings.TrimSpace(row.ParticipantID),
			ExternalRank:   row.ExternalRank,
			AdjustedRank:   row.AdjustedRank,
			ExternalPoints: core.CoerceAmount(row.ExternalPoints),
			AdjustedPoints: core.CoerceAmount(row.AdjustedPoints),
		})
	}
	return out, nil
}

// WritePenalties encodes ledger entries in the same layout ReadPenalties reads.
func WritePenalties(w io.Writer, entries []core.PenaltyEntry) error {
	rows := make([]penaltyRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, penaltyRow{
			ID:            e.ID,
			ParticipantID: e.ParticipantID,
			Amount:        strconv.FormatFloat(e.Amount, 'f', -1, 64),
			Reason:        e.Reason,
			Date:          e.Date,
			CreatedBy:     e.CreatedBy,
		})
	}
	return gocsv.Marshal(&rows, w)
}

// Demo is a small league used when no seed files are present.
func Demo() Data {
	participants := []core.Participant{
		{ID: "1", Name: "Ana", Team: "Las Panteras"},
		{ID: "2", Name: "Bruno", Team: "Atlético Bruno"},
		{ID: "3", Name: "Carmen", Team: "Real Carmen"},
		{ID: "4", Name: "Diego"},
	}
	penalties := []core.PenaltyEntry{
		{ID: "p1", ParticipantID: "1", Amount: -5, Reason: "Alineación fuera de plazo", Date: "2025-08-24", CreatedBy: "admin"},
		{ID: "p2", ParticipantID: "1", Amount: 3, Reason: "Ganó la porra", Date: "2025-08-31", CreatedBy: "admin"},
		{ID: "p3", ParticipantID: "2", Amount: -2, Reason: "Fichaje no comunicado", Date: "2025-08-31", CreatedBy: "admin"},
		{ID: "p4", ParticipantID: "3", Amount: 1, Reason: "Cuota pagada a tiempo", Date: "2025-09-14", CreatedBy: "admin"},
	}
	standings := []core.StandingRow{
		standing(1, "1", 3, 4, 52, 47),
		standing(1, "2", 1, 1, 61, 61),
		standing(1, "3", 4, 3, 48, 48),
		standing(1, "4", 2, 2, 55, 55),
		standing(2, "1", 2, 3, 101, 99),
		standing(2, "2", 1, 1, 110, 108),
		standing(2, "3", 4, 4, 97, 97),
		standing(2, "4", 3, 2, 100, 100),
		standing(3, "1", 3, 3, 149, 147),
		standing(3, "2", 1, 1, 158, 156),
		standing(3, "3", 2, 2, 150, 151),
		standing(3, "4", 4, 4, 141, 141),
	}
	return Data{Participants: participants, Penalties: penalties, Standings: standings}
}

func standing(md int, id string, extRank, adjRank int, extPts, adjPts float64) core.StandingRow {
	return core.StandingRow{
		Matchday:       md,
		ParticipantID:  id,
		ExternalRank:   extRank,
		AdjustedRank:   adjRank,
		ExternalPoints: extPts,
		AdjustedPoints: adjPts,
	}
}
