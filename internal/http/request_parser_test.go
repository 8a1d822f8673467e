package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"fanliga/internal/aggregate"
	"fanliga/internal/core"
)

func TestPenaltyForm_Input(t *testing.T) {
	today := time.Date(2025, 9, 21, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		form    PenaltyForm
		want    core.PenaltyInput
		wantErr error
	}{
		{
			name: "comma decimal and explicit date",
			form: PenaltyForm{ParticipantID: " 2 ", Amount: "-1,5", Date: "2025-09-20", Reason: " Tarde "},
			want: core.PenaltyInput{ParticipantID: "2", Amount: -1.5, Date: "2025-09-20", Reason: "Tarde", CreatedBy: "admin@example.com"},
		},
		{
			name: "empty date defaults to today",
			form: PenaltyForm{ParticipantID: "1", Amount: "+3"},
			want: core.PenaltyInput{ParticipantID: "1", Amount: 3, Date: "2025-09-21", CreatedBy: "admin@example.com"},
		},
		{
			name: "zero is a valid amount",
			form: PenaltyForm{ParticipantID: "1", Amount: "0", Date: "2025-09-21"},
			want: core.PenaltyInput{ParticipantID: "1", Amount: 0, Date: "2025-09-21", CreatedBy: "admin@example.com"},
		},
		{
			name:    "control characters stripped before validation",
			form:    PenaltyForm{ParticipantID: "\x00\x01", Amount: "1"},
			wantErr: core.ErrNoParticipant,
		},
		{
			name:    "missing participant wins over bad amount",
			form:    PenaltyForm{Amount: "abc", Date: "ayer"},
			wantErr: core.ErrNoParticipant,
		},
		{
			name:    "bad amount",
			form:    PenaltyForm{ParticipantID: "1", Amount: "1.2.3"},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name:    "bad date",
			form:    PenaltyForm{ParticipantID: "1", Amount: "1", Date: "ayer"},
			wantErr: core.ErrInvalidDate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.form.Input("admin@example.com", today)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Input() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParticipantForm_Update(t *testing.T) {
	u, err := ParticipantForm{Team: " Los Diegos ", PhotoURL: "https://example.com/d.png"}.Update()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Team != "Los Diegos" {
		t.Errorf("Team = %q", u.Team)
	}

	if _, err := (ParticipantForm{PhotoURL: "javascript:alert(1)"}).Update(); !errors.Is(err, core.ErrInvalidPhoto) {
		t.Errorf("err = %v, want ErrInvalidPhoto", err)
	}
	if _, err := (ParticipantForm{Team: strings.Repeat("a", 81)}).Update(); !errors.Is(err, core.ErrTeamTooLong) {
		t.Errorf("err = %v, want ErrTeamTooLong", err)
	}
}

func TestDecodeForm(t *testing.T) {
	body := url.Values{
		"participant_id": {"3"},
		"amount":         {"2,5"},
		"reason":         {"Cena"},
		"csrf":           {"ignored"},
	}
	req := httptest.NewRequest(http.MethodPost, "/admin/penalties", strings.NewReader(body.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var form PenaltyForm
	if err := decodeForm(httptest.NewRecorder(), req, &form); err != nil {
		t.Fatalf("decodeForm: %v", err)
	}
	want := PenaltyForm{ParticipantID: "3", Amount: "2,5", Reason: "Cena"}
	if form != want {
		t.Errorf("form = %+v, want %+v", form, want)
	}
}

func TestDecodeForm_TooLarge(t *testing.T) {
	body := "reason=" + strings.Repeat("x", maxFormBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/admin/penalties", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var form PenaltyForm
	if err := decodeForm(httptest.NewRecorder(), req, &form); err == nil {
		t.Error("expected an error for an oversized body")
	}
}

func TestParseLedgerQuery(t *testing.T) {
	def := aggregate.LedgerQuery{SortKey: aggregate.SortByDate, Direction: aggregate.Desc, Filter: aggregate.FilterAll}

	tests := []struct {
		name  string
		query string
		want  aggregate.LedgerQuery
	}{
		{"defaults", "", def},
		{"explicit", "sort=amount&dir=asc&participant=2", aggregate.LedgerQuery{SortKey: aggregate.SortByAmount, Direction: aggregate.Asc, Filter: "2"}},
		{"case insensitive", "sort=TEAM&dir=DESC", aggregate.LedgerQuery{SortKey: aggregate.SortByTeam, Direction: aggregate.Desc, Filter: aggregate.FilterAll}},
		{"unknown values fall back", "sort=points&dir=up&participant=", def},
		{"all filter", "participant=all", def},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			if got := ParseLedgerQuery(values, def); got != tt.want {
				t.Errorf("ParseLedgerQuery(%q) = %+v, want %+v", tt.query, got, tt.want)
			}
		})
	}
}

func TestParseMatchday(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 0},
		{"matchday=3", 3},
		{"matchday=+2", 2},
		{"matchday=0", 0},
		{"matchday=-1", 0},
		{"matchday=tres", 0},
	}
	for _, tt := range tests {
		values, _ := url.ParseQuery(tt.query)
		if got := ParseMatchday(values); got != tt.want {
			t.Errorf("ParseMatchday(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  Multa\x00 por\ttarde \n"); got != "Multa por\ttarde" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
