package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanliga/internal/core"
	"fanliga/internal/gateway"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, APIKey: "anon"})
	require.NoError(t, err)
	return c
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{BaseURL: "", APIKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{BaseURL: "http://localhost:54321", APIKey: ""})
	assert.Error(t, err)
}

func TestListParticipants(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/participants", r.URL.Path)
		assert.Equal(t, "name.asc", r.URL.Query().Get("order"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon", r.Header.Get("Authorization"))
		io.WriteString(w, `[{"id":1,"name":"Ana","team":null,"photo_url":null},{"id":"2","name":"Bruno","team":"Atleti"}]`)
	})
	ps, err := c.ListParticipants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.Participant{{ID: "1", Name: "Ana"}, {ID: "2", Name: "Bruno", Team: "Atleti"}}, ps)
}

func TestListParticipantsRejectsMalformedRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":1,"name":null}]`)
	})
	_, err := c.ListParticipants(context.Background())
	assert.ErrorIs(t, err, gateway.ErrMalformed)
}

func TestListPenaltiesCoercesAmounts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "date.desc", r.URL.Query().Get("order"))
		io.WriteString(w, `[
			{"id":1,"participant_id":1,"amount":-5,"reason":"tarde","date":"2025-01-02"},
			{"id":2,"participant_id":1,"amount":null,"date":"2025-01-01"},
			{"id":3,"participant_id":1,"amount":"abc"},
			{"id":4,"participant_id":1,"amount":"3.5"}
		]`)
	})
	es, err := c.ListPenalties(context.Background())
	require.NoError(t, err)
	require.Len(t, es, 4)
	assert.Equal(t, []float64{-5, 0, 0, 3.5}, []float64{es[0].Amount, es[1].Amount, es[2].Amount, es[3].Amount})
	assert.Equal(t, "tarde", es[0].Reason)
}

func TestListPenaltiesRejectsMissingParticipant(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":1,"amount":1}]`)
	})
	_, err := c.ListPenalties(context.Background())
	assert.ErrorIs(t, err, gateway.ErrMalformed)
}

func TestStandingsRPC(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/rpc/compute_standings", r.URL.Path)
		var body map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 4, body["p_matchday"])
		io.WriteString(w, `[{"participant_id":1,"name":"Ana","external_rank":2,"adjusted_rank":1,"external_points":40,"adjusted_points":"41"}]`)
	})
	rows, err := c.Standings(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, core.StandingRow{Matchday: 4, ParticipantID: "1", Name: "Ana", ExternalRank: 2, AdjustedRank: 1, ExternalPoints: 40, AdjustedPoints: 41}, rows[0])

	_, err = c.Standings(context.Background(), 0)
	assert.ErrorIs(t, err, core.ErrInvalidMatchday)
}

func TestComparisonAndHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/rpc/compute_comparison":
			io.WriteString(w, `[{"participant_id":"a","external_rank":1,"adjusted_rank":2}]`)
		case "/rest/v1/rpc/rank_history":
			io.WriteString(w, `[{"matchday":1,"rank":3},{"matchday":2,"rank":1}]`)
		case "/rest/v1/rpc/list_matchdays":
			io.WriteString(w, `[1,2,3]`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()
	rows, err := c.Comparison(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, rows[0].AdjustedRank)

	hist, err := c.RankHistory(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []core.PositionSample{{Matchday: 1, Rank: 3}, {Matchday: 2, Rank: 1}}, hist)

	mds, err := c.Matchdays(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, mds)
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, gateway.ErrUnauthorized},
		{http.StatusForbidden, gateway.ErrUnauthorized},
		{http.StatusNotFound, gateway.ErrNotFound},
		{http.StatusBadGateway, gateway.ErrUnavailable},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})
		_, err := c.ListParticipants(context.Background())
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
	}
}

func TestWritesCarryAccessToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		switch r.Method {
		case http.MethodPost:
			var body penaltyPayload
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, -3.0, body.Amount)
			io.WriteString(w, `[{"id":10,"participant_id":"1","amount":-3,"date":"2025-02-01","reason":"x"}]`)
		case http.MethodPatch:
			assert.Equal(t, "eq.10", r.URL.Query().Get("id"))
			io.WriteString(w, `[{"id":10,"participant_id":"1","amount":2,"date":"2025-02-01"}]`)
		case http.MethodDelete:
			if r.URL.Query().Get("id") == "eq.10" {
				io.WriteString(w, `[{"id":10,"participant_id":"1","amount":2}]`)
				return
			}
			io.WriteString(w, `[]`)
		}
	})
	ctx := gateway.WithAccessToken(context.Background(), "user-token")
	in := core.PenaltyInput{ParticipantID: "1", Amount: -3, Reason: "x", Date: "2025-02-01"}

	e, err := c.InsertPenalty(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "10", e.ID)

	in.Amount = 2
	e, err = c.UpdatePenalty(ctx, "10", in)
	require.NoError(t, err)
	assert.Equal(t, 2.0, e.Amount)

	require.NoError(t, c.DeletePenalty(ctx, "10"))
	assert.ErrorIs(t, c.DeletePenalty(ctx, "11"), gateway.ErrNotFound)
}

func TestInsertValidatesBeforeCalling(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	_, err := c.InsertPenalty(context.Background(), core.PenaltyInput{Amount: 1, Date: "2025-01-01"})
	assert.ErrorIs(t, err, core.ErrNoParticipant)
	assert.False(t, called)
}

func TestUpdateParticipant(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/participants", r.URL.Path)
		io.WriteString(w, `[{"id":"4","name":"Diego","team":"Diego FC","photo_url":"https://img.test/d.png"}]`)
	})
	p, err := c.UpdateParticipant(context.Background(), "4", core.ParticipantUpdate{Team: "Diego FC", PhotoURL: "https://img.test/d.png"})
	require.NoError(t, err)
	assert.Equal(t, "Diego FC", p.Team)
}

func TestSignIn(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "ok" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		io.WriteString(w, `{"access_token":"t","expires_in":3600,"user":{"id":"u1","email":"a@b.c","app_metadata":{"role":"admin"}}}`)
	})
	profile, tok, err := c.SignIn(context.Background(), "a@b.c", "ok")
	require.NoError(t, err)
	assert.Equal(t, "t", tok.AccessToken)
	assert.False(t, tok.ExpiresAt.IsZero())
	assert.True(t, profile.Admin)
	assert.Equal(t, "a@b.c", profile.DisplayName)

	_, _, err = c.SignIn(context.Background(), "a@b.c", "bad")
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
}
