package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"fanliga/internal/gateway"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	view, err := s.views.Home(r.Context())
	if discarded(r, err) {
		return
	}
	s.render(w, r, http.StatusOK, "home.html", page{Title: "Inicio", Active: "home", View: view})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	q := ParseLedgerQuery(r.URL.Query(), s.views.DefaultQuery())
	view, err := s.views.Ledger(r.Context(), q)
	if discarded(r, err) {
		return
	}
	s.render(w, r, http.StatusOK, "ledger.html", page{Title: "Multas y bonificaciones", Active: "ledger", View: view})
}

// handleLedgerPartial renders only the ledger table for htmx swaps.
func (s *Server) handleLedgerPartial(w http.ResponseWriter, r *http.Request) {
	q := ParseLedgerQuery(r.URL.Query(), s.views.DefaultQuery())
	view, err := s.views.Ledger(r.Context(), q)
	if discarded(r, err) {
		return
	}
	s.execute(w, r, http.StatusOK, "ledger_table", page{Session: currentState(r), View: view})
}

func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	view, err := s.views.Participants(r.Context())
	if discarded(r, err) {
		return
	}
	s.render(w, r, http.StatusOK, "participants.html", page{Title: "Participantes", Active: "participants", View: view})
}

func (s *Server) handleParticipant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	view, err := s.views.Participant(r.Context(), id)
	if discarded(r, err) {
		return
	}
	if errors.Is(err, gateway.ErrNotFound) {
		slog.InfoContext(r.Context(), "Participant not found", "participant_id", id)
		s.render(w, r, http.StatusNotFound, "not_found.html", page{Title: "No encontrado"})
		return
	}
	s.render(w, r, http.StatusOK, "participant.html", page{Title: view.Participant.Name, Active: "participants", View: view})
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	view, err := s.views.Standings(r.Context(), ParseMatchday(r.URL.Query()))
	if discarded(r, err) {
		return
	}
	s.render(w, r, http.StatusOK, "standings.html", page{Title: "Clasificación", Active: "standings", View: view})
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	view, err := s.views.Comparison(r.Context(), ParseMatchday(r.URL.Query()))
	if discarded(r, err) {
		return
	}
	s.render(w, r, http.StatusOK, "comparison.html", page{Title: "Comparativa", Active: "comparison", View: view})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	view, err := s.rules.Load(r.Context())
	if discarded(r, err) {
		return
	}
	s.render(w, r, http.StatusOK, "rules.html", page{Title: "Reglamento", Active: "rules", View: view})
}
