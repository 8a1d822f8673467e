package http

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"fanliga/internal/amqp"
	"fanliga/internal/core"
	applog "fanliga/internal/log"
)

func (s *Server) penaltyInput(w http.ResponseWriter, r *http.Request) (core.PenaltyInput, bool) {
	var form PenaltyForm
	if err := decodeForm(w, r, &form); err != nil {
		slog.WarnContext(r.Context(), "Invalid penalty form", "error", err)
		BadRequestError("Formato de la petición no válido").Write(w)
		return core.PenaltyInput{}, false
	}
	in, err := form.Input(currentState(r).Profile.Email, s.now())
	if err != nil {
		UnprocessableEntityError(validationMessage(err)).Write(w)
		return core.PenaltyInput{}, false
	}
	return in, true
}

func (s *Server) handleCreatePenalty(w http.ResponseWriter, r *http.Request) {
	in, ok := s.penaltyInput(w, r)
	if !ok {
		return
	}
	e, err := s.writer.InsertPenalty(r.Context(), in)
	if err != nil {
		s.eventsFor(r).LogError(r.Context(), "Failed to insert penalty", err, applog.ComponentLedger, applog.OpCreate,
			applog.NewFields().WithPenalty("", in.ParticipantID, in.Amount))
		gatewayError(err).Write(w)
		return
	}
	s.eventsFor(r).LogPenaltyWritten(r.Context(), applog.OpCreate, e.ID, e.ParticipantID, e.Amount)

	NewHTMXResponse().
		TriggerLedgerChanged(string(amqp.PenaltyInserted), e.ID).
		TriggerFormReset().
		TriggerSuccessNotification("Entrada registrada").
		BodyHTML(fmt.Sprintf(`<div class="success">Entrada registrada: %s (%s)</div>`,
			template.HTMLEscapeString(core.FormatAmount(e.Amount)), template.HTMLEscapeString(e.Date))).
		Write(w)
}

func (s *Server) handleUpdatePenalty(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	in, ok := s.penaltyInput(w, r)
	if !ok {
		return
	}
	e, err := s.writer.UpdatePenalty(r.Context(), id, in)
	if err != nil {
		s.eventsFor(r).LogError(r.Context(), "Failed to update penalty", err, applog.ComponentLedger, applog.OpUpdate,
			applog.NewFields().WithPenalty(id, in.ParticipantID, in.Amount))
		gatewayError(err).Write(w)
		return
	}
	s.eventsFor(r).LogPenaltyWritten(r.Context(), applog.OpUpdate, e.ID, e.ParticipantID, e.Amount)

	NewHTMXResponse().
		TriggerLedgerChanged(string(amqp.PenaltyUpdated), e.ID).
		TriggerSuccessNotification("Entrada actualizada").
		BodyHTML(`<div class="success">Entrada actualizada</div>`).
		Write(w)
}

func (s *Server) handleDeletePenalty(w http.ResponseWriter, r *http.Request) {
	id := sanitizeInput(mux.Vars(r)["id"])
	if err := s.writer.DeletePenalty(r.Context(), id); err != nil {
		s.eventsFor(r).LogError(r.Context(), "Failed to delete penalty", err, applog.ComponentLedger, applog.OpDelete,
			applog.NewFields().WithPenalty(id, "", 0))
		gatewayError(err).Write(w)
		return
	}
	s.eventsFor(r).LogPenaltyWritten(r.Context(), applog.OpDelete, id, "", 0)

	NewHTMXResponse().
		TriggerLedgerChanged(string(amqp.PenaltyDeleted), id).
		TriggerSuccessNotification("Entrada eliminada").
		Write(w)
}

func (s *Server) handleUpdateParticipant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var form ParticipantForm
	if err := decodeForm(w, r, &form); err != nil {
		slog.WarnContext(r.Context(), "Invalid participant form", "error", err)
		BadRequestError("Formato de la petición no válido").Write(w)
		return
	}
	u, err := form.Update()
	if err != nil {
		UnprocessableEntityError(validationMessage(err)).Write(w)
		return
	}
	p, err := s.writer.UpdateParticipant(r.Context(), id, u)
	if err != nil {
		s.eventsFor(r).LogError(r.Context(), "Failed to update participant", err, applog.ComponentLedger, applog.OpUpdate,
			applog.NewFields().WithParticipant(id))
		gatewayError(err).Write(w)
		return
	}
	slog.InfoContext(r.Context(), "Participant updated", applog.FieldParticipantID, p.ID, applog.FieldComponent, applog.ComponentLedger)

	NewHTMXResponse().
		TriggerParticipantChanged(p.ID).
		TriggerSuccessNotification("Participante actualizado").
		BodyHTML(fmt.Sprintf(`<div class="success">%s actualizado</div>`, template.HTMLEscapeString(p.Name))).
		Write(w)
}

// validationMessage turns a validation error into a user-facing message.
func validationMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrNoParticipant):
		return "Selecciona un participante"
	case errors.Is(err, core.ErrInvalidAmount):
		return "Importe no válido"
	case errors.Is(err, core.ErrInvalidDate):
		return "Fecha no válida (AAAA-MM-DD)"
	case errors.Is(err, core.ErrReasonTooLong):
		return "Motivo demasiado largo (máximo 200 caracteres)"
	case errors.Is(err, core.ErrInvalidPhoto):
		return "La foto debe ser una URL http(s)"
	case errors.Is(err, core.ErrTeamTooLong):
		return "Nombre de equipo demasiado largo (máximo 80 caracteres)"
	}
	return "Datos no válidos: " + err.Error()
}
