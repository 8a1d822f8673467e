package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"fanliga/internal/core"
	"fanliga/internal/gateway"
	applog "fanliga/internal/log"
	"fanliga/internal/session"
	"fanliga/internal/views"
)

const sessionCookie = "fanliga_session"

type sessionKey struct{}

// page is the data every full-page template receives.
type page struct {
	Title   string
	Active  string
	Session session.State
	View    any
}

// withSession attaches the caller's session, and its access token, to the
// request context.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		sess := s.sessions.Get(c.Value)
		if sess == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(sess.Context(r.Context()), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentSession(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(sessionKey{}).(*session.Session)
	return sess
}

func currentState(r *http.Request) session.State {
	if sess := currentSession(r); sess != nil {
		return sess.Machine.State()
	}
	return session.State{Kind: session.Anonymous}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// requireAdmin rejects callers without an administrator session.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := currentState(r)
		switch {
		case state.Admin():
			next.ServeHTTP(w, r)
		case state.SignedIn():
			slog.WarnContext(r.Context(), "Admin action denied", "user_id", state.Profile.UserID, "path", r.URL.Path)
			ForbiddenError("Solo los administradores pueden modificar la liga").Write(w)
		case isHTMX(r):
			UnauthorizedError("Inicia sesión para continuar").Redirect("/login").Write(w)
		default:
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		}
	})
}

// render executes a full page template. Output is buffered so a failing
// template never leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	p.Session = currentState(r)
	s.execute(w, r, status, name, p)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
		InternalServerError("Error al mostrar la página").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// discarded reports whether the view load was abandoned because the client
// went away; nothing must be written in that case.
func discarded(r *http.Request, err error) bool {
	if errors.Is(err, views.ErrDiscarded) {
		slog.DebugContext(r.Context(), "View discarded", "path", r.URL.Path)
		return true
	}
	return false
}

// gatewayError maps a failed write to a response.
func gatewayError(err error) *HTMXResponseBuilder {
	switch {
	case errors.Is(err, gateway.ErrUnauthorized):
		return UnauthorizedError("Sesión caducada, vuelve a iniciar sesión").Redirect("/login")
	case errors.Is(err, gateway.ErrNotFound):
		return NotFoundError("El registro ya no existe")
	case isValidation(err):
		return UnprocessableEntityError(validationMessage(err))
	case errors.Is(err, gateway.ErrMalformed):
		return UnprocessableEntityError("El servidor rechazó los datos")
	case errors.Is(err, gateway.ErrUnavailable):
		return ErrorResponse(http.StatusServiceUnavailable, "Servidor de datos no disponible").
			TriggerErrorNotification("Servidor de datos no disponible")
	default:
		return InternalServerError("Error al guardar los cambios").
			TriggerErrorNotification("Error al guardar los cambios")
	}
}

func isValidation(err error) bool {
	for _, target := range []error{
		core.ErrNoParticipant, core.ErrInvalidAmount, core.ErrInvalidDate,
		core.ErrReasonTooLong, core.ErrInvalidPhoto, core.ErrTeamTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// eventsFor logs through the request logger so entries carry the request id.
func (s *Server) eventsFor(r *http.Request) *applog.StructuredLogger {
	return applog.NewStructuredLogger(applog.FromContext(r.Context()))
}
