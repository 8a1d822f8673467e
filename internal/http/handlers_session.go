package http

import (
	"errors"
	"log/slog"
	"net/http"

	"fanliga/internal/gateway"
	"fanliga/internal/session"
)

type loginView struct {
	Email string
	Error string
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", page{Title: "Acceso", Active: "login", View: loginView{}})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form LoginForm
	if err := decodeForm(w, r, &form); err != nil {
		slog.WarnContext(r.Context(), "Invalid login form", "error", err)
		BadRequestError("Formato de la petición no válido").Write(w)
		return
	}

	email := sanitizeInput(form.Email)
	sess, err := s.sessions.SignIn(r.Context(), email, form.Password)
	if err != nil {
		msg := "No se pudo iniciar sesión, inténtalo de nuevo"
		status := http.StatusServiceUnavailable
		if errors.Is(err, gateway.ErrUnauthorized) {
			msg = "Correo o contraseña incorrectos"
			status = http.StatusUnauthorized
		}
		s.render(w, r, status, "login.html", page{Title: "Acceso", Active: "login", View: loginView{Email: email, Error: msg}})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	if isHTMX(r) {
		NewHTMXResponse().TriggerSessionChanged(session.Authenticated.String()).Redirect("/").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.sessions.SignOut(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	if isHTMX(r) {
		NewHTMXResponse().TriggerSessionChanged(session.Anonymous.String()).Redirect("/").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
