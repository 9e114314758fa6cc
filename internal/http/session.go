package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"finmgr/internal/adapters"
	"finmgr/internal/apiclient"
	"finmgr/internal/log"
	"finmgr/internal/services"
	"finmgr/internal/session"
)

const (
	sessionCookie = "finmgr_session"
	loginPath     = "/login"
	dashboardPath = "/financial-manager/dashboard"
)

type sessionKey struct{}

// page is the data every full-page template receives.
type page struct {
	Title    string
	Nav      string
	Username string
	Error    string
	Notice   string
	Data     any
}

func withSession(ctx context.Context, sess session.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// currentSession returns the session attached by requireSession.
func currentSession(ctx context.Context) session.Session {
	sess, _ := ctx.Value(sessionKey{}).(session.Session)
	return sess
}

// shortID is the part of a session id that is safe to log.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// lookupSession resolves the request's cookie to a live, authenticated session.
func (s *Server) lookupSession(r *http.Request) (session.Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return session.Session{}, false
	}
	sess, err := s.sessions.Get(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Session lookup failed",
				log.FieldComponent, log.ComponentSession,
				log.FieldError, err)
		}
		return session.Session{}, false
	}
	return sess, sess.Authenticated()
}

// requireSession sends visitors without a usable session to the login page.
func (s *Server) requireSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.lookupSession(r)
		if !ok {
			if sess.ID != "" {
				// Tokens were cleared by a failed refresh.
				s.endSession(r.Context(), sess.ID)
			}
			s.redirectToLogin(w, r)
			return
		}
		ctx := withSession(r.Context(), sess)
		logger := log.FromContext(ctx).With(log.FieldSessionID, shortID(sess.ID))
		ctx = log.NewContext(ctx, logger)
		next(w, r.WithContext(ctx))
	})
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	if isHTMX(r) {
		NewHTMXResponse().Redirect(loginPath).Write(w)
		return
	}
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

// endSession drops the session and everything cached for it.
func (s *Server) endSession(ctx context.Context, id string) {
	if err := s.sessions.Delete(ctx, id); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Failed to delete session",
			log.FieldComponent, log.ComponentSession,
			log.FieldError, err)
	}
	prefix := services.SessionKeyPrefix(id)
	s.budgets.DeletePrefix(prefix)
	s.clientNames.DeletePrefix(prefix)
}

// backend returns an API client bound to the request's session.
func (s *Server) backend(r *http.Request) *apiclient.AuthenticatedClient {
	id := currentSession(r.Context()).ID
	return s.api.For(adapters.NewSessionTokens(s.sessions, id)).
		OnLogout(func(ctx context.Context) {
			s.events.LogSessionEnded(ctx, shortID(id), apiclient.ErrRefreshFailed)
		})
}

// render executes a template into a buffer so a failure never leaves a
// half-written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if p, ok := data.(page); ok && p.Username == "" {
		p.Username = currentSession(r.Context()).Username
		data = p
	}
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentTemplate,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			"template", name,
			log.FieldComponent, log.ComponentTemplate,
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// rerenderFunc redraws a full page with an error banner.
type rerenderFunc func(w http.ResponseWriter, r *http.Request, errMsg string)

// fail reports a failed backend call. A failed refresh ends the session and
// sends the user to the login page; anything else becomes msg in a banner.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, msg string, rerender rerenderFunc) {
	ctx := r.Context()
	if errors.Is(err, apiclient.ErrRefreshFailed) {
		s.endSession(ctx, currentSession(ctx).ID)
		s.redirectToLogin(w, r)
		return
	}

	errType := log.ErrorTypeUpstream
	if errors.Is(err, apiclient.ErrNetwork) {
		errType = log.ErrorTypeNetwork
	}
	log.FromContext(ctx).ErrorContext(ctx, msg,
		log.FieldPath, r.URL.Path,
		log.FieldErrorType, errType,
		log.FieldError, err)

	s.showError(w, r, statusFor(err), msg, rerender)
}

// showError renders msg as a banner: swapped in for htmx requests, on a
// redrawn page otherwise.
func (s *Server) showError(w http.ResponseWriter, r *http.Request, status int, msg string, rerender rerenderFunc) {
	if isHTMX(r) || rerender == nil {
		ErrorResponse(status, msg).Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	rerender(w, r, msg)
}

func statusFor(err error) int {
	var se *apiclient.StatusError
	switch {
	case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
		return http.StatusNotFound
	case errors.As(err, &se) && se.StatusCode == http.StatusBadRequest:
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// done answers a successful action: htmx gets the swap content and
// triggers, plain forms are redirected back to the list.
func (s *Server) done(w http.ResponseWriter, r *http.Request, back string, resp *HTMXResponseBuilder) {
	if isHTMX(r) {
		resp.Write(w)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// renderPartial executes a named template into resp and writes it.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, resp *HTMXResponseBuilder, name string, data any) {
	if s.templates == nil {
		InternalServerError("Templates not loaded.").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Partial execution failed",
			"template", name,
			log.FieldComponent, log.ComponentTemplate,
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
		InternalServerError("Something went wrong. Please reload the page.").Write(w)
		return
	}
	resp.BodyHTML(buf.String()).Write(w)
}
