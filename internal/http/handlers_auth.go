package http

import (
	"errors"
	"net/http"

	"finmgr/internal/apiclient"
	"finmgr/internal/log"
	"finmgr/internal/session"
)

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request, errMsg string) {
	s.render(w, r, "login.html", page{Title: "Login", Error: errMsg})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.lookupSession(r); ok {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	s.loginPage(w, r, "")
}

// handleLogin exchanges credentials for backend tokens and opens a session.
// The tokens stay server side; the browser only gets the session id.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentAuth)

	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		s.showError(w, r, http.StatusBadRequest, "Invalid request format.", s.loginPage)
		return
	}
	username := body.Get("username")
	password := body.Raw("password")
	if username == "" || password == "" {
		s.showError(w, r, http.StatusUnprocessableEntity, "Username and password are required.", s.loginPage)
		return
	}

	tokens, err := s.api.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, apiclient.ErrInvalidCredentials) {
			logger.WarnContext(ctx, "Login rejected",
				log.FieldUsername, username,
				log.FieldOperation, log.OpLogin,
				log.FieldErrorType, log.ErrorTypeAuth)
			s.showError(w, r, http.StatusUnauthorized, "Invalid credentials. Please try again.", s.loginPage)
			return
		}
		logger.ErrorContext(ctx, "Login failed",
			log.FieldUsername, username,
			log.FieldOperation, log.OpLogin,
			log.FieldError, err)
		s.showError(w, r, statusFor(err), "Login failed. Please try again later.", s.loginPage)
		return
	}

	sess, err := s.sessions.Create(ctx, username, session.Tokens{Access: tokens.Access, Refresh: tokens.Refresh})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create session",
			log.FieldOperation, log.OpCreate,
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldError, err)
		s.showError(w, r, http.StatusInternalServerError, "Login failed. Please try again later.", s.loginPage)
		return
	}

	logger.InfoContext(ctx, "User logged in",
		log.FieldUsername, username,
		log.FieldSessionID, shortID(sess.ID),
		log.FieldOperation, log.OpLogin)

	s.setSessionCookie(w, sess)
	if isHTMX(r) {
		NewHTMXResponse().Redirect(dashboardPath).Write(w)
		return
	}
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		s.endSession(r.Context(), c.Value)
		log.FromContext(r.Context()).InfoContext(r.Context(), "User logged out",
			log.FieldComponent, log.ComponentAuth,
			log.FieldSessionID, shortID(c.Value),
			log.FieldOperation, log.OpLogout)
	}
	s.redirectToLogin(w, r)
}
