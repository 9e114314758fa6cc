package http

import (
	"net/http"

	"finmgr/internal/core"
	"finmgr/internal/log"
)

const profilePath = "/financial-manager/profile"

type profileView struct {
	Profile   core.Profile
	Languages []string
	Themes    []string
}

var (
	profileLanguages = []string{"en", "ar"}
	profileThemes    = []string{"light", "dark"}
)

func newProfileView(p core.Profile) profileView {
	return profileView{Profile: p, Languages: profileLanguages, Themes: profileThemes}
}

func (s *Server) profilePage(w http.ResponseWriter, r *http.Request, errMsg string) {
	p, err := s.backend(r).GetProfile(r.Context())
	if err != nil && errMsg == "" {
		s.fail(w, r, err, "Failed to load profile data.", func(w http.ResponseWriter, r *http.Request, msg string) {
			s.render(w, r, "profile.html", page{Title: "Profile", Nav: "profile", Error: msg, Data: newProfileView(core.Profile{})})
		})
		return
	}
	s.render(w, r, "profile.html", page{Title: "Profile", Nav: "profile", Error: errMsg, Data: newProfileView(p)})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.profilePage(w, r, "")
}

// handleUpdateProfile accepts the profile form either url-encoded or as JSON.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		s.showError(w, r, http.StatusBadRequest, "Invalid request format.", s.profilePage)
		return
	}
	p := core.Profile{
		Name:        parser.Get("name"),
		Email:       parser.Get("email"),
		Phone:       parser.Get("phone"),
		Address:     parser.Get("address"),
		DateOfBirth: parser.Get("date_of_birth"),
		Language:    parser.Get("language"),
		Theme:       parser.Get("theme"),
	}
	if p.DateOfBirth != "" {
		if _, err := core.ParseDate(p.DateOfBirth); err != nil {
			s.showError(w, r, http.StatusUnprocessableEntity, "Date of birth must be in YYYY-MM-DD format.", s.profilePage)
			return
		}
	}

	updated, err := s.backend(r).UpdateProfile(ctx, p)
	if err != nil {
		s.fail(w, r, err, "Error updating profile. Please try again.", s.profilePage)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Profile updated", log.FieldOperation, "update_profile")

	if !isHTMX(r) {
		http.Redirect(w, r, profilePath, http.StatusSeeOther)
		return
	}
	resp := NewHTMXResponse().TriggerSuccessNotification("Profile updated")
	s.renderPartial(w, r, resp, "profile_form", newProfileView(updated))
}
