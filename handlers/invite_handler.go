package handlers

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"ffinder-server/middleware"
	"ffinder-server/services"
	"ffinder-server/utils/errors"
	"ffinder-server/utils/password"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var confirmPage = template.Must(template.ParseFS(templateFS, "templates/confirm.html.tmpl"))

type InviteHandler struct {
	inviteService *services.InviteService
}

func NewInviteHandler(inviteService *services.InviteService) *InviteHandler {
	return &InviteHandler{inviteService: inviteService}
}

type confirmView struct {
	Email     string
	Action    string
	MinLength int
}

// Confirm renders the activation form linked from the invitation email.
func (h *InviteHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	invite, err := h.inviteService.Lookup(r.Context(), token)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if !invite.Pending {
		middleware.WriteError(w, r, errors.ErrInviteAlreadyUsed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = confirmPage.Execute(w, confirmView{
		Email:     invite.Email,
		Action:    "/activate/" + token,
		MinLength: password.MinLength,
	})
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to render confirmation page")
	}
}

// Activate takes the form-encoded password chosen on the confirmation page.
func (h *InviteHandler) Activate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		middleware.WriteError(w, r, errors.ErrBadRequest.WithMessage("Invalid form data"))
		return
	}
	pw := r.PostForm.Get("password")
	if pw == "" {
		middleware.WriteError(w, r, errors.ErrBadRequest.WithMessage("password is required"))
		return
	}
	if _, err := h.inviteService.Activate(r.Context(), mux.Vars(r)["token"], pw); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, messageData{Message: "Account activated, you can now log in"})
}
