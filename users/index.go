package users

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/user/users-service/apperror"
)

//go:embed templates/*.html
var templatesFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// indexPage is the data rendered by templates/index.html.
type indexPage struct {
	Users []UserResponse
	Error string
	Form  CreateUserRequest // echoed back after a failed submission, password excluded
}

// HandleIndex renders the listing of all users.
func (h *UserHandlers) HandleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.renderIndex(w, r, http.StatusOK, indexPage{})
	}
}

// HandleIndexCreate creates a user from the form and redirects back to the
// listing (POST/redirect/GET). A rejected submission re-renders the listing
// with the error and the same status the JSON API would use.
func (h *UserHandlers) HandleIndexCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			appErr := apperror.NewBadRequestError(MsgInvalidPayload, err)
			h.renderIndex(w, r, appErr.StatusCode(), indexPage{Error: appErr.ToResponse().Message})
			return
		}
		req := CreateUserRequest{
			Username: r.PostFormValue("username"),
			Email:    r.PostFormValue("email"),
			Password: r.PostFormValue("password"),
		}

		if _, err := h.service.CreateUser(r.Context(), req); err != nil {
			appErr := toAppError(err)
			if appErr.StatusCode() >= http.StatusInternalServerError {
				h.logger.Error("index create failed", zap.Error(err))
			}
			h.renderIndex(w, r, appErr.StatusCode(), indexPage{
				Error: appErr.ToResponse().Message,
				Form:  CreateUserRequest{Username: req.Username, Email: req.Email},
			})
			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// renderIndex loads the users, executes the template into a buffer and only
// then writes the response, so a failure never produces half a page.
func (h *UserHandlers) renderIndex(w http.ResponseWriter, r *http.Request, status int, page indexPage) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("index listing failed", zap.Error(err))
		http.Error(w, "Something went wrong.", http.StatusInternalServerError)
		return
	}
	page.Users = users

	var buf bytes.Buffer
	if err := h.index.Execute(&buf, page); err != nil {
		h.logger.Error("index template failed", zap.Error(err))
		http.Error(w, "Something went wrong.", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
