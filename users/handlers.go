package users

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/user/users-service/apperror"
)

// UserHandlers provides HTTP handlers for the users API and the index page.
// It holds a reference to the `UserService`, which contains the business logic.
type UserHandlers struct {
	service *UserService
	logger  *zap.Logger
	index   *template.Template
}

// NewUserHandlers creates new UserHandlers.
func NewUserHandlers(service *UserService, logger *zap.Logger) *UserHandlers {
	return &UserHandlers{
		service: service,
		logger:  logger,
		index:   indexTemplate,
	}
}

// RegisterRoutes registers the index page and the /users resources on router.
func (h *UserHandlers) RegisterRoutes(router chi.Router) {
	router.Get("/", h.HandleIndex())
	router.Post("/", h.HandleIndexCreate())

	router.Route("/users", func(r chi.Router) {
		r.Get("/", h.HandleListUsers())
		r.Post("/", h.HandleCreateUser())
		// Static segments win over parameters in chi, so /users/ping never reaches HandleGetUser.
		r.Get("/ping", h.HandlePing())
		r.Get("/{userID}", h.HandleGetUser())
	})
}

// HandlePing godoc
// @Summary Health check
// @Description Always answers pong, whatever the state of the store.
// @Tags users
// @Produce json
// @Success 200 {object} MessageResponse
// @Router /users/ping [get]
func (h *UserHandlers) HandlePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, MessageResponse{Status: apperror.StatusSuccess, Message: MsgPong})
	}
}

// HandleListUsers godoc
// @Summary List users
// @Description Returns every user in insertion order.
// @Tags users
// @Produce json
// @Success 200 {object} UserListResponse
// @Failure 500 {object} apperror.ErrorResponse
// @Router /users [get]
func (h *UserHandlers) HandleListUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := h.service.ListUsers(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, UserListResponse{
			Status: apperror.StatusSuccess,
			Data:   UserListData{Users: users},
		})
	}
}

// HandleCreateUser godoc
// @Summary Create a user
// @Description Creates an active user. Username and email must both be unused.
// @Tags users
// @Accept json
// @Produce json
// @Param user body CreateUserRequest true "User to create"
// @Success 201 {object} MessageResponse
// @Failure 400 {object} apperror.ErrorResponse "Invalid payload, or duplicate email/username"
// @Failure 500 {object} apperror.ErrorResponse
// @Router /users [post]
func (h *UserHandlers) HandleCreateUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		req, err := decodeCreateUserRequest(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		user, err := h.service.CreateUser(r.Context(), req)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, MessageResponse{
			Status:  apperror.StatusSuccess,
			Message: user.Email + " was added!",
		})
	}
}

// HandleGetUser godoc
// @Summary Get a user
// @Description Returns a single user. Unknown and malformed ids both answer 404.
// @Tags users
// @Produce json
// @Param userID path string true "User ID"
// @Success 200 {object} UserDetailResponse
// @Failure 404 {object} apperror.ErrorResponse
// @Failure 500 {object} apperror.ErrorResponse
// @Router /users/{userID} [get]
func (h *UserHandlers) HandleGetUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, UserDetailResponse{Status: apperror.StatusSuccess, Data: *user})
	}
}

// decodeCreateUserRequest reads the JSON body. An empty body, malformed JSON and
// wrongly typed fields are bad requests; missing or invalid fields are left to
// validation in the service.
func decodeCreateUserRequest(r *http.Request) (CreateUserRequest, error) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, apperror.NewBadRequestError(MsgInvalidPayload, err)
	}
	return req, nil
}

// writeJSON serializes data to JSON and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, `{"status":"fail","message":"failed to encode response"}`, http.StatusInternalServerError)
		}
	}
}

// writeError converts any error into the failure envelope. Errors that are not
// AppErrors become internal errors; server-side failures are logged.
func (h *UserHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := toAppError(err)
	if appErr.StatusCode() >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, appErr.StatusCode(), appErr.ToResponse())
}

func toAppError(err error) *apperror.AppError {
	appErr, ok := apperror.FromError(err)
	if !ok {
		appErr = apperror.NewInternalError("an unexpected error occurred", err)
	}
	return appErr
}
