package users

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jogardn/food-orders/internal/auth"
	"github.com/jogardn/food-orders/internal/store"
	"github.com/jogardn/food-orders/pkg/models"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	service *Service
	logger  *logrus.Logger
}

func NewHandler(service *Service, logger *logrus.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the anonymous endpoints on public and the ones that
// need a bearer token on private.
func (h *Handler) RegisterRoutes(public, private *mux.Router) {
	public.HandleFunc("/user/create/", h.CreateUser).Methods(http.MethodPost)
	public.HandleFunc("/auth/token/", h.Token).Methods(http.MethodPost)
	public.HandleFunc("/auth/refresh/", h.Refresh).Methods(http.MethodPost)
	public.HandleFunc("/user/reset-password/", h.RequestPasswordReset).Methods(http.MethodPost)
	public.HandleFunc("/user/reset-password/confirm/", h.ConfirmPasswordReset).Methods(http.MethodPost)

	private.HandleFunc("/user/me/", h.Me).Methods(http.MethodGet)
	private.HandleFunc("/user/change-password/", h.ChangePassword).Methods(http.MethodPut)
	private.HandleFunc("/auth/revoke/", h.Revoke).Methods(http.MethodPost)
}

type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body", nil)
		return false
	}
	return true
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Name, req.Password)
	switch {
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrEmailTaken):
		h.respondWithError(w, http.StatusBadRequest, "Invalid user", map[string]string{"email": err.Error()})
	case errors.Is(err, ErrNameRequired):
		h.respondWithError(w, http.StatusBadRequest, "Invalid user", map[string]string{"name": err.Error()})
	case errors.Is(err, auth.ErrPasswordTooShort):
		h.respondWithError(w, http.StatusBadRequest, "Invalid user", map[string]string{"password": err.Error()})
	case err != nil:
		h.internalError(w, err, "Failed to create user")
	default:
		h.respondWithJSON(w, http.StatusCreated, user)
	}
}

func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}

	pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		h.respondWithError(w, http.StatusBadRequest, "Wrong credentials", nil)
	case err != nil:
		h.internalError(w, err, "Failed to issue token")
	default:
		h.respondWithJSON(w, http.StatusOK, pair)
	}
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		h.respondWithError(w, http.StatusUnauthorized, "Refresh token is invalid or expired", nil)
	case err != nil:
		h.internalError(w, err, "Failed to refresh token")
	default:
		h.respondWithJSON(w, http.StatusOK, pair)
	}
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), auth.BearerToken(r)); err != nil {
		h.internalError(w, err, "Failed to revoke token")
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Token revoked"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := h.service.Profile(r.Context(), userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.respondWithError(w, http.StatusNotFound, "User not found", nil)
	case err != nil:
		h.internalError(w, err, "Failed to load user")
	default:
		h.respondWithJSON(w, http.StatusOK, user)
	}
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword)
	switch {
	case errors.Is(err, ErrWrongOldPassword):
		h.respondWithError(w, http.StatusBadRequest, "Old password is incorrect or similar to new one", map[string]string{"old_password": err.Error()})
	case errors.Is(err, auth.ErrPasswordTooShort):
		h.respondWithError(w, http.StatusBadRequest, "Invalid password", map[string]string{"new_password": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		h.respondWithError(w, http.StatusNotFound, "User not found", nil)
	case err != nil:
		h.internalError(w, err, "Failed to change password")
	default:
		h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Password changed"})
	}
}

// RequestPasswordReset answers the same way whether or not the address has
// an account.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.RequestPasswordReset(r.Context(), req.Email)
	switch {
	case errors.Is(err, ErrInvalidEmail):
		h.respondWithError(w, http.StatusBadRequest, "Invalid email", map[string]string{"email": err.Error()})
	case err != nil:
		h.internalError(w, err, "Failed to request password reset")
	default:
		h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "If the address has an account, a reset link has been sent",
		})
	}
}

func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword)
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		h.respondWithError(w, http.StatusBadRequest, "Invalid reset token", map[string]string{"token": err.Error()})
	case errors.Is(err, auth.ErrPasswordTooShort):
		h.respondWithError(w, http.StatusBadRequest, "Invalid password", map[string]string{"new_password": err.Error()})
	case err != nil:
		h.internalError(w, err, "Failed to reset password")
	default:
		h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Password has been reset"})
	}
}

func (h *Handler) internalError(w http.ResponseWriter, err error, message string) {
	h.logger.WithError(err).Error(message)
	h.respondWithError(w, http.StatusInternalServerError, message, nil)
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string, fieldErrors map[string]string) {
	h.respondWithJSON(w, code, models.ErrorResponse{Success: false, Message: message, Errors: fieldErrors})
}
