package users

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fxgate/fxgate/internal/api"
	"github.com/fxgate/fxgate/internal/auth"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: api.NewValidator(),
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.ValidationFailed(err))
		return
	}

	user, err := h.svc.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			api.HandleError(w, api.ErrUsernameTaken)
			return
		}
		if errors.Is(err, auth.ErrSecretTooLong) {
			api.HandleError(w, api.NewValidationError(err.Error()))
			return
		}
		slog.Error("registering user", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, user)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListAll(r.Context())
	if err != nil {
		slog.Error("listing users", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if users == nil {
		users = []*User{}
	}

	api.JSON(w, http.StatusOK, users)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req UpdateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.ValidationFailed(err))
		return
	}

	user, err := h.svc.Update(r.Context(), username, req)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			api.HandleError(w, api.ErrUserNotFound)
			return
		}
		if errors.Is(err, auth.ErrSecretTooLong) || errors.Is(err, ErrNegativeCredits) {
			api.HandleError(w, api.NewValidationError(err.Error()))
			return
		}
		slog.Error("updating user", "error", err, "username", username)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, user)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	if err := h.svc.Delete(r.Context(), username); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			api.HandleError(w, api.ErrUserNotFound)
			return
		}
		slog.Error("deleting user", "error", err, "username", username)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.NoContent(w)
}
