package handlers

import (
	"net/http"

	"aether-notes/models"
	"aether-notes/services"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.Credentials
	if err := decode(r, w, &req); err != nil {
		BadRequest(w, "Provide email and password")
		return
	}

	user, err := h.auth.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		ServiceError(w, err)
		return
	}
	JSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.Credentials
	if err := decode(r, w, &req); err != nil {
		BadRequest(w, "Provide email and password.")
		return
	}

	signed, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		ServiceError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"token": signed})
}
