package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tcriess/lightspeed-code/auth"
	"github.com/tcriess/lightspeed-code/persistence"
	"github.com/tcriess/lightspeed-code/types"
)

type signupRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type signinRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token string      `json:"token"`
	User  *types.User `json:"user"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	req := signupRequest{}
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := h.persister.GetUserByName(req.Name); err == nil {
		writeError(w, http.StatusConflict, errors.New("name taken"))
		return
	} else if !errors.Is(err, persistence.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	user := &types.User{
		Id:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		LastOnline:   time.Now(),
	}
	if err := h.persister.StoreUser(*user); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	token, err := h.guard.IssueToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token, User: user})
}

func (h *Handler) signin(w http.ResponseWriter, r *http.Request) {
	req := signinRequest{}
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := h.persister.GetUserByName(req.Name)
	if err != nil {
		// same response as a bad password, existence is not leaked
		writeError(w, http.StatusUnauthorized, auth.ErrUnauthorized)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, auth.ErrUnauthorized)
		return
	}
	user.LastOnline = time.Now()
	if err := h.persister.StoreUser(*user); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	token, err := h.guard.IssueToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, User: user})
}
