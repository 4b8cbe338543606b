package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pliu/cipherchat/internal/auth"
	"github.com/pliu/cipherchat/internal/models"
	"github.com/pliu/cipherchat/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type Credentials struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type AuthHandler struct {
	Store store.Store
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if creds.Name == "" || creds.Password == "" {
		respondError(w, http.StatusBadRequest, "name and password are required")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	token := auth.NewToken()
	user := &models.User{
		Name:     creds.Name,
		Password: string(hashedPassword),
		Token:    token,
	}

	if err := h.Store.CreateUser(user); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Store.GetUserByName(creds.Name)
	if errors.Is(err, store.ErrUnknownUser) {
		respondError(w, http.StatusUnauthorized, "Either of name and password is wrong")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		respondError(w, http.StatusUnauthorized, "Either of name and password is wrong")
		return
	}

	// Each login rotates the token; only the latest one is valid.
	token := auth.NewToken()
	if err := h.Store.UpdateUserToken(user.Name, token); err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}
