package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pliu/cipherchat/internal/store"
)

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

// respondStoreError maps the store's error taxonomy onto HTTP statuses.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNameTaken):
		respondError(w, http.StatusUnauthorized, "Name is already used")
	case errors.Is(err, store.ErrUnknownUser):
		respondError(w, http.StatusForbidden, "Unknown User")
	case errors.Is(err, store.ErrRoomNotFound):
		respondError(w, http.StatusForbidden, "Room not found")
	default:
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
