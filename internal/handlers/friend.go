package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pliu/cipherchat/internal/middleware"
	"github.com/pliu/cipherchat/internal/ws"
)

type FriendHandler struct {
	Hub *ws.Hub
}

type SendKeyRequest struct {
	PublicKey string `json:"publicKey"`
}

type RequestKeyRequest struct {
	FriendName string `json:"friendName"`
}

// SendKey announces the caller's public key to every live channel.
func (h *FriendHandler) SendKey(w http.ResponseWriter, r *http.Request) {
	name := middleware.UserName(r)

	var req SendKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.Hub.Broadcast(ws.OverallSent{
		Type:       ws.TypeOverallSent,
		SenderName: name,
		PublicKey:  req.PublicKey,
	})

	respondJSON(w, http.StatusOK, map[string]string{"message": "Data sent to clients successfully"})
}

// RequestKey forwards a key request to the friend's live channel. An
// offline friend drops the request silently; there is no inbox.
func (h *FriendHandler) RequestKey(w http.ResponseWriter, r *http.Request) {
	name := middleware.UserName(r)

	var req RequestKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.Hub.SendToUser(req.FriendName, ws.FriendRequest{
		Type:      ws.TypeFriendRequest,
		Requester: name,
	})

	respondJSON(w, http.StatusOK, map[string]string{"message": "Requested friendship"})
}
