package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pliu/cipherchat/internal/middleware"
	"github.com/pliu/cipherchat/internal/models"
	"github.com/pliu/cipherchat/internal/store"
	"github.com/pliu/cipherchat/internal/ws"
)

type RoomHandler struct {
	Store store.Store
	Hub   *ws.Hub
}

type CreateRoomRequest struct {
	Receivers []string `json:"receivers"`
}

type PostChatRequest struct {
	Content []models.Envelope `json:"content"`
}

// CreateRoom opens a room with the caller as first chatter and the
// receivers in request order. Membership is fixed from here on.
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	name := middleware.UserName(r)

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	chatters := dedupeNames(append([]string{name}, req.Receivers...))
	roomID, err := h.Store.CreateRoom(chatters)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"roomId": roomID})
}

func (h *RoomHandler) GetRooms(w http.ResponseWriter, r *http.Request) {
	name := middleware.UserName(r)

	rooms, err := h.Store.GetRoomsForUser(name)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string][]models.RoomInfo{"rooms": rooms})
}

func (h *RoomHandler) GetRoomDetail(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.Atoi(r.URL.Query().Get("roomId"))
	if err != nil {
		respondError(w, http.StatusForbidden, "Room not found")
		return
	}

	room, err := h.Store.GetRoom(roomID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, room)
}

// PostChat appends a chat to the room history, then fans it out to
// every live member except the sender. The durable write happens
// first; a failed or dropped push degrades to pull-on-next-fetch.
func (h *RoomHandler) PostChat(w http.ResponseWriter, r *http.Request) {
	name := middleware.UserName(r)

	roomID, err := strconv.Atoi(mux.Vars(r)["roomId"])
	if err != nil {
		respondError(w, http.StatusForbidden, "Room not found")
		return
	}

	var req PostChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	chatters, err := h.Store.GetRoomChatters(roomID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if !contains(chatters, name) {
		// Non-members get the same answer as a missing room, so room
		// ids are not probeable.
		respondError(w, http.StatusForbidden, "Room not found")
		return
	}

	if !coversChatters(req.Content, chatters) {
		respondError(w, http.StatusBadRequest, "content must hold exactly one envelope per room member")
		return
	}

	if _, err := h.Store.SaveChat(roomID, name, req.Content); err != nil {
		respondError(w, http.StatusInternalServerError, "Could not update chat")
		return
	}

	for _, chatter := range chatters {
		if chatter == name {
			continue
		}
		h.Hub.SendToUser(chatter, ws.NewMessage{
			Type:    ws.TypeNewMessage,
			Content: envelopesFor(req.Content, chatter),
			RoomID:  roomID,
		})
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "chat stored successfully"})
}

// dedupeNames keeps the first occurrence of each name, preserving
// order. Membership is an ordered set; a repeated receiver (or the
// caller listing itself) must not produce duplicate chatter rows.
func dedupeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// coversChatters checks the one-envelope-per-member invariant, sender
// included.
func coversChatters(content []models.Envelope, chatters []string) bool {
	if len(content) != len(chatters) {
		return false
	}
	seen := make(map[string]int, len(content))
	for _, env := range content {
		seen[env.Receiver]++
	}
	for _, chatter := range chatters {
		if seen[chatter] != 1 {
			return false
		}
	}
	return true
}

func envelopesFor(content []models.Envelope, receiver string) []models.Envelope {
	var subset []models.Envelope
	for _, env := range content {
		if env.Receiver == receiver {
			subset = append(subset, env)
		}
	}
	return subset
}
