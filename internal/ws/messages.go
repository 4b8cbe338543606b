package ws

import "github.com/pliu/cipherchat/internal/models"

// Message type tags shared by both directions of the channel protocol.
const (
	TypeRegister        = "register"
	TypeRequestAccepted = "requestAccepted"
	TypeNewMessage      = "newMessage"
	TypeFriendRequest   = "friendRequest"
	TypeOverallSent     = "overallSent"
)

// inboundFrame is the superset of fields a client may send. The Type
// tag selects the handler; unrelated fields are left empty.
type inboundFrame struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Requester string `json:"requester"`
	Username  string `json:"username"`
	PublicKey string `json:"publicKey"`
}

// NewMessage pushes freshly posted envelopes to a live room member.
type NewMessage struct {
	Type    string            `json:"type"`
	Content []models.Envelope `json:"content"`
	RoomID  int               `json:"roomId"`
}

// FriendRequest asks a live user to share its public key.
type FriendRequest struct {
	Type      string `json:"type"`
	Requester string `json:"requester"`
}

// RequestAccepted delivers a friend's public key back to the requester.
type RequestAccepted struct {
	Type      string `json:"type"`
	Friend    string `json:"friend"`
	PublicKey string `json:"publicKey"`
}

// OverallSent announces a user's public key to every live channel.
type OverallSent struct {
	Type       string `json:"type"`
	SenderName string `json:"senderName"`
	PublicKey  string `json:"publicKey"`
}
