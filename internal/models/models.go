package models

type User struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Password  string `json:"-"`
	Token     string `json:"-"`
	PublicKey string `json:"publicKey,omitempty"`
}

// Envelope is one recipient-addressed ciphertext unit within a chat.
// The server relays it opaquely; Message is ciphertext under the
// receiver's public key.
type Envelope struct {
	Receiver string `json:"receiver"`
	Message  string `json:"message"`
}

// Chat is a single history entry: one envelope per room member,
// sender included, so the sender can decrypt its own history.
type Chat struct {
	ID      int        `json:"id"`
	Sender  string     `json:"sender"`
	Content []Envelope `json:"content"`
}

type Room struct {
	ID          int      `json:"id"`
	Chatters    []string `json:"chatters"`
	ChatHistory []Chat   `json:"chatHistory"`
}

// RoomInfo is the list-view projection of a room.
type RoomInfo struct {
	ID       int      `json:"id"`
	Chatters []string `json:"chatters"`
	LastChat *Chat    `json:"lastChat,omitempty"`
}
