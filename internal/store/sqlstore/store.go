package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/pliu/cipherchat/internal/models"
	"github.com/pliu/cipherchat/internal/store"
)

// idSpace bounds randomly generated room and chat ids. maxIDAttempts
// bounds the collision-retry loop so a nearly full id space surfaces
// ErrIDSpaceExhausted instead of spinning forever.
const (
	idSpace       = 100000
	maxIDAttempts = 100
)

type SQLStore struct {
	db         *sql.DB
	driverName string
}

func New(driverName, dataSourceName string) (*SQLStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLStore{db: db, driverName: driverName}
	s.createTables()
	return s, nil
}

func (s *SQLStore) createTables() {
	// Simplified for brevity, ideally use migrations
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		token TEXT,
		public_key TEXT
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS chatters (
		room_id INTEGER,
		name TEXT,
		position INTEGER NOT NULL,
		PRIMARY KEY (room_id, name),
		FOREIGN KEY (room_id) REFERENCES rooms(id)
	);

	CREATE TABLE IF NOT EXISTS chats (
		room_id INTEGER,
		chat_id INTEGER,
		sender TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (room_id, chat_id),
		FOREIGN KEY (room_id) REFERENCES rooms(id)
	);

	CREATE TABLE IF NOT EXISTS envelopes (
		room_id INTEGER,
		chat_id INTEGER,
		receiver TEXT NOT NULL,
		message TEXT NOT NULL,
		position INTEGER NOT NULL,
		FOREIGN KEY (room_id, chat_id) REFERENCES chats(room_id, chat_id)
	);
	`

	if s.driverName == "postgres" {
		// Adjust for Postgres syntax
		query = strings.ReplaceAll(query, "INTEGER PRIMARY KEY AUTOINCREMENT", "SERIAL PRIMARY KEY")
	}

	_, err := s.db.Exec(query)
	if err != nil {
		panic(err)
	}
}

// Helper to handle placeholders
func (s *SQLStore) rebind(query string) string {
	if s.driverName == "postgres" {
		// Replace ? with $1, $2, etc.
		n := strings.Count(query, "?")
		for i := 1; i <= n; i++ {
			query = strings.Replace(query, "?", fmt.Sprintf("$%d", i), 1)
		}
	}
	return query
}

func (s *SQLStore) CreateUser(user *models.User) error {
	var exists bool
	query := s.rebind("SELECT EXISTS(SELECT 1 FROM users WHERE name = ?)")
	if err := s.db.QueryRow(query, user.Name).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return store.ErrNameTaken
	}

	query = s.rebind("INSERT INTO users (name, password, token, public_key) VALUES (?, ?, ?, ?)")
	_, err := s.db.Exec(query, user.Name, user.Password, user.Token, user.PublicKey)
	return err
}

func (s *SQLStore) GetUserByName(name string) (*models.User, error) {
	var user models.User
	query := s.rebind("SELECT id, name, password, COALESCE(token, ''), COALESCE(public_key, '') FROM users WHERE name = ?")

	err := s.db.QueryRow(query, name).Scan(&user.ID, &user.Name, &user.Password, &user.Token, &user.PublicKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLStore) GetUserByToken(token string) (*models.User, error) {
	var user models.User
	query := s.rebind("SELECT id, name, password, COALESCE(token, ''), COALESCE(public_key, '') FROM users WHERE token = ?")

	err := s.db.QueryRow(query, token).Scan(&user.ID, &user.Name, &user.Password, &user.Token, &user.PublicKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLStore) UpdateUserToken(name, token string) error {
	query := s.rebind("UPDATE users SET token = ? WHERE name = ?")
	result, err := s.db.Exec(query, token, name)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return store.ErrUnknownUser
	}
	return nil
}

// CreateRoom validates every chatter name, assigns a collision-checked
// room id and records the membership in request order, all in one
// transaction so an unknown name leaves no partial state behind.
func (s *SQLStore) CreateRoom(chatters []string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	existsUser := s.rebind("SELECT EXISTS(SELECT 1 FROM users WHERE name = ?)")
	for _, name := range chatters {
		var exists bool
		if err := tx.QueryRow(existsUser, name).Scan(&exists); err != nil {
			return 0, err
		}
		if !exists {
			return 0, store.ErrUnknownUser
		}
	}

	roomID, err := s.uniqueRoomID(tx)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(s.rebind("INSERT INTO rooms (id) VALUES (?)"), roomID); err != nil {
		return 0, err
	}

	insertChatter := s.rebind("INSERT INTO chatters (room_id, name, position) VALUES (?, ?, ?)")
	for i, name := range chatters {
		if _, err := tx.Exec(insertChatter, roomID, name, i); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return roomID, nil
}

func (s *SQLStore) uniqueRoomID(tx *sql.Tx) (int, error) {
	query := s.rebind("SELECT EXISTS(SELECT 1 FROM rooms WHERE id = ?)")
	for i := 0; i < maxIDAttempts; i++ {
		id := rand.Intn(idSpace)
		var exists bool
		if err := tx.QueryRow(query, id).Scan(&exists); err != nil {
			return 0, err
		}
		if !exists {
			return id, nil
		}
	}
	return 0, store.ErrIDSpaceExhausted
}

func (s *SQLStore) GetRoomChatters(roomID int) ([]string, error) {
	var exists bool
	query := s.rebind("SELECT EXISTS(SELECT 1 FROM rooms WHERE id = ?)")
	if err := s.db.QueryRow(query, roomID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrRoomNotFound
	}

	query = s.rebind("SELECT name FROM chatters WHERE room_id = ? ORDER BY position ASC")
	rows, err := s.db.Query(query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chatters []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		chatters = append(chatters, name)
	}
	return chatters, rows.Err()
}

func (s *SQLStore) GetRoom(roomID int) (*models.Room, error) {
	chatters, err := s.GetRoomChatters(roomID)
	if err != nil {
		return nil, err
	}

	room := &models.Room{
		ID:          roomID,
		Chatters:    chatters,
		ChatHistory: []models.Chat{},
	}

	query := s.rebind("SELECT chat_id, sender FROM chats WHERE room_id = ? ORDER BY position ASC")
	rows, err := s.db.Query(query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var chat models.Chat
		if err := rows.Scan(&chat.ID, &chat.Sender); err != nil {
			return nil, err
		}
		room.ChatHistory = append(room.ChatHistory, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range room.ChatHistory {
		content, err := s.getEnvelopes(roomID, room.ChatHistory[i].ID)
		if err != nil {
			return nil, err
		}
		room.ChatHistory[i].Content = content
	}
	return room, nil
}

func (s *SQLStore) getEnvelopes(roomID, chatID int) ([]models.Envelope, error) {
	query := s.rebind("SELECT receiver, message FROM envelopes WHERE room_id = ? AND chat_id = ? ORDER BY position ASC")
	rows, err := s.db.Query(query, roomID, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var content []models.Envelope
	for rows.Next() {
		var env models.Envelope
		if err := rows.Scan(&env.Receiver, &env.Message); err != nil {
			return nil, err
		}
		content = append(content, env)
	}
	return content, rows.Err()
}

func (s *SQLStore) GetRoomsForUser(name string) ([]models.RoomInfo, error) {
	query := s.rebind("SELECT room_id FROM chatters WHERE name = ? ORDER BY room_id ASC")
	rows, err := s.db.Query(query, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roomIDs []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		roomIDs = append(roomIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	infos := []models.RoomInfo{}
	for _, roomID := range roomIDs {
		chatters, err := s.GetRoomChatters(roomID)
		if err != nil {
			return nil, err
		}
		lastChat, err := s.getLastChat(roomID)
		if err != nil {
			return nil, err
		}
		infos = append(infos, models.RoomInfo{
			ID:       roomID,
			Chatters: chatters,
			LastChat: lastChat,
		})
	}
	return infos, nil
}

func (s *SQLStore) getLastChat(roomID int) (*models.Chat, error) {
	var chat models.Chat
	query := s.rebind("SELECT chat_id, sender FROM chats WHERE room_id = ? ORDER BY position DESC LIMIT 1")
	err := s.db.QueryRow(query, roomID).Scan(&chat.ID, &chat.Sender)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	content, err := s.getEnvelopes(roomID, chat.ID)
	if err != nil {
		return nil, err
	}
	chat.Content = content
	return &chat, nil
}

// SaveChat appends a chat and its envelopes to the room history. The
// chat id is unique within the room, collision-checked under the same
// bounded retry policy as room ids.
func (s *SQLStore) SaveChat(roomID int, sender string, content []models.Envelope) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(s.rebind("SELECT EXISTS(SELECT 1 FROM rooms WHERE id = ?)"), roomID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, store.ErrRoomNotFound
	}

	chatID, err := s.uniqueChatID(tx, roomID)
	if err != nil {
		return 0, err
	}

	var position int
	if err := tx.QueryRow(s.rebind("SELECT COUNT(*) FROM chats WHERE room_id = ?"), roomID).Scan(&position); err != nil {
		return 0, err
	}

	if _, err := tx.Exec(s.rebind("INSERT INTO chats (room_id, chat_id, sender, position) VALUES (?, ?, ?, ?)"), roomID, chatID, sender, position); err != nil {
		return 0, err
	}

	insertEnvelope := s.rebind("INSERT INTO envelopes (room_id, chat_id, receiver, message, position) VALUES (?, ?, ?, ?, ?)")
	for i, env := range content {
		if _, err := tx.Exec(insertEnvelope, roomID, chatID, env.Receiver, env.Message, i); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return chatID, nil
}

func (s *SQLStore) uniqueChatID(tx *sql.Tx, roomID int) (int, error) {
	query := s.rebind("SELECT EXISTS(SELECT 1 FROM chats WHERE room_id = ? AND chat_id = ?)")
	for i := 0; i < maxIDAttempts; i++ {
		id := rand.Intn(idSpace)
		var exists bool
		if err := tx.QueryRow(query, roomID, id).Scan(&exists); err != nil {
			return 0, err
		}
		if !exists {
			return id, nil
		}
	}
	return 0, store.ErrIDSpaceExhausted
}
