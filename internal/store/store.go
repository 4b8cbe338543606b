package store

import (
	"errors"

	"github.com/pliu/cipherchat/internal/models"
)

var (
	ErrNameTaken        = errors.New("name is already used")
	ErrUnknownUser      = errors.New("unknown user")
	ErrRoomNotFound     = errors.New("room not found")
	ErrIDSpaceExhausted = errors.New("id space exhausted")
)

type Store interface {
	// User operations
	CreateUser(user *models.User) error
	GetUserByName(name string) (*models.User, error)
	GetUserByToken(token string) (*models.User, error)
	UpdateUserToken(name, token string) error

	// Room operations
	CreateRoom(chatters []string) (int, error)
	GetRoom(roomID int) (*models.Room, error)
	GetRoomChatters(roomID int) ([]string, error)
	GetRoomsForUser(name string) ([]models.RoomInfo, error)
	SaveChat(roomID int, sender string, content []models.Envelope) (int, error)
}
