// internal/models/room.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus is the lifecycle phase of a room. Transitions are monotonic:
// WAITING -> IN_GAME -> FINISHED, or WAITING -> EXPIRED if the race never starts.
type RoomStatus string

const (
	RoomWaiting  RoomStatus = "WAITING"
	RoomInGame   RoomStatus = "IN_GAME"
	RoomFinished RoomStatus = "FINISHED"
	RoomExpired  RoomStatus = "EXPIRED"
)

// Terminal reports whether the status can never change again.
func (s RoomStatus) Terminal() bool {
	return s == RoomFinished || s == RoomExpired
}

// Room represents a row in the rooms table: one transient typing-race session.
// Rooms are never deleted, only transitioned to a terminal status.
type Room struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	JoinCode         string     `json:"joinCode"`
	CreatorID        uuid.UUID  `json:"creatorId"`
	MaxPlayers       int        `json:"maxPlayers"`
	IsPrivate        bool       `json:"isPrivate"`
	Status           RoomStatus `json:"status"`
	TimeLimitSeconds int        `json:"timeLimitSeconds"`

	// CustomText, when non-empty, replaces the stock race text for this room.
	CustomText string `json:"customText,omitempty"`

	// CodeValid is flipped to false when the race starts, closing joins even
	// if a later status write races with a join attempt.
	CodeValid bool `json:"codeValid"`

	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RoomSnapshot is the polling read model: the room plus everything a waiting
// or racing client needs to render its view.
type RoomSnapshot struct {
	Room         Room          `json:"room"`
	Members      []RoomMember  `json:"members"`
	SpeedRecords []SpeedRecord `json:"speedRecords"`
}
