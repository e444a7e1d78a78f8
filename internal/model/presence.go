package model

import "time"

// Pointer is a user's last-known cursor state.
type Pointer struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Tool   string  `json:"tool,omitempty"`
	Button string  `json:"button,omitempty"`
}

// Presence is the ephemeral per-connection metadata of a room participant.
// Created on join, updated on pointer/idle events, deleted on leave or
// disconnect. No tombstone needed.
type Presence struct {
	ConnectionID string    `json:"socketId"`
	Username     string    `json:"username"`
	Color        string    `json:"color"`
	Pointer      Pointer   `json:"pointer"`
	Idle         bool      `json:"idle"`
	LastActive   time.Time `json:"lastActive"`
}
