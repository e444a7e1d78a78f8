// Package presence owns per-connection participant metadata: display
// defaults, color assignment, and the redis-backed pointer/idle state that
// feeds the stats surface.
package presence

import (
	"hash/fnv"
	"strings"
	"time"

	"whiteboard-backend/internal/model"
)

// DefaultUsername is assigned when a client joins without a display name.
const DefaultUsername = "Anonymous"

// palette of cursor colors assigned to connections without one. Picked
// deterministically from the connection id so a reconnecting client keeps
// its color.
var palette = []string{
	"#e64980", "#fa5252", "#fd7e14", "#fab005",
	"#82c91e", "#40c057", "#15aabf", "#228be6",
	"#7950f2", "#be4bdb",
}

// New builds a presence entry for a joining connection, filling in defaults
// for missing or blank user-supplied fields.
func New(connID, username, color string) model.Presence {
	username = strings.TrimSpace(username)
	if username == "" {
		username = DefaultUsername
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = ColorFor(connID)
	}
	return model.Presence{
		ConnectionID: connID,
		Username:     username,
		Color:        color,
		LastActive:   time.Now(),
	}
}

// ColorFor picks a palette color deterministically from a connection id.
func ColorFor(connID string) string {
	h := fnv.New32a()
	h.Write([]byte(connID))
	return palette[h.Sum32()%uint32(len(palette))]
}
