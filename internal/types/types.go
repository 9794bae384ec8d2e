package types

import (
	"github.com/dbwrush/ElytraDogfightsRedux/internal/arena"
	"github.com/dbwrush/ElytraDogfightsRedux/internal/session"
)

type ClientMessage struct {
	Type  string `json:"type"` // "Queue" | "Leave"
	Arena string `json:"arena,omitempty"`
}

const (
	MsgText     = "Message"
	MsgTeleport = "Teleport"
	MsgEffect   = "Effect"
	MsgLoadout  = "Loadout"
	MsgStatus   = "Status"
	MsgError    = "Error"
)

type ServerMessage struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Location *arena.Location `json:"location,omitempty"`
	Effect   session.Effect  `json:"effect,omitempty"`
	Mode     arena.TeamMode  `json:"team_mode,omitempty"`
	Team     *int            `json:"team,omitempty"`
	Status   *session.Status `json:"status,omitempty"`
	Error    string          `json:"error,omitempty"`
}
