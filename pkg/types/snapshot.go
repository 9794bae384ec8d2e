package types

// Status (sent after every queue or match membership change):
//   arena: string // omitted when the player is in no session; other fields are then zero
//   team_mode: "FREE_FOR_ALL" | "TWO_TEAMS" | "THREE_TEAMS"
//   state: "WAITING" | "COUNTDOWN" | "ACTIVE"
//   queued: number
//   active: number
//   required: number // players needed to start the countdown
//   team: number // -1 unless assigned
