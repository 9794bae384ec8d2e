package types

// Client -> Server
// Queue:
//   arena: string // map name
//
// Leave: {} // leave whatever queue or match the player is in
//
// Server -> Client
// Message:
//   text: string
//
// Teleport:
//   location: Location
//
// Effect:
//   effect: "firework"
//
// Loadout:
//   team_mode: "FREE_FOR_ALL" | "TWO_TEAMS" | "THREE_TEAMS"
//   team: number // -1 in free-for-all, otherwise zero-based
//
// Status:
//   status: Status // see snapshot.go
//
// Error:
//   error: string
//
// Location:
//   world: string
//   x, y, z: number
//   yaw, pitch: number // optional
