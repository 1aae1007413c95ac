package viewer

import (
	"time"
)

// Viewer is a registered streaming consumer observing the world.
type Viewer struct {
	ViewerID  int64      `json:"viewer_id"`
	Name      string     `json:"name"`
	WorldX    float64    `json:"world_x"`
	WorldZ    float64    `json:"world_z"`
	ChunkX    int64      `json:"chunk_x"`
	ChunkZ    int64      `json:"chunk_z"`
	CreatedAt time.Time  `json:"created_at"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

// RegisterRequest represents the request to register a viewer
type RegisterRequest struct {
	Name string `json:"name" validate:"required,min=3,max=32"`
}

// RegisterResponse carries the session token for subsequent requests
type RegisterResponse struct {
	Success      bool   `json:"success"`
	SessionToken string `json:"session_token"`
	Viewer       Viewer `json:"viewer"`
}

// UpdatePositionRequest represents the request to update viewer position
type UpdatePositionRequest struct {
	WorldX float64 `json:"world_x"`
	WorldZ float64 `json:"world_z"`
}
