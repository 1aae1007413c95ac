package viewer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gridworks/citygen/internal/db"
)

// Manager handles all viewer-related operations
type Manager struct {
	db       *sql.DB
	queries  *db.LoggingQueries
	tokenMgr *TokenManager
}

// NewManager creates a new viewer manager
func NewManager(database *sql.DB) *Manager {
	return &Manager{
		db:       database,
		queries:  db.NewLoggingQueries(database),
		tokenMgr: NewTokenManager(),
	}
}

// Register creates a new viewer session and returns its token
func (m *Manager) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	log.Debug("Registering new viewer", "name", req.Name)

	if err := ValidateName(req.Name); err != nil {
		return nil, fmt.Errorf("invalid name: %w", err)
	}

	sessionToken, err := m.tokenMgr.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	dbViewer, err := m.queries.CreateViewer(ctx, db.CreateViewerParams{
		Name:         req.Name,
		SessionToken: sessionToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create viewer: %w", err)
	}

	v := convertDBViewer(dbViewer)
	log.Info("Registered new viewer", "name", v.Name, "viewer_id", v.ViewerID)

	return &RegisterResponse{
		Success:      true,
		SessionToken: sessionToken,
		Viewer:       *v,
	}, nil
}

// AuthenticateToken resolves a session token to its viewer
func (m *Manager) AuthenticateToken(ctx context.Context, token string) (*Viewer, error) {
	if err := m.tokenMgr.ValidateToken(token); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	dbViewer, err := m.queries.GetViewerByToken(ctx, token)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("unknown session token")
		}
		return nil, fmt.Errorf("failed to get viewer: %w", err)
	}

	return convertDBViewer(dbViewer), nil
}

// UpdatePosition stores a viewer's latest world position and chunk
// coordinate. The caller decides what the move means for visibility.
func (m *Manager) UpdatePosition(ctx context.Context, viewerID int64, worldX, worldZ float64, chunkX, chunkZ int64) error {
	err := m.queries.UpdateViewerPosition(ctx, db.UpdateViewerPositionParams{
		ViewerID: viewerID,
		WorldX:   worldX,
		WorldZ:   worldZ,
		ChunkX:   chunkX,
		ChunkZ:   chunkZ,
	})
	if err != nil {
		return fmt.Errorf("failed to update viewer position: %w", err)
	}
	return nil
}

// CleanupStale removes viewers not seen since the cutoff duration ago
func (m *Manager) CleanupStale(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)
	if err := m.queries.CleanupStaleViewers(ctx, cutoff); err != nil {
		return fmt.Errorf("failed to cleanup stale viewers: %w", err)
	}
	return nil
}

func convertDBViewer(v db.Viewer) *Viewer {
	out := &Viewer{
		ViewerID:  v.ViewerID,
		Name:      v.Name,
		WorldX:    v.WorldX,
		WorldZ:    v.WorldZ,
		ChunkX:    v.ChunkX,
		ChunkZ:    v.ChunkZ,
		CreatedAt: v.CreatedAt,
	}
	if v.LastSeen.Valid {
		out.LastSeen = &v.LastSeen.Time
	}
	return out
}
