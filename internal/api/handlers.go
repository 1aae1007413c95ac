package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/gridworks/citygen/internal/chunk"
	"github.com/gridworks/citygen/internal/db"
	"github.com/gridworks/citygen/internal/viewer"
)

// ErrorResponse is the JSON error envelope for all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Handler serves the HTTP API. All chunk manager access goes through
// the mutex: the manager's chunk table is single-owner state and chi
// runs handlers concurrently.
type Handler struct {
	mu            sync.Mutex
	chunkManager  *chunk.Manager
	viewerManager *viewer.Manager
	queries       *db.LoggingQueries
}

func NewHandler(chunkManager *chunk.Manager, viewerManager *viewer.Manager, queries *db.LoggingQueries) *Handler {
	return &Handler{
		chunkManager:  chunkManager,
		viewerManager: viewerManager,
		queries:       queries,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	loaded := h.chunkManager.LoadedCount()
	h.mu.Unlock()

	response := map[string]interface{}{
		"status":        "healthy",
		"timestamp":     time.Now().Unix(),
		"service":       "citygen",
		"version":       "1.0.0",
		"loaded_chunks": loaded,
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// RegisterViewer creates a viewer session and returns its token.
func (h *Handler) RegisterViewer(w http.ResponseWriter, r *http.Request) {
	var req viewer.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.viewerManager.Register(ctx, req)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "failed to register viewer", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// UpdatePosition stores the viewer's new position and reconciles chunk
// visibility around it.
func (h *Handler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer.GetViewerFromContext(r.Context())
	if !ok {
		h.renderError(w, r, http.StatusUnauthorized, "viewer not found in context", nil)
		return
	}

	var req viewer.UpdatePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	h.mu.Lock()
	coord := h.chunkManager.ChunkCoordAt(req.WorldX, req.WorldZ)
	result, err := h.chunkManager.ReconcileVisibility(ctx, req.WorldX, req.WorldZ)
	h.mu.Unlock()
	if err != nil {
		log.Error("failed to reconcile visibility", "error", err,
			"viewer_id", v.ViewerID, "world_x", req.WorldX, "world_z", req.WorldZ)
		h.renderError(w, r, http.StatusInternalServerError, "failed to reconcile visibility", err)
		return
	}

	if err := h.viewerManager.UpdatePosition(ctx, v.ViewerID, req.WorldX, req.WorldZ, coord.X, coord.Z); err != nil {
		h.renderError(w, r, http.StatusInternalServerError, "failed to update position", err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}

// GetChunkSummary returns a chunk's identity and generation metadata.
func (h *Handler) GetChunkSummary(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadChunk(w, r)
	if !ok {
		return
	}

	// Visible is the one field a concurrent reconcile mutates; every
	// other field is immutable after generation.
	h.mu.Lock()
	visible := c.Visible
	h.mu.Unlock()

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]interface{}{
		"chunk_x":     c.Coord.X,
		"chunk_z":     c.Coord.Z,
		"instance_id": c.InstanceID.String(),
		"seed":        c.Seed,
		"fallback":    c.Fallback,
		"duration_ms": c.Duration.Milliseconds(),
		"tiles":       len(c.Roads.SortedTiles()),
		"buildings":   len(c.Buildings),
		"decorations": len(c.Decorations),
		"parks":       len(c.Parks),
		"visible":     visible,
	})
}

// GetChunkCells returns the macro-cell occupancy of a chunk.
func (h *Handler) GetChunkCells(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadChunk(w, r)
	if !ok {
		return
	}

	snap := chunk.Snapshot(c)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]interface{}{
		"chunk_x":   snap.Header.ChunkX,
		"chunk_z":   snap.Header.ChunkZ,
		"size":      snap.Size,
		"cell_size": snap.CellSize,
		"cells":     snap.Cells,
	})
}

// roadLink is one graph node with its outgoing connections.
type roadLink struct {
	X     int      `json:"x"`
	Z     int      `json:"z"`
	Links [][2]int `json:"links"`
}

// GetChunkRoads returns the resolved tiles and the connection graph.
func (h *Handler) GetChunkRoads(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadChunk(w, r)
	if !ok {
		return
	}

	snap := chunk.Snapshot(c)
	var links []roadLink
	for _, n := range c.Roads.SortedNodes() {
		l := roadLink{X: n.Pos.X, Z: n.Pos.Z}
		for _, conn := range c.Roads.Connections(n.Pos) {
			l.Links = append(l.Links, [2]int{conn.X, conn.Z})
		}
		links = append(links, l)
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]interface{}{
		"chunk_x":  snap.Header.ChunkX,
		"chunk_z":  snap.Header.ChunkZ,
		"fallback": c.Fallback,
		"tiles":    snap.Tiles,
		"graph":    links,
	})
}

// GetChunkFootprints returns the occupied building footprints.
func (h *Handler) GetChunkFootprints(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadChunk(w, r)
	if !ok {
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]interface{}{
		"chunk_x":   c.Coord.X,
		"chunk_z":   c.Coord.Z,
		"buildings": c.Buildings,
		"parks":     c.Parks,
	})
}

// GetChunkSnapshot streams a zstd-compressed snapshot for offline
// inspection.
func (h *Handler) GetChunkSnapshot(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadChunk(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("Content-Disposition", "attachment; filename=chunk.json.zst")
	if err := chunk.WriteSnapshot(w, c); err != nil {
		log.Error("failed to write chunk snapshot", "error", err,
			"chunk_x", c.Coord.X, "chunk_z", c.Coord.Z)
	}
}

// GetGenerationLogs returns recent generation audit rows.
func (h *Handler) GetGenerationLogs(w http.ResponseWriter, r *http.Request) {
	limit := int64(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 || parsed > 500 {
			h.renderError(w, r, http.StatusBadRequest, "limit must be between 1 and 500", err)
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	logs, err := h.queries.ListRecentGenerationLogs(ctx, limit)
	if err != nil {
		h.renderError(w, r, http.StatusInternalServerError, "failed to list generation logs", err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]interface{}{
		"logs": logs,
	})
}

// loadChunk parses the {x}/{z} route params and returns the chunk,
// generating it on demand.
func (h *Handler) loadChunk(w http.ResponseWriter, r *http.Request) (*chunk.Chunk, bool) {
	chunkX, err := strconv.ParseInt(chi.URLParam(r, "x"), 10, 64)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid chunk x coordinate", err)
		return nil, false
	}
	chunkZ, err := strconv.ParseInt(chi.URLParam(r, "z"), 10, 64)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid chunk z coordinate", err)
		return nil, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	h.mu.Lock()
	c, err := h.chunkManager.Ensure(ctx, chunk.Coord{X: chunkX, Z: chunkZ})
	h.mu.Unlock()
	if err != nil {
		log.Error("failed to load chunk", "error", err, "chunk_x", chunkX, "chunk_z", chunkZ)
		h.renderError(w, r, http.StatusInternalServerError, "failed to load chunk", err)
		return nil, false
	}
	return c, true
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	errorResponse := ErrorResponse{
		Error:   message,
		Code:    status,
		Message: message,
	}

	if err != nil {
		log.Error("API error", "error", err, "message", message, "status", status)
		// Don't expose internal errors to the client
		if status >= 500 {
			errorResponse.Error = "Internal server error"
		}
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse)
}
