package db

import (
	"context"
	"time"
)

// ListBuildingArchetypes returns the building catalog in declared order.
// The order matters: archetypes are tested against their spawn
// probability in exactly this sequence.
func (q *Queries) ListBuildingArchetypes(ctx context.Context) ([]BuildingArchetype, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT archetype_id, category, footprint_width, footprint_depth,
		       spawn_probability, sort_order, variants
		FROM building_archetypes
		ORDER BY sort_order, archetype_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BuildingArchetype
	for rows.Next() {
		var a BuildingArchetype
		if err := rows.Scan(&a.ArchetypeID, &a.Category, &a.FootprintWidth,
			&a.FootprintDepth, &a.SpawnProbability, &a.SortOrder, &a.Variants); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListDecorTemplates returns the decoration catalog for one kind.
func (q *Queries) ListDecorTemplates(ctx context.Context, kind string) ([]DecorTemplate, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT template_id, kind, name, weight
		FROM decor_templates
		WHERE kind = ?
		ORDER BY template_id
	`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecorTemplate
	for rows.Next() {
		var t DecorTemplate
		if err := rows.Scan(&t.TemplateID, &t.Kind, &t.Name, &t.Weight); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateGenerationLogParams are the audit fields recorded per chunk run.
type CreateGenerationLogParams struct {
	ChunkX        int64
	ChunkZ        int64
	Seed          int64
	DurationMs    int64
	Fallback      bool
	NodeCount     int64
	TileCount     int64
	BuildingCount int64
}

// CreateGenerationLog appends one generation audit row.
func (q *Queries) CreateGenerationLog(ctx context.Context, arg CreateGenerationLogParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO generation_log (
			chunk_x, chunk_z, seed, duration_ms, fallback,
			node_count, tile_count, building_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, arg.ChunkX, arg.ChunkZ, arg.Seed, arg.DurationMs, arg.Fallback,
		arg.NodeCount, arg.TileCount, arg.BuildingCount)
	return err
}

// ListRecentGenerationLogs returns the newest audit rows first.
func (q *Queries) ListRecentGenerationLogs(ctx context.Context, limit int64) ([]GenerationLog, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT log_id, chunk_x, chunk_z, seed, duration_ms, fallback,
		       node_count, tile_count, building_count, created_at
		FROM generation_log
		ORDER BY log_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GenerationLog
	for rows.Next() {
		var l GenerationLog
		if err := rows.Scan(&l.LogID, &l.ChunkX, &l.ChunkZ, &l.Seed, &l.DurationMs,
			&l.Fallback, &l.NodeCount, &l.TileCount, &l.BuildingCount, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CreateViewerParams register a new streaming consumer.
type CreateViewerParams struct {
	Name         string
	SessionToken string
}

// CreateViewer inserts a viewer row and returns it.
func (q *Queries) CreateViewer(ctx context.Context, arg CreateViewerParams) (Viewer, error) {
	var v Viewer
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO viewers (name, session_token, last_seen)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		RETURNING viewer_id, name, session_token, world_x, world_z,
		          chunk_x, chunk_z, created_at, last_seen
	`, arg.Name, arg.SessionToken).Scan(&v.ViewerID, &v.Name, &v.SessionToken,
		&v.WorldX, &v.WorldZ, &v.ChunkX, &v.ChunkZ, &v.CreatedAt, &v.LastSeen)
	return v, err
}

// GetViewerByToken looks up a viewer by its session token.
func (q *Queries) GetViewerByToken(ctx context.Context, token string) (Viewer, error) {
	var v Viewer
	err := q.db.QueryRowContext(ctx, `
		SELECT viewer_id, name, session_token, world_x, world_z,
		       chunk_x, chunk_z, created_at, last_seen
		FROM viewers
		WHERE session_token = ?
	`, token).Scan(&v.ViewerID, &v.Name, &v.SessionToken,
		&v.WorldX, &v.WorldZ, &v.ChunkX, &v.ChunkZ, &v.CreatedAt, &v.LastSeen)
	return v, err
}

// UpdateViewerPositionParams carry a position update.
type UpdateViewerPositionParams struct {
	ViewerID int64
	WorldX   float64
	WorldZ   float64
	ChunkX   int64
	ChunkZ   int64
}

// UpdateViewerPosition stores a viewer's latest world position and chunk
// coordinate and refreshes its last-seen timestamp.
func (q *Queries) UpdateViewerPosition(ctx context.Context, arg UpdateViewerPositionParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE viewers
		SET world_x = ?, world_z = ?, chunk_x = ?, chunk_z = ?,
		    last_seen = CURRENT_TIMESTAMP
		WHERE viewer_id = ?
	`, arg.WorldX, arg.WorldZ, arg.ChunkX, arg.ChunkZ, arg.ViewerID)
	return err
}

// CleanupStaleViewers deletes viewers not seen since the cutoff.
func (q *Queries) CleanupStaleViewers(ctx context.Context, cutoff time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM viewers WHERE last_seen < ?
	`, cutoff)
	return err
}
