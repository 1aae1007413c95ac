package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/charmbracelet/log"
)

// LoggingQueries wraps Queries to add debug logging around every call.
type LoggingQueries struct {
	*Queries
}

// NewLoggingQueries creates a new LoggingQueries instance.
func NewLoggingQueries(db DBTX) *LoggingQueries {
	return &LoggingQueries{
		Queries: New(db),
	}
}

// WithTx creates a new LoggingQueries bound to a transaction.
func (lq *LoggingQueries) WithTx(tx *sql.Tx) *LoggingQueries {
	return &LoggingQueries{
		Queries: lq.Queries.WithTx(tx),
	}
}

func (lq *LoggingQueries) logQuery(queryName string, start time.Time, err error, args ...interface{}) {
	duration := time.Since(start)
	if err != nil {
		log.Debug("Database query failed",
			"query", queryName,
			"duration", duration,
			"error", err,
			"args", args,
		)
	} else {
		log.Debug("Database query executed",
			"query", queryName,
			"duration", duration,
			"args", args,
		)
	}
}

// ListBuildingArchetypes with logging.
func (lq *LoggingQueries) ListBuildingArchetypes(ctx context.Context) ([]BuildingArchetype, error) {
	start := time.Now()
	out, err := lq.Queries.ListBuildingArchetypes(ctx)
	lq.logQuery("ListBuildingArchetypes", start, err)
	return out, err
}

// ListDecorTemplates with logging.
func (lq *LoggingQueries) ListDecorTemplates(ctx context.Context, kind string) ([]DecorTemplate, error) {
	start := time.Now()
	out, err := lq.Queries.ListDecorTemplates(ctx, kind)
	lq.logQuery("ListDecorTemplates", start, err, kind)
	return out, err
}

// CreateGenerationLog with logging.
func (lq *LoggingQueries) CreateGenerationLog(ctx context.Context, arg CreateGenerationLogParams) error {
	start := time.Now()
	err := lq.Queries.CreateGenerationLog(ctx, arg)
	lq.logQuery("CreateGenerationLog", start, err, arg.ChunkX, arg.ChunkZ)
	return err
}

// ListRecentGenerationLogs with logging.
func (lq *LoggingQueries) ListRecentGenerationLogs(ctx context.Context, limit int64) ([]GenerationLog, error) {
	start := time.Now()
	out, err := lq.Queries.ListRecentGenerationLogs(ctx, limit)
	lq.logQuery("ListRecentGenerationLogs", start, err, limit)
	return out, err
}

// CreateViewer with logging.
func (lq *LoggingQueries) CreateViewer(ctx context.Context, arg CreateViewerParams) (Viewer, error) {
	start := time.Now()
	v, err := lq.Queries.CreateViewer(ctx, arg)
	lq.logQuery("CreateViewer", start, err, arg.Name)
	return v, err
}

// GetViewerByToken with logging. The token itself is never logged.
func (lq *LoggingQueries) GetViewerByToken(ctx context.Context, token string) (Viewer, error) {
	start := time.Now()
	v, err := lq.Queries.GetViewerByToken(ctx, token)
	lq.logQuery("GetViewerByToken", start, err)
	return v, err
}

// UpdateViewerPosition with logging.
func (lq *LoggingQueries) UpdateViewerPosition(ctx context.Context, arg UpdateViewerPositionParams) error {
	start := time.Now()
	err := lq.Queries.UpdateViewerPosition(ctx, arg)
	lq.logQuery("UpdateViewerPosition", start, err, arg.ViewerID, arg.ChunkX, arg.ChunkZ)
	return err
}

// CleanupStaleViewers with logging.
func (lq *LoggingQueries) CleanupStaleViewers(ctx context.Context, cutoff time.Time) error {
	start := time.Now()
	err := lq.Queries.CleanupStaleViewers(ctx, cutoff)
	lq.logQuery("CleanupStaleViewers", start, err, cutoff)
	return err
}
