package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"backoffice/internal/platform/apperr"
	"backoffice/internal/platform/querier"
)

// VersionMiss explains why a versioned UPDATE touched no rows: the row is gone
// (not_found) or another writer bumped its version first (version_conflict).
// table is always a package constant, never user input.
func VersionMiss(ctx context.Context, q querier.Querier, table, id, entity string) error {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1 AND NOT is_deleted)", table)
	if err := q.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return MapError(err, entity)
	}
	if !exists {
		return apperr.NotFound(entity + " not found")
	}
	return apperr.VersionConflict(entity)
}

// ActorRef returns actorID for created_by/updated_by columns, or NULL when the
// actor is not a user (API keys, jobs).
func ActorRef(actorID string) any {
	if _, err := uuid.Parse(actorID); err != nil {
		return nil
	}
	return actorID
}
