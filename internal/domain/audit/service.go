package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Recorder is what the HTTP layer needs to write audit events.
type Recorder interface {
	Record(ctx context.Context, actorID, action, entityType, entityID, requestID, ip string, before, after any) error
}

// Service keeps the audit trail on the instrumented database/sql handle.
type Service struct {
	DB *sql.DB
}

func New(db *sql.DB) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, actorID, action, entityType, entityID, requestID, ip string, before, after any) error {
	beforeJSON, err := marshalState(before)
	if err != nil {
		return fmt.Errorf("marshal before state: %w", err)
	}
	afterJSON, err := marshalState(after)
	if err != nil {
		return fmt.Errorf("marshal after state: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
    INSERT INTO audit_events (actor_user_id, action, entity_type, entity_id, before_json, after_json, request_id, ip)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, actorID, action, entityType, entityID, beforeJSON, afterJSON, requestID, ip)
	return err
}

func marshalState(state any) (any, error) {
	if state == nil {
		return nil, nil
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	query, args := buildBaseQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) List(ctx context.Context, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	selectCols := "SELECT id, actor_user_id, action, entity_type, entity_id, request_id, ip, created_at"
	if includeDetails {
		selectCols += ", before_json, after_json"
	}
	query, args := buildBaseQuery(selectCols, filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	return s.query(ctx, query, args, includeDetails)
}

// ListExport returns every matching event, newest first, without state payloads.
func (s *Service) ListExport(ctx context.Context, filter Filter) ([]Event, error) {
	query, args := buildBaseQuery("SELECT id, actor_user_id, action, entity_type, entity_id, request_id, ip, created_at", filter)
	query += " ORDER BY created_at DESC"
	return s.query(ctx, query, args, false)
}

func (s *Service) query(ctx context.Context, query string, args []any, includeDetails bool) ([]Event, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var evt Event
		var before, after []byte
		dest := []any{&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt}
		if includeDetails {
			dest = append(dest, &before, &after)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if len(before) > 0 {
			evt.Before = json.RawMessage(before)
		}
		if len(after) > 0 {
			evt.After = json.RawMessage(after)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes events older than days; zero or negative keeps everything.
func (s *Service) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	res, err := s.DB.ExecContext(ctx, "DELETE FROM audit_events WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RetentionJob adapts PurgeOlderThan to the scheduler.
func (s *Service) RetentionJob(days int) func(ctx context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		deleted, err := s.PurgeOlderThan(ctx, days)
		if err != nil {
			return nil, err
		}
		return map[string]any{"deleted": deleted, "retentionDays": days}, nil
	}
}

func buildBaseQuery(prefix string, filter Filter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.EntityType != "" {
		add("entity_type = $%d", filter.EntityType)
	}
	if filter.EntityID != "" {
		add("entity_id = $%d", filter.EntityID)
	}
	if filter.ActorUser != "" {
		add("actor_user_id = $%d", filter.ActorUser)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at < $%d", *filter.To)
	}
	query := prefix + " FROM audit_events"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	return query, args
}
