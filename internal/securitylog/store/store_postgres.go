package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"adminconsole/internal/securitylog"
	id "adminconsole/pkg/domain"
	dErrors "adminconsole/pkg/domain-errors"
)

// Schema creates the security_events table and the indexes backing the detector's
// per-IP and per-type window counts.
const Schema = `
CREATE TABLE IF NOT EXISTS security_events (
	id                 UUID PRIMARY KEY,
	event_type         TEXT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL,
	ip_address         TEXT NOT NULL DEFAULT '',
	user_agent         TEXT NOT NULL DEFAULT '',
	user_id            TEXT NOT NULL DEFAULT '',
	admin_id           TEXT NOT NULL DEFAULT '',
	actor_kind         TEXT NOT NULL DEFAULT '',
	resource           TEXT NOT NULL DEFAULT '',
	action             TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL DEFAULT '',
	request_method     TEXT NOT NULL DEFAULT '',
	request_path       TEXT NOT NULL DEFAULT '',
	request_data       JSONB,
	response_status    INTEGER NOT NULL DEFAULT 0,
	processing_time_ms BIGINT NOT NULL DEFAULT 0,
	metadata           JSONB
);
CREATE INDEX IF NOT EXISTS security_events_ip_created_idx ON security_events (ip_address, created_at);
CREATE INDEX IF NOT EXISTS security_events_type_created_idx ON security_events (event_type, created_at);
`

// PostgresStore persists security events in PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// EnsureSchema applies Schema. It is idempotent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply security_events schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, event *securitylog.Event) error {
	if event == nil {
		return dErrors.New(dErrors.CodeBadRequest, "event is required")
	}
	if event.ID.IsNil() {
		event.ID = id.NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	requestData, err := marshalJSONB(event.RequestData)
	if err != nil {
		return fmt.Errorf("marshal request data: %w", err)
	}
	metadata, err := marshalJSONB(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO security_events (
			id, event_type, created_at, ip_address, user_agent, user_id, admin_id,
			actor_kind, resource, action, description, request_method, request_path,
			request_data, response_status, processing_time_ms, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(event.ID),
		string(event.EventType),
		event.Timestamp,
		event.IPAddress,
		event.UserAgent,
		event.UserID,
		event.AdminID,
		event.ActorKind,
		event.Resource,
		event.Action,
		event.Description,
		event.RequestMethod,
		event.RequestPath,
		requestData,
		event.ResponseStatus,
		event.ProcessingTimeMs,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context, filter securitylog.CountFilter, since time.Time) (int, error) {
	conds := []string{"created_at > $1"}
	args := []any{since}
	if filter.IPAddress != "" {
		args = append(args, filter.IPAddress)
		conds = append(conds, fmt.Sprintf("ip_address = $%d", len(args)))
	}
	if filter.EventType != "" {
		args = append(args, string(filter.EventType))
		conds = append(conds, fmt.Sprintf("event_type = $%d", len(args)))
	}

	query := "SELECT COUNT(*) FROM security_events WHERE " + strings.Join(conds, " AND ")
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count security events: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Purge(ctx context.Context, olderThanDays *int) (int64, error) {
	var (
		res sql.Result
		err error
	)
	switch {
	case olderThanDays == nil:
		res, err = s.db.ExecContext(ctx, `DELETE FROM security_events`)
	case *olderThanDays < 0:
		return 0, dErrors.New(dErrors.CodeBadRequest, "olderThanDays must not be negative")
	default:
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM security_events WHERE created_at <= $1`,
			PurgeCutoff(s.now(), *olderThanDays),
		)
	}
	if err != nil {
		return 0, fmt.Errorf("purge security events: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge security events: %w", err)
	}
	return deleted, nil
}

func (s *PostgresStore) List(ctx context.Context, q securitylog.Query) (securitylog.Page, error) {
	q = q.Normalize()

	var conds []string
	var args []any
	if len(q.EventTypes) > 0 {
		types := make([]string, len(q.EventTypes))
		for i, t := range q.EventTypes {
			types[i] = string(t)
		}
		args = append(args, pq.Array(types))
		conds = append(conds, fmt.Sprintf("event_type = ANY($%d)", len(args)))
	}
	if q.ActorKind != "" {
		args = append(args, q.ActorKind)
		conds = append(conds, fmt.Sprintf("actor_kind = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	page := securitylog.Page{Events: []securitylog.Event{}, Page: q.Page, Limit: q.Limit}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM security_events"+where, args...).Scan(&page.Total); err != nil {
		return securitylog.Page{}, fmt.Errorf("count security events: %w", err)
	}

	args = append(args, q.Limit, q.Offset())
	query := fmt.Sprintf(`
		SELECT id, event_type, created_at, ip_address, user_agent, user_id, admin_id,
			actor_kind, resource, action, description, request_method, request_path,
			request_data, response_status, processing_time_ms, metadata
		FROM security_events%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return securitylog.Page{}, fmt.Errorf("list security events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return securitylog.Page{}, err
		}
		page.Events = append(page.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return securitylog.Page{}, fmt.Errorf("iterate security events: %w", err)
	}
	return page, nil
}

func scanEvent(rows *sql.Rows) (securitylog.Event, error) {
	var (
		ev          securitylog.Event
		eventID     uuid.UUID
		eventType   string
		requestData []byte
		metadata    []byte
	)
	if err := rows.Scan(
		&eventID, &eventType, &ev.Timestamp, &ev.IPAddress, &ev.UserAgent, &ev.UserID, &ev.AdminID,
		&ev.ActorKind, &ev.Resource, &ev.Action, &ev.Description, &ev.RequestMethod, &ev.RequestPath,
		&requestData, &ev.ResponseStatus, &ev.ProcessingTimeMs, &metadata,
	); err != nil {
		return securitylog.Event{}, fmt.Errorf("scan security event: %w", err)
	}
	ev.ID = id.EventID(eventID)
	ev.EventType = securitylog.EventType(eventType)
	if err := unmarshalJSONB(requestData, &ev.RequestData); err != nil {
		return securitylog.Event{}, fmt.Errorf("decode request data: %w", err)
	}
	if err := unmarshalJSONB(metadata, &ev.Metadata); err != nil {
		return securitylog.Event{}, fmt.Errorf("decode metadata: %w", err)
	}
	return ev, nil
}

func marshalJSONB(v map[string]any) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalJSONB(raw []byte, into *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, into)
}
