package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ActionBatchSave      = "payroll.batch.save"
	ActionBatchRename    = "payroll.batch.rename"
	ActionBatchDelete    = "payroll.batch.delete"
	ActionRefereeImport  = "referees.import"
	ActionRefereeDelete  = "referees.delete"
	ActionMappingConfirm = "matching.mapping.confirm"
	ActionMappingDelete  = "matching.mapping.delete"
)

// Entry is one operator mutation as reported by a handler.
type Entry struct {
	Operator   string
	Action     string
	EntityType string
	EntityID   string
	RequestID  string
	IP         string
	Details    any
}

type Event struct {
	ID         int64           `json:"id"`
	Operator   string          `json:"operator"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Details    json.RawMessage `json:"details,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	Operator   string
}

type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, entry Entry) error {
	var details []byte
	if entry.Details != nil {
		payload, err := json.Marshal(entry.Details)
		if err != nil {
			return err
		}
		details = payload
	}

	_, err := s.DB.Exec(ctx, `
    INSERT INTO audit_events (operator, action, entity_type, entity_id, details_json, request_id, ip)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, entry.Operator, entry.Action, entry.EntityType, entry.EntityID, details, entry.RequestID, entry.IP)
	return err
}

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	query, args := buildBaseQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// List returns events newest first. A zero limit returns every match.
func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Event, error) {
	query, args := buildBaseQuery(`SELECT id, operator, action, entity_type, entity_id, request_id, ip, created_at, details_json`, filter)
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, limit, offset)
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var evt Event
		var details []byte
		if err := rows.Scan(&evt.ID, &evt.Operator, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt, &details); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			evt.Details = details
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func buildBaseQuery(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_events WHERE TRUE"
	var args []any
	if filter.Action != "" {
		args = append(args, filter.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		query += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if filter.Operator != "" {
		args = append(args, filter.Operator)
		query += fmt.Sprintf(" AND operator = $%d", len(args))
	}
	return query, args
}
