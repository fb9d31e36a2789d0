package audit

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists audit events.
type Repository interface {
	SaveBatch(ctx context.Context, events []Event) error
	ListByTarget(ctx context.Context, targetType, targetID string) ([]Event, error)
}

// PostgresRepository writes audit events to PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed audit repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// SaveBatch inserts all events in a single round trip.
func (r *PostgresRepository) SaveBatch(ctx context.Context, events []Event) error {
	batch := &pgx.Batch{}
	for _, e := range events {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO audit_events (id, actor, action, target_type, target_id, metadata, occurred_at)
            VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`,
			e.ID, e.Actor, e.Action, e.TargetType, e.TargetID, string(meta), e.OccurredAt.UTC())
	}
	return r.db.SendBatch(ctx, batch).Close()
}

// ListByTarget returns the trail of a single target, oldest first.
func (r *PostgresRepository) ListByTarget(ctx context.Context, targetType, targetID string) ([]Event, error) {
	rows, err := r.db.Query(ctx, `SELECT id::text, actor, action, target_type, target_id, metadata, occurred_at
        FROM audit_events WHERE target_type = $1 AND target_id = $2 ORDER BY occurred_at ASC`, targetType, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e    Event
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.TargetType, &e.TargetID, &meta, &e.OccurredAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, err
			}
		}
		e.OccurredAt = e.OccurredAt.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

type memoryRepository struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryRepository builds an in-memory audit store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{}
}

func (r *memoryRepository) SaveBatch(_ context.Context, events []Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *memoryRepository) ListByTarget(_ context.Context, targetType, targetID string) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Event
	for _, e := range r.events {
		if e.TargetType == targetType && e.TargetID == targetID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}
