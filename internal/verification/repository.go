package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bankverify/bankverify/internal/aggregator"
)

// Repository persists verification requests.
type Repository interface {
	Create(ctx context.Context, req Request) error
	Get(ctx context.Context, id string) (Request, error)
	FindByToken(ctx context.Context, token string) (Request, error)
	// Update loads the request, applies fn and stores the result atomically.
	Update(ctx context.Context, id string, fn func(*Request) error) (Request, error)
	List(ctx context.Context, filter ListFilter) ([]Request, int, error)
	Stats(ctx context.Context, now time.Time) (Stats, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

// PostgresRepository stores requests in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed verification repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id::text, status, customer, settings, timeline, expires_at, token, link, resend_count, agent_id, failure_reason, accounts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (Request, error) {
	var (
		req                          Request
		status                       string
		customer, settings, timeline []byte
		accounts                     []byte
	)
	if err := row.Scan(&req.ID, &status, &customer, &settings, &timeline, &req.ExpiresAt, &req.Token, &req.Link, &req.ResendCount, &req.AgentID, &req.FailureReason, &accounts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	req.Status = Status(status)
	if err := json.Unmarshal(customer, &req.Customer); err != nil {
		return Request{}, fmt.Errorf("decode customer: %w", err)
	}
	if err := json.Unmarshal(settings, &req.Settings); err != nil {
		return Request{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := json.Unmarshal(timeline, &req.Timeline); err != nil {
		return Request{}, fmt.Errorf("decode timeline: %w", err)
	}
	if len(accounts) > 0 {
		if err := json.Unmarshal(accounts, &req.ConnectedAccounts); err != nil {
			return Request{}, fmt.Errorf("decode accounts: %w", err)
		}
	}
	req.ExpiresAt = req.ExpiresAt.UTC()
	return req, nil
}

// jsonColumns encodes the customer, settings, timeline and accounts columns in that order.
func jsonColumns(req Request) ([]string, error) {
	accounts := req.ConnectedAccounts
	if accounts == nil {
		accounts = []aggregator.Account{}
	}
	parts := make([]string, 0, 4)
	for _, v := range []any{req.Customer, req.Settings, req.Timeline, accounts} {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		parts = append(parts, string(b))
	}
	return parts, nil
}

// Create inserts a new request.
func (r *PostgresRepository) Create(ctx context.Context, req Request) error {
	cols, err := jsonColumns(req)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO verification_requests
        (id, status, customer, settings, timeline, expires_at, token, link, resend_count, agent_id, failure_reason, created_at, accounts)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		req.ID, string(req.Status), cols[0], cols[1], cols[2], req.ExpiresAt.UTC(), req.Token, req.Link,
		req.ResendCount, req.AgentID, req.FailureReason, req.Timeline.CreatedAt.UTC(), cols[3])
	return err
}

// Get fetches a request by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Request{}, ErrNotFound
	}
	return scanRequest(r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM verification_requests WHERE id = $1`, id))
}

// FindByToken fetches the request owning a borrower token.
func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (Request, error) {
	return scanRequest(r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM verification_requests WHERE token = $1`, token))
}

// Update applies fn under a row lock.
func (r *PostgresRepository) Update(ctx context.Context, id string, fn func(*Request) error) (Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Request{}, ErrNotFound
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Request{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	req, err := scanRequest(tx.QueryRow(ctx, `SELECT `+selectColumns+` FROM verification_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Request{}, err
	}
	if err := fn(&req); err != nil {
		return Request{}, err
	}
	cols, err := jsonColumns(req)
	if err != nil {
		return Request{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE verification_requests SET
        status = $2, customer = $3, settings = $4, timeline = $5, expires_at = $6, token = $7, link = $8,
        resend_count = $9, failure_reason = $10, accounts = $11
        WHERE id = $1`,
		id, string(req.Status), cols[0], cols[1], cols[2], req.ExpiresAt.UTC(), req.Token, req.Link,
		req.ResendCount, req.FailureReason, cols[3]); err != nil {
		return Request{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Request{}, err
	}
	return req, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func whereClause(f ListFilter) (string, []any) {
	conds := make([]string, 0, 5)
	args := make([]any, 0, 5)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.AgentID != "" {
		add("agent_id = $%d", f.AgentID)
	}
	if f.From != nil {
		add("created_at >= $%d", f.From.UTC())
	}
	if f.To != nil {
		add("created_at <= $%d", f.To.UTC())
	}
	if f.Search != "" {
		add(`(id::text ILIKE $%[1]d ESCAPE '\'
            OR concat_ws(' ', customer->>'first_name', customer->>'middle_name', customer->>'last_name') ILIKE $%[1]d ESCAPE '\'
            OR customer->>'email' ILIKE $%[1]d ESCAPE '\'
            OR customer->>'phone' ILIKE $%[1]d ESCAPE '\')`, "%"+escapeLike(f.Search)+"%")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page plus the total number of matches.
func (r *PostgresRepository) List(ctx context.Context, f ListFilter) ([]Request, int, error) {
	where, args := whereClause(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM verification_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM verification_requests%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		selectColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, query, append(args, f.PageSize, f.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Request, 0, f.PageSize)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, req)
	}
	return items, total, rows.Err()
}

// Stats aggregates counts per status and completion timing.
func (r *PostgresRepository) Stats(ctx context.Context, now time.Time) (Stats, error) {
	rows, err := r.db.Query(ctx, `SELECT status,
            COUNT(*),
            COUNT(*) FILTER (WHERE created_at >= $1),
            COALESCE(SUM(EXTRACT(EPOCH FROM ((timeline->>'completed_at')::timestamptz - created_at)) / 60)
                FILTER (WHERE status = 'completed' AND timeline->>'completed_at' IS NOT NULL), 0)::float8,
            COUNT(*) FILTER (WHERE status = 'completed' AND timeline->>'completed_at' IS NOT NULL)
        FROM verification_requests GROUP BY status`, now.Add(-7*24*time.Hour).UTC())
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	stats := Stats{ByStatus: make(map[Status]int, len(Statuses))}
	for _, s := range Statuses {
		stats.ByStatus[s] = 0
	}
	var minutes float64
	var timed int
	for rows.Next() {
		var (
			status                    string
			count, recent, doneTimed int
			doneMinutes               float64
		)
		if err := rows.Scan(&status, &count, &recent, &doneMinutes, &doneTimed); err != nil {
			return Stats{}, err
		}
		stats.ByStatus[Status(status)] = count
		stats.Total += count
		stats.CreatedLast7Days += recent
		minutes += doneMinutes
		timed += doneTimed
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.ByStatus[StatusCompleted]) / float64(stats.Total)
	}
	if timed > 0 {
		stats.AvgCompletionMinutes = minutes / float64(timed)
	}
	return stats, nil
}

// ExpireOverdue marks open requests past their expiry as expired.
func (r *PostgresRepository) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE verification_requests
        SET status = 'expired', timeline = jsonb_set(timeline, '{expired_at}', to_jsonb($1::timestamptz))
        WHERE status IN ('pending', 'sent', 'in_progress') AND expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}
