package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ repositories.DeliveryRepository = (*DeliveryRepository)(nil)

// DeliveryRepository stores ledger entries in the deliveries table
type DeliveryRepository struct {
	pool *pgxpool.Pool
}

// NewDeliveryRepository creates a new DeliveryRepository
func NewDeliveryRepository(pool *pgxpool.Pool) *DeliveryRepository {
	return &DeliveryRepository{pool: pool}
}

const deliveryColumns = `id, tenant_id, batch_id, template_code, message, phone, display_name,
	recipient_kind, subject_id, subject_label, group_id, group_label, sent_by, sent_by_name,
	status, gateway, gateway_response, cost, category, priority, scheduled_time, sent_time,
	delivered_time, error_message, retry_count, max_retries, retry_of, retried_by, created_at, updated_at`

// Create appends a ledger entry
func (r *DeliveryRepository) Create(ctx context.Context, e *models.DeliveryLog) error {
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.GatewayResponse == nil {
		e.GatewayResponse = map[string]interface{}{}
	}

	query := `INSERT INTO deliveries (` + deliveryColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30)`
	_, err := r.pool.Exec(ctx, query,
		e.ID, e.TenantID, e.BatchID, e.TemplateCode, e.Message, e.Phone, e.DisplayName,
		string(e.RecipientKind), e.SubjectID, e.SubjectLabel, e.GroupID, e.GroupLabel, e.SentBy, e.SentByName,
		string(e.Status), e.Gateway, e.GatewayResponse, e.Cost, string(e.Category), string(e.Priority),
		e.ScheduledTime, e.SentTime, e.DeliveredTime, e.ErrorMessage, e.RetryCount, e.MaxRetries, e.RetryOf,
		e.RetriedBy, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repositories.ErrDuplicate
		}
		return fmt.Errorf("insert delivery failed: %w", err)
	}
	return nil
}

// FindByID finds one entry of the tenant
func (r *DeliveryRepository) FindByID(ctx context.Context, tenantID, id string) (*models.DeliveryLog, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	e, err := scanDelivery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	return e, err
}

// FindByIDs returns the entries that exist among ids, in the order of ids
func (r *DeliveryRepository) FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*models.DeliveryLog, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE tenant_id = $1 AND id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("query deliveries failed: %w", err)
	}
	found, err := collectDeliveries(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.DeliveryLog, len(found))
	for _, e := range found {
		byID[e.ID] = e
	}
	out := make([]*models.DeliveryLog, 0, len(found))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// FindAll lists matching entries newest first
func (r *DeliveryRepository) FindAll(ctx context.Context, filter models.DeliveryFilter, page, limit int) ([]*models.DeliveryLog, int64, error) {
	where, args := buildWhere(filter)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM deliveries `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count deliveries failed: %w", err)
	}

	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT %s FROM deliveries %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		deliveryColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query deliveries failed: %w", err)
	}
	entries, err := collectDeliveries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Statistics aggregates the filtered ledger with one FILTER query
func (r *DeliveryRepository) Statistics(ctx context.Context, filter models.DeliveryFilter) (*models.DeliveryStatistics, error) {
	where, args := buildWhere(filter)
	query := `SELECT
		count(*),
		count(*) FILTER (WHERE status IN ('sent', 'delivered')),
		count(*) FILTER (WHERE status = 'delivered'),
		count(*) FILTER (WHERE status = 'failed'),
		count(*) FILTER (WHERE status = 'pending'),
		count(*) FILTER (WHERE status = 'cancelled'),
		coalesce(sum(cost), 0)
		FROM deliveries ` + where

	s := &models.DeliveryStatistics{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&s.Total, &s.Successful, &s.Delivered, &s.Failed, &s.Pending, &s.Cancelled, &s.TotalCost,
	)
	if err != nil {
		return nil, fmt.Errorf("delivery statistics failed: %w", err)
	}
	return s, nil
}

// MarkSent moves a pending entry to sent, merging non-nil response values
func (r *DeliveryRepository) MarkSent(ctx context.Context, tenantID, id string, response map[string]interface{}, cost float64, at time.Time) error {
	return r.transition(ctx, tenantID, id, models.StatusSent,
		`status = 'sent', sent_time = $4, cost = $5, gateway_response = gateway_response || $6::jsonb, updated_at = now()`,
		at, cost, compact(response))
}

// MarkDelivered moves a sent entry to delivered
func (r *DeliveryRepository) MarkDelivered(ctx context.Context, tenantID, id string, at time.Time) error {
	return r.transition(ctx, tenantID, id, models.StatusDelivered,
		`status = 'delivered', delivered_time = $4, updated_at = now()`, at)
}

// MarkFailed moves a pending entry to failed and increments retry_count
func (r *DeliveryRepository) MarkFailed(ctx context.Context, tenantID, id, errMsg string, response map[string]interface{}, at time.Time) error {
	return r.transition(ctx, tenantID, id, models.StatusFailed,
		`status = 'failed', error_message = $4, retry_count = retry_count + 1, gateway_response = gateway_response || $5::jsonb, updated_at = $6`,
		errMsg, compact(response), at)
}

// MarkCancelled moves a pending entry to cancelled
func (r *DeliveryRepository) MarkCancelled(ctx context.Context, tenantID, id string, at time.Time) error {
	return r.transition(ctx, tenantID, id, models.StatusCancelled,
		`status = 'cancelled', updated_at = $4`, at)
}

const claimRetrySQL = `UPDATE deliveries SET retried_by = $3, updated_at = $4
	WHERE id = $1 AND tenant_id = $2 AND status = 'failed' AND retried_by = '' AND retry_count < max_retries`

// ClaimRetry sets retried_by on a failed entry in one guarded UPDATE
func (r *DeliveryRepository) ClaimRetry(ctx context.Context, tenantID, id, retryID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, claimRetrySQL, id, tenantID, retryID, at)
	if err != nil {
		return fmt.Errorf("claim retry failed: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var retriedBy string
	err = r.pool.QueryRow(ctx, `SELECT retried_by FROM deliveries WHERE id = $1 AND tenant_id = $2`, id, tenantID).Scan(&retriedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return repositories.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup delivery failed: %w", err)
	}
	if retriedBy != "" {
		return models.ErrAlreadyRetried
	}
	return models.ErrInvalidTransition
}

func (r *DeliveryRepository) transition(ctx context.Context, tenantID, id string, to models.DeliveryStatus, set string, extra ...interface{}) error {
	var from []string
	for _, s := range []models.DeliveryStatus{models.StatusPending, models.StatusSent} {
		if models.CanTransition(s, to) {
			from = append(from, string(s))
		}
	}

	args := append([]interface{}{id, tenantID, from}, extra...)
	tag, err := r.pool.Exec(ctx, `UPDATE deliveries SET `+set+` WHERE id = $1 AND tenant_id = $2 AND status = ANY($3)`, args...)
	if err != nil {
		return fmt.Errorf("update delivery failed: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM deliveries WHERE id = $1 AND tenant_id = $2)`, id, tenantID).Scan(&exists); err != nil {
		return fmt.Errorf("lookup delivery failed: %w", err)
	}
	if !exists {
		return repositories.ErrNotFound
	}
	return models.ErrInvalidTransition
}

// buildWhere renders the tenant-scoped filter as a WHERE clause with
// positional arguments starting at $1
func buildWhere(f models.DeliveryFilter) (string, []interface{}) {
	conds := []string{"tenant_id = $1"}
	args := []interface{}{f.TenantID}

	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if f.SubjectID != "" {
		add("subject_id = $%d", f.SubjectID)
	}
	if f.BatchID != "" {
		add("batch_id = $%d", f.BatchID)
	}
	if f.TemplateCode != "" {
		add("template_code = $%d", f.TemplateCode)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func compact(response map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(response))
	for k, v := range response {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

func collectDeliveries(rows pgx.Rows) ([]*models.DeliveryLog, error) {
	defer rows.Close()

	entries := []*models.DeliveryLog{}
	for rows.Next() {
		e, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read deliveries failed: %w", err)
	}
	return entries, nil
}

func scanDelivery(row pgx.Row) (*models.DeliveryLog, error) {
	var e models.DeliveryLog
	var kind, status, category, priority string
	err := row.Scan(
		&e.ID, &e.TenantID, &e.BatchID, &e.TemplateCode, &e.Message, &e.Phone, &e.DisplayName,
		&kind, &e.SubjectID, &e.SubjectLabel, &e.GroupID, &e.GroupLabel, &e.SentBy, &e.SentByName,
		&status, &e.Gateway, &e.GatewayResponse, &e.Cost, &category, &priority,
		&e.ScheduledTime, &e.SentTime, &e.DeliveredTime, &e.ErrorMessage, &e.RetryCount, &e.MaxRetries, &e.RetryOf,
		&e.RetriedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.RecipientKind = models.RecipientKind(kind)
	e.Status = models.DeliveryStatus(status)
	e.Category = models.TemplateCategory(category)
	e.Priority = models.TemplatePriority(priority)
	return &e, nil
}
